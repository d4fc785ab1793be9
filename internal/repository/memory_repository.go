package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/google/uuid"
)

// MemoryCartRepository implements CartRepository with in-memory storage.
// Used when no MongoDB is configured and in tests.
type MemoryCartRepository struct {
	mu    sync.RWMutex
	items map[string]map[string]*domain.CartItem // shopperID -> itemID -> item
}

func NewMemoryCartRepository() *MemoryCartRepository {
	return &MemoryCartRepository{
		items: make(map[string]map[string]*domain.CartItem),
	}
}

func (s *MemoryCartRepository) ListItems(_ context.Context, shopperID string) ([]domain.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CartItem, 0, len(s.items[shopperID]))
	for _, item := range s.items[shopperID] {
		result = append(result, *item)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryCartRepository) GetItem(_ context.Context, shopperID, itemID string) (*domain.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[shopperID][itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *MemoryCartRepository) AddItem(_ context.Context, shopperID, variantID string, quantity int) (*domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	rows, ok := s.items[shopperID]
	if !ok {
		rows = make(map[string]*domain.CartItem)
		s.items[shopperID] = rows
	}
	for _, item := range rows {
		if item.VariantID == variantID {
			item.Quantity += quantity
			item.UpdatedAt = now
			cp := *item
			return &cp, nil
		}
	}

	item := &domain.CartItem{
		ID:        uuid.NewString(),
		ShopperID: shopperID,
		VariantID: variantID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rows[item.ID] = item
	cp := *item
	return &cp, nil
}

func (s *MemoryCartRepository) SetQuantity(_ context.Context, shopperID, itemID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[shopperID][itemID]
	if !ok {
		return ErrItemNotFound
	}
	item.Quantity = quantity
	item.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryCartRepository) RemoveItem(_ context.Context, shopperID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items[shopperID], itemID)
	return nil
}

func (s *MemoryCartRepository) RemoveOrderedItems(_ context.Context, shopperID string, ordered []domain.CartItemVersion) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := make(map[string]time.Time, len(ordered))
	for _, o := range ordered {
		version[o.VariantID] = o.UpdatedAt
	}

	removed := 0
	for id, item := range s.items[shopperID] {
		at, ok := version[item.VariantID]
		if !ok || item.UpdatedAt.After(at) {
			continue
		}
		delete(s.items[shopperID], id)
		removed++
	}
	return removed, nil
}
