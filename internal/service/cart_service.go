package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/cache"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Carts hands out the CartService of each shopper. Every cart it builds
// shares one singleflight group, so concurrent requests for the same cart
// hit the repository once.
type Carts struct {
	repo    repository.CartRepository
	catalog repository.CatalogRepository
	cache   cache.CartCache
	log     *zap.Logger

	sfg singleflight.Group // Prevents cache stampede
}

func NewCarts(
	repo repository.CartRepository,
	catalog repository.CatalogRepository,
	cache cache.CartCache,
	log *zap.Logger,
) *Carts {
	if log == nil {
		log = zap.NewNop()
	}
	return &Carts{
		repo:    repo,
		catalog: catalog,
		cache:   cache,
		log:     log,
	}
}

// For returns the cart of id. Build one per session (or request); it is not
// shared between shoppers.
func (c *Carts) For(id domain.Identity) *CartService {
	return &CartService{
		repo:    c.repo,
		catalog: c.catalog,
		cache:   c.cache,
		sfg:     &c.sfg,
		log:     c.log.With(zap.String("shopper_id", id.ShopperID)),
		id:      id,
	}
}

// CartService is the cart of one shopper.
type CartService struct {
	repo    repository.CartRepository
	catalog repository.CatalogRepository
	cache   cache.CartCache
	sfg     *singleflight.Group
	log     *zap.Logger
	id      domain.Identity

	mu      sync.RWMutex
	lines   []domain.CartLine
	loadSeq uint64
	loading bool
}

func (s *CartService) Identity() domain.Identity {
	return s.id
}

// Load reads the shopper's rows (cache first) and joins them with fresh
// variant data. Rows whose variant no longer exists are skipped.
func (s *CartService) Load(ctx context.Context) ([]domain.CartLine, error) {
	if !s.id.Authenticated() {
		s.setLines(0, nil)
		return nil, nil
	}

	seq := s.beginLoad()
	lines, err := s.fetchLines(ctx)
	if err != nil {
		s.endLoad(seq)
		return nil, err
	}
	s.setLines(seq, lines)
	return lines, nil
}

func (s *CartService) beginLoad() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadSeq++
	s.loading = true
	return s.loadSeq
}

func (s *CartService) endLoad(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == s.loadSeq {
		s.loading = false
	}
}

// setLines stores the result of load seq unless a newer load has started.
func (s *CartService) setLines(seq uint64, lines []domain.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != 0 && seq != s.loadSeq {
		return
	}
	s.lines = lines
	s.loading = false
}

func (s *CartService) fetchLines(ctx context.Context) ([]domain.CartLine, error) {
	items, err := s.fetchItems(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []domain.CartLine{}, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.VariantID)
	}
	variants, err := s.catalog.GetVariants(ctx, ids)
	if err != nil {
		return nil, domain.NewPersistenceError("load cart variants", err)
	}

	lines := make([]domain.CartLine, 0, len(items))
	for _, it := range items {
		v, ok := variants[it.VariantID]
		if !ok {
			s.log.Warn("cart item references missing variant",
				zap.String("item_id", it.ID), zap.String("variant_id", it.VariantID))
			continue
		}
		lines = append(lines, domain.CartLine{CartItem: it, Variant: v})
	}
	return lines, nil
}

func (s *CartService) fetchItems(ctx context.Context) ([]domain.CartItem, error) {
	v, err, _ := s.sfg.Do(s.id.ShopperID, func() (interface{}, error) {
		items, err := s.cache.Get(ctx, s.id.ShopperID)
		if err == nil {
			return items, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get error", zap.Error(err))
		}

		items, err = s.repo.ListItems(ctx, s.id.ShopperID)
		if err != nil {
			return nil, domain.NewPersistenceError("list cart items", err)
		}

		if errSet := s.cache.Set(ctx, s.id.ShopperID, items); errSet != nil {
			s.log.Warn("cache set error", zap.Error(errSet))
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.CartItem), nil
}

// AddItem adds quantity units of a variant, merging with an existing row.
func (s *CartService) AddItem(ctx context.Context, variantID string, quantity int) error {
	if !s.id.Authenticated() {
		return domain.ErrAuthRequired
	}
	if quantity < 1 {
		return domain.NewValidationError("quantity must be at least 1", "quantity")
	}
	if _, err := s.catalog.GetVariant(ctx, variantID); err != nil {
		if errors.Is(err, repository.ErrVariantNotFound) {
			return domain.NewValidationError("unknown variant", "variant_id")
		}
		return domain.NewPersistenceError("get variant", err)
	}

	if _, err := s.repo.AddItem(ctx, s.id.ShopperID, variantID, quantity); err != nil {
		s.log.Error("repo add item error", zap.Error(err))
		return domain.NewPersistenceError("add cart item", err)
	}
	s.refresh(ctx)
	return nil
}

// AddSelection resolves a size/color choice against current stock and adds
// the matching variant.
func (s *CartService) AddSelection(ctx context.Context, productID, size, color string, quantity int) error {
	if !s.id.Authenticated() {
		return domain.ErrAuthRequired
	}
	variants, err := s.catalog.ListProductVariants(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return domain.ErrProductNotFound
		}
		return domain.NewPersistenceError("list product variants", err)
	}

	sel := domain.ResolveSelection(variants, size, color)
	if len(sel.Missing) > 0 {
		return domain.NewValidationError("choose a size and a color", sel.Missing...)
	}
	if sel.Variant == nil {
		return domain.NewValidationError("this combination is not available", "size", "color")
	}
	if quantity < 1 {
		return domain.NewValidationError("quantity must be at least 1", "quantity")
	}
	if quantity > sel.Stock {
		return &domain.StockUnavailableError{VariantID: sel.Variant.ID, Requested: quantity, Available: sel.Stock}
	}
	return s.AddItem(ctx, sel.Variant.ID, quantity)
}

// UpdateQuantity sets the quantity exactly. Zero or less removes the item.
func (s *CartService) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if !s.id.Authenticated() {
		return domain.ErrAuthRequired
	}
	if quantity <= 0 {
		return s.RemoveItem(ctx, itemID)
	}

	if err := s.repo.SetQuantity(ctx, s.id.ShopperID, itemID, quantity); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return domain.ErrCartItemNotFound
		}
		s.log.Error("repo update item quantity error", zap.Error(err))
		return domain.NewPersistenceError("update cart item", err)
	}
	s.refresh(ctx)
	return nil
}

// IncrementItem adds one unit after re-reading the variant's stock.
func (s *CartService) IncrementItem(ctx context.Context, itemID string) error {
	if !s.id.Authenticated() {
		return domain.ErrAuthRequired
	}
	item, err := s.repo.GetItem(ctx, s.id.ShopperID, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return domain.ErrCartItemNotFound
		}
		return domain.NewPersistenceError("get cart item", err)
	}

	variant, err := s.catalog.GetVariant(ctx, item.VariantID)
	if err != nil {
		if errors.Is(err, repository.ErrVariantNotFound) {
			return &domain.StockUnavailableError{VariantID: item.VariantID, Requested: item.Quantity + 1}
		}
		return domain.NewPersistenceError("get variant", err)
	}
	if item.Quantity >= variant.Stock {
		return &domain.StockUnavailableError{VariantID: variant.ID, Requested: item.Quantity + 1, Available: variant.Stock}
	}
	return s.UpdateQuantity(ctx, itemID, min(variant.Stock, item.Quantity+1))
}

// RemoveItem deletes the item. Removing an absent item is not an error.
func (s *CartService) RemoveItem(ctx context.Context, itemID string) error {
	if !s.id.Authenticated() {
		return domain.ErrAuthRequired
	}
	if err := s.repo.RemoveItem(ctx, s.id.ShopperID, itemID); err != nil {
		s.log.Error("repo remove item error", zap.Error(err))
		return domain.NewPersistenceError("remove cart item", err)
	}
	s.refresh(ctx)
	return nil
}

// RemoveOrdered deletes the rows an order was placed from. Rows added or
// changed after the snapshot, and rows left out of it, stay in the cart.
func (s *CartService) RemoveOrdered(ctx context.Context, ordered []domain.CartItemVersion) error {
	if !s.id.Authenticated() {
		return domain.ErrAuthRequired
	}
	removed, err := s.repo.RemoveOrderedItems(ctx, s.id.ShopperID, ordered)
	if err != nil {
		s.log.Error("repo remove ordered items error", zap.Error(err))
		return domain.NewPersistenceError("remove ordered items", err)
	}
	if removed < len(ordered) {
		s.log.Info("cart rows changed after snapshot were kept",
			zap.Int("ordered", len(ordered)), zap.Int("removed", removed))
	}
	s.refresh(ctx)
	return nil
}

// refresh drops the cached rows and reloads, so reads after a mutation see it.
// A failed reload leaves the mutation in place; the next Load retries.
func (s *CartService) refresh(ctx context.Context) {
	s.invalidateCache(ctx)
	if _, err := s.Load(ctx); err != nil {
		s.log.Warn("cart reload after mutation failed", zap.Error(err))
	}
}

func (s *CartService) invalidateCache(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, s.id.ShopperID); err != nil {
		s.log.Warn("cache invalidate error", zap.Error(err))
	}
}

func (s *CartService) Lines() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *CartService) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ItemCount(s.lines)
}

func (s *CartService) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CartTotal(s.lines)
}

// Loading is true while the most recent Load is outstanding.
func (s *CartService) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Snapshot freezes the current lines as the input of order placement.
func (s *CartService) Snapshot(now time.Time) domain.CartSnapshot {
	return domain.NewCartSnapshot(s.Lines(), now)
}
