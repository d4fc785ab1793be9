package http

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/repository"
)

// fakeStore stands in for Postgres: orders, outbox and profiles.
type fakeStore struct {
	mu       sync.RWMutex
	orders   map[string]domain.Order
	items    map[string][]domain.OrderItem
	payments map[string]domain.Payment // keyed by order id
	events   []repository.OutboxEvent
	profiles map[string]domain.ShippingDetails
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:   make(map[string]domain.Order),
		items:    make(map[string][]domain.OrderItem),
		payments: make(map[string]domain.Payment),
		profiles: make(map[string]domain.ShippingDetails),
	}
}

func (f *fakeStore) CreateOrder(_ context.Context, o *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeStore) CreateOrderItems(_ context.Context, items []domain.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		f.items[it.OrderID] = append(f.items[it.OrderID], it)
	}
	return nil
}

func (f *fakeStore) CreatePayment(_ context.Context, p *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.OrderID] = *p
	return nil
}

func (f *fakeStore) UpdatePaymentStatus(_ context.Context, id string, status domain.PaymentStatus, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for orderID, p := range f.payments {
		if p.ID == id {
			p.Status = status
			p.ExternalID = externalID
			f.payments[orderID] = p
			return nil
		}
	}
	return repository.ErrPaymentNotFound
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	f.orders[id] = o
	return nil
}

func (f *fakeStore) DeleteOrder(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.orders, id)
	delete(f.items, id)
	delete(f.payments, id)
	return nil
}

func (f *fakeStore) GetOrder(_ context.Context, shopperID, orderID string) (*domain.OrderDetails, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	o, ok := f.orders[orderID]
	if !ok || o.ShopperID != shopperID {
		return nil, repository.ErrOrderNotFound
	}
	details := &domain.OrderDetails{Order: o, Items: f.items[orderID]}
	if p, ok := f.payments[orderID]; ok {
		details.Payment = &p
	}
	return details, nil
}

func (f *fakeStore) ListOrders(_ context.Context, shopperID string) ([]domain.Order, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []domain.Order
	for _, o := range f.orders {
		if o.ShopperID == shopperID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) GetProfile(_ context.Context, shopperID string) (*domain.ShippingDetails, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.profiles[shopperID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return &p, nil
}

func (f *fakeStore) EnqueueEvent(_ context.Context, aggregateID, eventType string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, repository.OutboxEvent{
		ID:          int64(len(f.events) + 1),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (f *fakeStore) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeStore) MarkEventAsProcessed(context.Context, int64) error {
	return nil
}

func (f *fakeStore) GetOrdersMissingEvents(context.Context, time.Duration, int) ([]domain.OrderDetails, error) {
	return nil, nil
}

func (f *fakeStore) eventTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}
