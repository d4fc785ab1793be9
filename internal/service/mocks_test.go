package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/cache"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/gateway"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/repository"
	"github.com/shopspring/decimal"
)

// mockCache is an in-process CartCache.
type mockCache struct {
	m       sync.RWMutex
	items   map[string][]domain.CartItem
	getErr  error
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{items: make(map[string][]domain.CartItem)}
}

func (c *mockCache) Get(_ context.Context, shopperID string) ([]domain.CartItem, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	items, ok := c.items[shopperID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return items, nil
}

func (c *mockCache) Set(_ context.Context, shopperID string, items []domain.CartItem) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.items[shopperID] = items
	return nil
}

func (c *mockCache) Delete(_ context.Context, shopperID string) error {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.items, shopperID)
	c.deletes++
	return nil
}

// mockCatalog serves a fixed variant list.
type mockCatalog struct {
	m        sync.RWMutex
	variants []domain.Variant
	err      error
}

func (c *mockCatalog) ListProducts(context.Context) ([]domain.Product, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	seen := map[string]bool{}
	var out []domain.Product
	for _, v := range c.variants {
		if !seen[v.ProductID] {
			seen[v.ProductID] = true
			out = append(out, v.Product)
		}
	}
	return out, c.err
}

func (c *mockCatalog) GetVariant(_ context.Context, id string) (*domain.Variant, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	for _, v := range c.variants {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, repository.ErrVariantNotFound
}

func (c *mockCatalog) GetVariants(_ context.Context, ids []string) (map[string]domain.Variant, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	out := make(map[string]domain.Variant)
	for _, id := range ids {
		for _, v := range c.variants {
			if v.ID == id {
				out[id] = v
			}
		}
	}
	return out, nil
}

func (c *mockCatalog) ListProductVariants(_ context.Context, productID string) ([]domain.Variant, error) {
	c.m.RLock()
	defer c.m.RUnlock()
	if c.err != nil {
		return nil, c.err
	}
	var out []domain.Variant
	for _, v := range c.variants {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil, repository.ErrProductNotFound
	}
	return out, nil
}

func (c *mockCatalog) setStock(variantID string, stock int) {
	c.m.Lock()
	defer c.m.Unlock()
	for i := range c.variants {
		if c.variants[i].ID == variantID {
			c.variants[i].Stock = stock
		}
	}
}

func testCatalog() *mockCatalog {
	dress := domain.Product{ID: "p-dress", Name: "Vestido", BasePrice: decimal.NewFromInt(1000)}
	scarf := domain.Product{ID: "p-scarf", Name: "Pañuelo", BasePrice: decimal.NewFromInt(2500)}
	return &mockCatalog{variants: []domain.Variant{
		{ID: "v-dress-s-red", ProductID: "p-dress", Size: "S", Color: "red", Stock: 10, PriceModifier: decimal.Zero, Product: dress},
		{ID: "v-dress-m-red", ProductID: "p-dress", Size: "M", Color: "red", Stock: 2, PriceModifier: decimal.NewFromInt(200), Product: dress},
		{ID: "v-dress-m-blue", ProductID: "p-dress", Size: "M", Color: "blue", Stock: 0, PriceModifier: decimal.Zero, Product: dress},
		{ID: "v-scarf", ProductID: "p-scarf", Size: "U", Color: "rose", Stock: 5, PriceModifier: decimal.Zero, Product: scarf},
	}}
}

// failingCartRepo wraps a real repository and fails selected calls.
type failingCartRepo struct {
	repository.CartRepository
	addErr   error
	clearErr error

	lists    atomic.Int32
	listGate chan struct{} // when set, ListItems waits on it
}

func (r *failingCartRepo) ListItems(ctx context.Context, shopperID string) ([]domain.CartItem, error) {
	r.lists.Add(1)
	if r.listGate != nil {
		<-r.listGate
	}
	return r.CartRepository.ListItems(ctx, shopperID)
}

func (r *failingCartRepo) AddItem(ctx context.Context, shopperID, variantID string, qty int) (*domain.CartItem, error) {
	if r.addErr != nil {
		return nil, r.addErr
	}
	return r.CartRepository.AddItem(ctx, shopperID, variantID, qty)
}

func (r *failingCartRepo) RemoveOrderedItems(ctx context.Context, shopperID string, ordered []domain.CartItemVersion) (int, error) {
	if r.clearErr != nil {
		return 0, r.clearErr
	}
	return r.CartRepository.RemoveOrderedItems(ctx, shopperID, ordered)
}

// mockOrderRepo keeps orders in memory and can fail any write.
type mockOrderRepo struct {
	m        sync.RWMutex
	orders   map[string]*domain.Order
	items    map[string][]domain.OrderItem
	payments map[string]*domain.Payment // keyed by payment id
	keys     map[string]bool

	createOrderErrs     []error // consumed one per call
	createItemsErr      error
	createPaymentErr    error
	updatePaymentErr    error
	updateOrderErr      error
	deleteErr           error
	createOrderAttempts int
	deleted             []string
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{
		orders:   make(map[string]*domain.Order),
		items:    make(map[string][]domain.OrderItem),
		payments: make(map[string]*domain.Payment),
		keys:     make(map[string]bool),
	}
}

func (m *mockOrderRepo) CreateOrder(_ context.Context, o *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.createOrderAttempts++
	if len(m.createOrderErrs) > 0 {
		err := m.createOrderErrs[0]
		m.createOrderErrs = m.createOrderErrs[1:]
		if err != nil {
			return err
		}
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) CreateOrderItems(_ context.Context, items []domain.OrderItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.createItemsErr != nil {
		return m.createItemsErr
	}
	for _, it := range items {
		m.items[it.OrderID] = append(m.items[it.OrderID], it)
	}
	return nil
}

func (m *mockOrderRepo) CreatePayment(_ context.Context, p *domain.Payment) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.createPaymentErr != nil {
		return m.createPaymentErr
	}
	if m.keys[p.IdempotencyKey] {
		return repository.ErrDuplicateIdempotencyKey
	}
	m.keys[p.IdempotencyKey] = true
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *mockOrderRepo) UpdatePaymentStatus(_ context.Context, id string, status domain.PaymentStatus, externalID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.updatePaymentErr != nil {
		return m.updatePaymentErr
	}
	p, ok := m.payments[id]
	if !ok {
		return repository.ErrPaymentNotFound
	}
	p.Status = status
	if externalID != "" {
		p.ExternalID = externalID
	}
	return nil
}

func (m *mockOrderRepo) UpdateOrderStatus(_ context.Context, id string, status domain.OrderStatus) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.updateOrderErr != nil {
		return m.updateOrderErr
	}
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (m *mockOrderRepo) DeleteOrder(_ context.Context, id string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	delete(m.orders, id)
	delete(m.items, id)
	for pid, p := range m.payments {
		if p.OrderID == id {
			delete(m.payments, pid)
		}
	}
	return nil
}

func (m *mockOrderRepo) GetOrder(_ context.Context, shopperID, orderID string) (*domain.OrderDetails, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	o, ok := m.orders[orderID]
	if !ok || o.ShopperID != shopperID {
		return nil, repository.ErrOrderNotFound
	}
	d := &domain.OrderDetails{Order: *o, Items: m.items[orderID]}
	for _, p := range m.payments {
		if p.OrderID == orderID {
			cp := *p
			d.Payment = &cp
		}
	}
	return d, nil
}

func (m *mockOrderRepo) ListOrders(_ context.Context, shopperID string) ([]domain.Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.ShopperID == shopperID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) orderCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return len(m.orders)
}

func (m *mockOrderRepo) payment(orderID string) *domain.Payment {
	m.m.RLock()
	defer m.m.RUnlock()
	for _, p := range m.payments {
		if p.OrderID == orderID {
			cp := *p
			return &cp
		}
	}
	return nil
}

func (m *mockOrderRepo) order(orderID string) *domain.Order {
	m.m.RLock()
	defer m.m.RUnlock()
	if o, ok := m.orders[orderID]; ok {
		cp := *o
		return &cp
	}
	return nil
}

type enqueued struct {
	aggregateID string
	eventType   string
	payload     []byte
}

type mockOutbox struct {
	m      sync.Mutex
	events []enqueued
	err    error
}

func (o *mockOutbox) EnqueueEvent(_ context.Context, aggregateID, eventType string, payload []byte) error {
	o.m.Lock()
	defer o.m.Unlock()
	if o.err != nil {
		return o.err
	}
	o.events = append(o.events, enqueued{aggregateID, eventType, payload})
	return nil
}

func (o *mockOutbox) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	return nil, errors.New("not implemented")
}

func (o *mockOutbox) MarkEventAsProcessed(context.Context, int64) error {
	return errors.New("not implemented")
}

func (o *mockOutbox) GetOrdersMissingEvents(context.Context, time.Duration, int) ([]domain.OrderDetails, error) {
	return nil, errors.New("not implemented")
}

func (o *mockOutbox) types() []string {
	o.m.Lock()
	defer o.m.Unlock()
	var out []string
	for _, e := range o.events {
		out = append(out, e.eventType)
	}
	return out
}

// mockGateway returns a canned verdict and records requests.
type mockGateway struct {
	m        sync.Mutex
	auth     gateway.Authorization
	err      error
	block    bool
	requests []gateway.AuthorizeRequest
}

func (g *mockGateway) Authorize(ctx context.Context, req gateway.AuthorizeRequest) (gateway.Authorization, error) {
	g.m.Lock()
	g.requests = append(g.requests, req)
	g.m.Unlock()
	if g.block {
		<-ctx.Done()
		return gateway.Authorization{}, ctx.Err()
	}
	return g.auth, g.err
}

func (g *mockGateway) calls() int {
	g.m.Lock()
	defer g.m.Unlock()
	return len(g.requests)
}

type mockProfiles struct {
	details *domain.ShippingDetails
	err     error
}

func (p *mockProfiles) GetProfile(context.Context, string) (*domain.ShippingDetails, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.details == nil {
		return nil, repository.ErrProfileNotFound
	}
	return p.details, nil
}

// mockSessions is an in-process SessionStore.
type mockSessions struct {
	m        sync.Mutex
	sessions map[string]domain.CheckoutSession
	saveErr  error
}

func newMockSessions() *mockSessions {
	return &mockSessions{sessions: make(map[string]domain.CheckoutSession)}
}

func (s *mockSessions) Load(_ context.Context, shopperID string) (*domain.CheckoutSession, error) {
	s.m.Lock()
	defer s.m.Unlock()
	sess, ok := s.sessions[shopperID]
	if !ok {
		return nil, cache.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *mockSessions) Save(_ context.Context, sess *domain.CheckoutSession) error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.sessions[sess.ShopperID] = *sess
	return nil
}

func (s *mockSessions) Delete(_ context.Context, shopperID string) error {
	s.m.Lock()
	defer s.m.Unlock()
	delete(s.sessions, shopperID)
	return nil
}
