package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
)

var (
	ErrItemNotFound            = errors.New("item not found in cart")
	ErrVariantNotFound         = errors.New("variant not found")
	ErrProductNotFound         = errors.New("product not found")
	ErrOrderNotFound           = errors.New("order not found")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrProfileNotFound         = errors.New("profile not found")
	ErrDuplicateOrderNumber    = errors.New("duplicate order number")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// CartRepository stores cart rows, one per (shopper, variant).
type CartRepository interface {
	ListItems(ctx context.Context, shopperID string) ([]domain.CartItem, error)
	GetItem(ctx context.Context, shopperID, itemID string) (*domain.CartItem, error)
	// AddItem creates the row or increments the quantity of the existing
	// row for the same variant.
	AddItem(ctx context.Context, shopperID, variantID string, quantity int) (*domain.CartItem, error)
	SetQuantity(ctx context.Context, shopperID, itemID string, quantity int) error
	// RemoveItem succeeds when the row is already gone.
	RemoveItem(ctx context.Context, shopperID, itemID string) error
	// RemoveOrderedItems deletes the rows an order consumed: rows of the given
	// variants not updated after the recorded version. Rows changed since
	// then, and rows of other variants, are kept.
	RemoveOrderedItems(ctx context.Context, shopperID string, ordered []domain.CartItemVersion) (int, error)
}

// CatalogRepository is read-only product and variant lookup.
type CatalogRepository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetVariant(ctx context.Context, variantID string) (*domain.Variant, error)
	// GetVariants returns the variants found among ids, keyed by id.
	// Missing ids are simply absent from the map.
	GetVariants(ctx context.Context, ids []string) (map[string]domain.Variant, error)
	ListProductVariants(ctx context.Context, productID string) ([]domain.Variant, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	CreateOrderItems(ctx context.Context, items []domain.OrderItem) error
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	UpdatePaymentStatus(ctx context.Context, paymentID string, status domain.PaymentStatus, externalID string) error
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error
	// DeleteOrder removes the order together with its items and payment.
	DeleteOrder(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, shopperID, orderID string) (*domain.OrderDetails, error)
	ListOrders(ctx context.Context, shopperID string) ([]domain.Order, error)
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, shopperID string) (*domain.ShippingDetails, error)
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type OutboxRepository interface {
	EnqueueEvent(ctx context.Context, aggregateID, eventType string, payload []byte) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	// GetOrdersMissingEvents returns orders older than olderThan that never
	// got an outbox event, with their items and latest payment method.
	GetOrdersMissingEvents(ctx context.Context, olderThan time.Duration, limit int) ([]domain.OrderDetails, error)
}

var (
	_ CartRepository    = (*MongoCartRepository)(nil)
	_ CartRepository    = (*MemoryCartRepository)(nil)
	_ CatalogRepository = (*CatalogSQLRepository)(nil)
	_ OrderRepository   = (*PostgresRepository)(nil)
	_ ProfileRepository = (*PostgresRepository)(nil)
	_ OutboxRepository  = (*PostgresRepository)(nil)
)
