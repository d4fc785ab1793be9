package cache

import (
	"context"
	"errors"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
)

// CartCache holds the raw cart rows of a shopper. Prices and stock are never
// cached; they are re-read from the catalog on every load.
type CartCache interface {
	Get(ctx context.Context, shopperID string) ([]domain.CartItem, error)
	Set(ctx context.Context, shopperID string, items []domain.CartItem) error
	Delete(ctx context.Context, shopperID string) error
}

// SessionStore persists checkout sessions between wizard steps.
type SessionStore interface {
	Load(ctx context.Context, shopperID string) (*domain.CheckoutSession, error)
	Save(ctx context.Context, session *domain.CheckoutSession) error
	Delete(ctx context.Context, shopperID string) error
}

var (
	ErrCacheMiss       = errors.New("cache miss")
	ErrSessionNotFound = errors.New("checkout session not found")
)
