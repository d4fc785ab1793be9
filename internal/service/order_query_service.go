package service

import (
	"context"
	"errors"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/repository"
)

// OrderQueryService reads a shopper's past orders for the receipt and
// history screens.
type OrderQueryService struct {
	orders repository.OrderRepository
}

func NewOrderQueryService(orders repository.OrderRepository) *OrderQueryService {
	return &OrderQueryService{orders: orders}
}

func (s *OrderQueryService) List(ctx context.Context, id domain.Identity) ([]domain.Order, error) {
	if !id.Authenticated() {
		return nil, domain.ErrAuthRequired
	}
	orders, err := s.orders.ListOrders(ctx, id.ShopperID)
	if err != nil {
		return nil, domain.NewPersistenceError("list orders", err)
	}
	return orders, nil
}

// Get returns one order with items and payment. Orders of other shoppers
// are reported as not found.
func (s *OrderQueryService) Get(ctx context.Context, id domain.Identity, orderID string) (*domain.OrderDetails, error) {
	if !id.Authenticated() {
		return nil, domain.ErrAuthRequired
	}
	details, err := s.orders.GetOrder(ctx, id.ShopperID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.NewPersistenceError("get order", err)
	}
	return details, nil
}
