package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/repository"
	"go.uber.org/zap"
)

func (p *OrderPipeline) createOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	now := p.now()
	subtotal := req.Snapshot.Subtotal()
	order := &domain.Order{
		ShopperID:    req.Identity.ShopperID,
		Subtotal:     subtotal,
		ShippingCost: p.cfg.ShippingCost,
		TotalAmount:  subtotal.Add(p.cfg.ShippingCost),
		Status:       domain.InitialOrderStatus(req.Method),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	order.ApplyShipping(req.Shipping.Normalize())

	var err error
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order.ID = p.newID()
		order.OrderNumber = domain.NewOrderNumber(now, p.newID())
		err = p.orders.CreateOrder(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrDuplicateOrderNumber) {
			break
		}
		p.log.Warn("order number collision, retrying",
			zap.String("order_number", order.OrderNumber), zap.Int("attempt", attempt))
	}
	return nil, domain.NewPersistenceError("create order", err)
}

func (p *OrderPipeline) createItems(ctx context.Context, order *domain.Order, snapshot domain.CartSnapshot) ([]domain.OrderItem, error) {
	items := snapshot.OrderItems(order.ID, p.newID)
	if err := p.orders.CreateOrderItems(ctx, items); err != nil {
		return nil, domain.NewPersistenceError("create order items", err)
	}
	return items, nil
}

func (p *OrderPipeline) createPayment(ctx context.Context, order *domain.Order, method domain.PaymentMethod) (*domain.Payment, error) {
	now := p.now()
	payment := &domain.Payment{
		ID:             p.newID(),
		OrderID:        order.ID,
		Amount:         order.TotalAmount,
		PaymentMethod:  method,
		Status:         domain.PaymentStatusPending,
		IdempotencyKey: domain.NewIdempotencyKey(order.ID, now, p.newID()),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.orders.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
			err = fmt.Errorf("idempotency key %s already used: %w", payment.IdempotencyKey, err)
		}
		return nil, domain.NewPersistenceError("create payment", err)
	}
	return payment, nil
}

// compensate deletes an order whose items or payment could not be written.
// Items and payment rows go with it.
func (p *OrderPipeline) compensate(ctx context.Context, order *domain.Order, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.orders.DeleteOrder(ctx, order.ID); err != nil && !errors.Is(err, repository.ErrOrderNotFound) {
		log.Error("compensating delete failed, orphan order left behind", zap.Error(err))
		return
	}
	log.Info("partial order removed")
}
