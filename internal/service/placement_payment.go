package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/gateway"
	"go.uber.org/zap"
)

// authorize asks the gateway for a verdict. A decline comes back as
// ErrPaymentDeclined carrying the reason; running out of time is
// ErrGatewayTimeout.
func (p *OrderPipeline) authorize(ctx context.Context, order *domain.Order, payment *domain.Payment) (gateway.Authorization, error) {
	payCtx, cancel := context.WithTimeout(ctx, p.cfg.GatewayTimeout)
	defer cancel()

	auth, err := p.gateway.Authorize(payCtx, gateway.AuthorizeRequest{
		OrderID:        order.ID,
		Amount:         payment.Amount,
		IdempotencyKey: payment.IdempotencyKey,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(payCtx.Err(), context.DeadlineExceeded) {
			return auth, domain.ErrGatewayTimeout
		}
		return auth, err
	}
	if !auth.Approved {
		return auth, fmt.Errorf("%w: %s", domain.ErrPaymentDeclined, auth.Reason)
	}
	return auth, nil
}

func (p *OrderPipeline) finalize(ctx context.Context, result *PlaceOrderResult, externalID string) error {
	if !domain.CanTransitionTo(result.Order.Status, domain.OrderStatusPaid) {
		return fmt.Errorf("order %s in status %s cannot be paid", result.Order.ID, result.Order.Status)
	}
	if err := p.orders.UpdatePaymentStatus(ctx, result.Payment.ID, domain.PaymentStatusApproved, externalID); err != nil {
		return domain.NewPersistenceError("approve payment", err)
	}
	result.Payment.Status = domain.PaymentStatusApproved
	result.Payment.ExternalID = externalID

	if err := p.orders.UpdateOrderStatus(ctx, result.Order.ID, domain.OrderStatusPaid); err != nil {
		return domain.NewPersistenceError("mark order paid", err)
	}
	result.Order.Status = domain.OrderStatusPaid
	return nil
}

// markFailed records a refused or unreachable authorization. The rows stay
// for reconciliation.
func (p *OrderPipeline) markFailed(ctx context.Context, result *PlaceOrderResult, cause error, log *zap.Logger) {
	if err := p.orders.UpdatePaymentStatus(ctx, result.Payment.ID, domain.PaymentStatusFailed, ""); err != nil {
		log.Error("mark payment failed", zap.Error(err))
	} else {
		result.Payment.Status = domain.PaymentStatusFailed
	}
	if domain.CanTransitionTo(result.Order.Status, domain.OrderStatusFailed) {
		if err := p.orders.UpdateOrderStatus(ctx, result.Order.ID, domain.OrderStatusFailed); err != nil {
			log.Error("mark order failed", zap.Error(err))
		} else {
			result.Order.Status = domain.OrderStatusFailed
		}
	}
	p.enqueueEvent(ctx, result, domain.EventOrderPaymentFailed, cause.Error(), log)
}

// enqueueEvent writes an outbox row. Failures are logged only: the poller's
// recovery pass republishes orders that never got an event.
func (p *OrderPipeline) enqueueEvent(ctx context.Context, result *PlaceOrderResult, eventType, reason string, log *zap.Logger) {
	if p.outbox == nil {
		return
	}
	payload, err := domain.NewOrderEvent(result.Order, result.Payment.PaymentMethod, result.Items, result.CartItems, reason, p.now())
	if err != nil {
		log.Error("marshal order event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := p.outbox.EnqueueEvent(ctx, result.Order.ID, eventType, payload); err != nil {
		log.Error("enqueue order event", zap.String("event_type", eventType), zap.Error(err))
	}
}
