package service

import (
	"context"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/gateway"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxOrderNumberAttempts = 3

type PipelineConfig struct {
	ShippingCost   decimal.Decimal
	GatewayTimeout time.Duration
}

type PlaceOrderRequest struct {
	Identity domain.Identity
	Snapshot domain.CartSnapshot
	Shipping domain.ShippingDetails
	Method   domain.PaymentMethod
}

type PlaceOrderResult struct {
	Order   *domain.Order
	Items   []domain.OrderItem
	Payment *domain.Payment

	// CartItems are the cart rows the order was placed from.
	CartItems []domain.CartItemVersion
}

// OrderPipeline turns a cart snapshot into a persisted Order, its items and
// a Payment, and authorizes the payment when the method needs it.
type OrderPipeline struct {
	orders  repository.OrderRepository
	outbox  repository.OutboxRepository
	gateway gateway.Gateway
	log     *zap.Logger
	cfg     PipelineConfig

	now   func() time.Time
	newID func() string
}

func NewOrderPipeline(
	orders repository.OrderRepository,
	outbox repository.OutboxRepository,
	gw gateway.Gateway,
	cfg PipelineConfig,
	log *zap.Logger,
) *OrderPipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	return &OrderPipeline{
		orders:  orders,
		outbox:  outbox,
		gateway: gw,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Place runs the placement steps in order. Any failure is returned as a
// *domain.PaymentPipelineError naming the step. Once the order row exists
// the request context is detached, so a client disconnect cannot leave a
// half-written order behind.
func (p *OrderPipeline) Place(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if err := p.validate(req); err != nil {
		return nil, &domain.PaymentPipelineError{Step: domain.StepValidate, Err: err}
	}
	ctx = context.WithoutCancel(ctx)
	log := p.log.With(zap.String("shopper_id", req.Identity.ShopperID), zap.String("payment_method", string(req.Method)))

	order, err := p.createOrder(ctx, req)
	if err != nil {
		log.Error("create order failed", zap.Error(err))
		return nil, &domain.PaymentPipelineError{Step: domain.StepCreateOrder, Err: err}
	}
	log = log.With(zap.String("order_id", order.ID), zap.String("order_number", order.OrderNumber))

	items, err := p.createItems(ctx, order, req.Snapshot)
	if err != nil {
		log.Error("create order items failed", zap.Error(err))
		p.compensate(ctx, order, log)
		return nil, &domain.PaymentPipelineError{Step: domain.StepCreateItems, Err: err}
	}

	payment, err := p.createPayment(ctx, order, req.Method)
	if err != nil {
		log.Error("create payment failed", zap.Error(err))
		p.compensate(ctx, order, log)
		return nil, &domain.PaymentPipelineError{Step: domain.StepCreatePayment, Err: err}
	}

	result := &PlaceOrderResult{Order: order, Items: items, Payment: payment, CartItems: req.Snapshot.CartItems()}

	if req.Method == domain.PaymentMethodGateway {
		auth, err := p.authorize(ctx, order, payment)
		if err != nil {
			log.Warn("payment authorization failed", zap.Error(err))
			p.markFailed(ctx, result, err, log)
			return nil, &domain.PaymentPipelineError{Step: domain.StepAuthorize, Err: err}
		}
		if err := p.finalize(ctx, result, auth.ExternalID); err != nil {
			log.Error("payment approved but order not finalized, needs reconciliation",
				zap.String("external_id", auth.ExternalID), zap.Error(err))
			return nil, &domain.PaymentPipelineError{Step: domain.StepFinalize, Err: err}
		}
	}

	p.enqueueEvent(ctx, result, domain.EventOrderPlaced, "", log)
	log.Info("order placed", zap.String("status", string(order.Status)))
	return result, nil
}

func (p *OrderPipeline) validate(req PlaceOrderRequest) error {
	if !req.Identity.Authenticated() {
		return domain.ErrAuthRequired
	}
	if req.Snapshot.Empty() {
		return domain.ErrCartEmpty
	}
	if err := req.Shipping.Validate(); err != nil {
		return err
	}
	if !req.Method.Valid() {
		return domain.NewValidationError("unknown payment method", "payment_method")
	}
	return nil
}
