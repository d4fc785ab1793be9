package service

import (
	"context"
	"errors"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/cache"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/repository"
	"go.uber.org/zap"
)

// Placer places an order from a cart snapshot.
type Placer interface {
	Place(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error)
}

// CheckoutService drives the checkout wizard. Sessions live in the session
// store between requests; the cart is passed in per call.
type CheckoutService struct {
	sessions cache.SessionStore
	profiles repository.ProfileRepository
	placer   Placer
	log      *zap.Logger

	now func() time.Time
}

func NewCheckoutService(
	sessions cache.SessionStore,
	profiles repository.ProfileRepository,
	placer Placer,
	log *zap.Logger,
) *CheckoutService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutService{
		sessions: sessions,
		profiles: profiles,
		placer:   placer,
		log:      log,
		now:      time.Now,
	}
}

// Start applies the entry guard and returns the shopper's session, resuming
// an unfinished one or opening a new one pre-filled from the profile.
func (s *CheckoutService) Start(ctx context.Context, cart *CartService) (*domain.CheckoutSession, error) {
	id := cart.Identity()
	if !id.Authenticated() {
		return nil, domain.ErrAuthRequired
	}
	if _, err := cart.Load(ctx); err != nil {
		return nil, err
	}
	count := cart.ItemCount()

	existing, err := s.sessions.Load(ctx, id.ShopperID)
	switch {
	case err == nil:
		if existing.Step.IsTerminal() && count > 0 {
			// previous order is done and a new cart was filled
			break
		}
		if err := existing.Guard(id, count); err != nil {
			return nil, err
		}
		return existing, nil
	case errors.Is(err, cache.ErrSessionNotFound):
	default:
		return nil, domain.NewPersistenceError("load checkout session", err)
	}

	session, err := domain.NewCheckoutSession(id, count, s.prefill(ctx, id.ShopperID), s.now())
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	s.log.Info("checkout started", zap.String("shopper_id", id.ShopperID), zap.Int("items", count))
	return session, nil
}

func (s *CheckoutService) prefill(ctx context.Context, shopperID string) *domain.ShippingDetails {
	if s.profiles == nil {
		return nil
	}
	details, err := s.profiles.GetProfile(ctx, shopperID)
	if err != nil {
		if !errors.Is(err, repository.ErrProfileNotFound) {
			s.log.Warn("load shipping profile", zap.String("shopper_id", shopperID), zap.Error(err))
		}
		return nil
	}
	return details
}

// Current returns the session after re-checking the entry guard.
func (s *CheckoutService) Current(ctx context.Context, cart *CartService) (*domain.CheckoutSession, error) {
	id := cart.Identity()
	if !id.Authenticated() {
		return nil, domain.ErrAuthRequired
	}
	session, err := s.sessions.Load(ctx, id.ShopperID)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return nil, domain.ErrCheckoutNotStarted
		}
		return nil, domain.NewPersistenceError("load checkout session", err)
	}
	if _, err := cart.Load(ctx); err != nil {
		return nil, err
	}
	if err := session.Guard(id, cart.ItemCount()); err != nil {
		return nil, err
	}
	return session, nil
}

// SubmitShipping stores the form. The entered data is kept even when fields
// are missing, so the returned session is non-nil alongside a ValidationError.
func (s *CheckoutService) SubmitShipping(ctx context.Context, cart *CartService, details domain.ShippingDetails) (*domain.CheckoutSession, error) {
	session, err := s.Current(ctx, cart)
	if err != nil {
		return nil, err
	}
	submitErr := session.SubmitShipping(details, s.now())
	if errors.Is(submitErr, domain.ErrIllegalTransition) {
		return session, submitErr
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, submitErr
}

func (s *CheckoutService) Back(ctx context.Context, cart *CartService) (*domain.CheckoutSession, error) {
	session, err := s.Current(ctx, cart)
	if err != nil {
		return nil, err
	}
	if err := session.Back(s.now()); err != nil {
		return session, err
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *CheckoutService) SelectPaymentMethod(ctx context.Context, cart *CartService, method domain.PaymentMethod) (*domain.CheckoutSession, error) {
	session, err := s.Current(ctx, cart)
	if err != nil {
		return nil, err
	}
	if err := session.SelectPaymentMethod(method, s.now()); err != nil {
		return session, err
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// PlaceOrder snapshots the cart and runs the placement pipeline. On failure
// the session stays in Payment and the cart is untouched. On success the
// session moves to Confirmation and the ordered rows leave the cart.
func (s *CheckoutService) PlaceOrder(ctx context.Context, cart *CartService) (*domain.CheckoutSession, *PlaceOrderResult, error) {
	session, err := s.Current(ctx, cart)
	if err != nil {
		return nil, nil, err
	}
	if session.Step != domain.CheckoutStepPayment {
		return session, nil, domain.ErrIllegalTransition
	}

	result, err := s.placer.Place(ctx, PlaceOrderRequest{
		Identity: cart.Identity(),
		Snapshot: cart.Snapshot(s.now()),
		Shipping: session.Shipping,
		Method:   session.PaymentMethod,
	})
	if err != nil {
		return session, nil, err
	}

	if err := session.Complete(result.Order.ID, result.Order.OrderNumber, s.now()); err != nil {
		return session, result, err
	}
	if err := s.save(context.WithoutCancel(ctx), session); err != nil {
		s.log.Error("save completed checkout session", zap.String("order_id", result.Order.ID), zap.Error(err))
	}
	if err := cart.RemoveOrdered(context.WithoutCancel(ctx), result.CartItems); err != nil {
		s.log.Error("clear cart after order", zap.String("order_id", result.Order.ID), zap.Error(err))
	}
	return session, result, nil
}

func (s *CheckoutService) save(ctx context.Context, session *domain.CheckoutSession) error {
	if err := s.sessions.Save(ctx, session); err != nil {
		return domain.NewPersistenceError("save checkout session", err)
	}
	return nil
}
