package domain

import "time"

type CheckoutStep int

const (
	CheckoutStepShipping CheckoutStep = iota + 1
	CheckoutStepPayment
	CheckoutStepConfirmation
)

const checkoutStepCount = 3

func (s CheckoutStep) IsTerminal() bool {
	return s == CheckoutStepConfirmation
}

// String representation (for logging)
func (s CheckoutStep) String() string {
	switch s {
	case CheckoutStepShipping:
		return "shipping"
	case CheckoutStepPayment:
		return "payment"
	case CheckoutStepConfirmation:
		return "confirmation"
	default:
		return "unknown"
	}
}

// CheckoutSession is the Shipping -> Payment -> Confirmation wizard of one
// shopper. It holds no I/O; callers persist it between steps.
type CheckoutSession struct {
	ShopperID      string          `json:"shopper_id"`
	Step           CheckoutStep    `json:"step"`
	Shipping       ShippingDetails `json:"shipping"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	OrderCompleted bool            `json:"order_completed"`
	OrderID        string          `json:"order_id,omitempty"`
	OrderNumber    string          `json:"order_number,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewCheckoutSession starts the wizard in the Shipping step. It refuses to
// start without an identity or with an empty cart. prefill, when non-nil,
// seeds the shipping form.
func NewCheckoutSession(id Identity, cartItems int, prefill *ShippingDetails, now time.Time) (*CheckoutSession, error) {
	if !id.Authenticated() {
		return nil, ErrAuthRequired
	}
	if cartItems == 0 {
		return nil, ErrCartEmpty
	}
	s := &CheckoutSession{
		ShopperID:     id.ShopperID,
		Step:          CheckoutStepShipping,
		PaymentMethod: PaymentMethodGateway,
		UpdatedAt:     now,
	}
	if prefill != nil {
		s.Shipping = *prefill
	}
	return s, nil
}

// Guard re-applies the entry guard to a resumed session. The empty-cart check
// is skipped once an order has been placed, since the cart was cleared on
// purpose and the shopper must keep seeing the receipt.
func (s *CheckoutSession) Guard(id Identity, cartItems int) error {
	if !id.Authenticated() || id.ShopperID != s.ShopperID {
		return ErrAuthRequired
	}
	if cartItems == 0 && !s.Step.IsTerminal() && !s.OrderCompleted {
		return ErrCartEmpty
	}
	return nil
}

// SubmitShipping stores the form and advances to Payment when the required
// fields are present. On failure the step is unchanged and the entered data
// is kept.
func (s *CheckoutSession) SubmitShipping(details ShippingDetails, now time.Time) error {
	if s.Step != CheckoutStepShipping {
		return ErrIllegalTransition
	}
	s.Shipping = details.Normalize()
	s.UpdatedAt = now
	if err := s.Shipping.Validate(); err != nil {
		return err
	}
	s.Step = CheckoutStepPayment
	return nil
}

// Back returns from Payment to Shipping, keeping everything entered.
func (s *CheckoutSession) Back(now time.Time) error {
	if s.Step != CheckoutStepPayment {
		return ErrIllegalTransition
	}
	s.Step = CheckoutStepShipping
	s.UpdatedAt = now
	return nil
}

func (s *CheckoutSession) SelectPaymentMethod(m PaymentMethod, now time.Time) error {
	if s.Step != CheckoutStepPayment {
		return ErrIllegalTransition
	}
	if !m.Valid() {
		return NewValidationError("unknown payment method", "payment_method")
	}
	s.PaymentMethod = m
	s.UpdatedAt = now
	return nil
}

// Complete is the only way into Confirmation and is called after a
// successful placement. The order is marked completed before anything else
// so the empty-cart guard no longer applies.
func (s *CheckoutSession) Complete(orderID, orderNumber string, now time.Time) error {
	if s.Step != CheckoutStepPayment {
		return ErrIllegalTransition
	}
	s.OrderCompleted = true
	s.OrderID = orderID
	s.OrderNumber = orderNumber
	s.Step = CheckoutStepConfirmation
	s.UpdatedAt = now
	return nil
}

// StepIndex is the 1-based position of the current step.
func (s *CheckoutSession) StepIndex() int {
	return int(s.Step)
}

// Progress is the completion percentage shown by the wizard header.
func (s *CheckoutSession) Progress() int {
	return s.StepIndex() * 100 / checkoutStepCount
}
