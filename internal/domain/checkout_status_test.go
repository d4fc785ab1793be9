package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shopper = Identity{ShopperID: "user-1"}

func completeShipping() ShippingDetails {
	return ShippingDetails{
		FullName:   "Ana Perez",
		Address:    "Av. Corrientes 1234",
		City:       "Buenos Aires",
		PostalCode: "C1043",
	}
}

func TestNewCheckoutSession_Guards(t *testing.T) {
	now := time.Now()

	_, err := NewCheckoutSession(Anonymous, 3, nil, now)
	assert.ErrorIs(t, err, ErrAuthRequired)

	_, err = NewCheckoutSession(shopper, 0, nil, now)
	assert.ErrorIs(t, err, ErrCartEmpty)

	prefill := completeShipping()
	s, err := NewCheckoutSession(shopper, 1, &prefill, now)
	require.NoError(t, err)
	assert.Equal(t, CheckoutStepShipping, s.Step)
	assert.Equal(t, PaymentMethodGateway, s.PaymentMethod)
	assert.Equal(t, prefill, s.Shipping)
	assert.Equal(t, 1, s.StepIndex())
	assert.Equal(t, 33, s.Progress())
}

func TestSubmitShipping_RefusesMissingFields(t *testing.T) {
	now := time.Now()
	required := []string{"full_name", "address", "city", "postal_code"}

	for _, field := range required {
		t.Run(field, func(t *testing.T) {
			s, err := NewCheckoutSession(shopper, 1, nil, now)
			require.NoError(t, err)

			details := completeShipping()
			switch field {
			case "full_name":
				details.FullName = "  "
			case "address":
				details.Address = ""
			case "city":
				details.City = ""
			case "postal_code":
				details.PostalCode = ""
			}

			err = s.SubmitShipping(details, now)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, []string{field}, verr.Fields)
			assert.Equal(t, CheckoutStepShipping, s.Step)
		})
	}
}

func TestSubmitShipping_IgnoresOptionalFields(t *testing.T) {
	s, err := NewCheckoutSession(shopper, 1, nil, time.Now())
	require.NoError(t, err)

	details := completeShipping()
	details.Phone = ""
	details.Notes = ""

	require.NoError(t, s.SubmitShipping(details, time.Now()))
	assert.Equal(t, CheckoutStepPayment, s.Step)
}

func TestSubmitShipping_ReportsAllMissing(t *testing.T) {
	s, err := NewCheckoutSession(shopper, 1, nil, time.Now())
	require.NoError(t, err)

	err = s.SubmitShipping(ShippingDetails{Phone: "11 5555 5555"}, time.Now())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{"full_name", "address", "city", "postal_code"}, verr.Fields)
}

func TestBack_PreservesData(t *testing.T) {
	now := time.Now()
	s, err := NewCheckoutSession(shopper, 1, nil, now)
	require.NoError(t, err)
	require.NoError(t, s.SubmitShipping(completeShipping(), now))
	require.NoError(t, s.SelectPaymentMethod(PaymentMethodBankTransfer, now))

	require.NoError(t, s.Back(now))
	assert.Equal(t, CheckoutStepShipping, s.Step)
	assert.Equal(t, completeShipping(), s.Shipping)
	assert.Equal(t, PaymentMethodBankTransfer, s.PaymentMethod)

	assert.ErrorIs(t, s.Back(now), ErrIllegalTransition)
}

func TestSelectPaymentMethod(t *testing.T) {
	now := time.Now()
	s, err := NewCheckoutSession(shopper, 1, nil, now)
	require.NoError(t, err)

	assert.ErrorIs(t, s.SelectPaymentMethod(PaymentMethodBankTransfer, now), ErrIllegalTransition)

	require.NoError(t, s.SubmitShipping(completeShipping(), now))
	var verr *ValidationError
	assert.ErrorAs(t, s.SelectPaymentMethod("cash", now), &verr)
	assert.NoError(t, s.SelectPaymentMethod(PaymentMethodBankTransfer, now))
}

func TestComplete_OnlyFromPayment(t *testing.T) {
	now := time.Now()
	s, err := NewCheckoutSession(shopper, 1, nil, now)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Complete("o1", "PL-1", now), ErrIllegalTransition)

	require.NoError(t, s.SubmitShipping(completeShipping(), now))
	require.NoError(t, s.Complete("o1", "PL-1", now))
	assert.Equal(t, CheckoutStepConfirmation, s.Step)
	assert.True(t, s.OrderCompleted)
	assert.Equal(t, "PL-1", s.OrderNumber)
	assert.Equal(t, 3, s.StepIndex())
	assert.Equal(t, 100, s.Progress())
}

func TestGuard_SkipsEmptyCartAfterConfirmation(t *testing.T) {
	now := time.Now()
	s, err := NewCheckoutSession(shopper, 1, nil, now)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Guard(shopper, 0), ErrCartEmpty)
	assert.ErrorIs(t, s.Guard(Anonymous, 1), ErrAuthRequired)
	assert.ErrorIs(t, s.Guard(Identity{ShopperID: "someone-else"}, 1), ErrAuthRequired)

	require.NoError(t, s.SubmitShipping(completeShipping(), now))
	require.NoError(t, s.Complete("o1", "PL-1", now))
	assert.NoError(t, s.Guard(shopper, 0))
}
