package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/service"
	"github.com/shopspring/decimal"
)

type CheckoutHandler struct {
	checkout     *service.CheckoutService
	newCart      CartFactory
	shippingCost decimal.Decimal
	timeout      time.Duration
}

func NewCheckoutHandler(checkout *service.CheckoutService, newCart CartFactory, shippingCost decimal.Decimal, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout:     checkout,
		newCart:      newCart,
		shippingCost: shippingCost,
		timeout:      timeout,
	}
}

type PaymentMethodRequestDTO struct {
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
}

type CheckoutResponseDTO struct {
	Session      *domain.CheckoutSession `json:"session"`
	StepName     string                  `json:"step_name"`
	StepIndex    int                     `json:"step_index"`
	Progress     int                     `json:"progress"`
	Cart         CartResponseDTO         `json:"cart"`
	ShippingCost decimal.Decimal         `json:"shipping_cost"`
	Total        decimal.Decimal         `json:"total"`
	Order        *OrderReceiptDTO        `json:"order,omitempty"`
}

type OrderReceiptDTO struct {
	Order   *domain.Order      `json:"order"`
	Items   []domain.OrderItem `json:"items"`
	Payment *domain.Payment    `json:"payment"`
}

func (h *CheckoutHandler) response(session *domain.CheckoutSession, cart *service.CartService, result *service.PlaceOrderResult) CheckoutResponseDTO {
	resp := CheckoutResponseDTO{
		Session:      session,
		StepName:     session.Step.String(),
		StepIndex:    session.StepIndex(),
		Progress:     session.Progress(),
		Cart:         cartResponse(cart),
		ShippingCost: h.shippingCost,
		Total:        cart.Total().Add(h.shippingCost),
	}
	if result != nil {
		resp.Order = &OrderReceiptDTO{Order: result.Order, Items: result.Items, Payment: result.Payment}
	}
	return resp
}

// Start applies the entry guard and returns the current wizard state.
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart := h.newCart(ctx, IdentityFromContext(r.Context()))
	session, err := h.checkout.Start(ctx, cart)
	if err != nil {
		handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.response(session, cart, nil))
}

func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart := h.newCart(ctx, IdentityFromContext(r.Context()))
	session, err := h.checkout.Current(ctx, cart)
	if err != nil {
		handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.response(session, cart, nil))
}

// SubmitShipping answers 422 with the session when fields are missing, so
// the form can be re-rendered with what was entered.
func (h *CheckoutHandler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var details domain.ShippingDetails
	if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart := h.newCart(ctx, IdentityFromContext(r.Context()))
	session, err := h.checkout.SubmitShipping(ctx, cart, details)
	var verr *domain.ValidationError
	if errors.As(err, &verr) && session != nil {
		resp, status := errorResponse(err)
		respondJSON(w, status, struct {
			ErrorResponse
			Checkout CheckoutResponseDTO `json:"checkout"`
		}{resp, h.response(session, cart, nil)})
		return
	}
	if err != nil {
		handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.response(session, cart, nil))
}

func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart := h.newCart(ctx, IdentityFromContext(r.Context()))
	session, err := h.checkout.Back(ctx, cart)
	if err != nil {
		handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.response(session, cart, nil))
}

func (h *CheckoutHandler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PaymentMethodRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart := h.newCart(ctx, IdentityFromContext(r.Context()))
	session, err := h.checkout.SelectPaymentMethod(ctx, cart, req.PaymentMethod)
	if err != nil {
		handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.response(session, cart, nil))
}

// PlaceOrder does not use the handler timeout: the gateway call has its own
// bound and the pipeline must not be cut short once it has written.
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cart := h.newCart(ctx, IdentityFromContext(ctx))
	session, result, err := h.checkout.PlaceOrder(ctx, cart)
	if err != nil {
		handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.response(session, cart, result))
}
