package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// CartFactory builds the cart of one shopper for the current request.
type CartFactory func(ctx context.Context, id domain.Identity) *service.CartService

type CartHandler struct {
	newCart CartFactory
	timeout time.Duration
}

func NewCartHandler(newCart CartFactory, timeout time.Duration) *CartHandler {
	return &CartHandler{
		newCart: newCart,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	VariantID string `json:"variant_id"`
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartLineDTO struct {
	ID          string          `json:"id"`
	VariantID   string          `json:"variant_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ImageURL    string          `json:"image_url,omitempty"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Quantity    int             `json:"quantity"`
	Stock       int             `json:"stock"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	CanIncrease bool            `json:"can_increase"`
}

type CartResponseDTO struct {
	Items     []CartLineDTO   `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

func cartResponse(cart *service.CartService) CartResponseDTO {
	lines := cart.Lines()
	items := make([]CartLineDTO, 0, len(lines))
	for _, l := range lines {
		items = append(items, CartLineDTO{
			ID:          l.ID,
			VariantID:   l.VariantID,
			ProductID:   l.Variant.ProductID,
			ProductName: l.Variant.Product.Name,
			ImageURL:    l.Variant.Product.ImageURL,
			Size:        l.Variant.Size,
			Color:       l.Variant.Color,
			Quantity:    l.Quantity,
			Stock:       l.Variant.Stock,
			UnitPrice:   l.UnitPrice(),
			LineTotal:   l.LineTotal(),
			CanIncrease: l.CanIncrease(),
		})
	}
	return CartResponseDTO{Items: items, ItemCount: cart.ItemCount(), Total: cart.Total()}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart := h.newCart(ctx, IdentityFromContext(r.Context()))
	if _, err := cart.Load(ctx); err != nil {
		handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

// AddItem accepts either a variant_id or a product_id with size and color.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	cart := h.newCart(ctx, IdentityFromContext(r.Context()))
	var err error
	switch {
	case req.VariantID != "":
		err = cart.AddItem(ctx, req.VariantID, req.Quantity)
	case req.ProductID != "":
		err = cart.AddSelection(ctx, req.ProductID, req.Size, req.Color, req.Quantity)
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", "variant_id or product_id is required")
		return
	}
	if err != nil {
		handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse(cart))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "quantity is required")
		return
	}

	cart := h.newCart(ctx, IdentityFromContext(r.Context()))
	if err := cart.UpdateQuantity(ctx, chi.URLParam(r, "item_id"), *req.Quantity); err != nil {
		handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) IncrementItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart := h.newCart(ctx, IdentityFromContext(r.Context()))
	if err := cart.IncrementItem(ctx, chi.URLParam(r, "item_id")); err != nil {
		handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart := h.newCart(ctx, IdentityFromContext(r.Context()))
	if err := cart.RemoveItem(ctx, chi.URLParam(r, "item_id")); err != nil {
		handleError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}
