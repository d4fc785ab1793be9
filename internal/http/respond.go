package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/pkg/logger"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps a service error to a status code and a message the
// shopper can read.
func handleError(ctx context.Context, w http.ResponseWriter, err error) {
	resp, status := errorResponse(err)
	if status >= http.StatusInternalServerError {
		logger.L(ctx).Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	respondJSON(w, status, resp)
}

func errorResponse(err error) (ErrorResponse, int) {
	var (
		verr     *domain.ValidationError
		stockErr *domain.StockUnavailableError
		pipeErr  *domain.PaymentPipelineError
		persist  *domain.PersistenceError
	)

	var details string
	if errors.As(err, &pipeErr) {
		details = "step: " + string(pipeErr.Step)
	}

	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		return ErrorResponse{Error: domain.ErrAuthRequired.Error(), Code: "auth_required"}, http.StatusUnauthorized
	case errors.As(err, &verr):
		return ErrorResponse{Error: verr.Message, Code: "validation_failed", Details: strings.Join(verr.Fields, ",")}, http.StatusUnprocessableEntity
	case errors.As(err, &stockErr):
		return ErrorResponse{Error: stockErr.Error(), Code: "stock_unavailable"}, http.StatusConflict
	case errors.Is(err, domain.ErrCartEmpty):
		return ErrorResponse{Error: domain.ErrCartEmpty.Error(), Code: "cart_empty", Details: details}, http.StatusConflict
	case errors.Is(err, domain.ErrCheckoutNotStarted):
		return ErrorResponse{Error: domain.ErrCheckoutNotStarted.Error(), Code: "checkout_not_started"}, http.StatusConflict
	case errors.Is(err, domain.ErrIllegalTransition):
		return ErrorResponse{Error: domain.ErrIllegalTransition.Error(), Code: "illegal_transition"}, http.StatusConflict
	case errors.Is(err, domain.ErrCartItemNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		return ErrorResponse{Error: err.Error(), Code: "not_found"}, http.StatusNotFound
	case errors.Is(err, domain.ErrPaymentDeclined):
		return ErrorResponse{Error: declineMessage(err), Code: "payment_declined", Details: details}, http.StatusPaymentRequired
	case errors.Is(err, domain.ErrGatewayTimeout):
		return ErrorResponse{Error: domain.ErrGatewayTimeout.Error(), Code: "gateway_timeout", Details: details}, http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return ErrorResponse{Error: domain.ErrGatewayUnavailable.Error(), Code: "gateway_unavailable", Details: details}, http.StatusServiceUnavailable
	case errors.As(err, &persist):
		if details == "" {
			details = persist.Op
		}
		return ErrorResponse{Error: "the store is temporarily unavailable, please try again", Code: "persistence_error", Details: details}, http.StatusServiceUnavailable
	case pipeErr != nil:
		return ErrorResponse{Error: "your order could not be placed", Code: "order_failed", Details: details}, http.StatusInternalServerError
	default:
		return ErrorResponse{Error: "internal server error", Code: "internal_error"}, http.StatusInternalServerError
	}
}

// declineMessage keeps the gateway reason and drops the pipeline prefix.
func declineMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, domain.ErrPaymentDeclined.Error()); i >= 0 {
		return msg[i:]
	}
	return domain.ErrPaymentDeclined.Error()
}
