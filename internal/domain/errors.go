package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAuthRequired       = errors.New("sign in to continue")
	ErrCartEmpty          = errors.New("cart is empty, nothing to checkout")
	ErrCartItemNotFound   = errors.New("item not found in cart")
	ErrOrderNotFound      = errors.New("order not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrCheckoutNotStarted = errors.New("checkout has not been started")
	ErrIllegalTransition  = errors.New("illegal transition of checkout step")
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrGatewayTimeout     = errors.New("payment gateway timed out")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// ValidationError is returned for input the shopper can correct in place:
// incomplete shipping fields, an incomplete size/color selection, a bad
// quantity.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Message: message}
}

// StockUnavailableError means the requested quantity exceeds current stock.
type StockUnavailableError struct {
	VariantID string
	Requested int
	Available int
}

func (e *StockUnavailableError) Error() string {
	if e.Available == 0 {
		return fmt.Sprintf("variant %s is out of stock", e.VariantID)
	}
	return fmt.Sprintf("only %d units of variant %s available, requested %d", e.Available, e.VariantID, e.Requested)
}

// PersistenceError wraps any record-store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// PipelineStep names a step of order placement.
type PipelineStep string

const (
	StepValidate      PipelineStep = "validate"
	StepCreateOrder   PipelineStep = "create_order"
	StepCreateItems   PipelineStep = "create_items"
	StepCreatePayment PipelineStep = "create_payment"
	StepAuthorize     PipelineStep = "authorize"
	StepFinalize      PipelineStep = "finalize"
)

// PaymentPipelineError reports which placement step failed and why.
type PaymentPipelineError struct {
	Step PipelineStep
	Err  error
}

func (e *PaymentPipelineError) Error() string {
	return fmt.Sprintf("order placement failed at %s: %v", e.Step, e.Err)
}

func (e *PaymentPipelineError) Unwrap() error {
	return e.Err
}
