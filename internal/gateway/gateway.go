package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

type AuthorizeRequest struct {
	OrderID        string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// Authorization is the gateway verdict. A decline is a normal outcome, not
// an error; errors are reserved for transport failures and timeouts.
type Authorization struct {
	Approved   bool
	ExternalID string
	Reason     string
}

type Gateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error)
}
