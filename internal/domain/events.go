package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced              = "order.placed"
	EventOrderPaymentFailed       = "order.payment_failed"
	EventOrderNeedsReconciliation = "order.needs_reconciliation" // payment outcome never recorded
)

// OrderEvent is the outbox payload published for downstream consumers.
type OrderEvent struct {
	OrderID       string            `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	ShopperID     string            `json:"shopper_id"`
	Status        OrderStatus       `json:"status"`
	PaymentMethod PaymentMethod     `json:"payment_method,omitempty"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	Items         []OrderItem       `json:"items,omitempty"`
	CartItems     []CartItemVersion `json:"cart_items,omitempty"` // rows the order consumed
	Reason        string            `json:"reason,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

func NewOrderEvent(o *Order, method PaymentMethod, items []OrderItem, cartItems []CartItemVersion, reason string, now time.Time) ([]byte, error) {
	return json.Marshal(OrderEvent{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		ShopperID:     o.ShopperID,
		Status:        o.Status,
		PaymentMethod: method,
		TotalAmount:   o.TotalAmount,
		Items:         items,
		CartItems:     cartItems,
		Reason:        reason,
		OccurredAt:    now,
	})
}

// RecoveredCartItems rebuilds the consumed cart rows of an order whose event
// was lost. Rows touched after the order was created are not included.
func RecoveredCartItems(o *Order, items []OrderItem) []CartItemVersion {
	out := make([]CartItemVersion, 0, len(items))
	for _, it := range items {
		out = append(out, CartItemVersion{VariantID: it.VariantID, UpdatedAt: o.CreatedAt})
	}
	return out
}
