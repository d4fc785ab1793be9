package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultShippingCost is the flat fee applied to every order.
var DefaultShippingCost = decimal.NewFromInt(4500)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusFailed          OrderStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodGateway      PaymentMethod = "gateway"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodGateway || m == PaymentMethodBankTransfer
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// InitialOrderStatus is the status an order is created with for a method.
func InitialOrderStatus(m PaymentMethod) OrderStatus {
	if m == PaymentMethodBankTransfer {
		return OrderStatusAwaitingPayment
	}
	return OrderStatusPending
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusPaid, OrderStatusFailed},
	OrderStatusAwaitingPayment: {OrderStatusPaid, OrderStatusFailed},
}

// CanTransitionTo reports whether an order may move from one status to another.
func CanTransitionTo(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Order struct {
	ID                 string          `json:"id"`
	OrderNumber        string          `json:"order_number"`
	ShopperID          string          `json:"shopper_id"`
	ShippingName       string          `json:"shipping_name"`
	ShippingPhone      string          `json:"shipping_phone,omitempty"`
	ShippingAddress    string          `json:"shipping_address"`
	ShippingCity       string          `json:"shipping_city"`
	ShippingPostalCode string          `json:"shipping_postal_code"`
	Notes              string          `json:"notes,omitempty"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	ShippingCost       decimal.Decimal `json:"shipping_cost"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	Status             OrderStatus     `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// ApplyShipping copies the shipping details onto the order.
func (o *Order) ApplyShipping(s ShippingDetails) {
	o.ShippingName = s.FullName
	o.ShippingPhone = s.Phone
	o.ShippingAddress = s.Address
	o.ShippingCity = s.City
	o.ShippingPostalCode = s.PostalCode
	o.Notes = s.Notes
}

type OrderItem struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	VariantID    string          `json:"variant_id"`
	ProductName  string          `json:"product_name"`
	VariantSize  string          `json:"variant_size"`
	VariantColor string          `json:"variant_color"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
}

type Payment struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	Status         PaymentStatus   `json:"status"`
	IdempotencyKey string          `json:"idempotency_key"`
	ExternalID     string          `json:"external_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OrderDetails is an order with its line items and payment, as shown on the
// receipt screen.
type OrderDetails struct {
	Order   Order       `json:"order"`
	Items   []OrderItem `json:"items"`
	Payment *Payment    `json:"payment,omitempty"`
}

// NewOrderNumber builds a human-readable order number such as
// PL-20261015-9F3A1C7E. token supplies the unique suffix.
func NewOrderNumber(now time.Time, token string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(token, "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("PL-%s-%s", now.UTC().Format("20060102"), suffix)
}

// NewIdempotencyKey combines the order id with an attempt-local uniquifier so
// that two attempts never share a key.
func NewIdempotencyKey(orderID string, now time.Time, token string) string {
	return fmt.Sprintf("%s-%d-%s", orderID, now.UnixNano(), token)
}
