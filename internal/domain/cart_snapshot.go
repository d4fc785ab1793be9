package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartSnapshotItem is a cart line frozen with the price captured at checkout time.
type CartSnapshotItem struct {
	CartItemID   string          `json:"cart_item_id"`
	CartItemAt   time.Time       `json:"cart_item_updated_at"`
	VariantID    string          `json:"variant_id"`
	ProductName  string          `json:"product_name"`
	VariantSize  string          `json:"variant_size"`
	VariantColor string          `json:"variant_color"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

func (i CartSnapshotItem) TotalPrice() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartSnapshot is the immutable input of order placement. Later changes to
// the live cart do not affect it.
type CartSnapshot struct {
	Items      []CartSnapshotItem `json:"items"`
	CapturedAt time.Time          `json:"captured_at"`
}

func NewCartSnapshot(lines []CartLine, now time.Time) CartSnapshot {
	items := make([]CartSnapshotItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, CartSnapshotItem{
			CartItemID:   l.ID,
			CartItemAt:   l.UpdatedAt,
			VariantID:    l.VariantID,
			ProductName:  l.Variant.Product.Name,
			VariantSize:  l.Variant.Size,
			VariantColor: l.Variant.Color,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice(),
		})
	}
	return CartSnapshot{Items: items, CapturedAt: now}
}

func (s CartSnapshot) Empty() bool {
	return len(s.Items) == 0
}

// CartItems lists the cart rows the snapshot was taken from.
func (s CartSnapshot) CartItems() []CartItemVersion {
	out := make([]CartItemVersion, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, CartItemVersion{VariantID: it.VariantID, UpdatedAt: it.CartItemAt})
	}
	return out
}

func (s CartSnapshot) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.TotalPrice())
	}
	return total
}

// OrderItems turns the snapshot into the line items of orderID. newID supplies
// record identifiers.
func (s CartSnapshot) OrderItems(orderID string, newID func() string) []OrderItem {
	out := make([]OrderItem, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, OrderItem{
			ID:           newID(),
			OrderID:      orderID,
			VariantID:    it.VariantID,
			ProductName:  it.ProductName,
			VariantSize:  it.VariantSize,
			VariantColor: it.VariantColor,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice(),
		})
	}
	return out
}
