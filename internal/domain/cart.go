package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// LowStockThreshold marks a variant as nearly sold out.
	LowStockThreshold = 3

	// DefaultMaxQuantity bounds the quantity stepper when stock is unknown.
	DefaultMaxQuantity = 10
)

// Identity is the authenticated shopper, or Anonymous.
type Identity struct {
	ShopperID string
}

var Anonymous = Identity{}

func (i Identity) Authenticated() bool {
	return i.ShopperID != ""
}

// CartItem is the persisted (shopper, variant, quantity) row.
type CartItem struct {
	ID        string    `bson:"_id" json:"id"`
	ShopperID string    `bson:"shopper_id" json:"shopper_id"`
	VariantID string    `bson:"variant_id" json:"variant_id"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CartItemVersion names a cart row as it was when an order was taken from
// it. A row updated after UpdatedAt holds units that were not ordered.
type CartItemVersion struct {
	VariantID string    `json:"variant_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartLine is a cart item joined with the variant and product it references.
// The variant data is read fresh from the catalog on every load.
type CartLine struct {
	CartItem
	Variant Variant `json:"variant"`
}

func (l CartLine) UnitPrice() decimal.Decimal {
	return l.Variant.Price()
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CanIncrease reports whether one more unit fits in the current stock.
// A line already above stock is tolerated; it just cannot grow.
func (l CartLine) CanIncrease() bool {
	return l.Quantity < l.Variant.Stock
}

// ItemCount is the sum of all quantities.
func ItemCount(lines []CartLine) int {
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return count
}

// CartTotal is the sum of (base price + modifier) * quantity.
func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// ClampQuantity bounds a requested quantity to [1, stock], using
// DefaultMaxQuantity as the upper bound when stock is zero or unknown.
func ClampQuantity(quantity, stock int) int {
	upper := stock
	if upper <= 0 {
		upper = DefaultMaxQuantity
	}
	if quantity > upper {
		quantity = upper
	}
	if quantity < 1 {
		quantity = 1
	}
	return quantity
}
