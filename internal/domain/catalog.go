package domain

import "github.com/shopspring/decimal"

// Product is read-only reference data owned by the catalog.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	BasePrice decimal.Decimal `json:"base_price"`
	ImageURL  string          `json:"image_url,omitempty"`
}

// Variant is a purchasable size/color configuration of a product.
type Variant struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"product_id"`
	Size          string          `json:"size"`
	Color         string          `json:"color"`
	ColorHex      string          `json:"color_hex,omitempty"`
	Stock         int             `json:"stock"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
	Product       Product         `json:"product"`
}

// Price is the effective unit price: base price plus the variant modifier.
func (v Variant) Price() decimal.Decimal {
	return v.Product.BasePrice.Add(v.PriceModifier)
}

func (v Variant) InStock() bool {
	return v.Stock > 0
}
