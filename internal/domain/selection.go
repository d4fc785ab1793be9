package domain

import "github.com/shopspring/decimal"

// Selection is the outcome of resolving a size/color choice against a
// product's variants.
type Selection struct {
	Variant     *Variant        `json:"variant,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	LowStock    bool            `json:"low_stock"`
	CanPurchase bool            `json:"can_purchase"`
	Missing     []string        `json:"missing,omitempty"`
}

// SizeOption drives the enabled/struck-through state of a size button.
type SizeOption struct {
	Size      string `json:"size"`
	Available bool   `json:"available"`
}

// ResolveSelection finds the variant matching size and color. Price falls
// back to the product base price when nothing is resolved yet.
func ResolveSelection(variants []Variant, size, color string) Selection {
	sel := Selection{Price: decimal.Zero}
	if len(variants) > 0 {
		sel.Price = variants[0].Product.BasePrice
	}
	if color == "" {
		sel.Missing = append(sel.Missing, "color")
	}
	if size == "" {
		sel.Missing = append(sel.Missing, "size")
	}

	for i := range variants {
		if variants[i].Size == size && variants[i].Color == color {
			v := variants[i]
			sel.Variant = &v
			sel.Price = v.Price()
			sel.Stock = v.Stock
			break
		}
	}

	sel.LowStock = sel.Stock > 0 && sel.Stock <= LowStockThreshold
	sel.CanPurchase = len(sel.Missing) == 0 && sel.Variant != nil && sel.Stock > 0
	return sel
}

// Sizes returns the distinct sizes in first-seen order.
func Sizes(variants []Variant) []string {
	return distinct(variants, func(v Variant) string { return v.Size })
}

// Colors returns the distinct colors in first-seen order.
func Colors(variants []Variant) []string {
	return distinct(variants, func(v Variant) string { return v.Color })
}

// SizeAvailability reports, for every size, whether any variant of that size
// (restricted to color when one is chosen) has stock.
func SizeAvailability(variants []Variant, color string) []SizeOption {
	sizes := Sizes(variants)
	options := make([]SizeOption, 0, len(sizes))
	for _, size := range sizes {
		available := false
		for _, v := range variants {
			if v.Size == size && (color == "" || v.Color == color) && v.Stock > 0 {
				available = true
				break
			}
		}
		options = append(options, SizeOption{Size: size, Available: available})
	}
	return options
}

func distinct(variants []Variant, key func(Variant) string) []string {
	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		k := key(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
