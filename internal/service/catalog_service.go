package service

import (
	"context"
	"errors"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/repository"
)

// SelectionView is what the product page needs to render the size and
// color pickers for the current choice.
type SelectionView struct {
	ProductID string              `json:"product_id"`
	Selection domain.Selection    `json:"selection"`
	Sizes     []domain.SizeOption `json:"sizes"`
	Colors    []string            `json:"colors"`
	MaxQty    int                 `json:"max_quantity"`
}

type CatalogService struct {
	catalog repository.CatalogRepository
}

func NewCatalogService(catalog repository.CatalogRepository) *CatalogService {
	return &CatalogService{catalog: catalog}
}

func (s *CatalogService) Products(ctx context.Context) ([]domain.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError("list products", err)
	}
	return products, nil
}

// Selection resolves size and color against fresh stock. Either may be empty.
func (s *CatalogService) Selection(ctx context.Context, productID, size, color string) (*SelectionView, error) {
	variants, err := s.catalog.ListProductVariants(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.NewPersistenceError("list product variants", err)
	}

	sel := domain.ResolveSelection(variants, size, color)
	maxQty := 0
	if sel.Variant != nil {
		maxQty = domain.ClampQuantity(sel.Stock, sel.Stock)
	}
	return &SelectionView{
		ProductID: productID,
		Selection: sel,
		Sizes:     domain.SizeAvailability(variants, color),
		Colors:    domain.Colors(variants),
		MaxQty:    maxQty,
	}, nil
}
