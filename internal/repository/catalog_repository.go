package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ProyectosVibeCoding/pretty-lady-boutique/internal/domain"
)

type CatalogSQLRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogSQLRepository {
	return &CatalogSQLRepository{db: db}
}

const variantQuery = `
	SELECT v.id, v.product_id, v.size, v.color, v.color_hex, v.stock, v.price_modifier,
	       p.id, p.name, p.slug, p.base_price, p.image_url
	FROM product_variants v
	JOIN products p ON p.id = v.product_id`

func scanVariant(row rowScanner) (domain.Variant, error) {
	var v domain.Variant
	err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.Size,
		&v.Color,
		&v.ColorHex,
		&v.Stock,
		&v.PriceModifier,
		&v.Product.ID,
		&v.Product.Name,
		&v.Product.Slug,
		&v.Product.BasePrice,
		&v.Product.ImageURL,
	)
	return v, err
}

func (r *CatalogSQLRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, slug, base_price, image_url FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.BasePrice, &p.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func (r *CatalogSQLRepository) GetVariant(ctx context.Context, variantID string) (*domain.Variant, error) {
	v, err := scanVariant(r.db.QueryRowContext(ctx, variantQuery+` WHERE v.id = ?`, variantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query variant: %w", err)
	}
	return &v, nil
}

func (r *CatalogSQLRepository) GetVariants(ctx context.Context, ids []string) (map[string]domain.Variant, error) {
	out := make(map[string]domain.Variant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := r.db.QueryContext(ctx, variantQuery+` WHERE v.id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		out[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (r *CatalogSQLRepository) ListProductVariants(ctx context.Context, productID string) ([]domain.Variant, error) {
	rows, err := r.db.QueryContext(ctx, variantQuery+` WHERE v.product_id = ? ORDER BY v.rowid`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if len(variants) == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM products WHERE id = ?`, productID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query product: %w", err)
		}
	}
	return variants, nil
}

func (r *CatalogSQLRepository) Close() error {
	return r.db.Close()
}
