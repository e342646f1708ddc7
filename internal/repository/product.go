package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/procurement-portal/internal/domain/product"
	"github.com/xenking/procurement-portal/internal/domain/weight"
)

const (
	productColumns = `code, description, price, weight, weight_unit, minimum_purchase_quantity`

	getProductByCodeSQL = `SELECT ` + productColumns + `
		FROM products WHERE code = $1`

	getProductsByCodesSQL = `SELECT ` + productColumns + `
		FROM products WHERE code = ANY($1)`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			weight = EXCLUDED.weight,
			weight_unit = EXCLUDED.weight_unit,
			minimum_purchase_quantity = EXCLUDED.minimum_purchase_quantity`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByCode returns a single product by its code (case-insensitive).
func (r *ProductRepository) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByCodeSQL, product.NormalizeCode(code))
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", code, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", code, err)
	}
	return &p, nil
}

// GetByCodes returns the products matching any of the given codes. Codes
// without a catalog entry are simply absent from the result.
func (r *ProductRepository) GetByCodes(ctx context.Context, codes []string) ([]product.Product, error) {
	normalized := make([]string, len(codes))
	for i, c := range codes {
		normalized[i] = product.NormalizeCode(c)
	}
	rows, err := r.pool.Query(ctx, getProductsByCodesSQL, normalized)
	if err != nil {
		return nil, fmt.Errorf("getting products by codes: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Upsert inserts the products or overwrites existing ones with the same
// code in a single batch. Codes are stored normalized.
func (r *ProductRepository) Upsert(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, p := range products {
		b.Queue(upsertProductSQL,
			product.NormalizeCode(p.Code), p.Description, p.Price, p.Weight, int16(p.WeightUnit), p.MinimumPurchaseQuantity,
		)
	}
	if err := r.pool.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("upserting %d products: %w", len(products), err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p    product.Product
		unit int16
	)
	err := row.Scan(
		&p.Code, &p.Description, &p.Price, &p.Weight, &unit, &p.MinimumPurchaseQuantity,
	)
	p.WeightUnit = weight.Unit(unit)
	return p, err
}
