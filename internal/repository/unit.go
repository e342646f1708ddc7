package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/procurement-portal/internal/domain/order"
)

const (
	unitExistsSQL = `SELECT EXISTS (
		SELECT 1 FROM delivery_units WHERE company_id = $1 AND unit = $2)`

	insertUnitSQL = `INSERT INTO delivery_units (company_id, unit)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`
)

var _ order.UnitDirectory = (*UnitRepository)(nil)

// UnitRepository is the delivery-unit reference list stored in PostgreSQL.
type UnitRepository struct {
	pool *pgxpool.Pool
}

// NewUnitRepository returns a UnitRepository that uses the given pool.
func NewUnitRepository(pool *pgxpool.Pool) *UnitRepository {
	return &UnitRepository{pool: pool}
}

// UnitExists reports whether unit is registered for companyID.
func (r *UnitRepository) UnitExists(ctx context.Context, companyID, unit string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, unitExistsSQL, companyID, unit).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking delivery unit %q: %w", unit, err)
	}
	return ok, nil
}

// Add registers delivery units for companyID.
func (r *UnitRepository) Add(ctx context.Context, companyID string, units ...string) error {
	b := &pgx.Batch{}
	for _, u := range units {
		b.Queue(insertUnitSQL, companyID, u)
	}
	if err := r.pool.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("adding delivery units for %q: %w", companyID, err)
	}
	return nil
}
