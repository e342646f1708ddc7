package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Filter selects orders for listing and summaries. Zero values leave the
// corresponding criterion unrestricted; To is exclusive.
type Filter struct {
	From   time.Time
	To     time.Time
	Status *Status
	UserID string
	// Search matches owner name or tax id, case-insensitively.
	Search string
}

// Totals aggregates the orders matched by a Filter.
type Totals struct {
	WeightKg decimal.Decimal
	Value    decimal.Decimal
	Units    int
	Orders   int
}

// Store persists order aggregates. GetByID returns ErrNotFound for a
// missing order; List returns orders newest first, items included.
type Store interface {
	WeightReader
	Add(ctx context.Context, o *Order) error
	Apply(ctx context.Context, cs Changeset) error
	GetByID(ctx context.Context, id string) (*Order, error)
	Count(ctx context.Context, f Filter) (int, error)
	List(ctx context.Context, f Filter, offset, limit int) ([]Order, error)
	Summarize(ctx context.Context, f Filter) (Totals, error)
}

// UnitOfWork runs fn inside one transaction serialized on keys, which are
// locked in the given order. Everything fn does through the supplied Store
// commits or rolls back together.
type UnitOfWork interface {
	RunInTx(ctx context.Context, keys []string, fn func(ctx context.Context, store Store) error) error
}

// UnitDirectory is the reference list of delivery units per company.
type UnitDirectory interface {
	UnitExists(ctx context.Context, companyID, unit string) (bool, error)
}
