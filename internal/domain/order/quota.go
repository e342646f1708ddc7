package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// WeightReader sums converted item weight of a user's orders created in
// [from, to), regardless of order status.
type WeightReader interface {
	AccumulatedWeight(ctx context.Context, userID string, from, to time.Time) (decimal.Decimal, error)
}

// Quota enforces the monthly weight ceiling per user.
type Quota struct {
	LimitKg decimal.Decimal
}

// MonthBounds returns the first instant of the UTC calendar month
// containing ref and the first instant of the next one.
func MonthBounds(ref time.Time) (from, to time.Time) {
	ref = ref.UTC()
	from = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// Accumulated returns the user's committed weight for the month of ref.
func (q Quota) Accumulated(ctx context.Context, r WeightReader, userID string, ref time.Time) (decimal.Decimal, error) {
	from, to := MonthBounds(ref)
	kg, err := r.AccumulatedWeight(ctx, userID, from, to)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "accumulated weight")
	}
	return kg, nil
}

// WouldExceed reports whether adding candidate to current passes the limit.
func (q Quota) WouldExceed(current, candidate decimal.Decimal) bool {
	return current.Add(candidate).GreaterThan(q.LimitKg)
}

// CheckCreate validates a new order of candidate kg against the month total.
func (q Quota) CheckCreate(current, candidate decimal.Decimal) error {
	if q.WouldExceed(current, candidate) {
		return &QuotaExceededError{LimitKg: q.LimitKg, CurrentKg: current, RequestedKg: candidate}
	}
	return nil
}

// CheckUpdate validates an edit. The order's own pre-edit weight is taken
// out of the month total so it is not counted twice.
func (q Quota) CheckUpdate(monthTotal, ownBefore, ownAfter decimal.Decimal) error {
	base := decimal.Max(decimal.Zero, monthTotal.Sub(ownBefore))
	if q.WouldExceed(base, ownAfter) {
		return &QuotaExceededError{LimitKg: q.LimitKg, CurrentKg: base, RequestedKg: ownAfter}
	}
	return nil
}
