package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kg(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMonthBounds(t *testing.T) {
	from, to := MonthBounds(time.Date(2026, time.December, 31, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC), to)

	// 22:00 on Jan 31 in UTC-3 is already February in UTC.
	loc := time.FixedZone("UTC-3", -3*60*60)
	from, _ = MonthBounds(time.Date(2026, time.January, 31, 22, 0, 0, 0, loc))
	assert.Equal(t, time.February, from.Month())
}

func TestQuota_CheckCreate(t *testing.T) {
	q := Quota{LimitKg: kg("30")}

	require.NoError(t, q.CheckCreate(kg("0"), kg("20")))
	require.NoError(t, q.CheckCreate(kg("20"), kg("10")), "reaching the limit exactly is allowed")

	err := q.CheckCreate(kg("20"), kg("12"))
	var qErr *QuotaExceededError
	require.ErrorAs(t, err, &qErr)
	assert.True(t, qErr.LimitKg.Equal(kg("30")))
	assert.Contains(t, err.Error(), "30 kg")
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestQuota_CheckUpdate(t *testing.T) {
	q := Quota{LimitKg: kg("30")}

	tests := []struct {
		name       string
		monthTotal string
		before     string
		after      string
		wantErr    bool
	}{
		{name: "growing own order to the limit", monthTotal: "20", before: "20", after: "30"},
		{name: "growing past the limit", monthTotal: "20", before: "20", after: "30.001", wantErr: true},
		{name: "other orders count", monthTotal: "25", before: "5", after: "11", wantErr: true},
		{name: "shrinking is always allowed", monthTotal: "35", before: "10", after: "5"},
		{name: "base never negative", monthTotal: "0", before: "10", after: "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := q.CheckUpdate(kg(tt.monthTotal), kg(tt.before), kg(tt.after))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrQuotaExceeded)
				return
			}
			require.NoError(t, err)
		})
	}
}
