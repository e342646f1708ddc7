package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xenking/procurement-portal/internal/domain/weight"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item employees can order.
type Product struct {
	Code        string
	Description string
	Price       decimal.Decimal
	Weight      decimal.Decimal
	WeightUnit  weight.Unit
	// MinimumPurchaseQuantity of zero means no minimum beyond one unit.
	MinimumPurchaseQuantity int
}

// NormalizeCode is the canonical form of a product code: trimmed and
// upper-cased with full Unicode case mapping, so "straße" and "STRASSE"
// are the same code. Codes are stored and looked up in this form.
func NormalizeCode(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}

// MinimumQuantity returns the smallest quantity that may be ordered.
func (p Product) MinimumQuantity() int {
	return max(1, p.MinimumPurchaseQuantity)
}

// Repository defines read operations for the product catalog. Code lookups
// are case-insensitive.
type Repository interface {
	GetByCode(ctx context.Context, code string) (*Product, error)
	GetByCodes(ctx context.Context, codes []string) ([]Product, error)
}
