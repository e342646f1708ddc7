// Package weight converts stored product weights into kilograms.
package weight

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Unit is the unit a product weight is stored in.
type Unit int

const (
	// Gram weights are divided by 1000 to obtain kilograms.
	Gram Unit = 1
	// Kilogram weights are already in kilograms.
	Kilogram Unit = 2
)

// ErrUnknownUnit is returned by ParseUnit for anything outside Gram/Kilogram.
var ErrUnknownUnit = errors.New("unknown weight unit")

var gramsPerKilogram = decimal.NewFromInt(1000)

// ToKilograms converts value expressed in unit into kilograms.
// Any unit other than Gram is treated as kilograms.
func ToKilograms(value decimal.Decimal, unit Unit) decimal.Decimal {
	if unit == Gram {
		return value.Div(gramsPerKilogram)
	}
	return value
}

// Valid reports whether u is one of the supported units.
func (u Unit) Valid() bool {
	return u == Gram || u == Kilogram
}

func (u Unit) String() string {
	switch u {
	case Gram:
		return "g"
	case Kilogram:
		return "kg"
	default:
		return "unknown"
	}
}

// ParseUnit accepts the short and long names ("g", "gram", "kg", "kilogram")
// in any case, or the numeric codes used in storage.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "g", "gr", "gram", "grams":
		return Gram, nil
	case "kg", "kilogram", "kilograms":
		return Kilogram, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err == nil && Unit(n).Valid() {
		return Unit(n), nil
	}
	return 0, errors.Wrapf(ErrUnknownUnit, "parse %q", s)
}
