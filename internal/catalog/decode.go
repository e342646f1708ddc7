// Package catalog loads product catalog records from JSON documents and
// gzip-compressed JSON-lines files.
package catalog

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/procurement-portal/internal/domain/product"
	"github.com/xenking/procurement-portal/internal/domain/weight"
)

// ErrInvalidRecord marks a record that decoded but cannot be stored.
var ErrInvalidRecord = errors.New("invalid catalog record")

// DecodeProduct reads one product object:
//
//	{"code":"RICE","description":"Rice 2kg","price":9.9,"weight":2000,
//	 "weightUnit":"g","minimumQuantity":1}
//
// Numbers may also be given as strings. Codes pass through
// product.NormalizeCode.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var (
		p    product.Product
		unit string
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			p.Code, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "weight":
			p.Weight, err = decodeDecimal(d)
		case "weightUnit":
			if d.Next() == jx.Number {
				var n int
				n, err = d.Int()
				unit = weight.Unit(n).String()
				break
			}
			unit, err = d.Str()
		case "minimumQuantity", "minimumPurchaseQuantity":
			p.MinimumPurchaseQuantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return p, err
	}

	p.Code = product.NormalizeCode(p.Code)
	if p.Code == "" {
		return p, errors.Wrap(ErrInvalidRecord, "code is required")
	}
	if p.WeightUnit, err = weight.ParseUnit(unit); err != nil {
		return p, errors.Wrapf(ErrInvalidRecord, "%s: weight unit %q", p.Code, unit)
	}
	if p.Price.IsNegative() {
		return p, errors.Wrapf(ErrInvalidRecord, "%s: negative price", p.Code)
	}
	if !p.Weight.IsPositive() {
		return p, errors.Wrapf(ErrInvalidRecord, "%s: weight must be positive", p.Code)
	}
	if p.MinimumPurchaseQuantity < 0 {
		return p, errors.Wrapf(ErrInvalidRecord, "%s: negative minimum quantity", p.Code)
	}
	return p, nil
}

// DecodeProducts reads a JSON array of product objects.
func DecodeProducts(data []byte) ([]product.Product, error) {
	var out []product.Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		p, err := DecodeProduct(d)
		if err != nil {
			return errors.Wrapf(err, "record %d", len(out))
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}
