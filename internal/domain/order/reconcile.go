package order

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/procurement-portal/internal/domain/product"
)

// RequestedItem is one raw line of a submitted item list.
type RequestedItem struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

// Reconciliation is the outcome of replacing an order's items.
type Reconciliation struct {
	// Items is the new item list, snapshotted from the catalog.
	Items []Item
	// Deltas lists every product whose quantity changed.
	Deltas []ItemDelta
	Insert []Item
	Delete []Item
}

// Reconciler turns a requested item list into catalog snapshots and a
// minimal change list against the current items.
type Reconciler struct {
	products product.Repository
}

// NewReconciler creates a Reconciler resolving codes through products.
func NewReconciler(products product.Repository) *Reconciler {
	return &Reconciler{products: products}
}

// maxQuantity is the largest quantity one order line can hold.
const maxQuantity = math.MaxInt32

func foldCode(code string) string {
	return product.NormalizeCode(code)
}

// Normalize trims codes, drops non-positive quantities and merges lines
// whose codes match case-insensitively, then drops groups whose total is
// not positive. The first spelling of a code wins and the first-seen order
// is kept.
func Normalize(items []RequestedItem) ([]RequestedItem, error) {
	groups := make([]RequestedItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		code := strings.TrimSpace(it.Code)
		if code == "" || it.Quantity <= 0 {
			continue
		}
		key := foldCode(code)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, RequestedItem{Code: code})
		}
		if it.Quantity > maxQuantity-groups[i].Quantity {
			return nil, &ValidationError{Message: fmt.Sprintf(
				"quantity of %s exceeds %d", groups[i].Code, maxQuantity,
			)}
		}
		groups[i].Quantity += it.Quantity
	}

	out := groups[:0]
	for _, g := range groups {
		if g.Quantity > 0 {
			out = append(out, g)
		}
	}
	if len(out) == 0 {
		return nil, &ValidationError{Message: "at least one item with a positive quantity is required"}
	}
	return out, nil
}

// Reconcile normalizes requested, resolves it against the catalog and
// diffs the result against current.
func (r *Reconciler) Reconcile(ctx context.Context, current []Item, requested []RequestedItem) (*Reconciliation, error) {
	normalized, err := Normalize(requested)
	if err != nil {
		return nil, err
	}

	codes := make([]string, len(normalized))
	for i, it := range normalized {
		codes[i] = it.Code
	}
	fetched, err := r.products.GetByCodes(ctx, codes)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byCode := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byCode[foldCode(p.Code)] = p
	}

	var missing []string
	for _, it := range normalized {
		if _, ok := byCode[foldCode(it.Code)]; !ok {
			missing = append(missing, it.Code)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Message: "unknown product codes", MissingCodes: missing}
	}

	items := make([]Item, len(normalized))
	for i, it := range normalized {
		p := byCode[foldCode(it.Code)]
		if it.Quantity < p.MinimumQuantity() {
			return nil, &ValidationError{Message: fmt.Sprintf(
				"product %s (%s) requires a minimum quantity of %d, got %d",
				p.Code, p.Description, p.MinimumQuantity(), it.Quantity,
			)}
		}
		items[i] = Item{
			Code:        p.Code,
			Description: p.Description,
			Price:       p.Price,
			Weight:      p.Weight,
			WeightUnit:  p.WeightUnit,
			Quantity:    it.Quantity,
		}
	}

	return diffItems(current, items), nil
}

// diffItems compares the pre-edit items with the new snapshot. Rows whose
// snapshot did not change keep their identity; every other old row is
// deleted and every other new row inserted.
func diffItems(current, next []Item) *Reconciliation {
	res := &Reconciliation{Items: next}

	prev := make(map[string]Item, len(current))
	for _, it := range current {
		key := foldCode(it.Code)
		if p, ok := prev[key]; ok {
			it.Quantity += p.Quantity
		}
		prev[key] = it
	}

	seen := make(map[string]struct{}, len(next))
	for i, it := range next {
		key := foldCode(it.Code)
		seen[key] = struct{}{}
		old, existed := prev[key]
		if old.Quantity != it.Quantity {
			res.Deltas = append(res.Deltas, ItemDelta{
				Code:             it.Code,
				Description:      it.Description,
				PreviousQuantity: old.Quantity,
				NewQuantity:      it.Quantity,
			})
		}
		if existed && old.ID != 0 && old.sameSnapshot(it) {
			res.Items[i].ID = old.ID
			continue
		}
		res.Insert = append(res.Insert, it)
	}

	for _, old := range current {
		key := foldCode(old.Code)
		if _, kept := seen[key]; !kept {
			if p := prev[key]; p.ID == old.ID {
				res.Deltas = append(res.Deltas, ItemDelta{
					Code:             old.Code,
					Description:      old.Description,
					PreviousQuantity: p.Quantity,
					NewQuantity:      0,
				})
			}
			res.Delete = append(res.Delete, old)
			continue
		}
		if n := findItem(next, key); old.ID == 0 || n == nil || n.ID != old.ID {
			res.Delete = append(res.Delete, old)
		}
	}
	return res
}

func findItem(items []Item, key string) *Item {
	for i := range items {
		if foldCode(items[i].Code) == key {
			return &items[i]
		}
	}
	return nil
}
