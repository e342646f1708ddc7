package order

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/procurement-portal/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byCode map[string]product.Product
	err    error
	// beforeBatch, when set, runs at the start of every GetByCodes call.
	beforeBatch func()
}

func newProductRepo(products ...product.Product) *mockProductRepo {
	m := &mockProductRepo{byCode: make(map[string]product.Product, len(products))}
	for _, p := range products {
		m.byCode[product.NormalizeCode(p.Code)] = p
	}
	return m
}

func (m *mockProductRepo) GetByCode(_ context.Context, code string) (*product.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.byCode[product.NormalizeCode(code)]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByCodes(_ context.Context, codes []string) ([]product.Product, error) {
	if m.beforeBatch != nil {
		m.beforeBatch()
	}
	if m.err != nil {
		return nil, m.err
	}
	var out []product.Product
	for _, c := range codes {
		if p, ok := m.byCode[product.NormalizeCode(c)]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockUnits struct {
	known map[string]bool
}

func (m *mockUnits) UnitExists(_ context.Context, _ string, unit string) (bool, error) {
	return m.known[unit], nil
}

// memStore is an in-memory Store and UnitOfWork. RunInTx serializes callers
// sharing a key, mirroring the advisory lock taken by the postgres store.
type memStore struct {
	mu     sync.Mutex
	orders map[string]*Order
	nextID int64

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[string]*Order),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *memStore) RunInTx(ctx context.Context, keys []string, fn func(ctx context.Context, store Store) error) error {
	for _, key := range keys {
		s.locksMu.Lock()
		l, ok := s.locks[key]
		if !ok {
			l = &sync.Mutex{}
			s.locks[key] = l
		}
		s.locksMu.Unlock()

		l.Lock()
		defer l.Unlock()
	}
	return fn(ctx, s)
}

func cloneOrder(o *Order) *Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	c.History = slices.Clone(o.History)
	return &c
}

func (s *memStore) AccumulatedWeight(_ context.Context, userID string, from, to time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, o := range s.orders {
		if o.UserID != userID || o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
			continue
		}
		total = total.Add(o.TotalWeightKg())
	}
	return total, nil
}

func (s *memStore) Add(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range o.Items {
		s.nextID++
		o.Items[i].ID = s.nextID
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *memStore) Apply(_ context.Context, cs Changeset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.orders[cs.Order.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status = cs.Order.Status
	stored.DeliveryUnit = cs.Order.DeliveryUnit
	stored.UpdatedAt = cs.Order.UpdatedAt
	stored.UpdatedBy = cs.Order.UpdatedBy

	stored.Items = slices.DeleteFunc(stored.Items, func(it Item) bool {
		return slices.ContainsFunc(cs.Delete, func(d Item) bool { return d.ID == it.ID })
	})
	for _, it := range cs.Insert {
		s.nextID++
		it.ID = s.nextID
		stored.Items = append(stored.Items, it)
	}
	position := make(map[string]int, len(cs.Order.Items))
	for i, it := range cs.Order.Items {
		position[it.Code] = i
	}
	slices.SortStableFunc(stored.Items, func(a, b Item) int {
		return position[a.Code] - position[b.Code]
	})
	if cs.History != nil {
		stored.History = append(stored.History, *cs.History)
	}
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (f Filter) matches(o *Order) bool {
	if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !o.CreatedAt.Before(f.To) {
		return false
	}
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	if f.UserID != "" && o.UserID != f.UserID {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(o.UserName), q) && !strings.Contains(o.UserTaxID, q) {
			return false
		}
	}
	return true
}

func (s *memStore) filtered(f Filter) []Order {
	var out []Order
	for _, o := range s.orders {
		if f.matches(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	slices.SortFunc(out, func(a, b Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out
}

func (s *memStore) Count(_ context.Context, f Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filtered(f)), nil
}

func (s *memStore) List(_ context.Context, f Filter, offset, limit int) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.filtered(f)
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (s *memStore) Summarize(_ context.Context, f Filter) (Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Totals{WeightKg: decimal.Zero, Value: decimal.Zero}
	for _, o := range s.filtered(f) {
		t.WeightKg = t.WeightKg.Add(o.TotalWeightKg())
		t.Value = t.Value.Add(o.TotalValue())
		t.Units += o.TotalUnits()
		t.Orders++
	}
	return t, nil
}
