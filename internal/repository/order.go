package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/procurement-portal/internal/domain/order"
	"github.com/xenking/procurement-portal/internal/domain/weight"
)

// itemWeightKg converts an order_items row to kilograms times quantity.
const itemWeightKg = `CASE i.weight_unit WHEN 1 THEN i.weight / 1000 ELSE i.weight END * i.quantity`

const (
	advisoryLockSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

	accumulatedWeightSQL = `SELECT COALESCE(SUM(` + itemWeightKg + `), 0)
		FROM order_items i JOIN orders o ON o.id = i.order_id
		WHERE o.user_id = $1 AND o.created_at >= $2 AND o.created_at < $3`

	orderColumns = `o.id, o.user_id, o.user_name, o.user_tax_id, o.company_id, o.delivery_unit,
		o.status, o.created_at, o.updated_at, o.updated_by`

	insertOrderSQL = `INSERT INTO orders (id, user_id, user_name, user_tax_id, company_id,
		delivery_unit, status, created_at, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	updateOrderSQL = `UPDATE orders
		SET delivery_unit = $2, status = $3, updated_at = $4, updated_by = $5
		WHERE id = $1`

	insertItemSQL = `INSERT INTO order_items (order_id, code, description, price, weight, weight_unit, quantity, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`

	// reorderItemsSQL sets each row's position to the 1-based index of its
	// code in $2.
	reorderItemsSQL = `UPDATE order_items i SET position = p.pos
		FROM unnest($2::text[]) WITH ORDINALITY AS p(code, pos)
		WHERE i.order_id = $1 AND i.code = p.code AND i.position IS DISTINCT FROM p.pos`

	deleteItemsSQL = `DELETE FROM order_items WHERE order_id = $1 AND id = ANY($2)`

	insertHistorySQL = `INSERT INTO order_history (id, order_id, created_at, actor_id, actor_name, kind, diff)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

	getItemsSQL = `SELECT i.id, i.order_id, i.code, i.description, i.price, i.weight, i.weight_unit, i.quantity
		FROM order_items i WHERE i.order_id = ANY($1) ORDER BY i.order_id, i.position, i.id`

	getHistorySQL = `SELECT id, order_id, created_at, actor_id, actor_name, kind, diff
		FROM order_history WHERE order_id = $1 ORDER BY created_at, id`
)

var (
	_ order.Store      = (*OrderRepository)(nil)
	_ order.UnitOfWork = (*OrderRepository)(nil)
)

// OrderRepository implements order.Store and order.UnitOfWork backed by
// PostgreSQL.
type OrderRepository struct {
	*orderStore
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{orderStore: &orderStore{db: pool}, pool: pool}
}

// RunInTx runs fn in a transaction holding a transaction-scoped advisory
// lock on each key, taken in order. Concurrent callers sharing any key
// queue behind it until commit or rollback.
func (r *OrderRepository) RunInTx(ctx context.Context, keys []string, fn func(ctx context.Context, store order.Store) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, key := range keys {
			if _, err := tx.Exec(ctx, advisoryLockSQL, key); err != nil {
				return fmt.Errorf("locking %q: %w", key, err)
			}
		}
		return fn(ctx, &orderStore{db: tx})
	})
}

type orderStore struct {
	db querier
}

// AccumulatedWeight sums converted item weight of the user's orders created
// in [from, to), whatever their status.
func (s *orderStore) AccumulatedWeight(ctx context.Context, userID string, from, to time.Time) (decimal.Decimal, error) {
	var kg decimal.Decimal
	if err := s.db.QueryRow(ctx, accumulatedWeightSQL, userID, from, to).Scan(&kg); err != nil {
		return decimal.Zero, fmt.Errorf("summing weight of %q: %w", userID, err)
	}
	return kg, nil
}

// Add inserts the order header and its items. Item ids are written back.
func (s *orderStore) Add(ctx context.Context, o *order.Order) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.UserID, o.UserName, o.UserTaxID, o.CompanyID,
			o.DeliveryUnit, int16(o.Status), o.CreatedAt, o.UpdatedAt, o.UpdatedBy,
		)
		if err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}
		return insertItems(ctx, tx, o.ID, o.Items)
	})
}

// Apply writes a changeset atomically. Items are stored in the order of
// cs.Order.Items.
func (s *orderStore) Apply(ctx context.Context, cs order.Changeset) error {
	o := cs.Order
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateOrderSQL,
			o.ID, o.DeliveryUnit, int16(o.Status), o.UpdatedAt, o.UpdatedBy,
		)
		if err != nil {
			return fmt.Errorf("updating order %q: %w", o.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return order.ErrNotFound
		}

		if len(cs.Delete) > 0 {
			ids := make([]int64, 0, len(cs.Delete))
			for _, it := range cs.Delete {
				ids = append(ids, it.ID)
			}
			if _, err := tx.Exec(ctx, deleteItemsSQL, o.ID, ids); err != nil {
				return fmt.Errorf("deleting items of %q: %w", o.ID, err)
			}
		}
		if err := insertItems(ctx, tx, o.ID, cs.Insert); err != nil {
			return err
		}
		if len(o.Items) > 0 {
			codes := make([]string, len(o.Items))
			for i, it := range o.Items {
				codes[i] = it.Code
			}
			if _, err := tx.Exec(ctx, reorderItemsSQL, o.ID, codes); err != nil {
				return fmt.Errorf("ordering items of %q: %w", o.ID, err)
			}
		}

		if h := cs.History; h != nil {
			diff, err := json.Marshal(h.Diff)
			if err != nil {
				return fmt.Errorf("marshaling history diff: %w", err)
			}
			_, err = tx.Exec(ctx, insertHistorySQL,
				h.ID, o.ID, h.CreatedAt, h.ActorID, h.ActorName, h.Kind, diff,
			)
			if err != nil {
				return fmt.Errorf("recording history of %q: %w", o.ID, err)
			}
		}
		return nil
	})
}

func insertItems(ctx context.Context, tx pgx.Tx, orderID string, items []order.Item) error {
	if len(items) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for i := range items {
		it := &items[i]
		b.Queue(insertItemSQL,
			orderID, it.Code, it.Description, it.Price, it.Weight, int16(it.WeightUnit), it.Quantity, i+1,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&it.ID)
		})
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("inserting items of %q: %w", orderID, err)
	}
	return nil
}

// GetByID returns the order with its items and history.
func (s *orderStore) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := s.db.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	orders := []order.Order{o}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(ctx, getHistorySQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting history of %q: %w", id, err)
	}
	history, err := pgx.CollectRows(rows, scanHistory)
	if err != nil {
		return nil, fmt.Errorf("getting history of %q: %w", id, err)
	}
	orders[0].History = history
	return &orders[0], nil
}

// Count returns how many orders match f.
func (s *orderStore) Count(ctx context.Context, f order.Filter) (int, error) {
	where, args := filterClause(f)
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders o`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders: %w", err)
	}
	return n, nil
}

// List returns one window of matching orders, newest first, with items.
func (s *orderStore) List(ctx context.Context, f order.Filter, offset, limit int) ([]order.Order, error) {
	where, args := filterClause(f)
	args = append(args, limit, offset)
	sql := `SELECT ` + orderColumns + ` FROM orders o` + where +
		` ORDER BY o.created_at DESC, o.id DESC` +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if err := s.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Summarize aggregates weight, value, units and order count over f.
func (s *orderStore) Summarize(ctx context.Context, f order.Filter) (order.Totals, error) {
	where, args := filterClause(f)
	sql := `SELECT COUNT(DISTINCT o.id),
			COALESCE(SUM(i.quantity), 0),
			COALESCE(SUM(i.price * i.quantity), 0),
			COALESCE(SUM(` + itemWeightKg + `), 0)
		FROM orders o LEFT JOIN order_items i ON i.order_id = o.id` + where

	var t order.Totals
	if err := s.db.QueryRow(ctx, sql, args...).Scan(&t.Orders, &t.Units, &t.Value, &t.WeightKg); err != nil {
		return order.Totals{}, fmt.Errorf("summarizing orders: %w", err)
	}
	return t, nil
}

func (s *orderStore) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := s.db.Query(ctx, getItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("getting order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it      order.Item
			orderID string
			unit    int16
		)
		if err := rows.Scan(&it.ID, &orderID, &it.Code, &it.Description,
			&it.Price, &it.Weight, &unit, &it.Quantity); err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		it.WeightUnit = weight.Unit(unit)
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("getting order items: %w", err)
	}
	return nil
}

// filterClause renders f as a WHERE clause over the orders alias o.
func filterClause(f order.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if !f.From.IsZero() {
		add("o.created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		add("o.created_at < ?", f.To)
	}
	if f.Status != nil {
		add("o.status = ?", int16(*f.Status))
	}
	if f.UserID != "" {
		add("o.user_id = ?", f.UserID)
	}
	if f.Search != "" {
		add("(o.user_name ILIKE ? OR o.user_tax_id ILIKE ?)", containsPattern(f.Search))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status int16
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.UserName, &o.UserTaxID, &o.CompanyID, &o.DeliveryUnit,
		&status, &o.CreatedAt, &o.UpdatedAt, &o.UpdatedBy,
	)
	o.Status = order.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, err
}

func scanHistory(row pgx.CollectableRow) (order.HistoryEntry, error) {
	var (
		h    order.HistoryEntry
		diff []byte
	)
	if err := row.Scan(&h.ID, &h.OrderID, &h.CreatedAt, &h.ActorID, &h.ActorName, &h.Kind, &diff); err != nil {
		return h, err
	}
	h.CreatedAt = h.CreatedAt.UTC()
	if err := json.Unmarshal(diff, &h.Diff); err != nil {
		return h, fmt.Errorf("decoding history diff %q: %w", h.ID, err)
	}
	return h, nil
}
