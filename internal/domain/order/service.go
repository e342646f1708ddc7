package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/procurement-portal/internal/domain/auth"
	"github.com/xenking/procurement-portal/internal/domain/product"
	"github.com/xenking/procurement-portal/pkg/pagination"
)

// Config holds the business settings of the order engine.
type Config struct {
	// MonthlyLimitKg is the only source of the per-user monthly ceiling.
	MonthlyLimitKg      decimal.Decimal
	Window              EditWindow
	Pagination          pagination.Options
	RequireDeliveryUnit bool
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	CompanyID    string
	DeliveryUnit *string
	Items        []RequestedItem
}

// UpdateRequest replaces the delivery unit and the whole item list.
type UpdateRequest struct {
	OrderID      string
	DeliveryUnit *string
	Items        []RequestedItem
}

// Service orchestrates the order lifecycle: quota checks, edit window,
// reconciliation, audit trail and status transitions.
type Service struct {
	cfg        Config
	orders     Store
	uow        UnitOfWork
	units      UnitDirectory
	reconciler *Reconciler
	quota      Quota

	now     func() time.Time
	newID   func() string
	metrics *metrics
	tracer  trace.Tracer
}

// NewService creates an order Service with the required dependencies.
func NewService(
	cfg Config,
	orders Store,
	uow UnitOfWork,
	products product.Repository,
	units UnitDirectory,
	opts ...Option,
) (*Service, error) {
	o := options{
		clock: time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}

	m, err := newMetrics(o.meterProvider)
	if err != nil {
		return nil, errors.Wrap(err, "init metrics")
	}

	return &Service{
		cfg:        cfg,
		orders:     orders,
		uow:        uow,
		units:      units,
		reconciler: NewReconciler(products),
		quota:      Quota{LimitKg: cfg.MonthlyLimitKg},
		now:        func() time.Time { return o.clock().UTC() },
		newID:      o.newID,
		metrics:    m,
		tracer:     newTracer(o.tracerProvider),
	}, nil
}

// LimitKg returns the configured monthly ceiling.
func (s *Service) LimitKg() decimal.Decimal {
	return s.quota.LimitKg
}

// Create validates and persists a new order owned by actor.
func (s *Service) Create(ctx context.Context, actor auth.Actor, req CreateRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Create")
	defer span.End()
	defer s.observe(ctx, "create", &rerr)

	if actor.UserID == "" {
		return nil, &PermissionError{Reason: "unauthenticated"}
	}
	unit, err := s.validateUnit(ctx, req.CompanyID, req.DeliveryUnit)
	if err != nil {
		return nil, err
	}
	rec, err := s.reconciler.Reconcile(ctx, nil, req.Items)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		ID:           s.newID(),
		UserID:       actor.UserID,
		UserName:     actor.Name,
		UserTaxID:    actor.TaxID,
		CompanyID:    req.CompanyID,
		DeliveryUnit: unit,
		Status:       Requested,
		CreatedAt:    now,
		UpdatedAt:    now,
		UpdatedBy:    actor.UserID,
		Items:        rec.Items,
	}
	candidate := o.TotalWeightKg()

	err = s.uow.RunInTx(ctx, []string{quotaLockKey(actor.UserID, now)}, func(ctx context.Context, store Store) error {
		current, err := s.quota.Accumulated(ctx, store, actor.UserID, now)
		if err != nil {
			return err
		}
		if err := s.quota.CheckCreate(current, candidate); err != nil {
			return err
		}
		return store.Add(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.created.Add(ctx, 1)
	zctx.From(ctx).Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("user_id", o.UserID),
		zap.String("weight_kg", candidate.String()),
	)
	return o, nil
}

// Update replaces the delivery unit and items of an order. Non-admins may
// only edit their own orders inside the edit window.
func (s *Service) Update(ctx context.Context, actor auth.Actor, req UpdateRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Update", trace.WithAttributes(attribute.String("order_id", req.OrderID)))
	defer span.End()
	defer s.observe(ctx, "update", &rerr)

	now := s.now()
	current, err := s.load(ctx, s.orders, actor, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.checkEditable(current, actor, now); err != nil {
		return nil, err
	}
	unit, err := s.validateUnit(ctx, current.CompanyID, req.DeliveryUnit)
	if err != nil {
		return nil, err
	}

	var (
		updated *Order
		entry   *HistoryEntry
	)
	// Quota before order: transitions take only the order key, so the
	// ordering cannot deadlock.
	keys := []string{quotaLockKey(current.UserID, current.CreatedAt), orderLockKey(current.ID)}
	err = s.uow.RunInTx(ctx, keys, func(ctx context.Context, store Store) error {
		// Re-read under the lock: the order may have changed since the check above.
		o, err := s.load(ctx, store, actor, req.OrderID)
		if err != nil {
			return err
		}
		if err := s.checkEditable(o, actor, now); err != nil {
			return err
		}

		rec, err := s.reconciler.Reconcile(ctx, o.Items, req.Items)
		if err != nil {
			return err
		}
		monthTotal, err := s.quota.Accumulated(ctx, store, o.UserID, o.CreatedAt)
		if err != nil {
			return err
		}
		if err := s.quota.CheckUpdate(monthTotal, o.TotalWeightKg(), itemsWeightKg(rec.Items)); err != nil {
			return err
		}

		entry = BuildHistory(o.DeliveryUnit, unit, rec.Deltas)
		if entry != nil {
			s.stamp(entry, o.ID, actor, now)
			o.History = append(o.History, *entry)
		}
		o.DeliveryUnit = unit
		o.Items = rec.Items
		o.UpdatedAt = now
		o.UpdatedBy = actor.UserID

		if err := store.Apply(ctx, Changeset{
			Order:   o,
			Insert:  rec.Insert,
			Delete:  rec.Delete,
			History: entry,
		}); err != nil {
			return errors.Wrap(err, "apply changes")
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.updated.Add(ctx, 1, metric.WithAttributes(attribute.Bool("audited", entry != nil)))
	zctx.From(ctx).Info("Order updated",
		zap.String("order_id", updated.ID),
		zap.String("actor_id", actor.UserID),
		zap.Bool("audited", entry != nil),
	)
	return updated, nil
}

// Approve moves a requested order to Approved. Administrators only.
func (s *Service) Approve(ctx context.Context, actor auth.Actor, orderID string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Approve", trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()
	defer s.observe(ctx, "approve", &rerr)

	return s.transition(ctx, actor, orderID, func(o *Order, now time.Time) (Status, error) {
		next, err := o.Status.Approve()
		if err != nil {
			return 0, err
		}
		if !actor.Admin {
			return 0, &PermissionError{Reason: "only administrators can approve orders"}
		}
		return next, nil
	})
}

// Cancel moves an order to Cancelled. Owners may cancel a requested order
// inside the edit window; administrators may cancel at any time.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, orderID string) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Cancel", trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()
	defer s.observe(ctx, "cancel", &rerr)

	return s.transition(ctx, actor, orderID, func(o *Order, now time.Time) (Status, error) {
		next, err := o.Status.Cancel(actor.Admin)
		if err != nil {
			return 0, err
		}
		if !actor.Admin && !(o.OwnedBy(actor.UserID) && s.cfg.Window.CanEdit(now, false)) {
			return 0, &PermissionError{Reason: "orders can only be cancelled inside the edit window"}
		}
		return next, nil
	})
}

// Get returns an order visible to actor.
func (s *Service) Get(ctx context.Context, actor auth.Actor, orderID string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Get", trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()

	return s.load(ctx, s.orders, actor, orderID)
}

func (s *Service) transition(
	ctx context.Context,
	actor auth.Actor,
	orderID string,
	next func(o *Order, now time.Time) (Status, error),
) (*Order, error) {
	now := s.now()
	var result *Order
	err := s.uow.RunInTx(ctx, []string{orderLockKey(orderID)}, func(ctx context.Context, store Store) error {
		o, err := s.load(ctx, store, actor, orderID)
		if err != nil {
			return err
		}
		from := o.Status
		to, err := next(o, now)
		if err != nil {
			return err
		}
		o.Status = to
		o.UpdatedAt = now
		o.UpdatedBy = actor.UserID
		if err := store.Apply(ctx, Changeset{Order: o}); err != nil {
			return errors.Wrap(err, "apply status")
		}

		s.metrics.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", from.String()),
			attribute.String("to", to.String()),
		))
		zctx.From(ctx).Info("Order status changed",
			zap.String("order_id", o.ID),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
			zap.String("actor_id", actor.UserID),
		)
		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// load fetches an order and hides it from non-admins who do not own it.
func (s *Service) load(ctx context.Context, store Store, actor auth.Actor, orderID string) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, &NotFoundError{OrderID: orderID}
	}
	o, err := store.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{OrderID: orderID}
		}
		return nil, errors.Wrapf(err, "get order %s", orderID)
	}
	if !actor.Admin && !o.OwnedBy(actor.UserID) {
		return nil, &NotFoundError{OrderID: orderID}
	}
	return o, nil
}

func (s *Service) checkEditable(o *Order, actor auth.Actor, now time.Time) error {
	if err := o.Status.ValidateEdit(); err != nil {
		return err
	}
	if actor.Admin {
		return nil
	}
	if !o.OwnedBy(actor.UserID) {
		return &PermissionError{Reason: "order belongs to another user"}
	}
	if !s.cfg.Window.CanEdit(now, false) {
		return &PermissionError{Reason: fmt.Sprintf(
			"orders can only be edited between day %d and day %d of the month",
			s.cfg.Window.OpeningDay, s.cfg.Window.ClosingDay,
		)}
	}
	return nil
}

// validateUnit trims the requested delivery unit and checks it against the
// company's known units.
func (s *Service) validateUnit(ctx context.Context, companyID string, unit *string) (*string, error) {
	if unit != nil {
		v := strings.TrimSpace(*unit)
		unit = &v
		if v == "" {
			unit = nil
		}
	}
	if unit == nil {
		if s.cfg.RequireDeliveryUnit {
			return nil, &ValidationError{Message: "delivery unit is required"}
		}
		return nil, nil
	}
	if s.units == nil {
		return unit, nil
	}
	ok, err := s.units.UnitExists(ctx, companyID, *unit)
	if err != nil {
		return nil, errors.Wrap(err, "check delivery unit")
	}
	if !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown delivery unit %q", *unit)}
	}
	return unit, nil
}

func (s *Service) stamp(h *HistoryEntry, orderID string, actor auth.Actor, now time.Time) {
	h.ID = s.newID()
	h.OrderID = orderID
	h.CreatedAt = now
	if actor.UserID != "" {
		id, name := actor.UserID, actor.Name
		h.ActorID = &id
		h.ActorName = &name
	}
}

func (s *Service) observe(ctx context.Context, op string, err *error) {
	if *err == nil {
		return
	}
	s.metrics.recordRejection(ctx, op, *err)
	zctx.From(ctx).Debug("Order operation rejected",
		zap.String("operation", op),
		zap.Error(*err),
	)
}

// quotaLockKey serializes quota reads and writes per owner and month.
func quotaLockKey(userID string, ref time.Time) string {
	from, _ := MonthBounds(ref)
	return "quota:" + userID + ":" + from.Format("2006-01")
}

// orderLockKey serializes every write to one order.
func orderLockKey(orderID string) string {
	return "order:" + orderID
}
