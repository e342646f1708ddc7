package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/procurement-portal/internal/domain/auth"
	"github.com/xenking/procurement-portal/pkg/pagination"
)

// ListRequest describes a paginated order query.
type ListRequest struct {
	From     time.Time
	To       time.Time
	Status   *Status
	UserID   string
	Search   string
	Page     int
	PageSize int
}

// SummaryRequest selects the month to summarize. A zero Year or Month
// resolves to the current UTC month.
type SummaryRequest struct {
	Year   int
	Month  int
	UserID string
	Status *Status
}

// Summary reports the totals of a month alongside the configured ceiling.
type Summary struct {
	Year          int
	Month         time.Month
	TotalWeightKg decimal.Decimal
	TotalValue    decimal.Decimal
	TotalUnits    int
	OrderCount    int
	LimitKg       decimal.Decimal
}

// scope restricts non-admins to their own orders. Search is admin only.
func scope(actor auth.Actor, f Filter) Filter {
	if !actor.Admin {
		f.UserID = actor.UserID
		f.Search = ""
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// List returns one page of orders visible to actor, newest first.
func (s *Service) List(ctx context.Context, actor auth.Actor, req ListRequest) (pagination.Page[Order], error) {
	ctx, span := s.tracer.Start(ctx, "order.List")
	defer span.End()

	if actor.UserID == "" {
		return pagination.Page[Order]{}, &PermissionError{Reason: "unauthenticated"}
	}
	if !req.From.IsZero() && !req.To.IsZero() && req.To.Before(req.From) {
		return pagination.Page[Order]{}, &ValidationError{Message: "date range end precedes its start"}
	}

	f := scope(actor, Filter{
		From:   req.From,
		To:     req.To,
		Status: req.Status,
		UserID: req.UserID,
		Search: req.Search,
	})
	page, size := pagination.Normalize(req.Page, req.PageSize, s.cfg.Pagination)

	var (
		total int
		items []Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.orders.Count(gctx, f)
		if err != nil {
			return errors.Wrap(err, "count orders")
		}
		total = n
		return nil
	})
	g.Go(func() error {
		list, err := s.orders.List(gctx, f, pagination.Offset(page, size), size)
		if err != nil {
			return errors.Wrap(err, "list orders")
		}
		items = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return pagination.Page[Order]{}, err
	}

	if clamped := pagination.Clamp(page, size, total); clamped != page {
		page = clamped
		list, err := s.orders.List(ctx, f, pagination.Offset(page, size), size)
		if err != nil {
			return pagination.Page[Order]{}, errors.Wrap(err, "list orders")
		}
		items = list
	}
	return pagination.New(items, page, size, total), nil
}

// Summary aggregates weight, value, units and order count for one month.
func (s *Service) Summary(ctx context.Context, actor auth.Actor, req SummaryRequest) (*Summary, error) {
	ctx, span := s.tracer.Start(ctx, "order.Summary")
	defer span.End()

	if actor.UserID == "" {
		return nil, &PermissionError{Reason: "unauthenticated"}
	}
	if req.Month < 0 || req.Month > 12 {
		return nil, &ValidationError{Message: "month must be between 1 and 12"}
	}

	now := s.now()
	year, month := req.Year, time.Month(req.Month)
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = now.Month()
	}
	from, to := MonthBounds(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))

	totals, err := s.orders.Summarize(ctx, scope(actor, Filter{
		From:   from,
		To:     to,
		Status: req.Status,
		UserID: req.UserID,
	}))
	if err != nil {
		return nil, errors.Wrap(err, "summarize orders")
	}

	return &Summary{
		Year:          year,
		Month:         month,
		TotalWeightKg: totals.WeightKg,
		TotalValue:    totals.Value,
		TotalUnits:    totals.Units,
		OrderCount:    totals.Orders,
		LimitKg:       s.quota.LimitKg,
	}, nil
}
