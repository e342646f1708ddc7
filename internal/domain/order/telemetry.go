package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/xenking/procurement-portal/internal/domain/order"

// Option configures a Service.
type Option func(*options)

type options struct {
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	clock          func() time.Time
	newID          func() string
}

// WithMeterProvider sets the provider for order counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTracerProvider sets the provider for service spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithIDGenerator overrides how order and history ids are generated.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

type metrics struct {
	created     metric.Int64Counter
	updated     metric.Int64Counter
	transitions metric.Int64Counter
	rejected    metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	var (
		m   metrics
		err error
	)
	if m.created, err = meter.Int64Counter("portal.orders.created",
		metric.WithDescription("Orders created")); err != nil {
		return nil, errors.Wrap(err, "created counter")
	}
	if m.updated, err = meter.Int64Counter("portal.orders.updated",
		metric.WithDescription("Order item or unit edits")); err != nil {
		return nil, errors.Wrap(err, "updated counter")
	}
	if m.transitions, err = meter.Int64Counter("portal.orders.transitions",
		metric.WithDescription("Order status transitions")); err != nil {
		return nil, errors.Wrap(err, "transitions counter")
	}
	if m.rejected, err = meter.Int64Counter("portal.orders.rejected",
		metric.WithDescription("Operations rejected by a business rule")); err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}
	return &m, nil
}

func newTracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	return tp.Tracer(instrumentationName)
}

// recordRejection counts business-rule failures by kind.
func (m *metrics) recordRejection(ctx context.Context, op string, err error) {
	kind := ""
	switch {
	case errors.Is(err, ErrValidation):
		kind = "validation"
	case errors.Is(err, ErrQuotaExceeded):
		kind = "quota"
	case errors.Is(err, ErrPermission):
		kind = "permission"
	case errors.Is(err, ErrNotFound):
		kind = "not_found"
	default:
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("kind", kind),
	))
}
