package httpmiddleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry supplies the providers used by Instrument.
type Telemetry interface {
	MeterProvider() metric.MeterProvider
	TracerProvider() trace.TracerProvider
}

// Instrument records otelhttp spans and server metrics. Once the router has
// matched, the span is renamed to "METHOD /route/{param}" and the route
// template is added as the http.route label, keeping metric cardinality
// bounded.
func Instrument(service string, tel Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		labeled := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			route := RoutePattern(r)
			if route == "" {
				return
			}
			routeAttr := attribute.String("http.route", route)
			span := trace.SpanFromContext(r.Context())
			span.SetName(r.Method + " " + route)
			span.SetAttributes(routeAttr)
			if l, ok := otelhttp.LabelerFromContext(r.Context()); ok {
				l.Add(routeAttr)
			}
		})
		return otelhttp.NewHandler(labeled, service,
			otelhttp.WithMeterProvider(tel.MeterProvider()),
			otelhttp.WithTracerProvider(tel.TracerProvider()),
		)
	}
}
