// Package httpmiddleware contains the net/http middleware shared by the
// portal's HTTP servers.
package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies mws to h so that the first middleware is the outermost one.
func Wrap(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RoutePattern returns the chi route template matched for r, such as
// "/api/orders/{id}". It is only populated once routing has happened, so
// middleware must read it after calling the next handler.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
