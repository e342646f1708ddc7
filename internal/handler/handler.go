package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/procurement-portal/internal/domain/auth"
	"github.com/xenking/procurement-portal/internal/domain/order"
	"github.com/xenking/procurement-portal/internal/domain/product"
	"github.com/xenking/procurement-portal/pkg/httpmiddleware"
	"github.com/xenking/procurement-portal/pkg/pagination"
)

// OrderService is the order engine as seen by the HTTP layer.
type OrderService interface {
	Create(ctx context.Context, actor auth.Actor, req order.CreateRequest) (*order.Order, error)
	Update(ctx context.Context, actor auth.Actor, req order.UpdateRequest) (*order.Order, error)
	Approve(ctx context.Context, actor auth.Actor, orderID string) (*order.Order, error)
	Cancel(ctx context.Context, actor auth.Actor, orderID string) (*order.Order, error)
	Get(ctx context.Context, actor auth.Actor, orderID string) (*order.Order, error)
	List(ctx context.Context, actor auth.Actor, req order.ListRequest) (pagination.Page[order.Order], error)
	Summary(ctx context.Context, actor auth.Actor, req order.SummaryRequest) (*order.Summary, error)
}

// Handler serves the portal API, delegating business rules to the order
// service and catalog lookups to the product repository.
type Handler struct {
	orders   OrderService
	products product.Repository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders OrderService, products product.Repository) *Handler {
	return &Handler{
		orders:   orders,
		products: products,
	}
}

// Routes mounts the API under the returned router. Every route requires an
// API key; mws run before authentication.
func (h *Handler) Routes(security *SecurityHandler, mws ...httpmiddleware.Middleware) chi.Router {
	r := chi.NewRouter()
	for _, mw := range mws {
		r.Use(mw)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(security.Authenticate)

		r.Get("/products/{code}", h.GetProduct)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Get("/summary", h.MonthlySummary)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}", h.UpdateOrder)
			r.Post("/{id}/approve", h.ApproveOrder)
			r.Post("/{id}/cancel", h.CancelOrder)
		})
	})
	return r
}
