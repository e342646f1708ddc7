package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/procurement-portal/internal/domain/auth"
	"github.com/xenking/procurement-portal/internal/domain/order"
)

const dateLayout = "2006-01-02"

func actorFrom(r *http.Request) auth.Actor {
	a, _ := auth.ActorFromContext(r.Context())
	return a
}

func (h *Handler) respondOrder(w http.ResponseWriter, r *http.Request, status int, o *order.Order, err error) {
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, status, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// CreateOrder handles POST /api/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := decodeOrderBody(w, r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	o, err := h.orders.Create(r.Context(), actorFrom(r), order.CreateRequest{
		CompanyID:    body.CompanyID,
		DeliveryUnit: body.DeliveryUnit,
		Items:        body.Items,
	})
	h.respondOrder(w, r, http.StatusCreated, o, err)
}

// UpdateOrder handles PUT /api/orders/{id}. The body replaces the delivery
// unit and the whole item list.
func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := decodeOrderBody(w, r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	o, err := h.orders.Update(r.Context(), actorFrom(r), order.UpdateRequest{
		OrderID:      chi.URLParam(r, "id"),
		DeliveryUnit: body.DeliveryUnit,
		Items:        body.Items,
	})
	h.respondOrder(w, r, http.StatusOK, o, err)
}

// GetOrder handles GET /api/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	h.respondOrder(w, r, http.StatusOK, o, err)
}

// ApproveOrder handles POST /api/orders/{id}/approve.
func (h *Handler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Approve(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	h.respondOrder(w, r, http.StatusOK, o, err)
}

// CancelOrder handles POST /api/orders/{id}/cancel.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	h.respondOrder(w, r, http.StatusOK, o, err)
}

// ListOrders handles GET /api/orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r.URL.Query())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	page, err := h.orders.List(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePage(e, page) })
}

// MonthlySummary handles GET /api/orders/summary.
func (h *Handler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		req order.SummaryRequest
		err error
	)
	if req.Year, err = intParam(q, "year"); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if req.Month, err = intParam(q, "month"); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if req.Status, err = statusParam(q); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	req.UserID = q.Get("userId")

	s, err := h.orders.Summary(r.Context(), actorFrom(r), req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSummary(e, s) })
}

func parseListRequest(q url.Values) (order.ListRequest, error) {
	var (
		req order.ListRequest
		err error
	)
	if req.From, err = timeParam(q, "from", false); err != nil {
		return req, err
	}
	if req.To, err = timeParam(q, "to", true); err != nil {
		return req, err
	}
	if req.Status, err = statusParam(q); err != nil {
		return req, err
	}
	if req.Page, err = intParam(q, "page"); err != nil {
		return req, err
	}
	if req.PageSize, err = intParam(q, "pageSize"); err != nil {
		return req, err
	}
	req.UserID = q.Get("userId")
	req.Search = q.Get("search")
	return req, nil
}

func intParam(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("%s must be an integer", name)
	}
	return n, nil
}

// timeParam accepts RFC 3339 timestamps or plain dates. A plain date used
// as a range end covers that whole day.
func timeParam(q url.Values, name string, end bool) (time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, badRequest("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", name)
	}
	if end {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

// statusParam accepts a status name or its numeric code.
func statusParam(q url.Values) (*order.Status, error) {
	v := strings.ToLower(strings.TrimSpace(q.Get("status")))
	if v == "" {
		return nil, nil
	}
	if s, ok := order.ParseStatus(v); ok {
		return &s, nil
	}
	if n, err := strconv.Atoi(v); err == nil && order.Status(n).Valid() {
		s := order.Status(n)
		return &s, nil
	}
	return nil, badRequest("unknown status %q", v)
}
