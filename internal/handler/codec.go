package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/procurement-portal/internal/domain/order"
	"github.com/xenking/procurement-portal/internal/domain/product"
	"github.com/xenking/procurement-portal/pkg/pagination"
)

const maxBodyBytes = 1 << 20

// badRequestError marks input that could not be parsed at all.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return &badRequestError{err: errors.Errorf(format, args...)}
}

// orderBody is the payload of create and update requests.
type orderBody struct {
	CompanyID    string
	DeliveryUnit *string
	Items        []order.RequestedItem
}

func decodeOrderBody(w http.ResponseWriter, r *http.Request) (orderBody, error) {
	var body orderBody
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return body, &badRequestError{err: errors.Wrap(err, "read body")}
	}

	err = jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "companyId":
			s, err := d.Str()
			body.CompanyID = s
			return err
		case "deliveryUnit":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			body.DeliveryUnit = &s
			return err
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				var it order.RequestedItem
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "code":
						s, err := d.Str()
						it.Code = s
						return err
					case "quantity":
						n, err := d.Int()
						it.Quantity = n
						return err
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				body.Items = append(body.Items, it)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return body, &badRequestError{err: errors.Wrap(err, "decode body")}
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		encodeErrorFields(e, status, msg)
		e.ObjEnd()
	})
}

func encodeErrorFields(e *jx.Encoder, status int, msg string) {
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
}

// encodeDecimal writes d as a JSON number literal with every digit kept.
func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeOptString(e *jx.Encoder, s *string) {
	if s == nil {
		e.Null()
		return
	}
	e.Str(*s)
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("userId")
	e.Str(o.UserID)
	e.FieldStart("userName")
	e.Str(o.UserName)
	e.FieldStart("userTaxId")
	e.Str(o.UserTaxID)
	e.FieldStart("companyId")
	e.Str(o.CompanyID)
	e.FieldStart("deliveryUnit")
	encodeOptString(e, o.DeliveryUnit)
	e.FieldStart("status")
	e.Str(o.Status.String())
	e.FieldStart("createdAt")
	encodeTime(e, o.CreatedAt)
	e.FieldStart("updatedAt")
	encodeTime(e, o.UpdatedAt)
	e.FieldStart("updatedBy")
	e.Str(o.UpdatedBy)

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(it.Code)
		e.FieldStart("description")
		e.Str(it.Description)
		e.FieldStart("price")
		encodeDecimal(e, it.Price)
		e.FieldStart("weight")
		encodeDecimal(e, it.Weight)
		e.FieldStart("weightUnit")
		e.Str(it.WeightUnit.String())
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("subtotal")
		encodeDecimal(e, it.Subtotal())
		e.FieldStart("weightKg")
		encodeDecimal(e, it.WeightKg())
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("totalWeightKg")
	encodeDecimal(e, o.TotalWeightKg())
	e.FieldStart("totalValue")
	encodeDecimal(e, o.TotalValue())
	e.FieldStart("totalUnits")
	e.Int(o.TotalUnits())

	e.FieldStart("history")
	e.ArrStart()
	for _, h := range o.History {
		encodeHistory(e, h)
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeHistory(e *jx.Encoder, h order.HistoryEntry) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(h.ID)
	e.FieldStart("createdAt")
	encodeTime(e, h.CreatedAt)
	e.FieldStart("actorId")
	encodeOptString(e, h.ActorID)
	e.FieldStart("actor")
	e.Str(h.Actor())
	e.FieldStart("kind")
	e.Str(h.Kind)

	e.FieldStart("diff")
	e.ObjStart()
	e.FieldStart("previousUnit")
	encodeOptString(e, h.Diff.PreviousUnit)
	e.FieldStart("newUnit")
	encodeOptString(e, h.Diff.NewUnit)
	e.FieldStart("items")
	e.ArrStart()
	for _, d := range h.Diff.Items {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(d.Code)
		e.FieldStart("description")
		e.Str(d.Description)
		e.FieldStart("previousQuantity")
		e.Int(d.PreviousQuantity)
		e.FieldStart("newQuantity")
		e.Int(d.NewQuantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()

	e.ObjEnd()
}

func encodePage(e *jx.Encoder, p pagination.Page[order.Order]) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for i := range p.Items {
		encodeOrder(e, &p.Items[i])
	}
	e.ArrEnd()
	e.FieldStart("page")
	e.Int(p.Page)
	e.FieldStart("pageSize")
	e.Int(p.PageSize)
	e.FieldStart("totalItems")
	e.Int(p.TotalItems)
	e.FieldStart("totalPages")
	e.Int(p.TotalPages)
	e.ObjEnd()
}

func encodeSummary(e *jx.Encoder, s *order.Summary) {
	e.ObjStart()
	e.FieldStart("year")
	e.Int(s.Year)
	e.FieldStart("month")
	e.Int(int(s.Month))
	e.FieldStart("totalWeightKg")
	encodeDecimal(e, s.TotalWeightKg)
	e.FieldStart("totalValue")
	encodeDecimal(e, s.TotalValue)
	e.FieldStart("totalUnits")
	e.Int(s.TotalUnits)
	e.FieldStart("orderCount")
	e.Int(s.OrderCount)
	e.FieldStart("limitKg")
	encodeDecimal(e, s.LimitKg)
	e.ObjEnd()
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(p.Code)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	encodeDecimal(e, p.Price)
	e.FieldStart("weight")
	encodeDecimal(e, p.Weight)
	e.FieldStart("weightUnit")
	e.Str(p.WeightUnit.String())
	e.FieldStart("minimumQuantity")
	e.Int(p.MinimumQuantity())
	e.ObjEnd()
}
