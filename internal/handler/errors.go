package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/procurement-portal/internal/domain/order"
	"github.com/xenking/procurement-portal/internal/domain/product"
)

// writeError maps domain errors to HTTP responses. Anything unrecognized is
// logged and reported as a bare 500.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		badReq   *badRequestError
		invalid  *order.ValidationError
		overQuot *order.QuotaExceededError
	)
	switch {
	case errors.As(err, &badReq):
		writeMessage(w, http.StatusBadRequest, badReq.Error())
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, func(e *jx.Encoder) {
			e.ObjStart()
			encodeErrorFields(e, http.StatusUnprocessableEntity, invalid.Error())
			if len(invalid.MissingCodes) > 0 {
				e.FieldStart("missingCodes")
				e.ArrStart()
				for _, c := range invalid.MissingCodes {
					e.Str(c)
				}
				e.ArrEnd()
			}
			e.ObjEnd()
		})
	case errors.As(err, &overQuot):
		writeJSON(w, http.StatusConflict, func(e *jx.Encoder) {
			e.ObjStart()
			encodeErrorFields(e, http.StatusConflict, overQuot.Error())
			e.FieldStart("limitKg")
			encodeDecimal(e, overQuot.LimitKg)
			e.FieldStart("currentKg")
			encodeDecimal(e, overQuot.CurrentKg)
			e.FieldStart("requestedKg")
			encodeDecimal(e, overQuot.RequestedKg)
			e.ObjEnd()
		})
	case errors.Is(err, order.ErrValidation):
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrPermission):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrNotFound), errors.Is(err, product.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	default:
		zctx.From(ctx).Error("Unhandled error", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
