package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/thangnvgch211384/fshoemate/internal/domain/order"
)

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeErrorWith(w, status, kind, msg, nil)
}

func writeErrorWith(w http.ResponseWriter, status int, kind, msg string, extra func(e *jx.Encoder)) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			if kind != "" {
				e.Field("error", func(e *jx.Encoder) { e.Str(kind) })
			}
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
			if extra != nil {
				extra(e)
			}
		})
	})
}

// fail translates err into a response. Domain errors keep their status and
// message; anything else is logged and hidden behind a 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := order.KindOf(err)
	if kind == "" {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	var setup *order.PaymentSetupError
	if errors.As(err, &setup) {
		writeErrorWith(w, order.StatusCode(err), string(kind), order.ErrPaymentSetupFailed.Message, func(e *jx.Encoder) {
			e.Field("order_id", func(e *jx.Encoder) { e.Str(setup.OrderID) })
		})
		return
	}
	writeError(w, order.StatusCode(err), string(kind), err.Error())
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "read request body")
		return nil, false
	}
	return body, true
}
