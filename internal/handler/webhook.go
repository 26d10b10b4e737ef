package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/thangnvgch211384/fshoemate/internal/domain/order"
)

// webhook always answers 200; the gateway reads the outcome from the body
// and retries only on a negative acknowledgement. Undecodable bodies are
// acknowledged.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	cb, err := h.callbacks.DecodeCallback(body)
	if err != nil {
		writeAck(w, h.orders.RejectWebhook(r.Context(), err))
		return
	}
	writeAck(w, h.orders.ReceiveWebhook(r.Context(), cb))
}

func writeAck(w http.ResponseWriter, ack order.Ack) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("success", func(e *jx.Encoder) { e.Bool(ack.Success) })
			e.Field("message", func(e *jx.Encoder) { e.Str(ack.Message) })
		})
	})
}
