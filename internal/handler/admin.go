package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/thangnvgch211384/fshoemate/internal/domain/auth"
)

// requireKey admits requests whose X-API-Key carries scope.
func (h *Handler) requireKey(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := h.keys.Authenticate(r.Context(), r.Header.Get(HeaderAPIKey), scope)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid api key")
					return
				}
				fail(w, r, err)
				return
			}
			ctx := zctx.With(r.Context(), zap.String("api_key_id", info.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	to, err := decodeStatus(body)
	if err != nil || to == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "status is required")
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondOrder(w, http.StatusOK, o)
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Report(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeReport(e, rep) })
}
