package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/thangnvgch211384/fshoemate/internal/domain/order"
)

func userID(r *http.Request) string {
	return r.Header.Get(HeaderUserID)
}

func (h *Handler) checkoutRequest(w http.ResponseWriter, r *http.Request) (order.CheckoutRequest, bool) {
	body, ok := h.readBody(w, r)
	if !ok {
		return order.CheckoutRequest{}, false
	}
	req, err := decodeCheckout(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed checkout request")
		return order.CheckoutRequest{}, false
	}
	return req, true
}

func respondOrder(w http.ResponseWriter, status int, o *order.Order) {
	writeJSON(w, status, func(e *jx.Encoder) { encodeOrder(e, o) })
}

// createFromCart checks out the signed-in user's cart.
func (h *Handler) createFromCart(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in required")
		return
	}
	req, ok := h.checkoutRequest(w, r)
	if !ok {
		return
	}
	// Cart checkout never trusts client-sent lines.
	req.Items = nil

	o, err := h.orders.CreateFromCart(r.Context(), uid, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondOrder(w, http.StatusCreated, o)
}

func (h *Handler) createGuest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.checkoutRequest(w, r)
	if !ok {
		return
	}
	o, err := h.orders.CreateGuest(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondOrder(w, http.StatusCreated, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in required")
		return
	}
	orders, err := h.orders.ListForUser(r.Context(), uid)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrders(e, orders) })
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	respondOrder(w, http.StatusOK, o)
}

// lookupGuest resolves a guest order by contact email and either the full
// order id or its short code.
func (h *Handler) lookupGuest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email, code := q.Get("email"), q.Get("code")
	if email == "" || code == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "email and code are required")
		return
	}
	o, err := h.orders.LookupGuest(r.Context(), email, code)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondOrder(w, http.StatusOK, o)
}

// cancelOrder cancels on behalf of the owner, or of a guest when no user
// header is present.
func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	respondOrder(w, http.StatusOK, o)
}
