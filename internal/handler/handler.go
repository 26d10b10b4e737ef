// Package handler is the HTTP boundary of the order service. It decodes
// requests, delegates to the domain services and translates domain errors
// into status codes.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/thangnvgch211384/fshoemate/internal/domain/analytics"
	"github.com/thangnvgch211384/fshoemate/internal/domain/auth"
	"github.com/thangnvgch211384/fshoemate/internal/domain/order"
	"github.com/thangnvgch211384/fshoemate/internal/domain/payment"
)

// HeaderUserID carries the id of the signed-in shopper, set by the gateway
// in front of this service.
const HeaderUserID = "X-User-ID"

// HeaderAPIKey carries the administrative API key.
const HeaderAPIKey = "X-API-Key"

// WebhookPath is the route the payment gateway posts callbacks to.
const WebhookPath = "/api/payments/webhook"

// Orders is the order lifecycle used by the handler.
type Orders interface {
	CreateFromCart(ctx context.Context, ownerID string, req order.CheckoutRequest) (*order.Order, error)
	CreateGuest(ctx context.Context, req order.CheckoutRequest) (*order.Order, error)
	Get(ctx context.Context, orderID, callerID string) (*order.Order, error)
	ListForUser(ctx context.Context, userID string) ([]order.Order, error)
	LookupGuest(ctx context.Context, email, identifier string) (*order.Order, error)
	Cancel(ctx context.Context, orderID, callerID string) (*order.Order, error)
	UpdateStatus(ctx context.Context, orderID string, to order.Status) (*order.Order, error)
	ReceiveWebhook(ctx context.Context, cb payment.Callback) order.Ack
	RejectWebhook(ctx context.Context, cause error) order.Ack
}

// Reports produces the admin analytics report.
type Reports interface {
	Report(ctx context.Context) (*analytics.Report, error)
}

// CallbackDecoder parses a raw gateway callback body.
type CallbackDecoder interface {
	DecodeCallback(body []byte) (payment.Callback, error)
}

// Authenticator validates administrative API keys.
type Authenticator interface {
	Authenticate(ctx context.Context, key, scope string) (*auth.APIKeyInfo, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Handler serves the public, webhook and admin routes.
type Handler struct {
	orders    Orders
	reports   Reports
	callbacks CallbackDecoder
	keys      Authenticator
	maxBody   int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	orders Orders,
	reports Reports,
	callbacks CallbackDecoder,
	keys Authenticator,
) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		orders:    orders,
		reports:   reports,
		callbacks: callbacks,
		keys:      keys,
		maxBody:   cfg.MaxBodyBytes,
	}
}

// Router returns the API routes. mws run inside the router, after route
// matching, so they can read the matched pattern.
func (h *Handler) Router(mws ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(mws...)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.createFromCart)
		r.Get("/", h.listOrders)
		r.Post("/guest", h.createGuest)
		r.Get("/guest/lookup", h.lookupGuest)
		r.Get("/{id}", h.getOrder)
		r.Post("/{id}/cancel", h.cancelOrder)
	})
	r.Post(WebhookPath, h.webhook)

	r.Route("/api/admin", func(r chi.Router) {
		r.With(h.requireKey(auth.ScopeOrdersWrite)).Patch("/orders/{id}/status", h.updateStatus)
		r.With(h.requireKey(auth.ScopeAnalyticsRead)).Get("/analytics", h.analytics)
	})
	return r
}
