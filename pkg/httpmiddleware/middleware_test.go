package httpmiddleware

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var trail []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trail = append(trail, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Wrap(okHandler(), mark("outer"), mark("inner"))
	serve(h, nil)
	assert.Equal(t, []string{"outer", "inner"}, trail)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	w := serve(h, nil)
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))

	w = serve(h, func(r *http.Request) { r.Header.Set(HeaderRequestID, "abc-123") })
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))

	serve(h, func(r *http.Request) { r.Header.Set(HeaderRequestID, "bad\x01id") })
	assert.NotEqual(t, "bad\x01id", seen)
}

func TestRecovery(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := serve(h, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))
	assert.JSONEq(t, `{"code":500,"message":"internal error"}`, w.Body.String())
}

func TestInjectLoggerAndLogRequests(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	r := chi.NewRouter()
	r.Use(LogRequests(ChiRoute))
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("Handled")
		w.WriteHeader(http.StatusNotFound)
	})
	h := Wrap(r, RequestID(), InjectLogger(zap.New(core)))

	w := serve(h, func(req *http.Request) { req.URL.Path = "/orders/o1" })
	require.Equal(t, http.StatusNotFound, w.Code)

	handled := logs.FilterMessage("Handled").All()
	require.Len(t, handled, 1)
	assert.Equal(t, w.Header().Get(HeaderRequestID), handled[0].ContextMap()["request_id"])

	// 4xx is logged at warn, which the info-level core still records.
	req := logs.FilterMessage("Request").All()
	require.Len(t, req, 1)
	assert.Equal(t, zapcore.WarnLevel, req[0].Level)
	assert.Equal(t, "/orders/{id}", req[0].ContextMap()["route"])
	assert.EqualValues(t, http.StatusNotFound, req[0].ContextMap()["status"])
}

type brokenMeter struct{ noop.Meter }

func (brokenMeter) Int64Counter(string, ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return nil, errors.New("meter closed")
}

type brokenProvider struct{ noop.MeterProvider }

func (brokenProvider) Meter(string, ...metric.MeterOption) metric.Meter { return brokenMeter{} }

func TestInstrument(t *testing.T) {
	instrument, err := Instrument("test", ChiRoute, noop.NewMeterProvider())
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(instrument, Labeler(ChiRoute))
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	w := serve(r, func(req *http.Request) { req.URL.Path = "/ping" })
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestInstrument_MeterError(t *testing.T) {
	mw, err := Instrument("test", ChiRoute, brokenProvider{})
	require.Error(t, err)
	assert.Nil(t, mw)
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{Origins: []string{"https://shop.example.com"}, MaxAge: 600})(okHandler())

	w := serve(h, func(r *http.Request) { r.Header.Set("Origin", "https://SHOP.example.com") })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://SHOP.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(h, func(r *http.Request) { r.Header.Set("Origin", "https://evil.example.com") })
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(h, func(r *http.Request) {
		r.Method = http.MethodOptions
		r.Header.Set("Origin", "https://shop.example.com")
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-User-ID")
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_WildcardWithCredentials(t *testing.T) {
	h := CORS(CORSConfig{Origins: []string{"*"}, AllowCredentials: true})(okHandler())

	w := serve(h, func(r *http.Request) { r.Header.Set("Origin", "https://a.example.com") })
	assert.Equal(t, "https://a.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
