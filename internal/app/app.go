// Package app wires configuration, storage, domain services and the HTTP
// server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/thangnvgch211384/fshoemate/internal/domain/analytics"
	"github.com/thangnvgch211384/fshoemate/internal/domain/auth"
	"github.com/thangnvgch211384/fshoemate/internal/domain/loyalty"
	"github.com/thangnvgch211384/fshoemate/internal/domain/order"
	"github.com/thangnvgch211384/fshoemate/internal/domain/payment"
	"github.com/thangnvgch211384/fshoemate/internal/domain/promotion"
	"github.com/thangnvgch211384/fshoemate/internal/handler"
	"github.com/thangnvgch211384/fshoemate/internal/notify"
	"github.com/thangnvgch211384/fshoemate/internal/payos"
	"github.com/thangnvgch211384/fshoemate/internal/storage/postgres"
	"github.com/thangnvgch211384/fshoemate/internal/storage/redis"
	"github.com/thangnvgch211384/fshoemate/pkg/health"
	"github.com/thangnvgch211384/fshoemate/pkg/httpmiddleware"
)

const serviceName = "fshoemate-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis carts.
	rdb, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "create redis client")
	}
	defer func() { _ = rdb.Close() }()

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck("postgres", pool.Ping))
	healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)

	// Repositories.
	orderRepo := postgres.NewOrderRepository(pool)
	variantRepo := postgres.NewVariantRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	promotionRepo := postgres.NewPromotionRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	carts := redis.NewCartStore(rdb, cfg.CartTTL)

	// Payment gateway.
	gateway, err := payos.New(payos.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		ClientID:    cfg.Gateway.ClientID,
		APIKey:      cfg.Gateway.APIKey,
		ChecksumKey: cfg.Gateway.ChecksumKey,
		Timeout:     cfg.Gateway.Timeout,
	}, payos.WithTracerProvider(m.TracerProvider()))
	if err != nil {
		return errors.Wrap(err, "create payment gateway client")
	}
	var verifier payment.Verifier
	if cfg.Gateway.VerifyWebhooks {
		verifier = gateway
	} else {
		lg.Warn("Payment callback verification disabled")
	}

	// Notifications.
	var notifier order.Notifier = notify.Logger{}
	if len(cfg.Kafka.Brokers) > 0 {
		w := notify.NewWriter(lg, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer closeWriter(lg, w)
		notifier = notify.NewPublisher(w)
	} else {
		lg.Warn("No Kafka brokers configured, notifications are only logged")
	}

	// Domain services.
	orderService, err := order.NewService(order.Deps{
		Orders:     orderRepo,
		Inventory:  variantRepo,
		Carts:      carts,
		Users:      userRepo,
		Promotions: promotion.NewRepoValidator(promotionRepo),
		Usage:      promotionRepo,
		Gateway:    gateway,
		Loyalty:    loyalty.NewService(postgres.NewLoyaltyLedger(pool), decimal.NewFromInt(cfg.Loyalty.Unit)),
		Notifier:   notifier,
		Verifier:   verifier,
		Meter:      m.MeterProvider().Meter(serviceName),
	}, order.Config{
		ShippingFees:          cfg.shippingFees(),
		DefaultShippingMethod: cfg.Checkout.DefaultShippingMethod,
		ReturnURL:             cfg.Gateway.ReturnURL,
		CancelURL:             cfg.Gateway.CancelURL,
		StockConcurrency:      cfg.Checkout.StockConcurrency,
		MaxConflictRetries:    cfg.Checkout.MaxConflictRetries,
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	reports := analytics.NewAggregator(orderRepo, variantRepo, userRepo)

	h := handler.NewHandler(
		handler.HandlerConfig{},
		orderService,
		reports,
		gateway,
		auth.NewAuthenticator(apikeyRepo, []byte(cfg.APIKeyPepper)),
	)
	instrument, err := httpmiddleware.Instrument(serviceName, httpmiddleware.ChiRoute, m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "instrument http")
	}
	api := h.Router(
		instrument,
		httpmiddleware.LogRequests(httpmiddleware.ChiRoute),
		httpmiddleware.Labeler(httpmiddleware.ChiRoute),
	)

	root := chi.NewRouter()
	root.Get("/livez", healthSvc.LiveEndpoint)
	root.Get("/readyz", healthSvc.ReadyEndpoint)
	root.Mount("/", api)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(
			httpmiddleware.Wrap(root,
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(zctx.From(ctx)),
				httpmiddleware.Recovery(),
				httpmiddleware.CORS(httpmiddleware.CORSConfig{
					Origins:          cfg.CORS.Origins,
					AllowCredentials: cfg.CORS.AllowCredentials,
					MaxAge:           86400,
				}),
				httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
					Max:    cfg.RateLimit.Max,
					Window: cfg.RateLimit.Window,
					Skip:   exemptFromRateLimit,
				}),
			),
			serviceName,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	healthSvc.SetReady(true)
	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// exemptFromRateLimit lets gateway callbacks and probes through the limiter.
func exemptFromRateLimit(r *http.Request) bool {
	switch r.URL.Path {
	case handler.WebhookPath, "/livez", "/readyz":
		return true
	}
	return false
}

func closeWriter(lg *zap.Logger, w *kafka.Writer) {
	if err := w.Close(); err != nil {
		lg.Warn("Close notification writer", zap.Error(err))
	}
}
