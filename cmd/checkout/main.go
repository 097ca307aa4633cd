package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/storefront-checkout/internal/checkout"
	"github.com/joao-fontenele/storefront-checkout/internal/config"
	"github.com/joao-fontenele/storefront-checkout/internal/coupons"
	"github.com/joao-fontenele/storefront-checkout/internal/identity"
	"github.com/joao-fontenele/storefront-checkout/internal/lock"
	"github.com/joao-fontenele/storefront-checkout/internal/messaging"
	"github.com/joao-fontenele/storefront-checkout/internal/orders"
	"github.com/joao-fontenele/storefront-checkout/internal/payment"
	"github.com/joao-fontenele/storefront-checkout/internal/telemetry"
)

const serviceName = "checkout"

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.Load()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, cfg.Telemetry.ServiceVersion, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.TracingEnabled)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, cfg.Telemetry.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize meter provider", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	checkoutMetrics, err := telemetry.NewCheckoutMetrics(otel.Meter(serviceName))
	if err != nil {
		logger.Error("failed to create checkout metrics", "error", err)
		os.Exit(1)
	}

	if cfg.Database.URL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.ConnectPostgres(ctx, cfg.Database.URL, cfg.Database.Schema)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	locker := newLocker(ctx, cfg, logger)

	deps := checkout.Deps{
		Gateway: newPaymentGateway(cfg, logger),
		Locker:  locker,
		Metrics: checkoutMetrics,
		Logger:  logger,
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := messaging.NewProducer(cfg.Kafka.Brokers)
		defer func() { _ = producer.Close() }()
		deps.Publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS not set, checkout events are disabled")
	}

	couponRepo := coupons.NewCouponRepository(db)
	orderRepo := orders.NewOrderRepository(db)

	deps.Coupons = couponRepo
	deps.Orders = orderRepo
	deps.Gifts = coupons.NewGiftIssuer(couponRepo, logger)

	svc := checkout.NewService(deps, checkout.Options{
		ClientURL:         cfg.Checkout.ClientURL,
		Currency:          cfg.Checkout.Currency,
		ShippingCountries: cfg.Checkout.ShippingCountries,
		GatewayTimeout:    cfg.Payment.Timeout,
		FinalizeLockTTL:   cfg.Checkout.FinalizeLockTTL,
	})

	checkoutHandler := checkout.NewHandler(svc, logger, cfg.IsDevelopment())
	ordersHandler := orders.NewHandler(orderRepo, logger)
	couponsHandler := coupons.NewHandler(couponRepo, logger)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/payments/create-checkout-session", telemetry.WithHTTPRoute(checkoutHandler.HandleCreateSession))
	api.HandleFunc("POST /api/payments/checkout-success", telemetry.WithHTTPRoute(checkoutHandler.HandleCheckoutSuccess))
	api.HandleFunc("GET /api/orders", telemetry.WithHTTPRoute(ordersHandler.HandleList))
	api.HandleFunc("GET /api/orders/{id}", telemetry.WithHTTPRoute(ordersHandler.HandleGet))
	api.HandleFunc("GET /api/coupons", telemetry.WithHTTPRoute(couponsHandler.HandleGet))
	api.HandleFunc("POST /api/coupons/validate", telemetry.WithHTTPRoute(couponsHandler.HandleValidate))

	mux := http.NewServeMux()
	mux.Handle("/api/", identity.Middleware(api))
	mux.HandleFunc("GET /health", healthHandler(db, logger))
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: otelhttp.NewHandler(mux, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Payment.Timeout + 10*time.Second,
	}

	go func() {
		logger.Info("starting checkout service", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func newPaymentGateway(cfg *config.Config, logger *slog.Logger) payment.Gateway {
	if cfg.Payment.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, using the stub payment gateway", "autopay", cfg.Payment.StubAutoPay)
		return payment.NewStubGateway(payment.WithAutoPay(cfg.Payment.StubAutoPay))
	}

	httpClient := &http.Client{
		Timeout:   cfg.Payment.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return payment.NewStripeGateway(cfg.Payment.StripeSecretKey, httpClient)
}

func newLocker(ctx context.Context, cfg *config.Config, logger *slog.Logger) lock.Locker {
	if cfg.Redis.URL == "" {
		logger.Warn("REDIS_URL not set, finalization locking is disabled")
		return lock.NopLocker{}
	}

	client, err := lock.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to connect to redis, finalization locking is disabled", "error", err)
		return lock.NopLocker{}
	}

	return lock.NewRedisLocker(client, "")
}

func healthHandler(db *sql.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if err := db.PingContext(r.Context()); err != nil {
			logger.Error("health check failed", "error", err)
			status, code = "database unavailable", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
