package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appcart "github.com/benilbaisil/car/internal/application/cart"
	"github.com/benilbaisil/car/internal/application/checkout"
	apporders "github.com/benilbaisil/car/internal/application/orders"
	apppayments "github.com/benilbaisil/car/internal/application/payments"
	appstock "github.com/benilbaisil/car/internal/application/stock"
	"github.com/benilbaisil/car/internal/config"
	domoutbox "github.com/benilbaisil/car/internal/domain/outbox"
	dompayment "github.com/benilbaisil/car/internal/domain/payment"
	infraobs "github.com/benilbaisil/car/internal/infrastructure/observability"
	"github.com/benilbaisil/car/internal/infrastructure/observability/oteltrace"
	"github.com/benilbaisil/car/internal/infrastructure/observability/prometrics"
	"github.com/benilbaisil/car/internal/infrastructure/observability/zaplogger"
	"github.com/benilbaisil/car/internal/infrastructure/outbox"
	"github.com/benilbaisil/car/internal/infrastructure/postgres"
	"github.com/benilbaisil/car/internal/infrastructure/razorpay"
	"github.com/benilbaisil/car/internal/infrastructure/redisession"
	"github.com/benilbaisil/car/internal/observability"
	httppresentation "github.com/benilbaisil/car/internal/presentation/http"
)

const serviceName = "car-store"

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger := zaplogger.New(
		observability.F("service", serviceName),
		observability.F("env", cfg.Env),
	)
	defer zaplogger.Flush(logger)

	registry := prometrics.New("car", "store")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: registry.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests served.",
			"method", "route", "status",
		),
		observability.MGatewayRequests: registry.Counter(
			string(observability.MGatewayRequests),
			"Total number of payment gateway calls.",
			"peer", "endpoint", "outcome",
		),
		observability.MStockDecrementConflicts: registry.Counter(
			string(observability.MStockDecrementConflicts),
			"Settlements that found stock already sold out.",
			"use_case", "outcome",
		),
		observability.MOrdersReaped: registry.Counter(
			string(observability.MOrdersReaped),
			"Awaiting-payment orders cancelled by the reaper.",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case",
		),
		observability.MHTTPRequestDuration: registry.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.",
			prometheus.DefBuckets,
			"method", "route",
		),
		observability.MGatewayRequestDuration: registry.Histogram(
			string(observability.MGatewayRequestDuration),
			"Duration of payment gateway calls in seconds.",
			prometheus.DefBuckets,
			"peer", "endpoint",
		),
	}

	tel := infraobs.New(oteltrace.New(serviceName), logger, counters, histograms)

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("postgres_open_failed", observability.F("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := postgres.RunMigrations(db, cfg.MigrationsDir); err != nil {
		logger.Error("migrations_failed", observability.F("error", err))
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = redisClient.Close() }()

	session := redisession.New(redisClient, cfg.PendingOrderTTL)

	gateway := razorpay.New(razorpay.Config{
		KeyID:         cfg.GatewayKeyID,
		KeySecret:     cfg.GatewayKeySecret,
		BaseURL:       cfg.GatewayBaseURL,
		Currency:      cfg.Currency,
		ReceiptPrefix: cfg.ReceiptPrefix,
		Timeout:       cfg.GatewayTimeout,
	})

	productRepo := postgres.NewProductRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	paymentRepo := postgres.NewPaymentRepository(db)
	stockLedger := postgres.NewStockLedger(db)

	bus := outbox.NewBus(logger)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	subscribeEventLogs(bus, logger)

	cartService := appcart.NewService(session, productRepo)
	beginCheckout := checkout.NewBeginCheckoutUseCase(orderRepo, paymentRepo, productRepo, gateway, session, bus, tel)
	settle := checkout.NewSettleUseCase(orderRepo, paymentRepo, stockLedger, gateway, session, bus, tel)
	orderService := apporders.NewService(orderRepo)
	paymentService := apppayments.NewService(paymentRepo)
	stockService := appstock.NewService(stockLedger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reaper := checkout.NewReaper(orderRepo, cfg.PendingOrderTTL, cfg.ReaperInterval, tel)
	go reaper.Run(ctx)

	handler := httppresentation.NewHandler(
		cartService,
		beginCheckout,
		settle,
		orderService,
		paymentService,
		stockService,
		session,
		[]byte(cfg.JWTSecret),
		promhttp.Handler(),
		tel,
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", observability.F("error", err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.F("error", err))
	} else {
		logger.Info("http_server_stopped")
	}
}

// subscribeEventLogs records settlement and compensation events. Orphaned
// intents and depleted stock need an operator to follow up; the log line is
// the audit trail until a voiding worker exists.
func subscribeEventLogs(bus *outbox.Bus, logger observability.Logger) {
	bus.Subscribe("order.settled", func(ctx context.Context, e domoutbox.Event) error {
		logger.Info("order_settled", observability.F("event", e))
		return nil
	})
	bus.Subscribe("order.stock_depleted", func(ctx context.Context, e domoutbox.Event) error {
		logger.Warn("order_stock_depleted_compensation_required", observability.F("event", e))
		return nil
	})
	bus.Subscribe((dompayment.IntentOrphanedEvent{}).EventName(), func(ctx context.Context, e domoutbox.Event) error {
		logger.Error("payment_intent_orphaned_reconcile_required", observability.F("event", e))
		return nil
	})
}
