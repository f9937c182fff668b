package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketsideco/marketside-backend/api/routes"
	"github.com/marketsideco/marketside-backend/internal/checkout"
	"github.com/marketsideco/marketside-backend/internal/listings"
	"github.com/marketsideco/marketside-backend/internal/notifications"
	"github.com/marketsideco/marketside-backend/internal/orders"
	"github.com/marketsideco/marketside-backend/internal/payments"
	"github.com/marketsideco/marketside-backend/internal/revenue"
	"github.com/marketsideco/marketside-backend/internal/users"
	"github.com/marketsideco/marketside-backend/pkg/config"
	"github.com/marketsideco/marketside-backend/pkg/db"
	"github.com/marketsideco/marketside-backend/pkg/enums"
	"github.com/marketsideco/marketside-backend/pkg/gateway"
	"github.com/marketsideco/marketside-backend/pkg/logger"
	"github.com/marketsideco/marketside-backend/pkg/metrics"
	"github.com/marketsideco/marketside-backend/pkg/migrate"
	"github.com/marketsideco/marketside-backend/pkg/outbox"
	"github.com/marketsideco/marketside-backend/pkg/redis"
)

const webhookGuardTTL = 72 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize payment gateway", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	commerceMetrics := metrics.NewCommerceMetrics(registry)

	usersRepo := users.NewRepository(dbClient.DB())
	listingsRepo := listings.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	refundsRepo := orders.NewRefundRepository(dbClient.DB())
	revenueRepo := revenue.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	checkoutService, err := checkout.NewService(
		dbClient,
		listingsRepo,
		ordersRepo,
		outboxService,
		gatewayClient,
		enums.Currency(cfg.Commerce.DefaultCurrency),
		commerceMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(dbClient, ordersRepo, refundsRepo, listingsRepo, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(
		dbClient,
		ordersRepo,
		revenueRepo,
		outboxService,
		gatewayClient,
		cfg.Commerce.CommissionRate,
		commerceMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	webhookGuard, err := payments.NewWebhookGuard(redisClient, webhookGuardTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			usersRepo,
			checkoutService,
			ordersService,
			paymentsService,
			notificationsService,
			gatewayClient,
			webhookGuard,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
