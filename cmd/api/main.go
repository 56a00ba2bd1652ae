package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/varejolabs/loja-backend/api/routes"
	"github.com/varejolabs/loja-backend/internal/auth"
	"github.com/varejolabs/loja-backend/internal/coupons"
	"github.com/varejolabs/loja-backend/internal/orders"
	"github.com/varejolabs/loja-backend/internal/payments"
	"github.com/varejolabs/loja-backend/internal/products"
	"github.com/varejolabs/loja-backend/internal/webhooks"
	"github.com/varejolabs/loja-backend/pkg/config"
	"github.com/varejolabs/loja-backend/pkg/db"
	"github.com/varejolabs/loja-backend/pkg/logger"
	"github.com/varejolabs/loja-backend/pkg/mercadopago"
	"github.com/varejolabs/loja-backend/pkg/metrics"
	"github.com/varejolabs/loja-backend/pkg/migrate"
	"github.com/varejolabs/loja-backend/pkg/outbox"
	"github.com/varejolabs/loja-backend/pkg/redis"
)

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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := mercadopago.NewClient(cfg.MercadoPago.AccessToken, mercadopago.WithBaseURL(cfg.MercadoPago.BaseURL))
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment gateway client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	reconcilerMetrics := metrics.NewReconcilerMetrics(registry)

	ordersRepo := orders.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())
	couponsRepo := coupons.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	productsService, err := products.NewService(productsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create products service", err)
		os.Exit(1)
	}

	couponsService, err := coupons.NewService(couponsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupons service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:  auth.NewRepository(dbClient.DB()),
		JWTConfig: cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:      ordersRepo,
		Tx:        dbClient,
		Catalog:   productsRepo,
		Coupons:   couponsService,
		Gateway:   gateway,
		Outbox:    outboxService,
		Logger:    logg,
		NotifyURL: cfg.MercadoPago.NotifyURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:    ordersRepo,
		Tx:      dbClient,
		Gateway: gateway,
		Stock:   productsRepo,
		Coupons: couponsRepo,
		Outbox:  outboxService,
		Logger:  logg,
		Metrics: reconcilerMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconciler", err)
		os.Exit(1)
	}

	webhooksService, err := webhooks.NewService(webhooks.ServiceParams{
		Reconciler:  paymentsService,
		Idempotency: redisClient,
		Webhook:     cfg.Webhook,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(
		cfg,
		logg,
		routes.Pingers{DB: dbClient, Redis: redisClient},
		redisClient,
		routes.Services{
			Auth:     authService,
			Products: productsService,
			Coupons:  couponsService,
			Orders:   ordersService,
			Payments: paymentsService,
			Webhooks: webhooksService,
		},
		registry,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
