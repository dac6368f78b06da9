package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "storefront/docs"
	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/config"
	"storefront/internal/events"
	httpapi "storefront/internal/http"
	"storefront/internal/payment"
	"storefront/internal/redisx"
	"storefront/internal/repository"
	"storefront/internal/repository/postgres"
	"storefront/internal/repository/sqlite"
	"storefront/internal/service"
)

// @title Storefront API
// @version 1.0
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	if cfg.JWTSecret == config.DevJWTSecret {
		logger.Warn("JWT_SECRET not set, using the development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health := map[string]httpapi.HealthCheck{}

	// primary store
	var (
		identities repository.IdentityRepository
		products   repository.ProductRepository
	)
	var orders repository.OrderRepository = repository.NewMemoryOrders()
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("invalid DATABASE_URL", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		go postgres.Prepare(ctx, pool, 5*time.Second, logger)

		identities = postgres.NewIdentityStore(pool)
		products = postgres.NewProductStore(pool)
		orders = postgres.NewOrderStore(pool)
		health["primary"] = func(ctx context.Context) error { return postgres.Ping(ctx, pool) }
	} else {
		logger.Warn("DATABASE_URL not set, serving from fallback stores; orders are kept in memory")
	}

	// fallback store
	fallback, err := sqlite.Open(ctx, cfg.FallbackDBPath)
	if err != nil {
		logger.Error("open fallback store", "path", cfg.FallbackDBPath, "err", err)
		os.Exit(1)
	}
	defer fallback.Close()
	demo, err := service.DemoAccounts()
	if err != nil {
		logger.Error("demo accounts", "err", err)
		os.Exit(1)
	}
	if err := fallback.Initialize(ctx, demo); err != nil {
		logger.Error("initialize fallback store", "err", err)
		os.Exit(1)
	}
	health["fallback"] = func(ctx context.Context) error {
		_, err := fallback.Count(ctx)
		return err
	}

	creds := service.NewCredentialStore(repository.NewFailover(identities, repository.IdentityRepository(fallback), logger))
	catalog := service.NewCatalogService(repository.NewFailover(products,
		repository.ProductRepository(repository.NewMemoryCatalog(repository.SampleProducts()...)), logger))

	// carts and idempotency keys
	var carts cart.Slots = cart.NewMemorySlots()
	var idem redisx.Idempotency = redisx.NewMemoryIdempotency()
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			logger.Warn("redis not reachable yet", "addr", cfg.RedisAddr, "err", err)
		}
		carts = cart.RedisSlots{Client: rdb}
		idem = &redisx.RedisIdempotency{Client: rdb}
		health["redis"] = func(ctx context.Context) error { return redisx.Ping(ctx, rdb) }
	}

	// events
	var pub events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, 1024, logger)
		kp.Start()
		defer kp.Close()
		pub = kp
	}

	var gateway payment.Gateway
	if cfg.StripeSecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.StripeSecretKey)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, checkout places unpaid orders")
	}

	orderSvc := service.NewOrderService(orders, creds, pub, cfg.ServiceName, logger)
	checkout := service.NewCheckoutCoordinator(catalog, orderSvc, service.CheckoutOptions{
		Gateway:      gateway,
		Idempotency:  idem,
		Currency:     cfg.Currency,
		ReserveStock: cfg.ReserveStock,
		Logger:       logger,
	})

	srv := httpapi.NewServer(httpapi.Deps{
		Auth:        service.NewAuthService(creds, auth.NewTokens(cfg.JWTSecret, cfg.JWTExpire)),
		Catalog:     catalog,
		Orders:      orderSvc,
		Checkout:    checkout,
		Carts:       carts,
		Gateway:     gateway,
		Currency:    cfg.Currency,
		FrontendURL: cfg.FrontendURL,
		Health:      health,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(h).With("service", cfg.ServiceName)
}
