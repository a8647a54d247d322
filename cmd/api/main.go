package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/pixmock-backend/api/controllers"
	"github.com/angelmondragon/pixmock-backend/api/routes"
	"github.com/angelmondragon/pixmock-backend/internal/dashboard"
	"github.com/angelmondragon/pixmock-backend/internal/orders"
	"github.com/angelmondragon/pixmock-backend/internal/payments"
	"github.com/angelmondragon/pixmock-backend/internal/seed"
	"github.com/angelmondragon/pixmock-backend/internal/settlement"
	"github.com/angelmondragon/pixmock-backend/internal/webhooks"
	"github.com/angelmondragon/pixmock-backend/pkg/clock"
	"github.com/angelmondragon/pixmock-backend/pkg/config"
	"github.com/angelmondragon/pixmock-backend/pkg/db"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
	"github.com/angelmondragon/pixmock-backend/pkg/metrics"
	"github.com/angelmondragon/pixmock-backend/pkg/migrate"
	"github.com/angelmondragon/pixmock-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "pixmock-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "pixmock-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

type closers []func() error

func (c closers) close() error {
	var err error
	for i := len(c) - 1; i >= 0; i-- {
		err = multierr.Append(err, c[i]())
	}
	return err
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleanup closers
	defer func() {
		err = multierr.Append(err, cleanup.close())
	}()

	clk := clock.System()
	random := clock.NewRandom(cfg.Settlement.Seed)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	gatewayMetrics := metrics.NewGatewayMetrics(registry)

	orderStore, paymentStore, dbClient, err := buildStores(ctx, cfg, logg)
	if err != nil {
		return err
	}
	readyChecks := map[string]controllers.Pinger{}
	if dbClient != nil {
		cleanup = append(cleanup, dbClient.Close)
		readyChecks["db"] = dbClient
	}

	// a nil interface keeps the idempotency middleware disabled
	var idempotency redis.IdempotencyStore
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, redisClient.Close)
		idempotency = redisClient
		readyChecks["redis"] = redisClient
	}

	pool, err := settlement.NewPool(settlement.PoolParams{Clock: clk, Logger: logg, Metrics: gatewayMetrics})
	if err != nil {
		return err
	}
	simulator, err := settlement.NewSimulator(cfg.Settlement, random)
	if err != nil {
		return err
	}

	subscriptions := webhooks.NewRegistry(clk)
	deliveries := webhooks.NewDeliveryLog()
	transport, err := webhooks.NewTransport(cfg.Webhooks, random)
	if err != nil {
		return err
	}
	dispatcher, err := webhooks.NewDispatcher(webhooks.DispatcherParams{
		Registry:       subscriptions,
		Log:            deliveries,
		Transport:      transport,
		Clock:          clk,
		Logger:         logg,
		Metrics:        gatewayMetrics,
		MaxConcurrency: cfg.Webhooks.MaxConcurrency,
	})
	if err != nil {
		return err
	}

	orderSvc, err := orders.NewService(orders.ServiceParams{Store: orderStore, Clock: clk, Logger: logg})
	if err != nil {
		return err
	}
	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Store:     paymentStore,
		Orders:    orderSvc,
		Notifier:  dispatcher,
		Scheduler: pool,
		Settler:   simulator,
		Clock:     clk,
		Random:    random,
		Logger:    logg,
		Metrics:   gatewayMetrics,
		Config:    cfg.Payments,
	})
	if err != nil {
		return err
	}
	dash, err := dashboard.NewService(dashboard.ServiceParams{
		Payments:      paymentSvc,
		Orders:        orderSvc,
		Subscriptions: subscriptions,
		Deliveries:    deliveries,
	})
	if err != nil {
		return err
	}

	if cfg.FeatureFlags.SeedDemoData {
		if _, err := seed.Run(ctx, seed.Params{
			Orders:   orderSvc,
			Payments: paymentSvc,
			Clock:    clk,
			Random:   random,
			Logger:   logg,
		}); err != nil {
			return err
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:        cfg,
			Logger:        logg,
			Clock:         clk,
			Orders:        orderSvc,
			Payments:      paymentSvc,
			Subscriptions: subscriptions,
			Deliveries:    deliveries,
			Dashboard:     dash,
			Idempotency:   idempotency,
			Gatherer:      registry,
			ReadyChecks:   readyChecks,
		}),
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"store_driver": cfg.Store.Driver,
		"transport":    cfg.Webhooks.Transport,
	})
	logg.Info(logCtx, "starting api server")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logg.Info(logCtx, "api server shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownWait)
		defer cancel()
		return multierr.Combine(
			server.Shutdown(shutdownCtx),
			pool.Shutdown(shutdownCtx),
		)
	})
	return group.Wait()
}

// buildStores picks the store implementation for the configured driver. The
// db client is nil for the memory store.
func buildStores(ctx context.Context, cfg *config.Config, logg *logger.Logger) (orders.Store, payments.Store, *db.Client, error) {
	if !cfg.Store.UsesSQL() {
		return orders.NewMemoryStore(), payments.NewMemoryStore(), nil, nil
	}

	dbClient, err := db.New(ctx, cfg.Store.Driver, cfg.DB, logg)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
		_ = dbClient.Close()
		return nil, nil, nil, err
	}
	return orders.NewRepository(dbClient.DB()), payments.NewRepository(dbClient.DB()), dbClient, nil
}
