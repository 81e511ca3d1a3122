package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/fulfillment-engine/api/routes"
	"github.com/angelmondragon/fulfillment-engine/internal/activity"
	"github.com/angelmondragon/fulfillment-engine/internal/fulfillment"
	"github.com/angelmondragon/fulfillment-engine/internal/stock"
	"github.com/angelmondragon/fulfillment-engine/internal/transactions"
	"github.com/angelmondragon/fulfillment-engine/pkg/config"
	"github.com/angelmondragon/fulfillment-engine/pkg/db"
	"github.com/angelmondragon/fulfillment-engine/pkg/instance"
	"github.com/angelmondragon/fulfillment-engine/pkg/logger"
	"github.com/angelmondragon/fulfillment-engine/pkg/metrics"
	"github.com/angelmondragon/fulfillment-engine/pkg/migrate"
	"github.com/angelmondragon/fulfillment-engine/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		_ = dbClient.Close()
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			_ = dbClient.Close()
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "redis not configured, idempotency keys disabled")
	}

	closeAll := func() {
		err := dbClient.Close()
		if redisClient != nil {
			err = multierr.Append(err, redisClient.Close())
		}
		if err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}
	defer closeAll()

	fulfillmentService, err := fulfillment.NewService(fulfillment.ServiceParams{
		Tx:           dbClient,
		Transactions: transactions.NewRepository(dbClient.DB()),
		Ledger:       stock.NewLedger(),
		Config:       cfg.Fulfillment,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		closeAll()
		os.Exit(1)
	}

	recorder, err := activity.NewRecorder(activity.NewRepository(dbClient.DB()), nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create activity recorder", err)
		closeAll()
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:                 dbClient,
			Redis:              redisClient,
			Fulfillment:        fulfillmentService,
			Activity:           recorder,
			Stock:              stock.NewReader(dbClient.DB(), nil),
			FulfillmentMetrics: metrics.NewFulfillmentMetrics(reg),
			HTTPMetrics:        metrics.NewHTTPMetrics(reg),
			MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		closeAll()
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
