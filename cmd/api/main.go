// Package main is the entry point for the VendHub quota and upgrade API.
//
// It loads configuration, connects the pgx pool, wires repositories and the
// upgrade service into the HTTP chassis, and serves until a shutdown signal
// arrives. Event publication goes to SQS when a queue is configured and is
// silently disabled otherwise (local development).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vendhub/internal/api/handlers"
	"vendhub/internal/config"
	"vendhub/internal/core"
	"vendhub/internal/db"
	"vendhub/internal/notify"
	"vendhub/internal/pricing"
	"vendhub/internal/types"
	"vendhub/internal/upgrade"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("vendhub API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	// Repositories share the pool; the tx manager hands out tx-scoped copies.
	vendorRepo := db.NewVendorRepository(pool)
	ledgerRepo := db.NewLedgerRepository(pool)
	customerRepo := db.NewCustomerRepository(pool)
	activityRepo := db.NewActivityRepository(pool)
	pricingRepo := db.NewPricingRepository(pool)
	apiKeyRepo := db.NewAPIKeyRepository(pool)
	txManager := db.NewPgxTxManager(pool)

	events, err := newEventPublisher(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("wiring event publisher: %w", err)
	}

	svc := upgrade.NewService(upgrade.ServiceConfig{
		Vendors:    vendorRepo,
		Ledger:     ledgerRepo,
		Customers:  customerRepo,
		Activities: activityRepo,
		Events:     events,
		TxManager:  txManager,
		Archiver:   upgrade.NewArchiver(cfg.Compaction.ArchiveDir),
		Policy:     cfg.Quota.Policy(),
		Logger:     logger,
	})

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = core.NewKeyAuthenticator(apiKeyRepo, logger)
	srv.HealthProbes = []core.HealthProbe{
		core.PingProbe{ProbeName: "database", PingFn: pool.Ping},
	}

	upgradeHandler := handlers.NewUpgradeHandler(svc, srv.Validator, logger)
	capacityHandler := handlers.NewCapacityHandler(svc, activityRepo, srv.Validator, logger)
	customerHandler := handlers.NewCustomerHandler(svc, srv.Validator, logger)
	pricingHandler := handlers.NewPricingHandler(
		pricing.NewRegistry(pricingRepo),
		pricingRepo,
		srv.Validator,
		logger,
	)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { upgradeHandler.RegisterRoutes(r, srv.RequireAdmin) },
		func(r chi.Router) { capacityHandler.RegisterRoutes(r, srv.RequireAdmin) },
		func(r chi.Router) { customerHandler.RegisterRoutes(r) },
		func(r chi.Router) { pricingHandler.RegisterRoutes(r, srv.RequireAdmin) },
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newPool builds the pgx connection pool from the database configuration.
func newPool(ctx context.Context, dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = int32(dbCfg.MaxConns)
	poolCfg.MinConns = int32(dbCfg.MinConns)
	poolCfg.MaxConnLifetime = dbCfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = dbCfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// newEventPublisher wires the SQS publisher when a queue is configured.
// Without one, events are logged and dropped.
func newEventPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (types.EventPublisher, error) {
	if cfg.AWS.NotifyQueueURL == "" {
		logger.Warn("SQS_NOTIFY_QUEUE not set; upgrade events will not be published")
		return logOnlyPublisher{logger: logger}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	metrics := notify.NewMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.AWS.MetricsNamespace, logger)
	return notify.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.AWS.NotifyQueueURL, metrics, logger), nil
}

// logOnlyPublisher satisfies types.EventPublisher for deployments without a
// notification queue.
type logOnlyPublisher struct {
	logger *slog.Logger
}

func (p logOnlyPublisher) Publish(_ context.Context, event types.UpgradeEvent) {
	p.logger.Info("upgrade event (publishing disabled)",
		"event_type", event.EventType,
		"vendor_id", event.VendorID,
		"entry_id", event.EntryID,
	)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
