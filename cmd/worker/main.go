// Package main is the entry point for the Club 19 background worker.
// It runs the payment reconciliation and integrity sweeps on a schedule.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	appctx "club19/internal/core/context"
	"club19/internal/core/security"
	"club19/internal/domain/economics"
	"club19/internal/domain/integrity"
	"club19/internal/domain/lifecycle"
	"club19/internal/domain/linkage"
	"club19/internal/domain/recon"
	"club19/internal/domain/theme"
	"club19/internal/infrastructure/storage/postgres"
	"club19/internal/infrastructure/xero"
	"club19/pkg/logger"
	"club19/pkg/refnum"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting club19 worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	saleRepo := postgres.NewSaleRepo(txManager)
	errorRepo := postgres.NewErrorLogRepo(txManager)
	themeRepo := postgres.NewThemeRepo(txManager)
	bandRepo := postgres.NewCommissionRepo(txManager)
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	themes := theme.NewRegistry(nil)
	if err := themes.Load(ctx, themeRepo); err != nil {
		log.Fatalw("failed to load branding themes", "error", err)
	}

	policy := security.NewRolePolicy()
	calculator := economics.NewCalculator(themes)
	refs := refnum.New(pool, refnum.DefaultConfig())

	linkageService := linkage.NewService(
		saleRepo, txManager, calculator, bandRepo, policy, errorRepo, auditService)
	lifecycleService := lifecycle.NewService(
		saleRepo, txManager, policy, refs, auditService)

	gatewayClient, err := xero.NewClient(xero.ConfigFromEnv())
	if err != nil {
		log.Fatalw("failed to configure invoicing gateway", "error", err)
	}

	reconSweep := recon.NewSweep(saleRepo, gatewayClient, linkageService, lifecycleService, errorRepo)
	integritySweep := integrity.NewSweep(saleRepo, errorRepo)

	reconInterval := getEnvDuration("RECONCILE_INTERVAL", 15*time.Minute)
	integrityInterval := getEnvDuration("INTEGRITY_INTERVAL", time.Hour)

	log.Infow("worker schedule",
		"reconcile_interval", reconInterval,
		"integrity_interval", integrityInterval,
	)

	reconTicker := time.NewTicker(reconInterval)
	defer reconTicker.Stop()
	integrityTicker := time.NewTicker(integrityInterval)
	defer integrityTicker.Stop()

	runRecon := func() {
		runCtx := appctx.WithActor(ctx, appctx.System())
		summary, err := reconSweep.Run(runCtx)
		if err != nil {
			log.Errorw("payment reconciliation sweep failed", "error", err)
			return
		}
		log.Infow("payment reconciliation sweep finished",
			"checked", summary.Checked,
			"updated", summary.Updated,
			"errors", summary.Errors,
		)
	}

	runIntegrity := func() {
		runCtx := appctx.WithActor(ctx, appctx.System())
		summary, err := integritySweep.Run(runCtx)
		if err != nil {
			log.Errorw("integrity sweep failed", "error", err)
			return
		}
		log.Infow("integrity sweep finished",
			"overdue", len(summary.OverdueSales),
			"warnings_created", len(summary.WarningsCreated),
		)
	}

	// One pass of each at startup, then on the tickers.
	runRecon()
	runIntegrity()

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped")
			return
		case <-reconTicker.C:
			runRecon()
		case <-integrityTicker.C:
			runIntegrity()
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
