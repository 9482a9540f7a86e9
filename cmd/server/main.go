// Package main is the entry point for the Club 19 sales API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"club19/internal/core/security"
	"club19/internal/domain/economics"
	"club19/internal/domain/identity"
	"club19/internal/domain/integrity"
	"club19/internal/domain/lifecycle"
	"club19/internal/domain/linkage"
	"club19/internal/domain/recon"
	"club19/internal/domain/theme"
	v1 "club19/internal/infrastructure/http/v1"
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

	ctx := context.Background()
	log.Info("starting club19 server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	saleRepo := postgres.NewSaleRepo(txManager)
	errorRepo := postgres.NewErrorLogRepo(txManager)
	themeRepo := postgres.NewThemeRepo(txManager)
	bandRepo := postgres.NewCommissionRepo(txManager)
	userRepo := postgres.NewUserRepo(txManager)
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- Branding theme registry ---
	themes := theme.NewRegistry(nil)
	if err := themes.Load(ctx, themeRepo); err != nil {
		log.Fatalw("failed to load branding themes", "error", err)
	}

	// --- Identity ---
	jwtSecret := getEnv("JWT_SECRET", "change-me-in-production")
	jwtService := identity.NewJWTService(identity.DefaultJWTConfig(jwtSecret))
	identityService := identity.NewService(userRepo, jwtService, identity.DefaultServiceConfig())

	// --- Domain services ---
	policy := security.NewRolePolicy()
	calculator := economics.NewCalculator(themes)
	refs := refnum.New(pool, refnum.DefaultConfig())

	linkageService := linkage.NewService(
		saleRepo, txManager, calculator, bandRepo, policy, errorRepo, auditService)
	lifecycleService := lifecycle.NewService(
		saleRepo, txManager, policy, refs, auditService)

	// --- Gateway and sweeps ---
	gatewayClient, err := xero.NewClient(xero.ConfigFromEnv())
	if err != nil {
		log.Fatalw("failed to configure invoicing gateway", "error", err)
	}
	reconSweep := recon.NewSweep(saleRepo, gatewayClient, linkageService, lifecycleService, errorRepo)
	integritySweep := integrity.NewSweep(saleRepo, errorRepo)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:             pool,
		Logger:           log,
		TokenValidator:   jwtService,
		IdentityService:  identityService,
		SaleRepo:         saleRepo,
		LinkageService:   linkageService,
		LifecycleService: lifecycleService,
		ReconSweep:       reconSweep,
		IntegritySweep:   integritySweep,
	})

	// --- HTTP server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
