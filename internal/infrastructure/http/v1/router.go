// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"club19/internal/domain/identity"
	"club19/internal/domain/integrity"
	"club19/internal/domain/lifecycle"
	"club19/internal/domain/linkage"
	"club19/internal/domain/recon"
	"club19/internal/domain/sale"
	"club19/internal/infrastructure/http/v1/handlers"
	"club19/internal/infrastructure/http/v1/middleware"
	"club19/internal/infrastructure/storage/postgres"
	"club19/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Pool *postgres.Pool

	Logger *logger.Logger

	TokenValidator middleware.TokenValidator

	IdentityService *identity.Service

	SaleRepo sale.Repository

	LinkageService   *linkage.Service
	LifecycleService *lifecycle.Service

	ReconSweep     *recon.Sweep
	IntegritySweep *integrity.Sweep
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoint (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	router.GET("/healthz", healthHandler.Healthz)

	baseHandler := handlers.NewBaseHandler()

	v1 := router.Group("/api/v1")
	{
		// Public auth endpoint
		if cfg.IdentityService != nil {
			authHandler := handlers.NewAuthHandler(baseHandler, cfg.IdentityService)
			v1.POST("/auth/login", authHandler.Login)
		}

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.TokenValidator))

		saleHandler := handlers.NewSaleHandler(baseHandler, cfg.SaleRepo)
		linkageHandler := handlers.NewLinkageHandler(baseHandler, cfg.LinkageService)
		lifecycleHandler := handlers.NewLifecycleHandler(baseHandler, cfg.LifecycleService)

		sales := protected.Group("/sales")
		{
			sales.GET("", saleHandler.List)
			sales.GET("/:id", saleHandler.Get)
			sales.GET("/:id/completeness", saleHandler.Completeness)

			sales.POST("/:id/link", linkageHandler.Link)
			sales.POST("/:id/unlink", linkageHandler.Unlink)
			sales.POST("/:id/relink", linkageHandler.Relink)
			sales.POST("/:id/fix-vat", linkageHandler.FixVat)
			sales.POST("/:id/status", lifecycleHandler.Transition)

			sales.POST("/recalculate-margins", middleware.RequirePrivileged(), linkageHandler.Recalculate)
		}

		imports := protected.Group("/imports")
		{
			imports.POST("/:id/adopt", lifecycleHandler.Adopt)
			imports.POST("/:id/dismiss", lifecycleHandler.Dismiss)
		}

		sweeps := protected.Group("/sweeps")
		sweeps.Use(middleware.RequirePrivileged())
		{
			sweepHandler := handlers.NewSweepHandler(baseHandler, cfg.ReconSweep, cfg.IntegritySweep)
			sweeps.POST("/reconcile-payments", sweepHandler.ReconcilePayments)
			sweeps.POST("/integrity", sweepHandler.Integrity)
		}
	}

	return router
}
