package routes

import (
	"context"
	"gym-management/internal/config"
	"gym-management/internal/delivery/http/handler"
	"gym-management/internal/domain/user"
	"gym-management/internal/logger"
	"gym-management/internal/middleware"
	"gym-management/internal/usecase/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies are the wired services the HTTP surface delegates to.
type Dependencies struct {
	AuthService  *auth.Service
	UserRepo     user.Repository
	HealthChecks map[string]handler.HealthCheck
}

// SetupRoutes builds the engine. ctx bounds the rate limiters' background
// eviction.
func SetupRoutes(ctx context.Context, cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// ClientIP keys the rate limiters; only listed proxies may override it.
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Error("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}

	// Order: recovery, request ID, logging, security headers, CORS, request size limit, general rate limit
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RequestSizeLimitMiddleware(middleware.DefaultMaxRequestSize))
	router.Use(middleware.RateLimitMiddleware(
		middleware.NewRateLimiter(ctx, cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst),
	))

	healthHandler := handler.NewHealthHandler(deps.HealthChecks)
	router.GET("/health", healthHandler.Health)

	authHandler := handler.NewAuthHandler(deps.AuthService)
	adminHandler := handler.NewAdminHandler(deps.AuthService)

	authLimit := middleware.RateLimitMiddleware(
		middleware.NewRateLimiter(ctx, cfg.RateLimit.AuthRPS, cfg.RateLimit.AuthBurst),
	)
	requireAuth := middleware.AuthMiddleware(cfg.JWT.Secret, deps.UserRepo)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authHandler.RegisterRoutes(authGroup, authLimit)

		protected := authGroup.Group("")
		protected.Use(requireAuth)
		authHandler.RegisterProtectedRoutes(protected)

		admin := api.Group("/admin")
		admin.Use(requireAuth, middleware.AdminOnly())
		adminHandler.RegisterRoutes(admin)
	}

	logger.Info("All routes initialized")
	return router
}
