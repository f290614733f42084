package handlers

import (
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/SscSPs/transfer_engine/cmd/docs"
	portssvc "github.com/SscSPs/transfer_engine/internal/core/ports/services"
	"github.com/SscSPs/transfer_engine/internal/middleware"
	"github.com/SscSPs/transfer_engine/internal/platform/config"
	"github.com/SscSPs/transfer_engine/internal/platform/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces.
// collector may be nil, in which case neither request metrics nor /metrics are served.
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	events EventSubscriber,
	collector *metrics.Collector,
) error {
	if collector != nil {
		r.Use(middleware.RequestMetrics(collector))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	}

	// Add health check route
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if collector != nil {
		r.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	// Setup API v1 routes with Auth Middleware, passing service interfaces
	if err := setupAPIV1Routes(r, cfg, services, events); err != nil {
		return err
	}

	// Swagger routes (typically public or conditionally available)
	setupSwaggerRoutes(r, cfg)
	return nil
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	events EventSubscriber,
) error {
	// Apply AuthMiddleware to the entire v1 group
	v1 := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTSecret))

	var mutating []gin.HandlerFunc
	if cfg.RateLimit != "" {
		limiterInstance, err := middleware.NewRateLimiter(cfg.RateLimit)
		if err != nil {
			return fmt.Errorf("configure rate limit: %w", err)
		}
		mutating = append(mutating, middleware.RateLimit(limiterInstance))
	}

	RegisterAccountRoutes(v1, services.Account, services.Query, mutating...)
	RegisterTransferRoutes(v1, services.Account, services.Transfer, mutating...)
	RegisterTransactionRoutes(v1, services.Account, services.Query)
	RegisterStatsRoutes(v1, services.Query, cfg.AdminSubjects)
	if events != nil {
		RegisterEventRoutes(v1, services.Account, events)
	}
	return nil
}

func corsConfig(origins []string) cors.Config {
	conf := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", IdempotencyKeyHeader, "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		conf.AllowAllOrigins = true
	} else {
		conf.AllowOrigins = origins
	}
	return conf
}

// setupSwaggerRoutes configures the swagger documentation routes
func setupSwaggerRoutes(r *gin.Engine, cfg *config.Config) {
	if cfg.IsProduction {
		//no swagger in prod
		return
	}
	docs.SwaggerInfo.BasePath = "/api/v1"
	swagger := r.Group("/swagger")
	swagger.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
