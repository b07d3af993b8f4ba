package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	couponHandler "coupon-backend/internal/domains/coupon/handler"
	"coupon-backend/internal/shared/middleware"
	"coupon-backend/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(),
	)

	router.GET("/health", healthCheckHandler(c))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c))

		couponHandler.RegisterRoutes(v1, c.CouponPublicHandler, c.CouponAdminHandler, couponHandler.Guards{
			OptionalAuth: middleware.OptionalAuth(c.JWTManager),
			Auth:         middleware.AuthMiddleware(c.JWTManager),
			Admin:        middleware.AdminMiddleware(),
			InternalKey:  middleware.InternalKeyMiddleware(c.Config.Internal.KeyHash),
		})
	}

	return router
}

// ========================================
// HEALTH CHECK HANDLER
// ========================================

// healthCheckHandler reports 503 only when the database is down.
// A cache failure degrades the status but the service keeps answering.
func healthCheckHandler(appCtx *container.Container) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   appCtx.Config.App.Version,
		}

		// Check database
		dbStatus := gin.H{"status": "ok"}
		if err := appCtx.DB.Ping(c.Request.Context()); err != nil {
			dbStatus["status"] = "error: " + err.Error()
			health["status"] = "degraded"
		} else if stats, err := appCtx.DB.Stats(); err == nil {
			dbStatus["pool"] = stats
		}

		// Check cache
		cacheStatus := gin.H{"driver": appCtx.CacheDriver(), "status": "ok"}
		if appCtx.Cache != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			if err := appCtx.Cache.Ping(ctx); err != nil {
				cacheStatus["status"] = "error: " + err.Error()
				health["status"] = "degraded"
			}
		}

		health["services"] = gin.H{
			"database": dbStatus,
			"cache":    cacheStatus,
		}

		statusCode := http.StatusOK
		if dbStatus["status"] != "ok" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, health)
	}
}
