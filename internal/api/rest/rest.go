package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/tiktox/dhiorfans-ledger/internal/api/middleware"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler *Handler, authCfg middleware.AuthConfig) {
	// Liveness endpoint (no auth, no version prefix)
	router.GET("/healthz", handler.HealthCheck)

	v1 := router.Group("/v1")
	{
		// User-facing token endpoints; the identity layer in front of this
		// service guarantees the user id, so they carry no extra auth here
		v1.GET("/users/:userID/balance", handler.GetBalance)
		v1.POST("/users/:userID/claim", handler.Claim)
		v1.POST("/users/:userID/spend", handler.Spend)
		v1.POST("/users/:userID/followers/sync", handler.SyncFollowers)

		// Admin endpoints (JWT or API key)
		admin := v1.Group("", middleware.Auth(authCfg))
		{
			admin.GET("/users/:userID/analysis", handler.AnalyzeUser)
			admin.POST("/users/:userID/credit", handler.Credit)
			admin.GET("/system/diagnostic", handler.RunDiagnostic)
			admin.POST("/system/repair", handler.AutoRepair)
			admin.GET("/system/metrics/history", handler.MetricsHistory)
			admin.GET("/system/cache", handler.CacheStats)
			admin.DELETE("/system/cache", handler.ClearCache)
		}
	}
}
