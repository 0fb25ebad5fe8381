package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"talentvault/internal/api/middleware"
	"talentvault/internal/backup"
	"talentvault/internal/records"
	"talentvault/internal/session"
	"talentvault/internal/syncengine"
)

// RegisterRoutes registers the API routes, without an /api prefix.
func RegisterRoutes(
	router *gin.Engine,
	engine *syncengine.Engine,
	store *records.Store,
	manager *backup.Manager,
	tokens *session.Service,
	gate *session.Gate,
	cache *session.Cache,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
) {
	authHandler := NewAuthHandler(tokens, gate, cache, redisClient, logger)
	candidateHandler := NewCandidateHandler(store, cache, logger)
	syncHandler := NewSyncHandler(engine, logger)
	backupHandler := NewBackupHandler(manager, logger)

	sessionMiddleware := middleware.SessionMiddleware(tokens)
	freshness := middleware.FreshnessMiddleware(gate)

	v1 := router.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", sessionMiddleware, authHandler.Logout)
			authGroup.GET("/session", sessionMiddleware, authHandler.SessionInfo)
		}

		candidateGroup := v1.Group("/candidates")
		candidateGroup.Use(sessionMiddleware, freshness)
		{
			candidateGroup.POST("", candidateHandler.Create)
			candidateGroup.PUT("", candidateHandler.Update)
			candidateGroup.GET("/:email", candidateHandler.Get)
			candidateGroup.DELETE("/:email", candidateHandler.Delete)
			candidateGroup.POST("/search", candidateHandler.Search)
		}

		dashboardGroup := v1.Group("/dashboard")
		dashboardGroup.Use(sessionMiddleware, freshness)
		{
			dashboardGroup.GET("/stats", candidateHandler.Stats)
		}

		syncGroup := v1.Group("/sync")
		syncGroup.Use(sessionMiddleware)
		{
			syncGroup.POST("/upload", syncHandler.Upload)
			syncGroup.POST("/download", syncHandler.Download)
			syncGroup.POST("/refresh", syncHandler.Refresh)
			syncGroup.GET("/status", syncHandler.Status)
		}

		backupGroup := v1.Group("/backups")
		backupGroup.Use(sessionMiddleware)
		{
			backupGroup.POST("", backupHandler.Create)
			backupGroup.GET("", backupHandler.List)
			backupGroup.POST("/restore", backupHandler.Restore)
			backupGroup.POST("/cleanup", backupHandler.Cleanup)
			backupGroup.GET("/stats", backupHandler.Stats)
			backupGroup.GET("/health", backupHandler.Health)
			backupGroup.GET("/restore-points", backupHandler.RestorePoints)
			backupGroup.GET("/history", backupHandler.History)
			backupGroup.DELETE("/:name", backupHandler.Delete)
		}
	}
}
