package routes

import (
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/config"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/handlers"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/middleware"
	"github.com/gin-gonic/gin"
	"golang.org/x/exp/slog"
)

// HandlerDependencies bundles the handlers the router needs
type HandlerDependencies struct {
	AuthHandler  *handlers.AuthHandler
	DrawHandler  *handlers.DrawHandler
	EntryHandler *handlers.EntryHandler
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, logger *slog.Logger, deps HandlerDependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(logger))

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{"status": "ok"})
		})

		auth := public.Group("/auth")
		{
			auth.POST("/login", deps.AuthHandler.Login)
		}

		// Read-only draw views backing the public UI
		draws := public.Group("/draws")
		{
			draws.GET("/current", deps.DrawHandler.GetCurrentDraw)
			draws.GET("/current/entry-target", deps.DrawHandler.GetEntryTargetDraw)
			draws.GET("/:id", deps.DrawHandler.GetDrawByID)
			draws.GET("/:id/countdown", deps.DrawHandler.GetDrawCountdown)
		}
	}

	// Protected routes
	protected := router.Group("/api/v1")
	protected.Use(middleware.JWTAuthMiddleware(cfg))
	{
		draws := protected.Group("/draws")
		{
			draws.GET("", deps.DrawHandler.ListDraws)
			draws.POST("", deps.DrawHandler.CreateDraw)
			draws.GET("/:id/winners", deps.DrawHandler.GetDrawWinners)
			draws.PUT("/:id", deps.DrawHandler.UpdateDraw)
			draws.POST("/:id/cancel", deps.DrawHandler.CancelDraw)
			draws.POST("/:id/lock", deps.DrawHandler.LockDraw)
			draws.POST("/:id/select-winner", deps.DrawHandler.SelectWinner)
			draws.POST("/:id/winner/notified", deps.DrawHandler.MarkWinnerNotified)
			draws.POST("/:id/cycle", deps.DrawHandler.CycleMiniDraw)
			draws.POST("/:id/schedule-next", deps.DrawHandler.ScheduleNextMajorDraw)
		}

		entries := protected.Group("/entries")
		{
			entries.POST("/award", deps.EntryHandler.AwardEntries)
			entries.GET("/unrouted", deps.EntryHandler.ListUnroutedEvents)
		}
	}

	return router
}
