package v1

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"agenthub/api/v1/agents"
	authapi "agenthub/api/v1/auth"
	"agenthub/api/v1/middleware"
	streamapi "agenthub/api/v1/stream"
	"agenthub/api/v1/tasks"
	"agenthub/internal/auth"
	"agenthub/internal/cache"
	"agenthub/internal/config"
	"agenthub/internal/stream"
	"agenthub/internal/task"
)

// Deps carries everything the route handlers need, wired in main.
type Deps struct {
	DB        *gorm.DB
	Cfg       *config.Config
	Blacklist *auth.TokenBlacklist
	Snapshots *cache.Snapshots
	Tasks     *task.Service
	Notifier  *stream.TaskNotifier
	Signals   *stream.SignalBuffer
}

// SetupRouter registers all API routes on a new gin engine
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	authHandler := authapi.NewHandler(d.DB, d.Cfg, d.Blacklist, d.Signals)
	agentHandler := agents.NewHandler(d.DB, d.Snapshots, d.Tasks)
	taskHandler := tasks.NewHandler(d.Tasks)
	streamHandler := streamapi.NewHandler(d.Notifier, d.Signals, d.Cfg.Stream.SignalInterval())

	api := r.Group("/api/v1")

	// Public auth endpoints
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired())
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)
		protected.GET("/auth/profile", authHandler.Profile)
		protected.PATCH("/auth/profile", authHandler.UpdateProfile)

		protected.GET("/agents", agentHandler.List)
		protected.GET("/agents/cached", agentHandler.ListCached)
		protected.POST("/agents", agentHandler.Create)
		protected.GET("/agents/:id", agentHandler.Get)
		protected.PUT("/agents/:id", agentHandler.Update)
		protected.PATCH("/agents/:id", agentHandler.Update)
		protected.DELETE("/agents/:id", agentHandler.Delete)

		protected.POST("/tasks/run", taskHandler.Run)
		protected.GET("/tasks", taskHandler.List)
		protected.GET("/tasks/stats", taskHandler.Stats)
		protected.GET("/tasks/:id", taskHandler.Get)
		protected.DELETE("/tasks/:id", taskHandler.Delete)

		protected.GET("/stream/tasks", streamHandler.Tasks)
		protected.GET("/stream/signals", streamHandler.Signals)
	}

	return r
}
