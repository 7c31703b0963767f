package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/mc-instance-manager/internal/api/handlers"
	"github.com/yourusername/mc-instance-manager/internal/api/middleware"
	"github.com/yourusername/mc-instance-manager/internal/auth"
	"github.com/yourusername/mc-instance-manager/internal/backup"
	"github.com/yourusername/mc-instance-manager/internal/config"
	"github.com/yourusername/mc-instance-manager/internal/database"
	"github.com/yourusername/mc-instance-manager/internal/events"
	"github.com/yourusername/mc-instance-manager/internal/instance"
	"github.com/yourusername/mc-instance-manager/internal/scheduler"
)

// SetupRouter configures and returns the HTTP router.
func SetupRouter(
	cfg *config.Config,
	manager *instance.Manager,
	bus *events.Bus,
	db *database.DB,
	sched *scheduler.Scheduler,
	backups *backup.Manager,
) *gin.Engine {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimit(true, 120))

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, parseDuration(cfg.Auth.AccessTokenDuration))

	authHandler := handlers.NewAuthHandler(cfg, jwtManager)
	instanceHandler := handlers.NewInstanceHandler(manager, db, sched)
	streamHandler := handlers.NewEventStreamHandler(bus)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	public := router.Group("/api/v1")
	{
		public.POST("/auth/login", authHandler.Login)
	}

	protected := router.Group("/api/v1")
	protected.Use(middleware.Auth(jwtManager))
	{
		protected.GET("/instances", instanceHandler.List)
		protected.POST("/instances", instanceHandler.Create)
		protected.GET("/instances/:id", instanceHandler.Get)
		protected.DELETE("/instances/:id", instanceHandler.Delete)

		protected.POST("/instances/:id/start", instanceHandler.Start)
		protected.POST("/instances/:id/stop", instanceHandler.Stop)
		protected.POST("/instances/:id/restart", instanceHandler.Restart)
		protected.POST("/instances/:id/kill", instanceHandler.Kill)
		protected.POST("/instances/:id/command", instanceHandler.Command)

		protected.GET("/instances/:id/state", instanceHandler.State)
		protected.GET("/instances/:id/monitor", instanceHandler.Monitor)
		protected.GET("/instances/:id/players", instanceHandler.Players)
		protected.GET("/instances/:id/events", instanceHandler.Events)
		protected.GET("/instances/:id/metrics", instanceHandler.Metrics)

		if backups != nil {
			backupHandler := handlers.NewBackupHandler(manager, backups)
			protected.GET("/instances/:id/backups", backupHandler.List)
			protected.POST("/instances/:id/backups", backupHandler.Create)
			protected.DELETE("/instances/:id/backups/:name", backupHandler.Delete)
			protected.POST("/instances/:id/backups/:name/restore", backupHandler.Restore)
		}

		protected.GET("/events/stream", streamHandler.Stream)
	}

	return router
}

func parseDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}
