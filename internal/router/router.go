package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mcqlab/mcq-review/internal/config"
	"github.com/mcqlab/mcq-review/internal/handler"
	"github.com/mcqlab/mcq-review/internal/middleware"
	"github.com/mcqlab/mcq-review/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	WS     *handler.WSHandler
	Upload *handler.UploadHandler
	Export *handler.ExportHandler
	State  *handler.StateHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally (skips WebSocket upgrades).
	router.Use(middleware.Brotli())

	// Serve the browser front-end with moderate caching (1 hour).
	staticGroup := router.Group("/static")
	staticGroup.Use(middleware.CacheControl(3600))
	{
		staticGroup.Static("/", cfg.StaticDir)
	}
	router.StaticFile("/", cfg.StaticDir+"/index.html")

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── WebSocket (the only mutation channel) ─────────────────────────
	router.GET("/ws", handlers.WS.Stream)

	// ─── REST (reads, uploads, export) ─────────────────────────────────
	// Rate limiter for the routes that parse or serialize whole files
	// (30 requests per minute per IP).
	fileLimiter := middleware.NewRateLimiter(30, time.Minute)

	api := router.Group("/api/v1")
	{
		api.GET("/state", handlers.State.GetState)

		files := api.Group("/collections")
		files.Use(fileLimiter.Middleware())
		{
			files.POST("", handlers.Upload.CreateCollection)
			files.POST("/:index/questions", handlers.Upload.AddQuestions)
			files.GET("/:index/export", handlers.Export.ExportCSV)
		}
	}

	return router
}
