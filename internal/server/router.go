package server

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/tributewall/tribute-backend/internal/handlers"
	"github.com/tributewall/tribute-backend/internal/middleware"
)

type RouterConfig struct {
	GateHandler    *handlers.GateHandler
	GateMiddleware *middleware.GateMiddleware
	MediaHandler   *handlers.MediaHandler
	EventHandler   *handlers.EventHandler
	ArticleHandler *handlers.ArticleHandler
	UploadHandler  *handlers.UploadHandler
	FeedHandler    *handlers.FeedHandler
	SSEHandler     *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	api.POST("/gate", cfg.GateHandler.Enter)

	// ===============
	// || Protected ||
	// ===============
	protected := api.Group("/")
	protected.Use(cfg.GateMiddleware.RequireSession())

	// Media wall
	protected.GET("/media", cfg.MediaHandler.List)
	protected.POST("/media", cfg.MediaHandler.Create)
	protected.GET("/media/:id", cfg.MediaHandler.Get)
	protected.DELETE("/media/:id", cfg.MediaHandler.Delete)
	protected.POST("/media/:id/transcribe", cfg.MediaHandler.Transcribe)

	// Events + galleries
	protected.GET("/events", cfg.EventHandler.List)
	protected.POST("/events", cfg.EventHandler.Create)
	protected.GET("/events/:id", cfg.EventHandler.Get)
	protected.PATCH("/events/:id", cfg.EventHandler.Update)
	protected.DELETE("/events/:id", cfg.EventHandler.Delete)
	protected.POST("/events/:id/media", cfg.EventHandler.AddGalleryItem)
	protected.DELETE("/events/:id/media", cfg.EventHandler.RemoveGalleryItems)

	// Articles
	protected.GET("/articles", cfg.ArticleHandler.List)
	protected.POST("/articles", cfg.ArticleHandler.Create)
	protected.GET("/articles/:id", cfg.ArticleHandler.Get)
	protected.PATCH("/articles/:id", cfg.ArticleHandler.Update)
	protected.DELETE("/articles/:id", cfg.ArticleHandler.Delete)
	protected.GET("/articles/metadata", cfg.ArticleHandler.Metadata)

	// Uploads (POST /media does the transfer; this is the progress poll)
	protected.GET("/uploads/progress", cfg.UploadHandler.Progress)

	// Feed sessions
	protected.POST("/feed/session", cfg.FeedHandler.OpenSession)
	protected.POST("/feed/session/:id/events", cfg.FeedHandler.ReportEvents)
	protected.GET("/feed/session/:id/commands", cfg.FeedHandler.Commands)
	protected.DELETE("/feed/session/:id", cfg.FeedHandler.CloseSession)

	// SSE
	protected.GET("/sse/stream", cfg.SSEHandler.Stream)

	return router
}

func allowedOrigins() []string {
	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); raw != "" {
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return []string{
		"http://localhost:80",
		"http://localhost:3000",
		"http://localhost:5173",
	}
}
