package devserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-player/internal/config"
	"github.com/stemsi/exstem-player/internal/middleware"
	"github.com/stemsi/exstem-player/internal/response"
)

// SetupRouter configures the dev stub's route groups.
func SetupRouter(h *Handler, cfg *config.Config) *gin.Engine {
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
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 1. Dev Group (No Auth) ────────────────────────────────────────
	devAPI := router.Group("/api/v1/dev")
	{
		devAPI.POST("/sessions", h.CreateSession)
	}

	// ─── 2. Player Group (Session Token) ───────────────────────────────
	playerAPI := router.Group("/api/v1/player")
	playerAPI.Use(middleware.RequireSessionToken(cfg.JWTSecret))
	{
		playerAPI.GET("/sessions/:session_id/state", h.GetState)
		playerAPI.GET("/sessions/:session_id/questions/:index", h.GetQuestion)
		playerAPI.GET("/sessions/:session_id/questions", h.GetQuestionBatch)
		playerAPI.POST("/sessions/:session_id/answers", h.SubmitAnswer)
		playerAPI.POST("/sessions/:session_id/submit", h.SubmitSession)
	}

	// ─── 3. WebSocket Group (Session Token via Query) ──────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireSessionToken(cfg.JWTSecret))
	{
		ws.GET("/player/sessions/:session_id/telemetry", h.TelemetryStream)
	}

	return router
}
