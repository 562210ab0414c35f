package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth    *handler.AuthHandler
	Test    *handler.TestHandler
	Session *handler.SessionHandler
	History *handler.HistoryHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	loginLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
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
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	authAPI := router.Group("/api/v1/auth")
	{
		login := []gin.HandlerFunc{handlers.Auth.StudentLogin}
		if loginLimiter != nil {
			login = append([]gin.HandlerFunc{loginLimiter.Middleware()}, login...)
		}
		authAPI.POST("/student/login", login...)

		authAPI.POST("/student/logout",
			middleware.RequireStudentJWT(authService),
			handlers.Auth.StudentLogout,
		)
		authAPI.GET("/student/me",
			middleware.RequireStudentJWT(authService),
			middleware.CheckSingleDeviceSession(authService),
			handlers.Auth.GetStudentProfile,
		)
	}

	// ─── 1. Student Group (Student JWT + single device) ────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(authService))
	studentAPI.Use(middleware.CheckSingleDeviceSession(authService))
	{
		// Catalogue
		studentAPI.GET("/tests", middleware.NoStore(), handlers.Test.ListTests)
		studentAPI.GET("/tests/:test_id", middleware.CacheControl(60), handlers.Test.GetTest)
		studentAPI.POST("/tests/:test_id/session", handlers.Session.BeginSession)
		studentAPI.GET("/tests/:test_id/completion", handlers.History.GetCompletion)

		// Session
		sessionAPI := studentAPI.Group("/session")
		sessionAPI.Use(middleware.NoStore())
		{
			sessionAPI.GET("", handlers.Session.GetSession)
			sessionAPI.POST("/select", handlers.Session.SelectChoice)
			sessionAPI.POST("/advance", handlers.Session.Advance)
			sessionAPI.POST("/retreat", handlers.Session.Retreat)
			sessionAPI.POST("/reload", handlers.Session.Reload)
			sessionAPI.POST("/submit", handlers.Session.Submit)
			sessionAPI.POST("/leave", handlers.Session.Leave)
			sessionAPI.POST("/leave/confirm", handlers.Session.ConfirmLeave)
			sessionAPI.POST("/leave/cancel", handlers.Session.CancelLeave)
		}

		// History
		studentAPI.GET("/results", middleware.NoStore(), handlers.History.ListResults)
		studentAPI.GET("/attempts", middleware.NoStore(), handlers.History.ListAttempts)
	}

	// ─── 2. WebSocket Group (token via query param) ────────────────────
	wsAPI := router.Group("/ws/v1")
	{
		wsAPI.GET("/student/session/stream",
			middleware.RequireStudentWSAuth(authService),
			middleware.CheckSingleDeviceSession(authService),
			handlers.WS.SessionStream,
		)
	}

	return router
}
