package handlers

import (
	"net/http"
	"time"

	"civic-reporter/internal/middleware"
	"civic-reporter/internal/models"
	"civic-reporter/pkg/auth"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Router collects the handlers and middleware mounted by NewRouter.
type Router struct {
	Auth          *AuthHandler
	Issues        *IssueHandler
	Chat          *ChatHandler
	Users         *UsersHandler
	Notifications *NotificationHandler
	Admin         *AdminHandler
	WebSocket     *WebSocketHandler
	Health        *HealthHandler

	JWTManager     *auth.JWTManager
	AllowedOrigins []string
	// ReportLimiter guards issue submission; nil disables it.
	ReportLimiter gin.HandlerFunc
}

func NewRouter(r Router) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(cors.New(corsConfig(r.AllowedOrigins)))

	if r.WebSocket != nil {
		router.GET("/ws", r.WebSocket.HandleWebSocket)
	}
	if r.Health != nil {
		router.GET("/health", r.Health.Health)
		router.GET("/ready", r.Health.Ready)
	}

	requireAuth := middleware.AuthMiddleware(r.JWTManager)
	reportLimiter := r.ReportLimiter
	if reportLimiter == nil {
		reportLimiter = func(c *gin.Context) { c.Next() }
	}

	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		authGroup.POST("/register", r.Auth.Register)
		authGroup.POST("/login", r.Auth.Login)
		authGroup.GET("/me", requireAuth, r.Auth.Me)

		issues := v1.Group("/issues")
		issues.GET("", r.Issues.ListIssues)
		issues.GET("/:id", r.Issues.GetIssue)
		issues.POST("", requireAuth, reportLimiter, r.Issues.ReportIssue)
		issues.POST("/:id/vote", requireAuth, r.Issues.ToggleVote)
		issues.GET("/:id/messages", r.Chat.ListMessages)
		issues.POST("/:id/messages", requireAuth, r.Chat.PostMessage)
		issues.PUT("/:id/notifications/read", requireAuth, r.Notifications.MarkAllAsRead)

		v1.GET("/users/me/issues", requireAuth, r.Users.GetMyIssues)

		admin := v1.Group("/admin")
		admin.Use(requireAuth, middleware.RequireOfficial())
		admin.PUT("/issues/:id/status", r.Admin.UpdateStatus)
		admin.PUT("/issues/:id/assign", r.Admin.Assign)
		admin.PUT("/issues/:id/priority", r.Admin.SetPriority)
		admin.POST("/issues/:id/reprioritize", r.Admin.Reprioritize)
		admin.GET("/stats", r.Admin.Stats)
		admin.POST("/users", middleware.RequireAnyRole(models.RoleAdmin), r.Users.CreateUser)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Endpoint not found",
			"path":  c.Request.URL.Path,
		})
	})

	return router
}

// corsConfig allows every origin when none are configured.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			origins = nil
			break
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
