// cmd/server/main.go - civic issue reporting API server
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civic-reporter/internal/config"
	"civic-reporter/internal/database"
	"civic-reporter/internal/handlers"
	"civic-reporter/internal/logger"
	"civic-reporter/internal/middleware"
	"civic-reporter/internal/mq"
	"civic-reporter/internal/services"
	"civic-reporter/internal/websocket"
	"civic-reporter/pkg/auth"
	"civic-reporter/pkg/validator"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

var (
	appVersion = "1.0.0"
	buildTime  = "unknown"
	gitCommit  = "unknown"
)

func main() {
	cfg := config.Load()

	setupLogging(cfg)
	printStartupInfo(cfg)

	validator.Init()

	backend, err := database.Open(cfg)
	if err != nil {
		logger.WithError(err, "startup").Fatal("Failed to open storage")
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.WithError(err, "shutdown").Warn("Error closing storage")
		}
	}()

	redisClient, err := database.NewRedis(cfg)
	if err != nil {
		logger.WithError(err, "startup").Warn("Redis unavailable, report limits are per instance")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, time.Duration(cfg.JWTExpiration)*time.Hour)

	wsHub := websocket.NewHub()
	go wsHub.Run()
	defer wsHub.Stop()

	publishers := []services.Publisher{wsHub}
	if cfg.MQTTBroker != "" {
		client, err := mq.Connect(mq.Config{BrokerURL: cfg.MQTTBroker, ClientID: cfg.MQTTClientID})
		if err != nil {
			logger.WithError(err, "startup").Warn("MQTT unavailable, events will not be published to the broker")
		} else {
			defer mq.Disconnect(client)
			publishers = append(publishers, mq.NewPublisher(client, cfg.MQTTTopicPrefix))
		}
	}
	if cfg.WebhookURL != "" {
		publishers = append(publishers, services.NewWebhookPublisher(cfg.WebhookURL))
	}

	notifications := services.NewNotificationService(cfg.EventBufferSize, cfg.EventWorkers, publishers...)
	defer notifications.Stop()

	issueService := services.NewIssueService(backend.Issues, cfg, notifications)
	chatService := services.NewChatService(backend.Issues, backend.Messages, notifications)
	authService := services.NewAuthService(backend.Users, jwtManager)

	sweeper := services.NewAgingSweeper(issueService, cfg.AgingSweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := handlers.NewRouter(handlers.Router{
		Auth:           handlers.NewAuthHandler(authService),
		Issues:         handlers.NewIssueHandler(issueService),
		Chat:           handlers.NewChatHandler(chatService),
		Users:          handlers.NewUsersHandler(authService, issueService),
		Notifications:  handlers.NewNotificationHandler(issueService),
		Admin:          handlers.NewAdminHandler(issueService),
		WebSocket:      handlers.NewWebSocketHandler(wsHub, jwtManager, cfg.AllowedOrigins),
		Health:         handlers.NewHealthHandler(appVersion, wsHub.ClientCount, readinessChecks(backend, redisClient)),
		JWTManager:     jwtManager,
		AllowedOrigins: cfg.AllowedOrigins,
		ReportLimiter:  reportLimiter(ctx, cfg, redisClient),
	})

	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("Server listening", map[string]interface{}{
			"address":   srv.Addr,
			"websocket": fmt.Sprintf("ws://%s/ws", srv.Addr),
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err, "server").Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err, "shutdown").Warn("Server forced to shutdown")
	} else {
		logger.Info("Server gracefully stopped", nil)
	}
}

func setupLogging(cfg *config.Config) {
	logger.Initialize(cfg.LogLevel, cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
}

func printStartupInfo(cfg *config.Config) {
	logger.Info("Civic reporter API starting", map[string]interface{}{
		"version":       appVersion,
		"build_time":    buildTime,
		"commit":        gitCommit,
		"environment":   cfg.Env,
		"store":         cfg.StoreDriver,
		"database":      cfg.DatabaseName,
		"cors_origins":  cfg.AllowedOrigins,
		"cluster_m":     cfg.Clustering.RadiusMeters,
		"strict_flow":   cfg.WorkflowStrict,
		"aging_days":    cfg.Priority.AgingDays,
		"report_limit":  cfg.ReportRateLimit,
		"mqtt_enabled":  cfg.MQTTBroker != "",
		"webhook_setup": cfg.WebhookURL != "",
	})
}

// reportLimiter shares the report quota across instances through Redis when it is configured.
func reportLimiter(ctx context.Context, cfg *config.Config, client *redis.Client) gin.HandlerFunc {
	if client != nil {
		return middleware.NewRedisRateLimiter(client, "report_limit", cfg.ReportRateLimit, cfg.ReportRateTTL).RateLimit()
	}
	limiter := middleware.NewRateLimiter(cfg.ReportRateLimit, cfg.ReportRateTTL)
	limiter.StartCleanup(ctx, 5*time.Minute)
	return limiter.RateLimit()
}

func readinessChecks(backend *database.Backend, client *redis.Client) map[string]handlers.Pinger {
	checks := map[string]handlers.Pinger{}
	if backend.Mongo != nil {
		checks["mongodb"] = backend.Mongo
	}
	if client != nil {
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	return checks
}
