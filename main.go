package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talk-n-share/internal/config"
	"talk-n-share/internal/database"
	"talk-n-share/internal/handlers"
	"talk-n-share/internal/livesync"
	"talk-n-share/internal/logger"
	"talk-n-share/internal/match"
	"talk-n-share/internal/middleware"
	"talk-n-share/internal/presence"
	"talk-n-share/internal/redis"
	"talk-n-share/internal/services"
	"talk-n-share/internal/storage"
	"talk-n-share/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const brokerBuffer = 64

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	appLog := logger.New(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Initialize(cfg.DatabaseURL, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("failed to connect to database")
	}

	redisClient, err := redis.Initialize(ctx, cfg.RedisURL, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	store := storage.NewService(db)

	broker := livesync.NewBroker(brokerBuffer, appLog)
	bridge := livesync.NewBridge(redisClient, broker, appLog)
	go bridge.Run(ctx)

	tracker := presence.NewTracker(redisClient, store, cfg.PresenceWindow, appLog)
	go tracker.Run(ctx, cfg.PresenceWindow, 24*time.Hour)

	attachments, err := services.NewAttachmentService(cfg)
	if err != nil {
		appLog.WithError(err).Fatal("failed to initialize attachment storage")
	}

	matchService := match.NewService(store, redisClient, bridge, appLog, match.Options{
		PoolSize:    cfg.MatchPoolSize,
		ClaimTTL:    cfg.MatchClaimTTL,
		AliasSecret: []byte(cfg.AliasSecret),
		Signer:      attachments,
		Presence:    tracker,
	})

	hub := websocket.NewHub(broker, matchService, tracker, cfg.AllowedOrigins, appLog)
	go hub.Run(ctx)

	router := setupRoutes(cfg, appLog, redisClient, store, tracker, matchService, hub)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("graceful shutdown failed")
	}
}

func setupRoutes(cfg *config.Config, appLog *logrus.Logger, redisClient *redis.Client, store *storage.Service,
	tracker *presence.Tracker, matchService *match.Service, hub *websocket.Hub) *gin.Engine {

	handlers.RegisterValidators()

	router := gin.New()
	router.Use(middleware.RequestLogger(appLog), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	userHandler := handlers.NewUserHandler(store, tracker, appLog)
	matchHandler := handlers.NewMatchHandler(matchService)
	messageHandler := handlers.NewMessageHandler(matchService)
	adminHandler := handlers.NewAdminHandler(store, matchService, appLog)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthRequired(cfg.JWTSecret))
	{
		users := v1.Group("/users")
		{
			users.GET("/profile", userHandler.GetProfile)
			users.PUT("/profile", userHandler.UpdateProfile)
			users.POST("/block/:user_id", userHandler.BlockUser)
			users.DELETE("/block/:user_id", userHandler.UnblockUser)
		}

		v1.GET("/notifications", userHandler.GetNotifications)
		v1.POST("/notifications/read", userHandler.MarkNotificationsRead)
		v1.POST("/presence/heartbeat", userHandler.Heartbeat)

		v1.POST("/matches/request",
			middleware.RateLimit(redisClient, "match_request", cfg.MatchRequestLimit, cfg.MatchRequestWindow, appLog),
			matchHandler.RequestMatch)

		sessions := v1.Group("/sessions")
		{
			sessions.POST("/direct", matchHandler.CreateDirect)
			sessions.GET("", matchHandler.ListSessions)
			sessions.GET("/:id", matchHandler.GetSession)
			sessions.POST("/:id/like", matchHandler.Like)
			sessions.POST("/:id/end", matchHandler.End)
			sessions.POST("/:id/report", matchHandler.Report)
			sessions.GET("/:id/messages", messageHandler.GetMessages)
			sessions.POST("/:id/messages", messageHandler.SendMessage)
		}

		v1.GET("/ws", hub.HandleWebSocket)

		admin := v1.Group("/admin")
		admin.Use(middleware.AdminRequired())
		{
			admin.GET("/analytics", adminHandler.GetAnalytics)
			admin.GET("/reports", adminHandler.GetReports)
			admin.PUT("/reports/:id/status", adminHandler.UpdateReportStatus)
			admin.PUT("/users/:id/status", adminHandler.UpdateUserStatus)
			admin.POST("/sessions/:id/end", adminHandler.EndSession)
		}
	}

	return router
}
