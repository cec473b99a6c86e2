package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"marketplace-chat/internal/auth"
	"marketplace-chat/internal/config"
	"marketplace-chat/internal/db"
	"marketplace-chat/internal/handlers"
	"marketplace-chat/internal/middleware"
	"marketplace-chat/internal/models"
	"marketplace-chat/internal/observability"
	"marketplace-chat/internal/presence"
	"marketplace-chat/internal/rabbitmq"
	"marketplace-chat/internal/repositories"
	"marketplace-chat/internal/telemetry"
	"marketplace-chat/internal/uploads"
	"marketplace-chat/internal/ws"
)

func main() {
	cfg := config.Load()

	shutdownTracing, err := observability.InitTracing(context.Background(), "marketplace-chat", cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	audit := telemetry.NewAuditEmitter(publisher, observability.RoutingKeyAuditLogs, "marketplace-chat", cfg.Environment)

	threadRepo := repositories.NewThreadRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	uploadStore, err := uploads.NewDiskStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to init upload store: %v", err)
	}

	hub := ws.NewHub()
	registry := presence.NewRegistry(func(userID int, online bool) {
		hub.BroadcastAll(models.EventPresence, models.PresenceUpdate{UserID: userID, Online: online})
		observability.IncPresenceTransition(online)
		_ = observability.PublishEvent(context.Background(), observability.RoutingKeyPresenceEvents, observability.EventEnvelope{
			EventType: "presence_events",
			EventName: "presence_update",
			Payload:   observability.PresenceEventPayload{UserID: userID, Online: online},
		})
	})
	go func() {
		for range time.Tick(15 * time.Second) {
			observability.SetOnlineUsers(registry.OnlineCount())
		}
	}()

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	chatHandler := handlers.NewChatHandler(threadRepo, messageRepo, userRepo, uploadStore, hub, registry, audit)
	wsHandler := ws.NewHandler(hub, registry, threadRepo, verifier, cfg.AllowOrigin)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("marketplace-chat"))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.ClientOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/api/chats", authMiddleware, chatHandler.ListThreads)
	router.POST("/api/chats/start", authMiddleware, chatHandler.StartThread)
	router.GET("/api/chats/:chat_id/messages", authMiddleware, chatHandler.GetThreadMessages)
	router.POST("/api/chats/:chat_id/messages", authMiddleware, chatHandler.PostMessage)
	router.POST("/api/chats/:chat_id/read", authMiddleware, chatHandler.MarkRead)
	router.POST("/api/chats/:chat_id/mute", authMiddleware, chatHandler.SetMuted)
	router.POST("/api/chats/:chat_id/archive", authMiddleware, chatHandler.SetArchived)
	router.POST("/api/chats/:chat_id/block", authMiddleware, chatHandler.SetBlocked)
	router.PATCH("/api/messages/:message_id", authMiddleware, chatHandler.EditMessage)
	router.DELETE("/api/messages/:message_id", authMiddleware, chatHandler.DeleteMessage)
	router.GET("/api/users/:user_id/public", authMiddleware, chatHandler.GetPublicProfile)

	router.GET("/ws", wsHandler.Handle)
	router.Static("/uploads", uploadStore.Dir())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
