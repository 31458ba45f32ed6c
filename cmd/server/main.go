// Package main runs the tutor live presence server: HTTP API, WebSocket hub
// and graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tutorlive/backend/config"
	"github.com/tutorlive/backend/internal/auth"
	"github.com/tutorlive/backend/internal/memstore"
	"github.com/tutorlive/backend/internal/messages"
	"github.com/tutorlive/backend/internal/messaging"
	"github.com/tutorlive/backend/internal/middleware"
	"github.com/tutorlive/backend/internal/presence"
	"github.com/tutorlive/backend/internal/realtime"
	"github.com/tutorlive/backend/internal/signaling"
	"github.com/tutorlive/backend/internal/tutors"
	"github.com/tutorlive/backend/internal/worker"
	"github.com/tutorlive/backend/pkg/database"
	"github.com/tutorlive/backend/pkg/mongodb"
	"github.com/tutorlive/backend/pkg/redis"
	"github.com/tutorlive/backend/pkg/response"
	"github.com/tutorlive/backend/pkg/storage"
)

// messageStore is what the server needs from the message records: the
// messaging store plus retention purging.
type messageStore interface {
	messaging.Store
	worker.Purger
}

type stores struct {
	tutors   presence.TutorStore
	messages messageStore
	close    func()
}

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer st.close()

	// Cross-instance fan-out is optional; the hub delivers locally without it.
	var (
		redisPub realtime.RedisPublisher
		redisSub realtime.RedisSubscriber
	)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		ps := realtime.NewRedisPubSub(rdb.Client, logger)
		redisPub, redisSub = ps, ps
	} else {
		logger.Info("REDIS_ADDR not set; room fan-out is local to this instance")
	}

	hub := realtime.NewHub(logger, redisPub, redisSub)
	hub.SetHandlerTimeout(time.Duration(cfg.Realtime.HandlerTimeoutSec) * time.Second)

	table := presence.NewTable()
	presenceSvc := presence.NewService(table, st.tutors, logger)
	if cfg.AWS.ImagesBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ImagesBucket:         cfg.AWS.ImagesBucket,
			ImagesPrefix:         cfg.AWS.ImagesPrefix,
			PublicImages:         cfg.AWS.PublicImages,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled; tutor images served as stored", zap.Error(err))
		} else {
			presenceSvc.SetImageResolver(s3Client)
		}
	}
	if err := presenceSvc.Restore(ctx); err != nil {
		logger.Error("restore live sessions", zap.Error(err))
	}

	signalRouter := signaling.NewRouter(table, logger)
	messagingSvc := messaging.NewService(st.messages, logger)

	services := realtime.Services{
		Presence:  presenceSvc,
		Signaling: signalRouter,
		Messaging: messagingSvc,
	}
	hub.SetHandlers(realtime.DispatchTable(services))
	hub.SetRejectHandler(realtime.RejectReplies(services))
	hub.SetDisconnectHandler(presenceSvc.Disconnect)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID, claims.Role, nil
	}

	presenceHandler := presence.NewHandler(presenceSvc, hub, logger)
	messagingHandler := messaging.NewHandler(messagingSvc, hub, logger)
	iceServers := realtime.ICEServers(cfg.WebRTC.ICEUrls, cfg.WebRTC.TURNUsername, cfg.WebRTC.TURNCredential)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/live-tutors", presenceHandler.ListLive)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.POST("/start-live", middleware.RequireRole(auth.RoleTutor), presenceHandler.StartLive)
		api.POST("/stop-live", middleware.RequireRole(auth.RoleTutor), presenceHandler.StopLive)
		api.GET("/tutors/:id/viewers", presenceHandler.Viewers)

		api.GET("/messages/unseen", messagingHandler.Unseen)
		api.GET("/messages/inbox", messagingHandler.Inbox)
		api.GET("/messages/:contactId", messagingHandler.Conversation)

		api.GET("/webrtc/ice-servers", realtime.ICEServersHandler(iceServers))
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate, realtime.ClientOptions{
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		SendBuffer:     cfg.Realtime.SendBuffer,
	}))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (message retention)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	sweeper := worker.NewRetentionSweeper(st.messages, cfg.Messages.Retention(), cfg.Messages.SweepInterval(), logger)
	go sweeper.Run(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, err := mongodb.NewClient(ctx, cfg.Mongo.URI, cfg.Mongo.Database, logger)
		if err != nil {
			return nil, err
		}
		msgRepo := messages.NewMongoRepository(client.DB)
		if err := msgRepo.EnsureIndexes(ctx, cfg.Messages.Retention()); err != nil {
			_ = client.Close(context.Background())
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return &stores{
			tutors:   tutors.NewMongoRepository(client.DB),
			messages: msgRepo,
			close:    func() { _ = client.Close(context.Background()) },
		}, nil
	case config.DriverMemory:
		logger.Warn("using in-memory store; records are lost on restart")
		return &stores{
			tutors:   memstore.NewTutors(),
			messages: memstore.NewMessages(),
			close:    func() {},
		}, nil
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &stores{
			tutors:   tutors.NewRepository(pool),
			messages: messages.NewRepository(pool),
			close:    pool.Close,
		}, nil
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
