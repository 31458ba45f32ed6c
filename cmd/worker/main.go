// Package main runs the background message retention sweeper on its own, for
// deployments that keep it out of the server processes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tutorlive/backend/config"
	"github.com/tutorlive/backend/internal/messages"
	"github.com/tutorlive/backend/internal/worker"
	"github.com/tutorlive/backend/pkg/database"
	"github.com/tutorlive/backend/pkg/mongodb"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	var purger worker.Purger
	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, err := mongodb.NewClient(ctx, cfg.Mongo.URI, cfg.Mongo.Database, logger)
		if err != nil {
			logger.Fatal("mongo", zap.Error(err))
		}
		defer client.Close(context.Background())
		repo := messages.NewMongoRepository(client.DB)
		if err := repo.EnsureIndexes(ctx, cfg.Messages.Retention()); err != nil {
			logger.Fatal("ensure indexes", zap.Error(err))
		}
		purger = repo
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), 2, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		purger = messages.NewRepository(pool)
	default:
		logger.Fatal("worker needs a durable store", zap.String("driver", cfg.Store.Driver))
	}

	sweeper := worker.NewRetentionSweeper(purger, cfg.Messages.Retention(), cfg.Messages.SweepInterval(), logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		sweeper.Run(workerCtx)
		close(done)
	}()
	logger.Info("worker started", zap.Int("retention_days", cfg.Messages.RetentionDays))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn("sweeper did not stop in time")
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
