// Package main runs the standalone transcript export worker: it drains
// the durable job queue cmd/server enqueues on end-meeting and retries
// failed S3 uploads independently of any signaling connection.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gridmeet/sfu-backend/config"
	"github.com/gridmeet/sfu-backend/internal/chat"
	"github.com/gridmeet/sfu-backend/internal/question"
	"github.com/gridmeet/sfu-backend/internal/transcript"
	"github.com/gridmeet/sfu-backend/internal/worker"
	"github.com/gridmeet/sfu-backend/pkg/database"
	"github.com/gridmeet/sfu-backend/pkg/queue"
	"github.com/gridmeet/sfu-backend/pkg/redis"
	"github.com/gridmeet/sfu-backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Cfg := storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		TranscriptsBucket:    cfg.AWS.TranscriptsBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}
	s3Client, err := storage.NewS3(ctx, s3Cfg, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	chatRepo := chat.NewRepository(pool)
	questionRepo := question.NewRepository(pool)
	exporter := transcript.NewExporter(chatRepo, questionRepo, s3Client)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewTranscriptProcessor(exporter, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
