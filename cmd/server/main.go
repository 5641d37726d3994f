// Package main runs the conferencing SFU backend: HTTP/WebSocket server,
// SFU worker pool, reminder scheduler, and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gridmeet/sfu-backend/config"
	"github.com/gridmeet/sfu-backend/internal/admission"
	"github.com/gridmeet/sfu-backend/internal/analytics"
	"github.com/gridmeet/sfu-backend/internal/auth"
	"github.com/gridmeet/sfu-backend/internal/breakout"
	"github.com/gridmeet/sfu-backend/internal/chat"
	"github.com/gridmeet/sfu-backend/internal/invitation"
	"github.com/gridmeet/sfu-backend/internal/middleware"
	"github.com/gridmeet/sfu-backend/internal/question"
	"github.com/gridmeet/sfu-backend/internal/ratelimit"
	"github.com/gridmeet/sfu-backend/internal/room"
	"github.com/gridmeet/sfu-backend/internal/scheduler"
	"github.com/gridmeet/sfu-backend/internal/sessionlog"
	"github.com/gridmeet/sfu-backend/internal/sfu"
	"github.com/gridmeet/sfu-backend/internal/signaling"
	"github.com/gridmeet/sfu-backend/internal/transcript"
	"github.com/gridmeet/sfu-backend/internal/turncred"
	"github.com/gridmeet/sfu-backend/pkg/database"
	"github.com/gridmeet/sfu-backend/pkg/mailer"
	"github.com/gridmeet/sfu-backend/pkg/queue"
	redispkg "github.com/gridmeet/sfu-backend/pkg/redis"
	"github.com/gridmeet/sfu-backend/pkg/storage"
)

var startedAt = time.Now()

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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redispkg.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	redisPubSub := signaling.NewRedisPubSub(rdb.Client, logger)
	hub := signaling.NewHub(logger, redisPubSub, redisPubSub)

	iceServers := []webrtc.ICEServer{{URLs: []string{cfg.TURN.STUNURL}}}
	sfuCfg := sfu.Config{
		ListenIP:    cfg.WebRTC.ListenIP,
		AnnouncedIP: cfg.WebRTC.AnnouncedIP,
		MinPort:     cfg.WebRTC.MinPort,
		MaxPort:     cfg.WebRTC.MaxPort,
		ICEServers:  iceServers,
	}
	numWorkers := sfu.NumWorkers(cfg.Server.NumWorkers)
	adapter, err := sfu.NewAdapter(sfuCfg, numWorkers, logger)
	if err != nil {
		logger.Fatal("sfu adapter", zap.Error(err))
	}
	logger.Info("sfu workers started", zap.Int("count", numWorkers))

	rooms := room.NewRegistry(adapter, logger)

	verifier := auth.NewVerifier(cfg.Auth.Secret)
	admissionRepo := admission.NewRepository(pool)
	admissionSM := admission.New(admissionRepo)
	breakoutRepo := breakout.NewRepository(pool)
	breakoutCo := breakout.New(breakoutRepo, admissionSM, logger)
	chatRepo := chat.NewRepository(pool)
	questionRepo := question.NewRepository(pool)
	invitationRepo := invitation.NewRepository(pool)
	limiter := ratelimit.New()

	sessionLogRepo := sessionlog.NewRepository(pool)
	analyticsRepo := analytics.NewRepository(pool)

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
	exporter := transcript.NewExporter(chatRepo, questionRepo, s3Client)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	mail := mailer.New(mailer.Config{
		Host: cfg.Email.SMTPHost, Port: cfg.Email.SMTPPort,
		User: cfg.Email.SMTPUser, Pass: cfg.Email.SMTPPass,
		FromAddress: cfg.Email.FromAddress, FromName: cfg.Email.FromName,
	})

	engine := signaling.NewEngine(logger, hub, rooms, limiter, verifier,
		admissionSM, admissionRepo, breakoutCo, chatRepo, questionRepo, invitationRepo, mail,
		sessionLogRepo, analyticsRepo, jobQueue)

	schedRepo := scheduler.NewRepository(pool)
	sched := scheduler.New(logger, schedRepo, mail, hub, rdb.Client)
	schedCtx, schedCancel := context.WithCancel(context.Background())
	go sched.Run(schedCtx)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(strings.Join(cfg.Server.CORSOrigins, ",")))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"roomCount":   rooms.Count(),
			"workerCount": adapter.WorkerCount(),
			"uptime":      time.Since(startedAt).String(),
		})
	})

	router.GET("/turn-credentials", func(c *gin.Context) {
		label := c.Query("label")
		if label == "" {
			label = "meetuser"
		}
		creds := turncred.Mint(cfg.TURN.Secret, label, cfg.TURN.ServerURL, cfg.TURN.STUNURL, time.Now())
		c.JSON(http.StatusOK, creds)
	})

	router.GET("/ws", engine.ServeWS())

	attendeesHandler := sessionlog.NewHandler(sessionLogRepo)
	analyticsHandler := analytics.NewHandler(analyticsRepo, sessionLogRepo)
	transcriptHandler := transcript.NewHandler(exporter)
	meetings := router.Group("/meetings", middleware.Auth(verifier))
	meetings.GET("/:id/attendees", attendeesHandler.GetAttendees)
	meetings.GET("/:id/analytics", analyticsHandler.GetByMeeting)
	meetings.GET("/:id/transcript-url", transcriptHandler.GetDownloadURL)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	schedCancel()
	rooms.CloseAll()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
