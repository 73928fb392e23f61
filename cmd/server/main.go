// Package main runs the classroom lesson HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumina-classroom/backend/config"
	"github.com/lumina-classroom/backend/internal/answers"
	"github.com/lumina-classroom/backend/internal/attendance"
	"github.com/lumina-classroom/backend/internal/auth"
	"github.com/lumina-classroom/backend/internal/lessons"
	"github.com/lumina-classroom/backend/internal/middleware"
	"github.com/lumina-classroom/backend/internal/models"
	"github.com/lumina-classroom/backend/internal/questions"
	"github.com/lumina-classroom/backend/internal/realtime"
	"github.com/lumina-classroom/backend/internal/reports"
	"github.com/lumina-classroom/backend/internal/session"
	"github.com/lumina-classroom/backend/internal/slides"
	"github.com/lumina-classroom/backend/internal/worker"
	"github.com/lumina-classroom/backend/pkg/database"
	"github.com/lumina-classroom/backend/pkg/queue"
	"github.com/lumina-classroom/backend/pkg/redis"
	"github.com/lumina-classroom/backend/pkg/response"
	"github.com/lumina-classroom/backend/pkg/storage"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AssetsBucket:         cfg.AWS.AssetsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Lessons
	lessonRepo := lessons.NewRepository(pool)
	lessonHandler := lessons.NewHandler(lessonRepo)

	// Slides
	slideRepo := slides.NewRepository(pool)
	slideService := slides.NewService(slideRepo, s3Client, logger)
	slideHandler := slides.NewHandler(slideService, s3Client)

	// Attendance
	attendanceRepo := attendance.NewRepository(pool)
	var photoResolver attendance.PhotoResolver
	if s3Client != nil {
		photoResolver = s3Client
	}
	attendanceScanner := attendance.NewScanner(cfg.Services.AttendanceScanURL, photoResolver, logger)
	attendanceHandler := attendance.NewHandler(attendanceRepo, s3Client, logger)

	// Questions and answers
	questionRepo := questions.NewRepository(pool)
	questionHandler := questions.NewHandler(questionRepo)
	answerService := answers.NewService(cfg.Services.AnswerServiceURL, logger)

	// Reports
	reportRepo := reports.NewRepository(pool)
	reportHandler := reports.NewHandler(reportRepo)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	reportProcessor := worker.NewReportProcessor(jobQueue, attendanceRepo, questionRepo, slideRepo, reportRepo, logger)

	// Live sessions
	registry := session.NewRegistry(session.Deps{
		Scanner:       attendanceScanner,
		Attendance:    attendanceRepo,
		Slides:        slideService,
		Answers:       answerService,
		Lessons:       lessonRepo,
		Questions:     questionRepo,
		Reports:       jobQueue,
		Broadcast:     hub,
		Logger:        logger,
		ScanTimeout:   time.Duration(cfg.Session.ScanTimeoutSec) * time.Second,
		AnswerTimeout: time.Duration(cfg.Session.AnswerTimeoutSec) * time.Second,
		SlideTimeout:  time.Duration(cfg.Session.SlideTimeoutSec) * time.Second,
		Linger:        time.Duration(cfg.Session.LingerSec) * time.Second,
	}, logger)
	dispatcher := session.NewDispatcher(registry, logger)
	sessionHandler := session.NewHandler(registry, lessonRepo, logger)

	hub.SetSnapshotProvider(func(lessonID uuid.UUID) (interface{}, bool) {
		snapCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		snap, ok := registry.Snapshot(snapCtx, lessonID)
		if !ok {
			return nil, false
		}
		return snap, true
	})

	jwtValidate := func(token string) (uuid.UUID, models.Role, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, "", err
		}
		return claims.UserID, claims.Role, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Lessons
		api.GET("/lessons", lessonHandler.List)
		api.POST("/lessons", middleware.RequireRole("admin", "teacher"), lessonHandler.Create)
		api.GET("/lessons/:id", lessonHandler.GetByID)
		api.PATCH("/lessons/:id", middleware.RequireRole("admin", "teacher"), lessonHandler.Update)
		api.DELETE("/lessons/:id", middleware.RequireRole("admin"), lessonHandler.Delete)
		api.GET("/lessons/:id/audience_count", lessonHandler.AudienceCount(hub))

		// Slides
		api.GET("/lessons/:id/slides", slideHandler.List)
		api.GET("/lessons/:id/slides/:position", slideHandler.Get)
		api.POST("/lessons/:id/slides", middleware.RequireRole("admin", "teacher"), slideHandler.Create)
		api.POST("/lessons/:id/slides/assets", middleware.RequireRole("admin", "teacher"), slideHandler.UploadAsset)

		// Live session control (manual start/end plus inspection)
		api.POST("/lessons/:id/session/start", middleware.RequireRole("admin", "teacher"), sessionHandler.Start)
		api.GET("/lessons/:id/session", sessionHandler.Get)
		api.POST("/lessons/:id/session/end", middleware.RequireRole("admin", "teacher"), sessionHandler.End)

		// Attendance, questions, reports
		api.GET("/lessons/:id/attendance", middleware.RequireRole("admin", "teacher"), attendanceHandler.List)
		api.GET("/lessons/:id/questions", middleware.RequireRole("admin", "teacher"), questionHandler.List)
		api.GET("/lessons/:id/report", middleware.RequireRole("admin", "teacher"), reportHandler.Get)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate, dispatcher))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background loops: lesson auto-start scheduler and report worker.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	if cfg.Scheduler.Enabled {
		scheduler := session.NewScheduler(lessonRepo, registry,
			time.Duration(cfg.Scheduler.PollIntervalSec)*time.Second, logger)
		go scheduler.Run(bgCtx)
	}
	go reportProcessor.Run(bgCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	bgCancel()
	registry.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
