package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/aba-scheduler-api/api/swagger"
	"github.com/noah-isme/aba-scheduler-api/internal/handler"
	"github.com/noah-isme/aba-scheduler-api/internal/middleware"
	"github.com/noah-isme/aba-scheduler-api/internal/models"
	"github.com/noah-isme/aba-scheduler-api/internal/repository"
	"github.com/noah-isme/aba-scheduler-api/internal/service"
	rediscache "github.com/noah-isme/aba-scheduler-api/pkg/cache"
	"github.com/noah-isme/aba-scheduler-api/pkg/config"
	"github.com/noah-isme/aba-scheduler-api/pkg/database"
	"github.com/noah-isme/aba-scheduler-api/pkg/logger"
	"github.com/noah-isme/aba-scheduler-api/pkg/memocache"
	corsmiddleware "github.com/noah-isme/aba-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/aba-scheduler-api/pkg/middleware/requestid"
)

// @title ABA Scheduler API
// @version 0.1.0
// @description Auto-scheduling engine for ABA therapy sessions
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, result cache disabled", "error", err)
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()

	rosterRepo := repository.NewRosterRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.DefaultTTL, logr, cfg.Cache.Enabled && redisClient != nil)

	scoreCache := memocache.New[service.PairKey, models.CompatibilityScore]()
	compatSvc := service.NewCompatibilityService(scoreCache, cfg.Scheduler.ScoreTTL, logr)

	schedulerSvc := service.NewSchedulerService(
		rosterRepo,
		sessionRepo,
		db,
		cacheSvc,
		compatSvc,
		metricsSvc,
		validator.New(),
		logr,
		service.SchedulerServiceConfig{
			GridResolutionMinutes: cfg.Scheduler.GridResolutionMinutes,
			SessionMinutes:        cfg.Scheduler.SessionMinutes,
			ProposalTTL:           cfg.Scheduler.ProposalTTL,
			SweepInterval:         cfg.Scheduler.SweepInterval,
			ResultCacheTTL:        cfg.Cache.DefaultTTL,
			Limits: service.ConstraintLimits{
				MinBreakMinutes:        cfg.Scheduler.MinBreakMinutes,
				MaxConsecutiveSessions: cfg.Scheduler.MaxConsecutiveSessions,
				MaxDailyHours:          cfg.Scheduler.MaxDailyHours,
				MaxWeeklyHours:         cfg.Scheduler.MaxWeeklyHours,
			},
			Workers:     cfg.Scheduler.Workers,
			QueueBuffer: cfg.Scheduler.QueueBuffer,
		},
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schedulerSvc.Start(rootCtx)
	defer schedulerSvc.Stop()

	scheduleHandler := handler.NewScheduleHandler(schedulerSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	if cfg.Auth.Enabled {
		api.Use(middleware.JWT(cfg.Auth.Secret))
	}
	api.POST("/schedule/generate", scheduleHandler.Generate)
	api.GET("/schedule/proposals/:id", scheduleHandler.GetProposal)
	api.POST("/schedule/proposals/:id/commit", scheduleHandler.Commit)
	api.GET("/schedule/cache/stats", scheduleHandler.CacheStats)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
