package main

import (
	"context"
	"errors"
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

	_ "github.com/slotswapper/slotswapper-api/api/swagger"
	"github.com/slotswapper/slotswapper-api/internal/handler"
	"github.com/slotswapper/slotswapper-api/internal/middleware"
	"github.com/slotswapper/slotswapper-api/internal/repository"
	"github.com/slotswapper/slotswapper-api/internal/service"
	"github.com/slotswapper/slotswapper-api/pkg/cache"
	"github.com/slotswapper/slotswapper-api/pkg/config"
	"github.com/slotswapper/slotswapper-api/pkg/database"
	"github.com/slotswapper/slotswapper-api/pkg/jobs"
	"github.com/slotswapper/slotswapper-api/pkg/logger"
	corsmiddleware "github.com/slotswapper/slotswapper-api/pkg/middleware/cors"
	reqidmiddleware "github.com/slotswapper/slotswapper-api/pkg/middleware/requestid"
)

// @title SlotSwapper API
// @version 1.0.0
// @description Peer-to-peer calendar slot swapping marketplace
// @BasePath /api
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, true)
		defer cacheRepo.Close()
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Cache.TTL, logr, false)
	}

	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	swapRepo := repository.NewSwapRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "slotswapper-api",
	})

	notificationSvc := service.NewNotificationService(notificationRepo, logr, metricsSvc, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	eventSvc := service.NewEventService(eventRepo, cacheSvc, validate, logr)
	swapSvc := service.NewSwapService(swapRepo, eventRepo, userRepo, notificationSvc, cacheSvc, metricsSvc, validate, logr)
	exportSvc := service.NewExportService(swapSvc, cfg.Exports.Enabled)

	authHandler := handler.NewAuthHandler(authSvc)
	eventHandler := handler.NewEventHandler(eventSvc)
	swapHandler := handler.NewSwapHandler(swapSvc, eventSvc, exportSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	events := api.Group("/events", middleware.JWT(authSvc))
	{
		events.GET("", eventHandler.List)
		events.POST("", eventHandler.Create)
		events.PUT("/:id", eventHandler.Update)
		events.DELETE("/:id", eventHandler.Delete)
	}

	swaps := api.Group("/swaps", middleware.JWT(authSvc))
	{
		swaps.GET("/swappable-slots", swapHandler.SwappableSlots)
		swaps.POST("/requests", swapHandler.Create)
		swaps.POST("/requests/:id/response", swapHandler.Respond)
		swaps.DELETE("/requests/:id", swapHandler.Cancel)
		swaps.GET("/history", swapHandler.History)
		swaps.GET("/history/export", swapHandler.ExportHistory)
		swaps.GET("/my-requests", swapHandler.MyRequests)
	}

	notifications := api.Group("/notifications", middleware.JWT(authSvc))
	{
		notifications.GET("", notificationHandler.List)
		notifications.PATCH("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
