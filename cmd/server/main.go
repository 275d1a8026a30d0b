// Package main runs the video API server: record CRUD, search, live status streams and push event
// webhooks.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vidshare/backend/config"
	"github.com/vidshare/backend/internal/app"
	"github.com/vidshare/backend/internal/events"
	"github.com/vidshare/backend/internal/metrics"
	"github.com/vidshare/backend/internal/middleware"
	"github.com/vidshare/backend/internal/notify"
	"github.com/vidshare/backend/internal/realtime"
	"github.com/vidshare/backend/internal/videos"
	"github.com/vidshare/backend/pkg/database"
	"github.com/vidshare/backend/pkg/response"
)

func main() {
	logger := app.NewLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	if err := database.Migrate(ctx, a.Pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	var searcher videos.Searcher
	if a.Search != nil {
		searcher = a.Search
		if err := a.Search.EnsureIndex(ctx); err != nil {
			logger.Warn("search index not ready", zap.Error(err))
		}
	}
	videoHandler := videos.NewHandler(a.Videos, a.Ingest, searcher, cfg.Server.UploadURLTTL, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		if err := a.Pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	videoHandler.Register(&router.RouterGroup)

	// Live status over WebSocket, fed by the Redis status channel.
	streamCtx, stopStreams := context.WithCancel(ctx)
	defer stopStreams()
	if a.Redis != nil {
		ch, err := notify.Subscribe(streamCtx, a.Redis, cfg.Redis.Channel, logger)
		if err != nil {
			logger.Warn("status stream disabled", zap.Error(err))
		} else {
			hub := realtime.NewHub(logger)
			go hub.Run(streamCtx, ch)
			router.GET("/video/status", realtime.ServeWs(hub, a.Videos, logger))
		}
	}

	// Push delivery of pipeline events. Needs the transcoder settings of the worker.
	if uploads, err := a.UploadReconciler(); err != nil {
		logger.Warn("event webhooks disabled", zap.Error(err))
	} else {
		events.NewWebhookHandler(uploads, a.StatusReconciler(), logger).Register(router.Group("/events"))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	stopStreams()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
