// Package main runs the pipeline worker: one SQS consumer for upload notifications and one for
// transcoder job state changes.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vidshare/backend/config"
	"github.com/vidshare/backend/internal/app"
	"github.com/vidshare/backend/internal/events"
	"github.com/vidshare/backend/internal/metrics"
)

func main() {
	logger := app.NewLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Events.UploadQueueURL == "" && cfg.Events.StatusQueueURL == "" {
		logger.Fatal("no queues configured: set UPLOAD_QUEUE_URL and/or STATUS_QUEUE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	sqsClient := sqs.NewFromConfig(a.AWS)
	consumerCfg := func(url string) events.ConsumerConfig {
		return events.ConsumerConfig{
			QueueURL:          url,
			Concurrency:       cfg.Events.Concurrency,
			VisibilityTimeout: cfg.Events.VisibilityTimeout,
		}
	}

	var runners []runner
	if cfg.Events.UploadQueueURL != "" {
		uploads, err := a.UploadReconciler()
		if err != nil {
			logger.Fatal("upload reconciler", zap.Error(err))
		}
		runners = append(runners, events.NewConsumer("upload", sqsClient, consumerCfg(cfg.Events.UploadQueueURL), events.UploadMessages(uploads), logger))
	}
	if cfg.Events.StatusQueueURL != "" {
		runners = append(runners, events.NewConsumer("job_status", sqsClient, consumerCfg(cfg.Events.StatusQueueURL), events.StatusMessages(a.StatusReconciler()), logger))
	}

	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}

	logger.Info("worker started")
	if err := serve(ctx, runners, metricsSrv, logger); err != nil {
		a.Close()
		logger.Fatal("worker stopped with error", zap.Error(err))
	}
	logger.Info("worker stopped")
}

// runner is a queue consumer.
type runner interface {
	Run(ctx context.Context) error
}

// serve runs every consumer and the metrics listener until ctx is done or one of them fails.
// The first failure cancels the rest and is returned.
func serve(ctx context.Context, runners []runner, metricsSrv *http.Server, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		r := r
		g.Go(func() error { return r.Run(gctx) })
	}
	g.Go(func() error {
		logger.Info("metrics listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
