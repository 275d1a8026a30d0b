// Package main hosts the pipeline reconcilers as AWS Lambda functions. HANDLER selects the
// function: "upload" for S3 object-created notifications, "status" for MediaConvert job state
// changes from EventBridge.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/vidshare/backend/config"
	"github.com/vidshare/backend/internal/app"
	pipelineevents "github.com/vidshare/backend/internal/events"
	"github.com/vidshare/backend/internal/pipeline"
)

func main() {
	logger := app.NewLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	switch kind := os.Getenv("HANDLER"); kind {
	case "upload":
		uploads, err := a.UploadReconciler()
		if err != nil {
			logger.Fatal("upload reconciler", zap.Error(err))
		}
		lambda.Start(uploadHandler(uploads, logger))
	case "status":
		lambda.Start(statusHandler(a.StatusReconciler(), logger))
	default:
		logger.Fatal("HANDLER must be upload or status", zap.String("handler", kind))
	}
}

// uploadHandler fails the invocation when any record fails so Lambda's async retry redelivers it.
func uploadHandler(h pipelineevents.UploadHandler, logger *zap.Logger) func(context.Context, events.S3Event) error {
	return func(ctx context.Context, ev events.S3Event) error {
		var errs []error
		for _, up := range pipelineevents.UploadEventsFromS3(ev) {
			if err := h.Handle(ctx, up); err != nil && !errors.Is(err, pipeline.ErrMalformedEvent) {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			logger.Error("upload invocation failed", zap.Int("failed_records", len(errs)))
		}
		return errors.Join(errs...)
	}
}

// statusHandler never fails the invocation; the reconciler logs its own failures.
func statusHandler(h pipelineevents.StatusHandler, logger *zap.Logger) func(context.Context, events.CloudWatchEvent) error {
	return func(ctx context.Context, ev events.CloudWatchEvent) error {
		se, err := pipelineevents.StatusEventFromCloudWatch(ev)
		if err != nil {
			logger.Warn("job status event dropped", zap.Error(err), zap.String("event_id", ev.ID))
			return nil
		}
		_ = h.Handle(ctx, se)
		return nil
	}
}
