package events

import (
	"context"
	"errors"

	"github.com/vidshare/backend/internal/pipeline"
)

// UploadHandler consumes decoded upload events.
type UploadHandler interface {
	Handle(ctx context.Context, ev pipeline.UploadEvent) error
}

// StatusHandler consumes decoded job status events.
type StatusHandler interface {
	Handle(ctx context.Context, ev pipeline.StatusEvent) error
}

// MessageHandler processes one raw message body.
type MessageHandler func(ctx context.Context, body []byte) error

// UploadMessages decodes S3 notifications and runs h for every record. Malformed records are
// skipped; errors of the other records are joined so one failing record keeps the message for
// redelivery.
func UploadMessages(h UploadHandler) MessageHandler {
	return func(ctx context.Context, body []byte) error {
		evs, err := DecodeUploadEvent(body)
		if err != nil {
			return err
		}
		var errs []error
		for _, ev := range evs {
			if err := h.Handle(ctx, ev); err != nil && !errors.Is(err, pipeline.ErrMalformedEvent) {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// StatusMessages decodes job state changes and runs h.
func StatusMessages(h StatusHandler) MessageHandler {
	return func(ctx context.Context, body []byte) error {
		ev, err := DecodeJobStatusEvent(body)
		if err != nil {
			return err
		}
		return h.Handle(ctx, ev)
	}
}
