// Package pipeline reconciles video records with upload and transcoding events.
//
// Each reconciler loads the current record, decides the change with a pure function and applies
// it through narrow ports. Handlers share nothing but the record store.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/vidshare/backend/internal/models"
	"github.com/vidshare/backend/internal/prober"
	"github.com/vidshare/backend/internal/transcoder"
)

// ErrMalformedEvent marks events that can never be processed. Callers should acknowledge and drop them.
var ErrMalformedEvent = errors.New("malformed event")

// Store is the record store as seen by the reconcilers.
type Store interface {
	Get(ctx context.Context, id string) (*models.Video, error)
	Update(ctx context.Context, id string, patch models.Patch) error
}

// ObjectStore is the ingest bucket.
type ObjectStore interface {
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Prober reads source dimensions from a URL.
type Prober interface {
	Probe(ctx context.Context, url string) (prober.Metadata, error)
}

// Submitter starts a transcoding job and returns its id.
type Submitter interface {
	Submit(ctx context.Context, job transcoder.Job) (string, error)
}

// Indexer publishes a search projection.
type Indexer interface {
	Upsert(ctx context.Context, doc models.SearchDocument) error
}

// Notifier announces a status transition.
type Notifier interface {
	Publish(ctx context.Context, id string, status models.Status) error
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, string, models.Status) error { return nil }
