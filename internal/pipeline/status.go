package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vidshare/backend/internal/metrics"
	"github.com/vidshare/backend/internal/models"
)

// Transcoder job states carried by status events.
const (
	JobProgressing = "PROGRESSING"
	JobComplete    = "COMPLETE"
	JobError       = "ERROR"
)

const sourceJobStatus = "job_status"

// StatusEvent is a transcoder job state change. CorrelationID is the video id echoed from the job's
// user metadata.
type StatusEvent struct {
	Status        string
	CorrelationID string
	JobID         string
	ErrorMessage  string
}

// Decision is the effect of one status event on one record.
type Decision struct {
	Patch        models.Patch
	DeleteSource bool
	Index        bool
}

// Empty reports whether the decision does nothing.
func (d Decision) Empty() bool {
	return d.Patch.Empty() && !d.DeleteSource && !d.Index
}

// DecideStatus maps a job status onto the record snapshot. A nil snapshot (unknown record), a
// terminal snapshot, an unknown job status or a transition that would not move the record forward
// yields an empty decision.
func DecideStatus(ev StatusEvent, snapshot *models.Video) Decision {
	if snapshot == nil || snapshot.Status.Terminal() {
		return Decision{}
	}
	var (
		target models.Status
		d      Decision
	)
	switch ev.Status {
	case JobProgressing:
		target = models.StatusProcessing
	case JobComplete:
		target = models.StatusReady
		d.DeleteSource = true
		d.Index = true
	case JobError:
		target = models.StatusError
		d.DeleteSource = true
	default:
		return Decision{}
	}
	if snapshot.Status.Advance(target) == snapshot.Status {
		return Decision{}
	}
	d.Patch.SetStatus(target)
	return d
}

// StatusReconciler applies transcoder job state changes to video records.
type StatusReconciler struct {
	store    Store
	objects  ObjectStore
	indexer  Indexer
	notifier Notifier
	logger   *zap.Logger
}

// StatusDeps groups the collaborators of a StatusReconciler. Indexer and Notifier may be nil.
type StatusDeps struct {
	Store    Store
	Objects  ObjectStore
	Indexer  Indexer
	Notifier Notifier
}

// NewStatusReconciler creates the reconciler.
func NewStatusReconciler(deps StatusDeps, logger *zap.Logger) *StatusReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	return &StatusReconciler{
		store:    deps.Store,
		objects:  deps.Objects,
		indexer:  deps.Indexer,
		notifier: deps.Notifier,
		logger:   logger,
	}
}

// Handle applies ev. It always returns nil: events without correlation id are dropped and failures
// are logged and swallowed so the event is acknowledged. Later steps run even when an earlier one
// fails.
func (s *StatusReconciler) Handle(ctx context.Context, ev StatusEvent) error {
	id := ev.CorrelationID
	if id == "" {
		metrics.IncEvent(sourceJobStatus, metrics.OutcomeDropped)
		s.logger.Warn("job status event without video id dropped", zap.String("job_id", ev.JobID), zap.String("status", ev.Status))
		return nil
	}
	log := s.logger.With(zap.String("video_id", id), zap.String("job_status", ev.Status), zap.String("job_id", ev.JobID))

	snapshot, err := s.store.Get(ctx, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		metrics.IncEvent(sourceJobStatus, metrics.OutcomeDropped)
		log.Warn("job status for unknown video dropped")
		return nil
	case err != nil:
		metrics.IncEvent(sourceJobStatus, metrics.OutcomeFailed)
		log.Error("load video failed", zap.Error(err))
		return nil
	}

	d := DecideStatus(ev, snapshot)
	if d.Empty() {
		metrics.IncEvent(sourceJobStatus, metrics.OutcomeDropped)
		log.Info("job status ignored", zap.String("status", string(snapshot.Status)))
		return nil
	}
	if ev.Status == JobError {
		log.Warn("transcode job failed", zap.String("error_message", ev.ErrorMessage))
	}

	failed := false
	if err := s.store.Update(ctx, id, d.Patch); err != nil {
		failed = true
		log.Error("status update failed", zap.Error(err))
	} else {
		status := *d.Patch.Status
		metrics.IncTransition(string(status))
		log.Info("video status updated", zap.String("status", string(status)))
		if err := s.notifier.Publish(ctx, id, status); err != nil {
			log.Warn("status notification failed", zap.Error(err))
		}
	}

	if d.DeleteSource {
		if err := s.objects.Delete(ctx, id); err != nil {
			failed = true
			log.Error("source delete failed", zap.Error(err))
		}
	}

	if d.Index && s.indexer != nil {
		if err := s.index(ctx, id); err != nil {
			failed = true
			metrics.IndexFailuresTotal.Inc()
			log.Error("search index failed", zap.Error(err))
		}
	}

	if failed {
		metrics.IncEvent(sourceJobStatus, metrics.OutcomeFailed)
	} else {
		metrics.IncEvent(sourceJobStatus, metrics.OutcomeOK)
	}
	return nil
}

func (s *StatusReconciler) index(ctx context.Context, id string) error {
	video, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("reload video: %w", err)
	}
	return s.indexer.Upsert(ctx, video.SearchDocument())
}
