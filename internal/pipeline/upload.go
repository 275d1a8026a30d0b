package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vidshare/backend/internal/ladder"
	"github.com/vidshare/backend/internal/metrics"
	"github.com/vidshare/backend/internal/models"
	"github.com/vidshare/backend/internal/prober"
	"github.com/vidshare/backend/internal/transcoder"
)

// DefaultProbeURLTTL is the lifetime of the pre-signed URL handed to the prober.
const DefaultProbeURLTTL = 2 * time.Minute

const sourceUpload = "upload"

// UploadEvent reports a new object in the ingest bucket. Key is the video id.
type UploadEvent struct {
	Bucket string
	Key    string
}

// UploadPlan is what the upload reconciler submits and persists for one record.
type UploadPlan struct {
	Job   transcoder.Job
	Patch models.Patch
}

// PlanUpload builds the job and the record patch for id from the probed source dimensions.
func PlanUpload(id string, meta prober.Metadata, layout OutputLayout) UploadPlan {
	renditions := ladder.Plan(meta.Width, meta.Height)
	var patch models.Patch
	patch.AddFiles(layout.Files(id, renditions)).SetStatus(models.StatusUploaded)
	return UploadPlan{
		Job: transcoder.Job{
			VideoID:     id,
			Input:       layout.InputURI(id),
			Destination: layout.Destination(id),
			Renditions:  renditions,
		},
		Patch: patch,
	}
}

// UploadReconciler probes new uploads, submits their transcoding job and marks them UPLOADED.
type UploadReconciler struct {
	store     Store
	objects   ObjectStore
	prober    Prober
	submitter Submitter
	notifier  Notifier
	layout    OutputLayout
	probeTTL  time.Duration
	logger    *zap.Logger
}

// UploadDeps groups the collaborators of an UploadReconciler. Notifier may be nil.
type UploadDeps struct {
	Store     Store
	Objects   ObjectStore
	Prober    Prober
	Submitter Submitter
	Notifier  Notifier
	Layout    OutputLayout
	ProbeTTL  time.Duration
}

// NewUploadReconciler creates the reconciler.
func NewUploadReconciler(deps UploadDeps, logger *zap.Logger) *UploadReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.ProbeTTL <= 0 {
		deps.ProbeTTL = DefaultProbeURLTTL
	}
	return &UploadReconciler{
		store:     deps.Store,
		objects:   deps.Objects,
		prober:    deps.Prober,
		submitter: deps.Submitter,
		notifier:  deps.Notifier,
		layout:    deps.Layout,
		probeTTL:  deps.ProbeTTL,
		logger:    logger,
	}
}

// Handle processes one upload event. Unknown and finished records are dropped without error.
// Any dependency failure is returned before the record is written, so redelivery retries the
// whole reconciliation.
func (u *UploadReconciler) Handle(ctx context.Context, ev UploadEvent) error {
	id := ev.Key
	if id == "" {
		metrics.IncEvent(sourceUpload, metrics.OutcomeDropped)
		u.logger.Warn("upload event without object key", zap.String("bucket", ev.Bucket))
		return fmt.Errorf("%w: empty object key", ErrMalformedEvent)
	}
	log := u.logger.With(zap.String("video_id", id))

	video, err := u.store.Get(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		metrics.IncEvent(sourceUpload, metrics.OutcomeDropped)
		log.Warn("upload for unknown video dropped")
		return nil
	}
	if err != nil {
		metrics.IncEvent(sourceUpload, metrics.OutcomeFailed)
		return fmt.Errorf("load video %s: %w", id, err)
	}
	// UPLOADED and PROCESSING records are reconciled again; the status merge keeps a second job safe.
	if video.Status.Terminal() {
		metrics.IncEvent(sourceUpload, metrics.OutcomeDropped)
		log.Info("upload for finished video dropped", zap.String("status", string(video.Status)))
		return nil
	}

	if err := u.reconcile(ctx, video, log); err != nil {
		metrics.IncEvent(sourceUpload, metrics.OutcomeFailed)
		log.Error("upload reconciliation failed", zap.Error(err))
		return err
	}
	metrics.IncEvent(sourceUpload, metrics.OutcomeOK)
	return nil
}

func (u *UploadReconciler) reconcile(ctx context.Context, video *models.Video, log *zap.Logger) error {
	id := video.ID
	url, err := u.objects.PresignGet(ctx, id, u.probeTTL)
	if err != nil {
		return fmt.Errorf("presign source: %w", err)
	}
	meta, err := u.prober.Probe(ctx, url)
	if err != nil {
		return fmt.Errorf("probe source: %w", err)
	}

	plan := PlanUpload(id, meta, u.layout)
	jobID, err := u.submitter.Submit(ctx, plan.Job)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	metrics.JobsSubmittedTotal.Inc()
	log.Info("transcode job submitted",
		zap.String("job_id", jobID),
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
		zap.Int("renditions", len(plan.Job.Renditions)),
	)

	if err := u.store.Update(ctx, id, plan.Patch); err != nil {
		// the job is already running; its status events still converge the record
		return fmt.Errorf("persist upload state (job %s): %w", jobID, err)
	}
	// the store keeps a later status; only a real step forward is announced
	if video.Status.Advance(models.StatusUploaded) == video.Status {
		return nil
	}
	metrics.IncTransition(string(models.StatusUploaded))
	if err := u.notifier.Publish(ctx, id, models.StatusUploaded); err != nil {
		log.Warn("status notification failed", zap.Error(err))
	}
	return nil
}
