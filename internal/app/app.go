// Package app wires configuration into the concrete adapters shared by every binary.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vidshare/backend/config"
	"github.com/vidshare/backend/internal/notify"
	"github.com/vidshare/backend/internal/pipeline"
	"github.com/vidshare/backend/internal/prober"
	"github.com/vidshare/backend/internal/search"
	"github.com/vidshare/backend/internal/transcoder"
	"github.com/vidshare/backend/internal/videos"
	"github.com/vidshare/backend/pkg/cloud"
	"github.com/vidshare/backend/pkg/database"
	"github.com/vidshare/backend/pkg/redis"
	"github.com/vidshare/backend/pkg/storage"
)

// Bucket is the ingest bucket, served by S3 or MinIO.
type Bucket interface {
	Name() string
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
	PresignPut(ctx context.Context, key string, expires time.Duration) (string, error)
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
}

// App holds the long-lived clients of one process.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	AWS      aws.Config
	Pool     *pgxpool.Pool
	Videos   *videos.Repository
	Ingest   Bucket
	Search   search.Engine // nil when SEARCH_BACKEND=none
	Redis    *goredis.Client
	Notifier pipeline.Notifier // nil when Redis is not configured
}

// NewLogger builds the production JSON logger.
func NewLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// New connects every configured dependency. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	awsCfg, err := cloud.LoadConfig(ctx, cloud.Credentials{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.AWS = awsCfg

	a.Pool, err = database.NewPostgresPool(ctx, database.PoolConfig{
		DSN:      cfg.Database.DSN(),
		MaxConns: cfg.Database.MaxConns,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.Videos = videos.NewRepository(a.Pool)

	if a.Ingest, err = newIngestBucket(ctx, cfg, awsCfg, logger); err != nil {
		a.Close()
		return nil, err
	}
	if a.Search, err = newSearch(cfg, awsCfg, logger); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		a.Redis, err = redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.Notifier = notify.NewPublisher(a.Redis, cfg.Redis.Channel, logger)
	}
	return a, nil
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// Layout returns where renditions of a video are written and served from.
func (a *App) Layout() pipeline.OutputLayout {
	return pipeline.OutputLayout{
		IngestBucket:  a.Ingest.Name(),
		StreamBucket:  a.Config.Storage.StreamBucket,
		PublicBaseURL: a.Config.Storage.PublicBaseURL,
	}
}

// UploadReconciler builds the upload reconciler with a MediaConvert submitter.
func (a *App) UploadReconciler() (*pipeline.UploadReconciler, error) {
	if err := a.Config.RequireWorker(); err != nil {
		return nil, err
	}
	mcCfg := transcoder.Config{
		RoleARN:  a.Config.MediaConvert.RoleARN,
		Queue:    a.Config.MediaConvert.Queue,
		Endpoint: a.Config.MediaConvert.Endpoint,
	}
	submitter := transcoder.NewMediaConvert(transcoder.NewMediaConvertClient(a.AWS, mcCfg), mcCfg, a.Logger)
	return pipeline.NewUploadReconciler(pipeline.UploadDeps{
		Store:     a.Videos,
		Objects:   a.Ingest,
		Prober:    timeoutProber{prober.NewMediaInfo(a.Config.Prober.BinPath, a.Logger), a.Config.Prober.Timeout},
		Submitter: submitter,
		Notifier:  a.Notifier,
		Layout:    a.Layout(),
		ProbeTTL:  a.Config.Prober.URLTTL,
	}, a.Logger), nil
}

// StatusReconciler builds the job status reconciler.
func (a *App) StatusReconciler() *pipeline.StatusReconciler {
	deps := pipeline.StatusDeps{
		Store:    a.Videos,
		Objects:  a.Ingest,
		Notifier: a.Notifier,
	}
	if a.Search != nil {
		deps.Indexer = a.Search
	}
	return pipeline.NewStatusReconciler(deps, a.Logger)
}

func newIngestBucket(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (Bucket, error) {
	if cfg.Storage.Backend == config.StorageMinIO {
		m, err := storage.NewMinIO(storage.MinIOConfig{
			Endpoint:  cfg.Storage.MinIOEndpoint,
			AccessKey: cfg.AWS.AccessKeyID,
			SecretKey: cfg.AWS.SecretAccessKey,
			UseSSL:    cfg.Storage.MinIOUseSSL,
			Region:    cfg.AWS.Region,
			Bucket:    cfg.Storage.IngestBucket,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return m, nil
	}
	return storage.NewS3(awsCfg, storage.S3Config{
		Bucket:   cfg.Storage.IngestBucket,
		Endpoint: cfg.Storage.S3Endpoint,
	}, logger), nil
}

func newSearch(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (search.Engine, error) {
	switch cfg.Search.Backend {
	case config.SearchOpenSearch:
		return search.NewOpenSearch(search.OpenSearchConfig{
			Addresses: cfg.Search.OpenSearchURLs,
			Index:     cfg.Search.Index,
			Username:  cfg.Search.OpenSearchUser,
			Password:  cfg.Search.OpenSearchPass,
			SignAWS:   cfg.Search.OpenSearchSignAWS,
		}, awsCfg, logger)
	case config.SearchWeaviate:
		return search.NewWeaviate(search.WeaviateConfig{
			Scheme: cfg.Search.WeaviateScheme,
			Host:   cfg.Search.WeaviateHost,
			APIKey: cfg.Search.WeaviateAPIKey,
			Class:  search.ClassName(cfg.Search.Index),
		}, logger)
	}
	return nil, nil
}

// timeoutProber bounds each probe; mediainfo can hang on a stalled download.
type timeoutProber struct {
	p       pipeline.Prober
	timeout time.Duration
}

func (t timeoutProber) Probe(ctx context.Context, url string) (prober.Metadata, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.p.Probe(ctx, url)
}
