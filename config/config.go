package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageS3    = "s3"
	StorageMinIO = "minio"
)

// Search backends.
const (
	SearchNone       = "none"
	SearchOpenSearch = "opensearch"
	SearchWeaviate   = "weaviate"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	AWS          AWSConfig
	Storage      StorageConfig
	MediaConvert MediaConvertConfig
	Prober       ProberConfig
	Search       SearchConfig
	Events       EventsConfig
	Metrics      MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	UploadURLTTL       time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/vidshare?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig holds Redis connection settings. An empty Addr disables status notifications.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// AWSConfig holds the region and optional static credentials.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// StorageConfig names the buckets and the backend serving the ingest bucket.
type StorageConfig struct {
	Backend       string
	IngestBucket  string
	StreamBucket  string
	PublicBaseURL string // playback URL prefix; https://<stream>.s3.amazonaws.com when empty
	S3Endpoint    string
	MinIOEndpoint string
	MinIOUseSSL   bool
}

// MediaConvertConfig holds transcoder settings.
type MediaConvertConfig struct {
	RoleARN  string
	Queue    string
	Endpoint string
}

// ProberConfig holds media probe settings.
type ProberConfig struct {
	BinPath string
	URLTTL  time.Duration
	Timeout time.Duration
}

// SearchConfig selects and configures the search index.
type SearchConfig struct {
	Backend           string
	Index             string
	OpenSearchURLs    []string
	OpenSearchUser    string
	OpenSearchPass    string
	OpenSearchSignAWS bool
	WeaviateScheme    string
	WeaviateHost      string
	WeaviateAPIKey    string
}

// EventsConfig holds the SQS queues feeding the worker.
type EventsConfig struct {
	UploadQueueURL    string
	StatusQueueURL    string
	Concurrency       int
	VisibilityTimeout int32
}

// MetricsConfig holds the worker metrics listener.
type MetricsConfig struct {
	Addr string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			UploadURLTTL:       getEnvDuration("UPLOAD_URL_TTL", 10*time.Minute),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "vidshare"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 0)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Channel:  getEnv("REDIS_STATUS_CHANNEL", "video:status"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(getEnv("STORAGE_BACKEND", StorageS3)),
			IngestBucket:  getEnv("INGEST_BUCKET", ""),
			StreamBucket:  getEnv("STREAM_BUCKET", ""),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
			S3Endpoint:    getEnv("S3_ENDPOINT", ""),
			MinIOEndpoint: getEnv("MINIO_ENDPOINT", "localhost:9000"),
			MinIOUseSSL:   getEnvBool("MINIO_USE_SSL", false),
		},
		MediaConvert: MediaConvertConfig{
			RoleARN:  getEnv("MEDIACONVERT_ROLE", ""),
			Queue:    getEnv("MEDIACONVERT_QUEUE", ""),
			Endpoint: getEnv("MEDIACONVERT_ENDPOINT", ""),
		},
		Prober: ProberConfig{
			BinPath: getEnv("MEDIAINFO_PATH", "./mediainfo"),
			URLTTL:  getEnvDuration("PROBE_URL_TTL", 2*time.Minute),
			Timeout: getEnvDuration("PROBE_TIMEOUT", 0),
		},
		Search: SearchConfig{
			Backend:           strings.ToLower(getEnv("SEARCH_BACKEND", SearchOpenSearch)),
			Index:             getEnv("SEARCH_INDEX", "video"),
			OpenSearchURLs:    splitTrim(getEnv("OPENSEARCH_URLS", ""), ","),
			OpenSearchUser:    getEnv("OPENSEARCH_USER", ""),
			OpenSearchPass:    getEnv("OPENSEARCH_PASSWORD", ""),
			OpenSearchSignAWS: getEnvBool("OPENSEARCH_SIGN_AWS", true),
			WeaviateScheme:    getEnv("WEAVIATE_SCHEME", "https"),
			WeaviateHost:      getEnv("WEAVIATE_HOST", ""),
			WeaviateAPIKey:    getEnv("WEAVIATE_API_KEY", ""),
		},
		Events: EventsConfig{
			UploadQueueURL:    getEnv("UPLOAD_QUEUE_URL", ""),
			StatusQueueURL:    getEnv("STATUS_QUEUE_URL", ""),
			Concurrency:       getEnvInt("EVENT_CONCURRENCY", 4),
			VisibilityTimeout: int32(getEnvInt("EVENT_VISIBILITY_TIMEOUT_SEC", 0)),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the backend selectors and the settings they require.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Backend {
	case StorageS3, StorageMinIO:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND: unknown backend %q", c.Storage.Backend))
	}
	switch c.Search.Backend {
	case SearchNone:
	case SearchOpenSearch:
		if len(c.Search.OpenSearchURLs) == 0 {
			errs = append(errs, errors.New("OPENSEARCH_URLS required for the opensearch backend"))
		}
	case SearchWeaviate:
		if c.Search.WeaviateHost == "" {
			errs = append(errs, errors.New("WEAVIATE_HOST required for the weaviate backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("SEARCH_BACKEND: unknown backend %q", c.Search.Backend))
	}
	if c.Storage.IngestBucket == "" {
		errs = append(errs, errors.New("INGEST_BUCKET required"))
	}
	return errors.Join(errs...)
}

// RequireWorker checks the settings only the pipeline needs.
func (c *Config) RequireWorker() error {
	var errs []error
	if c.Storage.StreamBucket == "" {
		errs = append(errs, errors.New("STREAM_BUCKET required"))
	}
	if c.MediaConvert.RoleARN == "" {
		errs = append(errs, errors.New("MEDIACONVERT_ROLE required"))
	}
	return errors.Join(errs...)
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
