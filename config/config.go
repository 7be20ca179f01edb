package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == EnvDevelopment {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	return nil
}

type Config struct {
	Env  string
	Port int

	HTTP       HTTPConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Storage    StorageConfig
	Extraction ExtractionConfig
	Ingestion  IngestionConfig
	Cron       CronConfig
}

type HTTPConfig struct {
	AllowedOrigins string
	// Requests per IP per minute, 0 disables the limiter
	RateLimitRequests int
	BodyLimit         int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	URL string
}

type LogConfig struct {
	Level string
}

// StorageConfig selects the object store backend ("spaces" or "gcs").
type StorageConfig struct {
	Backend string

	SpacesAccessKey string
	SpacesSecretKey string
	SpacesBucket    string
	SpacesRegion    string
	SpacesEndpoint  string
	SpacesCDNURL    string
	// Path-style addressing, for S3-compatible endpoints without
	// virtual-host buckets
	SpacesForcePathStyle bool

	GCSBucket          string
	GCSCredentialsFile string
}

type ExtractionConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	// Client-side request rate shared by all workers, 0 disables it
	RequestsPerMinute float64
	Burst             int
}

type IngestionConfig struct {
	Workers              int
	QueueSize            int
	MaxDocumentBytes     int64
	MaxPDFPages          int
	DedupeCalendarEvents bool
	ProgressTTL          time.Duration
}

type CronConfig struct {
	Enabled         bool
	StaleJobTimeout time.Duration
}

// Get reads the configuration from the environment (and .env when present).
func Get() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{
		Env:  v.GetString("GO_ENV"),
		Port: v.GetInt("PORT"),
	}

	cfg.HTTP = HTTPConfig{
		AllowedOrigins:    v.GetString("ALLOWED_ORIGINS"),
		RateLimitRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
		BodyLimit:         v.GetInt("HTTP_BODY_LIMIT"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetString("DB_PORT"),
		User:         v.GetString("DB_USER_NAME"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{URL: v.GetString("REDIS_URL")}
	cfg.Log = LogConfig{Level: v.GetString("LOG_LEVEL")}

	cfg.Storage = StorageConfig{
		Backend:              strings.ToLower(v.GetString("STORAGE_BACKEND")),
		SpacesAccessKey:      v.GetString("DO_SPACES_ACCESS_KEY"),
		SpacesSecretKey:      v.GetString("DO_SPACES_SECRET_KEY"),
		SpacesBucket:         v.GetString("DO_SPACES_BUCKET"),
		SpacesRegion:         v.GetString("DO_SPACES_REGION"),
		SpacesEndpoint:       v.GetString("DO_SPACES_ENDPOINT"),
		SpacesCDNURL:         v.GetString("DO_SPACES_CDN_URL"),
		SpacesForcePathStyle: v.GetBool("DO_SPACES_FORCE_PATH_STYLE"),
		GCSBucket:            v.GetString("GCS_BUCKET"),
		GCSCredentialsFile:   v.GetString("GCS_CREDENTIALS_FILE"),
	}

	cfg.Extraction = ExtractionConfig{
		BaseURL:   v.GetString("EXTRACTION_BASE_URL"),
		APIKey:    v.GetString("MODEL_ACCESS_KEY"),
		Model:     v.GetString("EXTRACTION_MODEL"),
		MaxTokens: v.GetInt("EXTRACTION_MAX_TOKENS"),
		Timeout:   parseDuration(v.GetString("EXTRACTION_TIMEOUT"), 3*time.Minute),

		RequestsPerMinute: v.GetFloat64("EXTRACTION_REQUESTS_PER_MINUTE"),
		Burst:             v.GetInt("EXTRACTION_BURST"),
	}

	cfg.Ingestion = IngestionConfig{
		Workers:              v.GetInt("INGEST_WORKERS"),
		QueueSize:            v.GetInt("INGEST_QUEUE_SIZE"),
		MaxDocumentBytes:     v.GetInt64("INGEST_MAX_DOCUMENT_BYTES"),
		MaxPDFPages:          v.GetInt("INGEST_MAX_PDF_PAGES"),
		DedupeCalendarEvents: v.GetBool("INGEST_DEDUPE_CALENDAR_EVENTS"),
		ProgressTTL:          parseDuration(v.GetString("INGEST_PROGRESS_TTL"), 24*time.Hour),
	}

	cfg.Cron = CronConfig{
		Enabled:         v.GetBool("CRON_ENABLED"),
		StaleJobTimeout: parseDuration(v.GetString("STALE_JOB_TIMEOUT"), 30*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GO_ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("HTTP_BODY_LIMIT", 60*1024*1024)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE_BACKEND", "spaces")
	v.SetDefault("DO_SPACES_REGION", "blr1")
	v.SetDefault("DO_SPACES_ENDPOINT", "blr1.digitaloceanspaces.com")
	v.SetDefault("EXTRACTION_BASE_URL", "https://inference.do-ai.run/v1")
	v.SetDefault("EXTRACTION_MODEL", "openai-gpt-4o")
	v.SetDefault("EXTRACTION_MAX_TOKENS", 16384)
	v.SetDefault("EXTRACTION_REQUESTS_PER_MINUTE", 30)
	v.SetDefault("EXTRACTION_BURST", 3)
	v.SetDefault("INGEST_WORKERS", 4)
	v.SetDefault("INGEST_QUEUE_SIZE", 64)
	v.SetDefault("INGEST_MAX_DOCUMENT_BYTES", 50*1024*1024)
	v.SetDefault("INGEST_MAX_PDF_PAGES", 60)
	v.SetDefault("INGEST_DEDUPE_CALENDAR_EVENTS", false)
	v.SetDefault("CRON_ENABLED", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
