package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Storage    StorageConfig
	Processing ProcessingConfig
	Checklist  ChecklistConfig
	Alerts     AlertsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig controls where document bytes and auto-fill artifacts live.
type StorageConfig struct {
	DocumentDir      string
	ArtifactDir      string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// ProcessingConfig tunes the OCR -> analysis -> auto-fill pipeline.
type ProcessingConfig struct {
	OCRServiceURL      string
	AnalysisServiceURL string
	StageTimeout       time.Duration
	ProviderRetries    int
	RetryBackoff       time.Duration
	ClaimStaleness     time.Duration
}

// ChecklistConfig tunes reminder behaviour.
type ChecklistConfig struct {
	ReminderWindow time.Duration
}

// AlertsConfig holds the operator-tunable alerting policy.
type AlertsConfig struct {
	DeadlineHorizon           time.Duration
	ReviewConfidenceThreshold float64
	EvaluateInterval          time.Duration
	SweepWorkers              int
	CacheTTL                  time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxFileSize := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 25 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		DocumentDir:      v.GetString("STORAGE_DOCUMENT_DIR"),
		ArtifactDir:      v.GetString("STORAGE_ARTIFACT_DIR"),
		SignedURLSecret:  v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxFileSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("STORAGE_ALLOWED_MIME_TYPES")),
	}

	cfg.Processing = ProcessingConfig{
		OCRServiceURL:      v.GetString("PROCESSING_OCR_URL"),
		AnalysisServiceURL: v.GetString("PROCESSING_ANALYSIS_URL"),
		StageTimeout:       parseDuration(v.GetString("PROCESSING_STAGE_TIMEOUT"), 2*time.Minute),
		ProviderRetries:    v.GetInt("PROCESSING_PROVIDER_RETRIES"),
		RetryBackoff:       parseDuration(v.GetString("PROCESSING_RETRY_BACKOFF"), 2*time.Second),
		ClaimStaleness:     parseDuration(v.GetString("PROCESSING_CLAIM_STALENESS"), 15*time.Minute),
	}

	cfg.Checklist = ChecklistConfig{
		ReminderWindow: parseDuration(v.GetString("CHECKLIST_REMINDER_WINDOW"), 72*time.Hour),
	}

	cfg.Alerts = AlertsConfig{
		DeadlineHorizon:           parseDuration(v.GetString("ALERTS_DEADLINE_HORIZON"), 168*time.Hour),
		ReviewConfidenceThreshold: v.GetFloat64("ALERTS_REVIEW_CONFIDENCE_THRESHOLD"),
		EvaluateInterval:          parseDuration(v.GetString("ALERTS_EVALUATE_INTERVAL"), 15*time.Minute),
		SweepWorkers:              v.GetInt("ALERTS_SWEEP_WORKERS"),
		CacheTTL:                  parseDuration(v.GetString("ALERTS_CACHE_TTL"), time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "docuflow_intake")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DOCUMENT_DIR", "./documents")
	v.SetDefault("STORAGE_ARTIFACT_DIR", "./artifacts")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_storage_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "30m")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 25*1024*1024)
	v.SetDefault("STORAGE_ALLOWED_MIME_TYPES", "application/pdf,image/png,image/jpeg,image/tiff")

	v.SetDefault("PROCESSING_OCR_URL", "http://localhost:9090/ocr")
	v.SetDefault("PROCESSING_ANALYSIS_URL", "http://localhost:9091/analyze")
	v.SetDefault("PROCESSING_STAGE_TIMEOUT", "2m")
	v.SetDefault("PROCESSING_PROVIDER_RETRIES", 3)
	v.SetDefault("PROCESSING_RETRY_BACKOFF", "2s")
	v.SetDefault("PROCESSING_CLAIM_STALENESS", "15m")

	v.SetDefault("CHECKLIST_REMINDER_WINDOW", "72h")

	v.SetDefault("ALERTS_DEADLINE_HORIZON", "168h")
	v.SetDefault("ALERTS_REVIEW_CONFIDENCE_THRESHOLD", 0.75)
	v.SetDefault("ALERTS_EVALUATE_INTERVAL", "15m")
	v.SetDefault("ALERTS_SWEEP_WORKERS", 2)
	v.SetDefault("ALERTS_CACHE_TTL", "1m")
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

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
