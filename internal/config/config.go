// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, object storage, training
// provider selection, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-lora-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// StorageConfig selects and configures the video/artifact blob store.
type StorageConfig struct {
	Backend string // STORAGE_BACKEND: local|minio

	// Local filesystem backend
	LocalPath    string // STORAGE_LOCAL_PATH
	LocalBaseURL string // STORAGE_LOCAL_BASE_URL (optional public prefix)

	// MinIO / S3-compatible backend
	MinioEndpoint  string // MINIO_ENDPOINT (host:port)
	MinioAccessKey string // MINIO_ACCESS_KEY
	MinioSecretKey string // MINIO_SECRET_KEY
	MinioBucket    string // MINIO_BUCKET
	MinioUseSSL    bool   // MINIO_USE_SSL
	MinioPublicURL string // MINIO_PUBLIC_URL (optional CDN/proxy prefix)
}

// ProviderConfig selects and configures the training backend adapter.
type ProviderConfig struct {
	Variant     string        // PROVIDER_VARIANT: mvp|external|fal
	HTTPTimeout time.Duration // PROVIDER_HTTP_TIMEOUT

	// Generic external HTTP vendor
	ExternalTrainURL          string // EXTERNAL_TRAIN_URL
	ExternalStatusURLTemplate string // EXTERNAL_STATUS_URL_TEMPLATE ({jobId} placeholder)
	ExternalToken             string // EXTERNAL_API_TOKEN

	// fal.ai queue API
	FalEndpoint string // FAL_ENDPOINT (e.g. "org/lora-trainer")
	FalAPIKey   string // FAL_API_KEY
	FalBaseURL  string // FAL_BASE_URL (override, mainly for tests)
}

// KafkaConfig configures the optional domain event publisher. Empty broker
// list disables publishing entirely.
type KafkaConfig struct {
	Brokers []string // KAFKA_BROKERS (CSV)
	Topic   string   // KAFKA_TOPIC
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath         string // SQLite path
	MaxUploadBytes int64  // request body cap on the video upload route

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Domain integrations
	Storage  StorageConfig
	Provider ProviderConfig
	Kafka    KafkaConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:         getenv("DB_PATH", "app.db"),
		MaxUploadBytes: getint64("MAX_UPLOAD_BYTES", 4<<30),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Blob storage
		Storage: StorageConfig{
			Backend:        strings.ToLower(getenv("STORAGE_BACKEND", "local")),
			LocalPath:      getenv("STORAGE_LOCAL_PATH", "data/blobs"),
			LocalBaseURL:   getenv("STORAGE_LOCAL_BASE_URL", ""),
			MinioEndpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
			MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
			MinioBucket:    getenv("MINIO_BUCKET", "lora-videos"),
			MinioUseSSL:    getbool("MINIO_USE_SSL", false),
			MinioPublicURL: getenv("MINIO_PUBLIC_URL", ""),
		},

		// Training provider
		Provider: ProviderConfig{
			Variant:                   strings.ToLower(getenv("PROVIDER_VARIANT", "mvp")),
			HTTPTimeout:               getdur("PROVIDER_HTTP_TIMEOUT", 30*time.Second),
			ExternalTrainURL:          getenv("EXTERNAL_TRAIN_URL", ""),
			ExternalStatusURLTemplate: getenv("EXTERNAL_STATUS_URL_TEMPLATE", ""),
			ExternalToken:             getenv("EXTERNAL_API_TOKEN", ""),
			FalEndpoint:               getenv("FAL_ENDPOINT", ""),
			FalAPIKey:                 getenv("FAL_API_KEY", ""),
			FalBaseURL:                getenv("FAL_BASE_URL", ""),
		},

		// Domain events
		Kafka: KafkaConfig{
			Brokers: splitCSV(getenv("KAFKA_BROKERS", "")),
			Topic:   getenv("KAFKA_TOPIC", "lora.events"),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-lora-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.MaxUploadBytes <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	switch cfg.Storage.Backend {
	case "local", "minio":
	default:
		return cfg, errors.New("STORAGE_BACKEND must be one of: local, minio")
	}
	if cfg.Storage.Backend == "local" && strings.TrimSpace(cfg.Storage.LocalPath) == "" {
		return cfg, errors.New("STORAGE_LOCAL_PATH must not be empty")
	}
	if cfg.Storage.Backend == "minio" {
		if strings.TrimSpace(cfg.Storage.MinioEndpoint) == "" {
			return cfg, errors.New("MINIO_ENDPOINT must not be empty")
		}
		if strings.TrimSpace(cfg.Storage.MinioBucket) == "" {
			return cfg, errors.New("MINIO_BUCKET must not be empty")
		}
	}
	switch cfg.Provider.Variant {
	case "mvp", "external", "fal":
	default:
		return cfg, errors.New("PROVIDER_VARIANT must be one of: mvp, external, fal")
	}
	if cfg.Provider.HTTPTimeout <= 0 {
		return cfg, errors.New("PROVIDER_HTTP_TIMEOUT must be > 0")
	}
	if cfg.Provider.Variant == "external" {
		if strings.TrimSpace(cfg.Provider.ExternalTrainURL) == "" {
			return cfg, errors.New("EXTERNAL_TRAIN_URL must not be empty for the external provider")
		}
		if strings.TrimSpace(cfg.Provider.ExternalToken) == "" {
			return cfg, errors.New("EXTERNAL_API_TOKEN must not be empty for the external provider")
		}
	}
	if cfg.Provider.Variant == "fal" {
		if strings.TrimSpace(cfg.Provider.FalEndpoint) == "" {
			return cfg, errors.New("FAL_ENDPOINT must not be empty for the fal provider")
		}
		if strings.TrimSpace(cfg.Provider.FalAPIKey) == "" {
			return cfg, errors.New("FAL_API_KEY must not be empty for the fal provider")
		}
	}
	if len(cfg.Kafka.Brokers) > 0 && strings.TrimSpace(cfg.Kafka.Topic) == "" {
		return cfg, errors.New("KAFKA_TOPIC must not be empty when KAFKA_BROKERS is set")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
