// Package config provides application configuration loaded from environment
// variables with defaults and validation. It covers the HTTP server, logging,
// the organization database, the metadata extraction service, and the
// enrichment client that drives batch sweeps against it.
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
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// MetadataConfig controls the server-side website metadata extractor.
type MetadataConfig struct {
	Timeout      time.Duration // METADATA_TIMEOUT, upstream fetch bound
	CacheTTL     time.Duration // METADATA_CACHE_TTL
	MaxBodyBytes int64         // METADATA_MAX_BODY_BYTES
	UserAgent    string        // METADATA_USER_AGENT
	// AllowPrivateHosts lifts the loopback/private/link-local dial block.
	// METADATA_ALLOW_PRIVATE_HOSTS, off by default; only for local development.
	AllowPrivateHosts bool
}

// EnrichConfig controls the client-side enrichment orchestrator.
type EnrichConfig struct {
	Endpoint      string        // ENRICH_ENDPOINT, full URL of GET /metadata
	ClientTimeout time.Duration // ENRICH_CLIENT_TIMEOUT
	MaxRetries    int           // ENRICH_MAX_RETRIES
	RetryBase     time.Duration // ENRICH_RETRY_BASE
	BatchSize     int           // ENRICH_BATCH_SIZE
	BatchDelay    time.Duration // ENRICH_BATCH_DELAY
	StatusTTL     time.Duration // ENRICH_STATUS_TTL, how long status text stays visible
}

// DefaultUserAgent mimics a desktop browser so that origin servers do not
// reject the extractor as a bot.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

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
	DBPath string // SQLite path for the organization directory

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is replayed

	// Enrichment
	Metadata MetadataConfig
	Enrich   EnrichConfig

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
		DBPath: getenv("DB_PATH", "directory.db"),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 10.0),
		RateBurst: getint("RATE_BURST", 20),

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

		Metadata: MetadataConfig{
			Timeout:      getdur("METADATA_TIMEOUT", 10*time.Second),
			CacheTTL:     getdur("METADATA_CACHE_TTL", 24*time.Hour),
			MaxBodyBytes: int64(getint("METADATA_MAX_BODY_BYTES", 5<<20)),
			UserAgent:    getenv("METADATA_USER_AGENT", DefaultUserAgent),

			AllowPrivateHosts: getbool("METADATA_ALLOW_PRIVATE_HOSTS", false),
		},
		Enrich: EnrichConfig{
			Endpoint:      getenv("ENRICH_ENDPOINT", "http://localhost:8080/api/v1/metadata"),
			ClientTimeout: getdur("ENRICH_CLIENT_TIMEOUT", 15*time.Second),
			MaxRetries:    getint("ENRICH_MAX_RETRIES", 2),
			RetryBase:     getdur("ENRICH_RETRY_BASE", time.Second),
			BatchSize:     getint("ENRICH_BATCH_SIZE", 3),
			BatchDelay:    getdur("ENRICH_BATCH_DELAY", 500*time.Millisecond),
			StatusTTL:     getdur("ENRICH_STATUS_TTL", 5*time.Second),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-org-enricher"),
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
	if cfg.Metadata.Timeout <= 0 || cfg.Metadata.CacheTTL <= 0 {
		return cfg, errors.New("METADATA_TIMEOUT and METADATA_CACHE_TTL must be > 0")
	}
	if cfg.Metadata.MaxBodyBytes <= 0 {
		return cfg, errors.New("METADATA_MAX_BODY_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.Enrich.Endpoint) == "" {
		return cfg, errors.New("ENRICH_ENDPOINT must not be empty")
	}
	if cfg.Enrich.ClientTimeout <= 0 {
		return cfg, errors.New("ENRICH_CLIENT_TIMEOUT must be > 0")
	}
	if cfg.Enrich.MaxRetries < 0 {
		return cfg, errors.New("ENRICH_MAX_RETRIES must be >= 0")
	}
	if cfg.Enrich.BatchSize < 1 {
		return cfg, errors.New("ENRICH_BATCH_SIZE must be >= 1")
	}
	if cfg.Enrich.RetryBase < 0 || cfg.Enrich.BatchDelay < 0 || cfg.Enrich.StatusTTL < 0 {
		return cfg, errors.New("enrichment delays must be >= 0")
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
