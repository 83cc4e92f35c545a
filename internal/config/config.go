// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, the content-generation and
// indexing upstreams, the publishing schedule, rate limiting, and observability.
package config

import (
	"errors"
	"net/url"
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "goldrate-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AIConfig selects and configures the content-generation upstream.
type AIConfig struct {
	Provider string        // AI_PROVIDER: openai|anthropic
	APIKey   string        // AI_API_KEY
	Model    string        // AI_MODEL (provider default when empty)
	BaseURL  string        // AI_BASE_URL (OpenAI-compatible endpoint root)
	Timeout  time.Duration // AI_TIMEOUT
}

// IndexingConfig configures the search-engine indexing upstream. An empty
// Token puts the queue in queue-only mode.
type IndexingConfig struct {
	Endpoint string        // INDEXING_ENDPOINT
	Token    string        // INDEXING_TOKEN (bearer)
	Delay    time.Duration // INDEXING_DELAY between requests in ProcessAll
}

// SchedulerConfig configures the in-process publishing scheduler.
type SchedulerConfig struct {
	Enabled       bool          // SCHEDULER_ENABLED
	PublishAt     string        // PUBLISH_AT, "HH:MM" in Timezone
	Timezone      string        // SCHEDULER_TZ
	Cities        []string      // PUBLISH_CITIES
	IndexInterval time.Duration // INDEX_INTERVAL
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

	// Site
	DBPath     string // SQLite path
	SiteURL    string // canonical origin, no trailing slash
	SiteName   string
	CitiesFile string // optional YAML override for the district catalogue
	AdminToken string // bearer token for /admin routes; empty disables them

	RelatedLimit int // related items per page
	RSSLimit     int // items in rss.xml

	AI        AIConfig
	Indexing  IndexingConfig
	Scheduler SchedulerConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

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

		// Site
		DBPath:       getenv("DB_PATH", "goldrate.db"),
		SiteURL:      strings.TrimRight(getenv("SITE_URL", "https://chennaigoldprice.com"), "/"),
		SiteName:     getenv("SITE_NAME", "Chennai Gold Price"),
		CitiesFile:   getenv("CITIES_FILE", ""),
		AdminToken:   getenv("ADMIN_TOKEN", ""),
		RelatedLimit: getint("RELATED_LIMIT", 3),
		RSSLimit:     getint("RSS_LIMIT", 20),

		AI: AIConfig{
			Provider: strings.ToLower(getenv("AI_PROVIDER", "openai")),
			APIKey:   getenv("AI_API_KEY", ""),
			Model:    getenv("AI_MODEL", ""),
			BaseURL:  strings.TrimRight(getenv("AI_BASE_URL", "https://api.openai.com/v1"), "/"),
			Timeout:  getdur("AI_TIMEOUT", 90*time.Second),
		},
		Indexing: IndexingConfig{
			Endpoint: getenv("INDEXING_ENDPOINT", "https://indexing.googleapis.com/v3/urlNotifications:publish"),
			Token:    getenv("INDEXING_TOKEN", ""),
			Delay:    getdur("INDEXING_DELAY", time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getbool("SCHEDULER_ENABLED", false),
			PublishAt:     getenv("PUBLISH_AT", "06:30"),
			Timezone:      getenv("SCHEDULER_TZ", "Asia/Kolkata"),
			Cities:        splitCSV(getenv("PUBLISH_CITIES", "Chennai")),
			IndexInterval: getdur("INDEX_INTERVAL", 15*time.Minute),
		},

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

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "goldrate-backend"),
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
	if cfg.AI.Provider == "claude" {
		cfg.AI.Provider = "anthropic"
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
	if u, err := url.Parse(cfg.SiteURL); err != nil || u.Scheme == "" || u.Host == "" {
		return cfg, errors.New("SITE_URL must be an absolute URL")
	}
	switch cfg.AI.Provider {
	case "openai", "anthropic":
	default:
		return cfg, errors.New("AI_PROVIDER must be one of: openai, anthropic")
	}
	if cfg.AI.Timeout <= 0 {
		return cfg, errors.New("AI_TIMEOUT must be > 0")
	}
	if cfg.Indexing.Delay < 0 {
		return cfg, errors.New("INDEXING_DELAY must be >= 0")
	}
	if _, err := ParseClock(cfg.Scheduler.PublishAt); err != nil {
		return cfg, errors.New("PUBLISH_AT must be HH:MM")
	}
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		return cfg, errors.New("SCHEDULER_TZ must be an IANA time zone")
	}
	if cfg.Scheduler.IndexInterval <= 0 {
		return cfg, errors.New("INDEX_INTERVAL must be > 0")
	}
	if cfg.RelatedLimit < 1 {
		return cfg, errors.New("RELATED_LIMIT must be >= 1")
	}
	if cfg.RSSLimit < 1 {
		return cfg, errors.New("RSS_LIMIT must be >= 1")
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
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
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
