package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Session   SessionConfig
	Progress  ProgressConfig
	Pipeline  PipelineConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8090
	Mode string // "debug", "release", "test"; default: "release"
}

// BackendConfig points at the external analyzer service.
type BackendConfig struct {
	// AnalyzerURL is the analysis backend's base URL.
	AnalyzerURL string // default: "http://127.0.0.1:1002"

	// RequestTimeout is the deadline for plain (non-streaming)
	// backend calls. Streaming requests are unbounded; the pipeline's
	// stall timeout covers them.
	RequestTimeout time.Duration // default: 10m
}

// AuthConfig controls bearer-token verification.
type AuthConfig struct {
	// Enabled toggles token verification on API routes.
	Enabled bool // default: true

	// ServiceURL is the auth service's base URL.
	ServiceURL string // default: "http://127.0.0.1:1001"

	// CacheTTL bounds how long a verified token is trusted without
	// re-checking.
	CacheTTL time.Duration // default: 30s
}

// RateLimitConfig controls per-identity rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per identity.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per identity.
	Burst int // default: 10
}

// SessionConfig controls per-client analysis sessions.
type SessionConfig struct {
	// IdleTTL evicts sessions with no activity for this long.
	IdleTTL time.Duration // default: 2h
}

// ProgressConfig controls the simulated progress estimator.
type ProgressConfig struct {
	TickInterval     time.Duration // default: 1s
	MaxIncrement     float64       // default: 4
	Hold             float64       // default: 85
	CompleteStep     float64       // default: 5
	CompleteInterval time.Duration // default: 50ms
}

// PipelineConfig controls stage hardening.
type PipelineConfig struct {
	// StallTimeout fails a stage whose progress stream goes silent.
	StallTimeout time.Duration // default: 5m
}

// CacheConfig controls the single-page analysis cache.
type CacheConfig struct {
	MaxEntries int           // default: 1000
	TTL        time.Duration // default: 1h
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("TA_HOST", "0.0.0.0"),
			Port: envIntOr("TA_PORT", 8090),
			Mode: envOr("TA_MODE", "release"),
		},
		Backend: BackendConfig{
			AnalyzerURL:    envOr("TA_ANALYZER_URL", "http://127.0.0.1:1002"),
			RequestTimeout: envDurationOr("TA_BACKEND_TIMEOUT", 10*time.Minute),
		},
		Auth: AuthConfig{
			Enabled:    envBoolOr("TA_AUTH_ENABLED", true),
			ServiceURL: envOr("TA_AUTH_URL", "http://127.0.0.1:1001"),
			CacheTTL:   envDurationOr("TA_AUTH_CACHE_TTL", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("TA_RATE_RPS", 5.0),
			Burst:             envIntOr("TA_RATE_BURST", 10),
		},
		Session: SessionConfig{
			IdleTTL: envDurationOr("TA_SESSION_TTL", 2*time.Hour),
		},
		Progress: ProgressConfig{
			TickInterval:     envDurationOr("TA_PROGRESS_TICK", time.Second),
			MaxIncrement:     envFloatOr("TA_PROGRESS_MAX_STEP", 4),
			Hold:             envFloatOr("TA_PROGRESS_HOLD", 85),
			CompleteStep:     envFloatOr("TA_PROGRESS_COMPLETE_STEP", 5),
			CompleteInterval: envDurationOr("TA_PROGRESS_COMPLETE_TICK", 50*time.Millisecond),
		},
		Pipeline: PipelineConfig{
			StallTimeout: envDurationOr("TA_STALL_TIMEOUT", 5*time.Minute),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("TA_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("TA_CACHE_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("TA_LOG_LEVEL", "info"),
			Format: envOr("TA_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
