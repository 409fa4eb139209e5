package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	DirectoryBackendHTTP    = "http"
	DirectoryBackendElastic = "elastic"

	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port             string `env:"PORT" envDefault:"8080"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	ReadTimeoutSecs  int    `env:"SERVER_READ_TIMEOUT" envDefault:"15"`
	WriteTimeoutSecs int    `env:"SERVER_WRITE_TIMEOUT" envDefault:"15"`
	IdleTimeoutSecs  int    `env:"SERVER_IDLE_TIMEOUT" envDefault:"60"`

	DBURL             string `env:"DB_URL"`
	DBMaxConns        int    `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns        int    `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxIdleSecs     int    `env:"DB_MAX_CONN_IDLE_SECS" envDefault:"300"`
	DBMaxLifeSecs     int    `env:"DB_MAX_CONN_LIFETIME_SECS" envDefault:"3600"`
	DBConnTimeoutSecs int    `env:"DB_CONN_TIMEOUT_SECS" envDefault:"10"`
	DBStatementCache  int    `env:"DB_STATEMENT_CACHE_CAPACITY" envDefault:"256"`

	GeocodeURL    string `env:"GEOCODE_URL" envDefault:"https://maps.googleapis.com/maps/api/geocode/json"`
	GeocodeAPIKey string `env:"GEOCODE_API_KEY"`

	DirectoryBackend       string   `env:"DIRECTORY_BACKEND" envDefault:"http"`
	DirectoryURL           string   `env:"DIRECTORY_URL" envDefault:"https://services.chipotle.com/restaurant/v3/restaurant"`
	DirectoryAPIKey        string   `env:"DIRECTORY_API_KEY"`
	DirectoryRadiusMeters  int      `env:"DIRECTORY_RADIUS_METERS" envDefault:"100000"`
	DirectoryPageSize      int      `env:"DIRECTORY_PAGE_SIZE" envDefault:"1000"`
	DirectoryStatuses      []string `env:"DIRECTORY_STATUSES" envDefault:"OPEN,LAB" envSeparator:","`
	DirectoryConceptIDs    []string `env:"DIRECTORY_CONCEPT_IDS" envDefault:"CMG" envSeparator:","`
	DirectoryAddressTypes  []string `env:"DIRECTORY_ADDRESS_TYPES" envDefault:"MAIN" envSeparator:","`
	ElasticURL             string   `env:"ELASTIC_URL" envDefault:"http://localhost:9200"`
	ElasticIndex           string   `env:"ELASTIC_INDEX" envDefault:"sites"`
	UpstreamTimeoutSecs    int      `env:"UPSTREAM_TIMEOUT_SECS" envDefault:"5"`
	UpstreamMaxQPS         float64  `env:"UPSTREAM_MAX_QPS" envDefault:"0"`
	UpstreamBreakerFailure float64  `env:"UPSTREAM_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	UpstreamBreakerMinReqs uint32   `env:"UPSTREAM_BREAKER_MIN_REQUESTS" envDefault:"5"`
	UpstreamBreakerOpenSec int      `env:"UPSTREAM_BREAKER_OPEN_SECS" envDefault:"30"`

	RateLimitBackend     string `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	RateLimitWindowMs    int64  `env:"RATE_LIMIT_WINDOW_MS" envDefault:"900000"`
	RateLimitMaxRequests int    `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"5"`
	RateLimitMaxKeys     int    `env:"RATE_LIMIT_MAX_KEYS" envDefault:"100000"`
	RedisAddr            string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword        string `env:"REDIS_PASSWORD"`
	RedisDB              int    `env:"REDIS_DB" envDefault:"0"`

	EnrichConcurrency int `env:"ENRICH_CONCURRENCY" envDefault:"16"`
	EnrichTimeoutMs   int `env:"ENRICH_TIMEOUT_MS" envDefault:"2000"`
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if cfg.GeocodeAPIKey == "" {
		return Config{}, fmt.Errorf("GEOCODE_API_KEY is required")
	}
	switch cfg.DirectoryBackend {
	case DirectoryBackendHTTP:
		if cfg.DirectoryURL == "" {
			return Config{}, fmt.Errorf("DIRECTORY_URL is required")
		}
		if cfg.DirectoryAPIKey == "" {
			return Config{}, fmt.Errorf("DIRECTORY_API_KEY is required")
		}
	case DirectoryBackendElastic:
		if cfg.ElasticURL == "" || cfg.ElasticIndex == "" {
			return Config{}, fmt.Errorf("ELASTIC_URL and ELASTIC_INDEX are required")
		}
	default:
		return Config{}, fmt.Errorf("DIRECTORY_BACKEND must be %q or %q", DirectoryBackendHTTP, DirectoryBackendElastic)
	}
	if cfg.DirectoryRadiusMeters <= 0 {
		return Config{}, fmt.Errorf("DIRECTORY_RADIUS_METERS must be positive")
	}
	if cfg.DirectoryPageSize <= 0 {
		return Config{}, fmt.Errorf("DIRECTORY_PAGE_SIZE must be positive")
	}
	if cfg.UpstreamTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("UPSTREAM_TIMEOUT_SECS must be positive")
	}
	if cfg.UpstreamMaxQPS < 0 {
		return Config{}, fmt.Errorf("UPSTREAM_MAX_QPS must be non-negative")
	}
	if cfg.UpstreamBreakerFailure <= 0 || cfg.UpstreamBreakerFailure > 1 {
		return Config{}, fmt.Errorf("UPSTREAM_BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	switch cfg.RateLimitBackend {
	case RateLimitBackendMemory, RateLimitBackendRedis:
	default:
		return Config{}, fmt.Errorf("RATE_LIMIT_BACKEND must be %q or %q", RateLimitBackendMemory, RateLimitBackendRedis)
	}
	if cfg.RateLimitWindowMs <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_WINDOW_MS must be positive")
	}
	if cfg.RateLimitMaxRequests <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_MAX_REQUESTS must be positive")
	}
	if cfg.RateLimitMaxKeys <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_MAX_KEYS must be positive")
	}
	if cfg.EnrichConcurrency <= 0 {
		return Config{}, fmt.Errorf("ENRICH_CONCURRENCY must be positive")
	}
	if cfg.EnrichTimeoutMs <= 0 {
		return Config{}, fmt.Errorf("ENRICH_TIMEOUT_MS must be positive")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	return cfg, nil
}

// RateLimitWindow returns the fixed window length.
func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMs) * time.Millisecond
}

// UpstreamTimeout bounds every outbound provider call.
func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSecs) * time.Second
}

// EnrichTimeout bounds the rating lookup of a single site.
func (c Config) EnrichTimeout() time.Duration {
	return time.Duration(c.EnrichTimeoutMs) * time.Millisecond
}
