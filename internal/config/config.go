// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreHTTP     = "http"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Import   ImportConfig
	Submit   SubmitConfig
	Stores   StoresConfig
	Audit    AuditConfig
	Catalog  CatalogConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
// The URL is only required when a store uses Postgres.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies embedded migrations on startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// RedisConfig holds Redis settings for the Redis audit store.
type RedisConfig struct {
	// URL is a redis:// connection URL
	URL string `env:"REDIS_URL"`

	// AuditKey is the list key holding the audit log (default: tabimport:audit)
	AuditKey string `env:"REDIS_AUDIT_KEY" default:"tabimport:audit"`
}

// ImportConfig holds upload and import session settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of imports running at once (default: 5)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long an import waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a whole import run (default: 30m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"30m"`

	// PreviewRows is the number of prepared rows returned by validate (default: 20)
	PreviewRows int `env:"IMPORT_PREVIEW_ROWS" default:"20"`

	// SessionTTL is the idle time after which a session is dropped (default: 2h)
	SessionTTL time.Duration `env:"SESSION_TTL" default:"2h"`

	// SessionSweep is the cron schedule of the session sweep (default: @every 5m)
	SessionSweep string `env:"SESSION_SWEEP_SCHEDULE" default:"@every 5m"`
}

// SubmitConfig holds settings for posting records to table endpoints.
type SubmitConfig struct {
	// BaseURL resolves relative table endpoints
	BaseURL string `env:"SUBMIT_BASE_URL"`

	// Timeout is the per-request timeout (default: 30s)
	Timeout time.Duration `env:"SUBMIT_TIMEOUT" default:"30s"`

	// APIToken is sent as a bearer token when set
	APIToken string `env:"SUBMIT_API_TOKEN"`

	// CSRFTokenURL enables the CSRF token exchange when set
	CSRFTokenURL string `env:"SUBMIT_CSRF_URL"`

	// CSRFCookie is the cookie carrying the token (default: XSRF-TOKEN)
	CSRFCookie string `env:"SUBMIT_CSRF_COOKIE" default:"XSRF-TOKEN"`

	// CSRFHeader is the request header echoing the token (default: X-XSRF-TOKEN)
	CSRFHeader string `env:"SUBMIT_CSRF_HEADER" default:"X-XSRF-TOKEN"`

	// Concurrency is the number of rows in flight (default: 1, sequential)
	Concurrency int `env:"SUBMIT_CONCURRENCY" default:"1"`
}

// StoresConfig selects the template and audit store backends.
type StoresConfig struct {
	// Templates is memory, postgres or http (default: memory)
	Templates string `env:"TEMPLATE_STORE" default:"memory"`

	// Audit is memory, postgres or redis (default: memory)
	Audit string `env:"AUDIT_STORE" default:"memory"`

	// TemplateServiceURL is the template API root for the http store
	TemplateServiceURL string `env:"TEMPLATE_SERVICE_URL"`
}

// AuditConfig holds audit log retention settings.
type AuditConfig struct {
	// MaxEntries bounds the log; the oldest entries are evicted (default: 100)
	MaxEntries int `env:"AUDIT_MAX_ENTRIES" default:"100"`

	// Retention is the age after which entries are purged (default: 720h)
	Retention time.Duration `env:"AUDIT_RETENTION" default:"720h"`

	// PurgeSchedule is the cron schedule of the purge job (default: @daily)
	PurgeSchedule string `env:"AUDIT_PURGE_SCHEDULE" default:"@daily"`
}

// CatalogConfig locates the table catalog.
type CatalogConfig struct {
	// Path is a YAML catalog file; empty uses the built-in tables
	Path string `env:"CATALOG_PATH"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for upload and import endpoints (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// AllowedOrigins is a comma-separated list of CORS origins
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File additionally writes logs to a rotating file when set
	File string `env:"LOG_FILE"`

	// MaxSizeMB is the size at which the log file rotates (default: 100)
	MaxSizeMB int `env:"LOG_MAX_SIZE_MB" default:"100"`

	// MaxBackups is the number of rotated files kept (default: 5)
	MaxBackups int `env:"LOG_MAX_BACKUPS" default:"5"`

	// MaxAgeDays is the age after which rotated files are removed (default: 28)
	MaxAgeDays int `env:"LOG_MAX_AGE_DAYS" default:"28"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
