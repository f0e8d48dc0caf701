// Package config provides centralized configuration management for the trace
// synthesizer. It loads settings from environment variables, an optional
// config file, and defaults, then validates everything up front so a bad
// setting fails at startup rather than mid-run.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/JonMunkholm/tracesynth/internal/core"
)

// Config holds all application configuration.
type Config struct {
	Data     DataConfig
	Save     SaveConfig
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// DataConfig holds table input/output settings.
type DataConfig struct {
	// Root is the directory HTTP paths are resolved against (default: .)
	Root string `env:"DATA_ROOT" default:"."`

	// Input is the table the batch driver loads
	Input string `env:"SYNTH_INPUT"`

	// Output is where the batch driver saves the table
	Output string `env:"SYNTH_OUTPUT"`

	// MaxUploadSize caps uploaded request bodies in bytes (default: 100MB)
	MaxUploadSize int64 `env:"DATA_MAX_UPLOAD_SIZE" default:"104857600"`
}

// SaveConfig holds the save retry policy and concurrency limits.
type SaveConfig struct {
	// MaxAttempts bounds write attempts; 0 retries until cancelled (default: 5)
	MaxAttempts int `env:"SAVE_MAX_ATTEMPTS" default:"5"`

	// InitialBackoff is the wait after the first failure (default: 100ms)
	InitialBackoff time.Duration `env:"SAVE_INITIAL_BACKOFF" default:"100ms"`

	// MaxBackoff caps the wait between attempts (default: 5s)
	MaxBackoff time.Duration `env:"SAVE_MAX_BACKOFF" default:"5s"`

	// Multiplier grows the wait after each failure (default: 2)
	Multiplier float64 `env:"SAVE_BACKOFF_MULTIPLIER" default:"2"`

	// MaxConcurrent is the number of saves the server runs at once (default: 4)
	MaxConcurrent int `env:"SAVE_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for a save slot (default: 30s)
	MaxWaitTime time.Duration `env:"SAVE_MAX_WAIT_TIME" default:"30s"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 90s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// DatabaseConfig holds the optional PostgreSQL export target.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; export is disabled when empty
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// ExportTable is the table the batch driver exports to, when set
	ExportTable string `env:"DB_EXPORT_TABLE"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: trace, text or json (default: trace)
	Format string `env:"LOG_FORMAT" default:"trace"`

	// SeqURL ships logs to a Seq server when set
	SeqURL string `env:"LOG_SEQ_URL"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Policy converts the save settings into a retry policy.
func (c *SaveConfig) Policy() core.RetryPolicy {
	return core.RetryPolicy{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
		Multiplier:     c.Multiplier,
	}
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}
