// Package config loads application configuration from environment
// variables, applying defaults and validating on startup so the process
// fails fast on misconfiguration.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
}

// ImportConfig holds import pipeline settings.
type ImportConfig struct {
	// MaxFileSize is the maximum accepted upload size in bytes (default: 20MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"20971520"`

	// BatchSize is the number of rows inserted per commit batch
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"25"`

	// BatchPause is the delay between consecutive commit batches
	BatchPause time.Duration `env:"IMPORT_BATCH_PAUSE" default:"100ms"`

	// SessionTimeout bounds one session from parse through commit
	SessionTimeout time.Duration `env:"IMPORT_SESSION_TIMEOUT" default:"10m"`

	// CategoryRulesFile is an optional YAML file overriding the built-in
	// description keyword rules used for markup documents
	CategoryRulesFile string `env:"IMPORT_CATEGORY_RULES_FILE"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
