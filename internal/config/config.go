// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig
	App     AppConfig
	Shards  ShardConfig
	Counter CounterConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Address returns the host:port the server listens on.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Env      string
	LogLevel string
}

// IsDevelopment reports whether the app runs in a development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

// IsProduction reports whether the app runs in a production environment.
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// ShardConfig holds the backend counter store topology.
type ShardConfig struct {
	// URLs are the shard identifiers, e.g. "redis://counter-1:6379/0".
	// Each is both the connection target and the hash-ring input.
	URLs         []string
	VirtualNodes int
	Timeout      time.Duration
}

// CounterConfig holds the write-back counter engine knobs.
type CounterConfig struct {
	FlushInterval time.Duration
	CacheTTL      time.Duration
}

// Load reads configuration from environment variables, applying defaults
// where a variable is unset. REDIS_SHARDS and CACHE_TTL_SECONDS are
// required.
func Load() (*Config, error) {
	cfg := &Config{}

	var err error
	if cfg.Server.Port, err = getEnvInt("SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	cfg.Server.Host = getEnvStr("SERVER_HOST", "0.0.0.0")
	if cfg.Server.ReadTimeout, err = getEnvDuration("SERVER_READ_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Server.ShutdownTimeout, err = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	cfg.App.Env = getEnvStr("APP_ENV", "development")
	cfg.App.LogLevel = getEnvStr("LOG_LEVEL", "info")

	cfg.Shards.URLs = splitShards(os.Getenv("REDIS_SHARDS"))
	if len(cfg.Shards.URLs) == 0 {
		return nil, fmt.Errorf("REDIS_SHARDS is required (comma-separated shard URLs)")
	}
	if cfg.Shards.VirtualNodes, err = getEnvInt("VIRTUAL_NODES", 100); err != nil {
		return nil, err
	}
	if cfg.Shards.VirtualNodes <= 0 {
		return nil, fmt.Errorf("VIRTUAL_NODES must be positive, got %d", cfg.Shards.VirtualNodes)
	}
	if cfg.Shards.Timeout, err = getEnvSeconds("SHARD_TIMEOUT_SECONDS", 5*time.Second); err != nil {
		return nil, err
	}

	if cfg.Counter.FlushInterval, err = getEnvSeconds("FLUSH_INTERVAL_SECONDS", 30*time.Second); err != nil {
		return nil, err
	}
	if _, ok := os.LookupEnv("CACHE_TTL_SECONDS"); !ok {
		return nil, fmt.Errorf("CACHE_TTL_SECONDS is required")
	}
	if cfg.Counter.CacheTTL, err = getEnvSeconds("CACHE_TTL_SECONDS", 0); err != nil {
		return nil, err
	}
	if cfg.Counter.CacheTTL <= 0 {
		return nil, fmt.Errorf("CACHE_TTL_SECONDS must be positive")
	}

	return cfg, nil
}

// splitShards parses a comma-separated shard list, dropping blanks.
func splitShards(s string) []string {
	var urls []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}

// getEnvStr reads a string variable with a default.
func getEnvStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt reads an integer variable with a default.
func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

// getEnvDuration reads a Go duration variable (e.g. "5s") with a default.
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, v, err)
	}
	return d, nil
}

// getEnvSeconds reads a duration expressed as a number of seconds, which may
// be fractional (e.g. "0.5").
func getEnvSeconds(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid seconds value %q: %w", key, v, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
