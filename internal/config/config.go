// Package config loads the service configuration from config/<env>.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the recommender service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Spotify   SpotifyConfig   `yaml:"spotify"`
	Lookup    LookupConfig    `yaml:"lookup"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
}

// ArtifactsConfig locates the trained model artifacts.
type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// SpotifyConfig holds Spotify API credentials and pacing.
// Empty credentials disable the Spotify lookup.
type SpotifyConfig struct {
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	RequestPauseMs int    `yaml:"request_pause_ms"`
}

// LookupConfig holds seed lookup settings.
type LookupConfig struct {
	TimeoutSec   int     `yaml:"timeout_sec"`
	MaxAttempts  int     `yaml:"max_attempts"`
	BaseDelayMs  int     `yaml:"base_delay_ms"`
	Multiplier   float64 `yaml:"multiplier"`
	Cache        string  `yaml:"cache"` // none, file, postgres
	CacheFile    string  `yaml:"cache_file"`
	DefaultCount int     `yaml:"default_count"`
}

// BreakerConfig holds circuit breaker settings for the lookup provider.
type BreakerConfig struct {
	Enabled             bool   `yaml:"enabled"`
	ConsecutiveFailures uint32 `yaml:"consecutive_failures"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	IntervalSec         int    `yaml:"interval_sec"`
}

// DatabaseConfig holds PostgreSQL settings for the postgres cache.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Cache backends.
const (
	CacheNone     = "none"
	CacheFile     = "file"
	CachePostgres = "postgres"
)

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8080"
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 15
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "models"
	}
	if c.Spotify.RequestPauseMs <= 0 {
		c.Spotify.RequestPauseMs = 500
	}
	if c.Lookup.TimeoutSec <= 0 {
		c.Lookup.TimeoutSec = 10
	}
	if c.Lookup.MaxAttempts <= 0 {
		c.Lookup.MaxAttempts = 3
	}
	if c.Lookup.BaseDelayMs <= 0 {
		c.Lookup.BaseDelayMs = 1000
	}
	if c.Lookup.Multiplier < 1 {
		c.Lookup.Multiplier = 2
	}
	if c.Lookup.Cache == "" {
		c.Lookup.Cache = CacheFile
	}
	if c.Lookup.CacheFile == "" {
		c.Lookup.CacheFile = "song_features_cache.json"
	}
	if c.Lookup.DefaultCount <= 0 {
		c.Lookup.DefaultCount = 5
	}
	if c.Breaker.ConsecutiveFailures == 0 {
		c.Breaker.ConsecutiveFailures = 5
	}
	if c.Breaker.TimeoutSec <= 0 {
		c.Breaker.TimeoutSec = 30
	}
	if c.Breaker.IntervalSec <= 0 {
		c.Breaker.IntervalSec = 60
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.Lookup.DefaultCount > 20 {
		errs = append(errs, fmt.Errorf("lookup.default_count must be between 1 and 20, got %d", c.Lookup.DefaultCount))
	}
	switch c.Lookup.Cache {
	case CacheNone, CacheFile:
	case CachePostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required when lookup.cache is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("lookup.cache must be \"none\", \"file\" or \"postgres\", got %q", c.Lookup.Cache))
	}
	if (c.Spotify.ClientID == "") != (c.Spotify.ClientSecret == "") {
		errs = append(errs, errors.New("spotify.client_id and spotify.client_secret must be set together"))
	}
	return errors.Join(errs...)
}

// SpotifyEnabled reports whether Spotify credentials are configured.
func (c *Config) SpotifyEnabled() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// ReadTimeout returns the server read timeout.
func (c HTTPConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSec) * time.Second
}

// WriteTimeout returns the server write timeout.
func (c HTTPConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSec) * time.Second
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (c HTTPConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownSec) * time.Second
}

// Timeout returns the per-request lookup deadline.
func (c LookupConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// BaseDelay returns the first retry delay.
func (c LookupConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// RequestPause returns the minimum spacing between Spotify API calls.
func (c SpotifyConfig) RequestPause() time.Duration {
	return time.Duration(c.RequestPauseMs) * time.Millisecond
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
