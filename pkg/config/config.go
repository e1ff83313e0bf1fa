package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the social image cache
type Config struct {
	// Cache locations
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Download engine tuning
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Outbound request rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Prometheus metrics endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CacheConfig holds where images and their records are stored
type CacheConfig struct {
	RootDirectory string `yaml:"root_directory" json:"root_directory"`
	DatabasePath  string `yaml:"database_path" json:"database_path"`
}

// EngineConfig holds the download engine limits
type EngineConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent" json:"max_concurrent"`
	MaxBatchSize  int           `yaml:"max_batch_size" json:"max_batch_size"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	MaxRedirects  int           `yaml:"max_redirects" json:"max_redirects"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	// MaxBodySize caps a response body in bytes
	MaxBodySize int64 `yaml:"max_body_size" json:"max_body_size"`
}

// RateLimitConfig holds outbound request rate limiting configuration.
// A zero RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Listen  string `yaml:"listen" json:"listen"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	dataDir := defaultDataDirectory()
	return &Config{
		Cache: CacheConfig{
			RootDirectory: filepath.Join(dataDir, "images"),
			DatabasePath:  filepath.Join(dataDir, "socialcache.db"),
		},
		Engine: EngineConfig{
			MaxConcurrent: 5,
			MaxBatchSize:  50,
			Timeout:       60 * time.Second,
			MaxRedirects:  5,
			UserAgent:     "socialcache/1.0",
			MaxBodySize:   32 << 20,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 0,
			Burst:             5,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// defaultDataDirectory follows XDG_DATA_HOME, then ~/.local/share
func defaultDataDirectory() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "socialcache")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "socialcache-data"
	}
	return filepath.Join(home, ".local", "share", "socialcache")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if dir := os.Getenv("SOCIALCACHE_ROOT_DIR"); dir != "" {
		c.Cache.RootDirectory = dir
	}
	if db := os.Getenv("SOCIALCACHE_DATABASE"); db != "" {
		c.Cache.DatabasePath = db
	}

	if v := os.Getenv("SOCIALCACHE_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SOCIALCACHE_MAX_CONCURRENT: %w", err))
		} else {
			c.Engine.MaxConcurrent = n
		}
	}
	if v := os.Getenv("SOCIALCACHE_MAX_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SOCIALCACHE_MAX_BATCH_SIZE: %w", err))
		} else {
			c.Engine.MaxBatchSize = n
		}
	}
	if v := os.Getenv("SOCIALCACHE_MAX_BODY_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SOCIALCACHE_MAX_BODY_SIZE: %w", err))
		} else {
			c.Engine.MaxBodySize = n
		}
	}
	if v := os.Getenv("SOCIALCACHE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SOCIALCACHE_TIMEOUT: %w", err))
		} else {
			c.Engine.Timeout = d
		}
	}
	if v := os.Getenv("SOCIALCACHE_REQUESTS_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("SOCIALCACHE_REQUESTS_PER_SECOND: %w", err))
		} else {
			c.RateLimit.RequestsPerSecond = f
		}
	}

	if v := os.Getenv("SOCIALCACHE_METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = strings.ToLower(v) == "true"
	}
	if logLevel := os.Getenv("SOCIALCACHE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".socialcache.yaml",
		".socialcache.yml",
		filepath.Join(home, ".config", "socialcache", "config.yaml"),
		filepath.Join(home, ".config", "socialcache", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Cache.RootDirectory == "" {
		errs = append(errs, errors.New("cache root directory is required"))
	}
	if c.Cache.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}

	if c.Engine.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("max concurrent downloads must be positive"))
	}
	if c.Engine.MaxBatchSize <= 0 {
		errs = append(errs, errors.New("max batch size must be positive"))
	}
	if c.Engine.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Engine.MaxRedirects < 0 {
		errs = append(errs, errors.New("max redirects cannot be negative"))
	}
	if c.Engine.MaxBodySize <= 0 {
		errs = append(errs, errors.New("max body size must be positive"))
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests per second cannot be negative"))
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("burst must be positive when rate limiting is enabled"))
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		errs = append(errs, errors.New("metrics listen address is required when metrics are enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dir, ok := flags["root-dir"].(string); ok && dir != "" {
		c.Cache.RootDirectory = dir
	}
	if db, ok := flags["database"].(string); ok && db != "" {
		c.Cache.DatabasePath = db
	}
	if n, ok := flags["max-concurrent"].(int); ok && n > 0 {
		c.Engine.MaxConcurrent = n
	}
	if n, ok := flags["max-batch-size"].(int); ok && n > 0 {
		c.Engine.MaxBatchSize = n
	}
	if d, ok := flags["timeout"].(time.Duration); ok && d > 0 {
		c.Engine.Timeout = d
	}
	if listen, ok := flags["metrics-listen"].(string); ok && listen != "" {
		c.Metrics.Enabled = true
		c.Metrics.Listen = listen
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".socialcache.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
