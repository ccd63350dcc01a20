package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"brewduel/adapters/redis"
	"brewduel/adapters/sqlx"
	"brewduel/rating"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete application configuration
type Config struct {
	// Environment and profile settings
	Environment Environment `json:"environment" toml:"environment" env:"ENV"`
	Profile     string      `json:"profile" toml:"profile" env:"PROFILE"`

	// Server configuration
	Server ServerConfig `json:"server" toml:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage" toml:"storage"`

	// Engine tuning
	Engine EngineConfig `json:"engine" toml:"engine"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" toml:"logging"`

	// Metrics and monitoring
	Metrics MetricsConfig `json:"metrics" toml:"metrics"`

	// Security configuration
	Security SecurityConfig `json:"security" toml:"security"`

	// Webhook fan-out
	Webhooks WebhookConfig `json:"webhooks" toml:"webhooks"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" toml:"address" env:"SERVER_ADDR"`
	PathPrefix        string        `json:"path_prefix" toml:"path_prefix" env:"SERVER_PATH_PREFIX"`
	CORSOrigin        string        `json:"cors_origin" toml:"cors_origin" env:"SERVER_CORS_ORIGIN"`
	ReadTimeout       time.Duration `json:"read_timeout" toml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" toml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" toml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" toml:"read_header_timeout" env:"SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" toml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string       `json:"adapter" toml:"adapter" env:"STORAGE_ADAPTER"`
	Redis   redis.Config `json:"redis,omitempty" toml:"redis"`
	SQL     sqlx.Config  `json:"sql,omitempty" toml:"sql"`
	File    FileConfig   `json:"file,omitempty" toml:"file"`
}

// FileConfig holds JSON file storage configuration
type FileConfig struct {
	Path string `json:"path" toml:"path" env:"STORAGE_FILE_PATH"`
}

// EngineConfig holds ranking engine tuning knobs
type EngineConfig struct {
	// KFactor is the Elo volatility constant.
	KFactor float64 `json:"k_factor" toml:"k_factor" env:"ENGINE_K_FACTOR"`
	// ItemCacheSize enables the LRU item cache decorator when positive.
	ItemCacheSize int `json:"item_cache_size" toml:"item_cache_size" env:"ENGINE_ITEM_CACHE_SIZE"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" toml:"level" env:"LOG_LEVEL"`
	Format     string            `json:"format" toml:"format" env:"LOG_FORMAT"`
	Output     string            `json:"output" toml:"output" env:"LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" toml:"attributes,omitempty"`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled" env:"METRICS_ENABLED"`
	Address string `json:"address" toml:"address" env:"METRICS_ADDR"`
	Path    string `json:"path" toml:"path" env:"METRICS_PATH"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRateLimit bool            `json:"enable_rate_limit" toml:"enable_rate_limit" env:"SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" toml:"rate_limit"`
	APIKeys         []string        `json:"api_keys,omitempty" toml:"api_keys" env:"SECURITY_API_KEYS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" toml:"requests_per_minute" env:"SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" toml:"burst_size" env:"SECURITY_RATE_LIMIT_BURST"`
}

// WebhookConfig holds outbound webhook settings
type WebhookConfig struct {
	Endpoints []string `json:"endpoints,omitempty" toml:"endpoints" env:"WEBHOOK_ENDPOINTS"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load from environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := strings.ToLower(filepath.Clean(path))
	if !strings.HasSuffix(cleanPath, ".json") && !strings.HasSuffix(cleanPath, ".toml") {
		return errors.New("config file must have .json or .toml extension")
	}

	if _, err := os.Stat(filepath.Clean(path)); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or TOML file
func LoadFromFile(path string) (*Config, error) {
	// Validate the path for security
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	// Open the file safely after validation
	file, err := os.Open(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if strings.HasSuffix(strings.ToLower(path), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Environment variables override file values
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Server: ServerConfig{
			Address:           ":8080",
			PathPrefix:        "/api",
			CORSOrigin:        "*",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis:   redis.DefaultConfig(),
			SQL:     sqlx.DefaultConfig(sqlx.DriverPostgres),
			File: FileConfig{
				Path: "./data/brewduel.json",
			},
		},
		Engine: EngineConfig{
			KFactor:       rating.DefaultK,
			ItemCacheSize: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
			Path:    "/metrics",
		},
		Security: SecurityConfig{
			EnableRateLimit: false,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				BurstSize:         10,
			},
			APIKeys: []string{},
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	// Validate environment
	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("engine config: %v", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}
	if err := c.Metrics.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("metrics config: %v", err))
	}
	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	// Create a copy for redaction
	cfg := *c

	// Redact sensitive information
	if cfg.Storage.SQL.DSN != "" {
		cfg.Storage.SQL.DSN = "[REDACTED]"
	}
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
