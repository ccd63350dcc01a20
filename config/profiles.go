package config

import (
	"fmt"
	"time"
)

// LoadProfile returns a configuration preset for the named deployment
// profile, with environment variables applied on top.
func LoadProfile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name

	switch name {
	case "development":
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"

	case "testing":
		cfg.Environment = EnvTesting
		cfg.Storage.Adapter = "memory"
		cfg.Logging.Level = "warn"

	case "staging":
		cfg.Environment = EnvStaging
		cfg.Metrics.Enabled = true
		cfg.Security.EnableRateLimit = true

	case "production":
		cfg.Environment = EnvProduction
		cfg.Server.ReadTimeout = 15 * time.Second
		cfg.Server.WriteTimeout = 15 * time.Second
		cfg.Metrics.Enabled = true
		cfg.Security.EnableRateLimit = true
		cfg.Security.RateLimit.RequestsPerMinute = 300
		cfg.Security.RateLimit.BurstSize = 50

	default:
		return nil, fmt.Errorf("unknown profile: %s", name)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
