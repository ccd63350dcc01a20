package config

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Environment variable names for secrets kept out of config files.
const (
	secretRedisPassword = "BREWDUEL_SECRET_REDIS_PASSWORD"
	secretSQLDSN        = "BREWDUEL_SECRET_SQL_DSN"
	secretAPIKeys       = "BREWDUEL_SECRET_API_KEYS"
)

// SecretStore resolves secret values by key.
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	GetWithDefault(ctx context.Context, key, fallback string) string
}

// EnvironmentSecretStore reads secrets from process environment variables.
type EnvironmentSecretStore struct{}

// NewEnvironmentSecretStore creates a secret store backed by the environment.
func NewEnvironmentSecretStore() *EnvironmentSecretStore {
	return &EnvironmentSecretStore{}
}

// Get returns the secret for key, or an error when it is unset.
func (s *EnvironmentSecretStore) Get(_ context.Context, key string) (string, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("secret %s not found", key)
	}
	return value, nil
}

// GetWithDefault returns the secret for key, or fallback when unset.
func (s *EnvironmentSecretStore) GetWithDefault(_ context.Context, key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return value
}

// LoadSecretsFromEnv overwrites sensitive config fields from dedicated
// secret environment variables. Values already in the config are kept when
// the corresponding secret is unset.
func (c *Config) LoadSecretsFromEnv(ctx context.Context) error {
	store := NewEnvironmentSecretStore()

	c.Storage.Redis.Password = store.GetWithDefault(ctx, secretRedisPassword, c.Storage.Redis.Password)
	c.Storage.SQL.DSN = store.GetWithDefault(ctx, secretSQLDSN, c.Storage.SQL.DSN)

	if keys := store.GetWithDefault(ctx, secretAPIKeys, ""); keys != "" {
		parts := strings.Split(keys, ",")
		c.Security.APIKeys = c.Security.APIKeys[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				c.Security.APIKeys = append(c.Security.APIKeys, p)
			}
		}
	}

	return nil
}
