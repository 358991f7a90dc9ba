package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequired puts the two mandatory keys in the environment so tests can
// exercise one knob at a time.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_SIGNING_KEY", "auth-key")
	t.Setenv("ASSET_SIGNING_KEY", "asset-key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "marketplace", cfg.Keyspace)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 15*time.Minute, cfg.AssetURLTTL)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Empty(t, cfg.OrderLogPath)
	assert.Nil(t, cfg.FieldKey())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "30")
	t.Setenv("CACHE_TTL_SECONDS", "120")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, "redis.internal:6379", cfg.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 120*time.Second, cfg.CacheTTL)
}

func TestValidateRejections(t *testing.T) {
	setRequired(t)
	base := Load()
	require.NoError(t, base.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.HTTPAddr = "" }},
		{"unknown backend", func(c *Config) { c.StoreBackend = "dynamo" }},
		{"redis without addr", func(c *Config) { c.StoreBackend = BackendRedis; c.RedisAddr = "" }},
		{"redis without keyspace", func(c *Config) { c.StoreBackend = BackendRedis; c.Keyspace = "" }},
		{"missing auth key", func(c *Config) { c.AuthSigningKey = "" }},
		{"missing asset key", func(c *Config) { c.AssetSigningKey = "" }},
		{"field key not hex", func(c *Config) { c.FieldKeyHex = "zzzz" }},
		{"field key wrong length", func(c *Config) { c.FieldKeyHex = "abcd" }},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }},
		{"zero cache ttl", func(c *Config) { c.CacheTTL = 0 }},
		{"zero asset ttl", func(c *Config) { c.AssetURLTTL = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFieldKey(t *testing.T) {
	setRequired(t)
	t.Setenv("FIELD_ENCRYPTION_KEY", "30313233343536373839616263646566") // "0123456789abcdef"

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []byte("0123456789abcdef"), cfg.FieldKey())
}
