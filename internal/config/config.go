// Package config provides runtime configuration for the marketplace.
// Everything is collected once at startup and validated before any component
// is constructed; there are no environment lookups at first use.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds every recognized option. Zero values are never used
// implicitly: Load fills defaults and Validate rejects what is left invalid.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// StoreBackend selects the transactional store: memory or redis.
	StoreBackend string
	// RedisAddr is the host:port of the Redis instance backing the store
	// and the listing cache. Required for the redis backend.
	RedisAddr string
	// Keyspace prefixes every key the store writes; the analog of the
	// original table name.
	Keyspace string

	// AuthSigningKey signs and verifies bearer tokens at the gateway.
	AuthSigningKey string

	// FieldKeyHex is the hex-encoded AES key for supplier email encryption.
	// Empty disables field encryption.
	FieldKeyHex string

	// AssetSigningKey signs download URLs; AssetBaseURL is the asset host.
	AssetSigningKey string
	AssetBaseURL    string
	AssetURLTTL     time.Duration

	// CacheTTL bounds the staleness of cached product listings.
	CacheTTL time.Duration

	// OrderLogPath is the SQLite file for the order audit log. Empty
	// disables auditing.
	OrderLogPath string

	// OTLPEndpoint is the OTLP/HTTP collector for traces. Empty disables
	// trace export.
	OTLPEndpoint string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Load collects configuration from the environment with defaults applied.
// Call Validate before using the result.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: time.Duration(atoienv("SHUTDOWN_TIMEOUT_SECONDS", 15)) * time.Second,
		StoreBackend:    getenv("STORE_BACKEND", BackendMemory),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		Keyspace:        getenv("KEYSPACE", "marketplace"),
		AuthSigningKey:  getenv("AUTH_SIGNING_KEY", ""),
		FieldKeyHex:     getenv("FIELD_ENCRYPTION_KEY", ""),
		AssetSigningKey: getenv("ASSET_SIGNING_KEY", ""),
		AssetBaseURL:    getenv("ASSET_BASE_URL", "https://assets.marketplace.local"),
		AssetURLTTL:     time.Duration(atoienv("ASSET_URL_TTL_MINUTES", 15)) * time.Minute,
		CacheTTL:        time.Duration(atoienv("CACHE_TTL_SECONDS", 30)) * time.Second,
		OrderLogPath:    getenv("ORDER_LOG_PATH", ""),
		OTLPEndpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// Validate rejects configurations that would otherwise fail at first use.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("config: HTTP_ADDR is required")
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("config: REDIS_ADDR is required for the redis backend")
		}
		if c.Keyspace == "" {
			return fmt.Errorf("config: KEYSPACE is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q (want %q or %q)", c.StoreBackend, BackendMemory, BackendRedis)
	}
	if c.AuthSigningKey == "" {
		return fmt.Errorf("config: AUTH_SIGNING_KEY is required")
	}
	if c.AssetSigningKey == "" {
		return fmt.Errorf("config: ASSET_SIGNING_KEY is required")
	}
	if c.FieldKeyHex != "" {
		key, err := hex.DecodeString(c.FieldKeyHex)
		if err != nil {
			return fmt.Errorf("config: FIELD_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		switch len(key) {
		case 16, 24, 32:
		default:
			return fmt.Errorf("config: FIELD_ENCRYPTION_KEY must decode to 16, 24 or 32 bytes, got %d", len(key))
		}
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: SHUTDOWN_TIMEOUT_SECONDS must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: CACHE_TTL_SECONDS must be positive")
	}
	if c.AssetURLTTL <= 0 {
		return fmt.Errorf("config: ASSET_URL_TTL_MINUTES must be positive")
	}
	return nil
}

// FieldKey decodes FieldKeyHex. Only call after Validate.
func (c Config) FieldKey() []byte {
	if c.FieldKeyHex == "" {
		return nil
	}
	key, _ := hex.DecodeString(c.FieldKeyHex)
	return key
}
