// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Inbound auth for the admin/tool surfaces (optional; dev passthrough when unset)
	Issuer   string
	Audience string
	JWKSURL  string

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string

	// Secrets at rest
	EncryptionKey string

	// Upstream call behaviour
	UpstreamTimeout time.Duration
	MaxRetries      int
	BrokerIdleTTL   time.Duration

	// Operation catalog & write-op policy
	CatalogPath string
	PolicyPath  string

	// Per-tenant invocations per minute (0 disables; requires redis)
	TenantRateLimit int
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:             env("ZSBROKER_ENV", "dev"),
		HTTPAddr:        env("ZSBROKER_HTTP_ADDR", ":8080"),
		Issuer:          env("OIDC_ISSUER", ""),
		Audience:        env("OIDC_AUDIENCE", "zsbroker"),
		JWKSURL:         env("JWKS_URL", ""),
		RedisURL:        env("REDIS_URL", ""),
		DatabaseURL:     env("DATABASE_URL", ""),
		EncryptionKey:   env("ENCRYPTION_KEY", ""),
		UpstreamTimeout: envDur("UPSTREAM_TIMEOUT_SEC", 15) * time.Second,
		MaxRetries:      envInt("DISPATCH_MAX_RETRIES", 3),
		BrokerIdleTTL:   envDur("BROKER_IDLE_TTL_SEC", 900) * time.Second,
		CatalogPath:     env("CATALOG_PATH", ""),
		PolicyPath:      env("POLICY_PATH", ""),
		TenantRateLimit: envInt("TENANT_RATE_LIMIT", 0),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory tenant store for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}
