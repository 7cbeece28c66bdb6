// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the server needs to start.
type Config struct {
	Addr           string
	PostgresDSN    string
	RedisURL       string
	KafkaBrokers   []string
	AuditTopic     string
	JWTSigningKey  string
	IngestInterval time.Duration
	OracleURL      string
	OracleTimeout  time.Duration
	SLASweep       time.Duration
	ShipInterval   time.Duration
}

// FromEnv reads CHAINSCREEN_* variables, applying development defaults where
// a value is safe to default. The Postgres DSN has no default; refusing to
// start beats screening against an empty list.
func FromEnv() Config {
	return Config{
		Addr:           envOr("CHAINSCREEN_ADDR", ":8080"),
		PostgresDSN:    os.Getenv("CHAINSCREEN_POSTGRES_DSN"),
		RedisURL:       os.Getenv("CHAINSCREEN_REDIS_URL"),
		KafkaBrokers:   splitList(os.Getenv("CHAINSCREEN_KAFKA_BROKERS")),
		AuditTopic:     envOr("CHAINSCREEN_AUDIT_TOPIC", "chainscreen.audit"),
		JWTSigningKey:  envOr("CHAINSCREEN_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		IngestInterval: durationOr("CHAINSCREEN_INGEST_INTERVAL", 6*time.Hour),
		OracleURL:      os.Getenv("CHAINSCREEN_ORACLE_URL"),
		OracleTimeout:  durationOr("CHAINSCREEN_ORACLE_TIMEOUT", 800*time.Millisecond),
		SLASweep:       durationOr("CHAINSCREEN_SLA_SWEEP_INTERVAL", 5*time.Minute),
		ShipInterval:   durationOr("CHAINSCREEN_AUDIT_SHIP_INTERVAL", time.Second),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
