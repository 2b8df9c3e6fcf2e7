package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration for the record engine.
type Config struct {
	Addr          string
	JWTSigningKey string
	Seed          bool

	// PostgresURL switches the record store from in-memory to postgres when set.
	PostgresURL string

	// RedisURL enables the compliance summary cache when set.
	RedisURL           string
	ComplianceCacheTTL time.Duration

	// KafkaBrokers enables the provenance event stream when non-empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("DPP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	cacheTTL := 5 * time.Minute
	if raw := os.Getenv("DPP_COMPLIANCE_CACHE_TTL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			cacheTTL = parsed
		}
	}

	var brokers []string
	if raw := os.Getenv("DPP_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	topic := os.Getenv("DPP_KAFKA_TOPIC")
	if topic == "" {
		topic = "dpp.provenance"
	}

	return Config{
		Addr:               addr,
		JWTSigningKey:      jwtSigningKey,
		Seed:               os.Getenv("DPP_SEED") == "true",
		PostgresURL:        os.Getenv("DPP_POSTGRES_URL"),
		RedisURL:           os.Getenv("DPP_REDIS_URL"),
		ComplianceCacheTTL: cacheTTL,
		KafkaBrokers:       brokers,
		KafkaTopic:         topic,
	}
}
