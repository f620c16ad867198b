package config

import (
	"os"
	"strings"
	"time"
)

// RedisConfig captures connection settings for the optional record cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig captures the optional audit event sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Server captures process-level configuration. The admin principal and the
// initial validation rule are construction-time inputs to the registry:
// binding the admin happens exactly once, so they live in config rather than
// in any mutable API.
type Server struct {
	Addr           string
	AdminPrincipal string
	InitialRule    string
	GateDisabled   bool
	PostgresDSN    string
	Redis          RedisConfig
	CacheTTL       time.Duration
	Kafka          KafkaConfig
	JWTSigningKey  string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("PROVENANCE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("PROVENANCE_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("PROVENANCE_KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("PROVENANCE_KAFKA_TOPIC")
	if topic == "" {
		topic = "provenance.audit"
	}

	return Server{
		Addr:           addr,
		AdminPrincipal: os.Getenv("PROVENANCE_ADMIN"),
		InitialRule:    os.Getenv("PROVENANCE_INITIAL_RULE"),
		GateDisabled:   os.Getenv("PROVENANCE_GATE") == "off",
		PostgresDSN:    os.Getenv("PROVENANCE_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("PROVENANCE_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		CacheTTL:      5 * time.Minute,
		Kafka:         KafkaConfig{Brokers: brokers, Topic: topic},
		JWTSigningKey: jwtSigningKey,
	}
}
