package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "agendahub/pkg/platform/strings"
)

// AgendaCacheTTL bounds how long a cached agenda snapshot may be served.
// Registration windows are minute-granular, so a short TTL is safe.
var AgendaCacheTTL = 5 * time.Minute

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// Postgres captures the primary store connection.
type Postgres struct {
	URL string
}

// Redis captures the optional cache connection. Empty URL disables caching.
type Redis struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures the optional domain-event sink. Empty brokers disable it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Gateway captures the external payment gateway credentials. The server key
// signs webhook notifications and authenticates charge requests; it is
// injected here and never read from the environment at call sites.
type Gateway struct {
	BaseURL       string
	ServerKey     string
	ChargeTimeout time.Duration
}

// RateLimit throttles the anonymous guest registration surface. A zero
// GuestLimit disables throttling.
type RateLimit struct {
	GuestLimit  int64
	GuestWindow time.Duration
}

// Auth captures token signing configuration.
type Auth struct {
	JWTSigningKey string
	TokenTTL      time.Duration
	Issuer        string
}

// Config aggregates all sections so main wires one value through constructors.
type Config struct {
	Server    Server
	Postgres  Postgres
	Redis     Redis
	Kafka     Kafka
	Gateway   Gateway
	RateLimit RateLimit
	Auth      Auth
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Server: Server{
			Addr: envOr("AGENDAHUB_ADDR", ":8080"),
		},
		Postgres: Postgres{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{
			Topic: envOr("KAFKA_EVENTS_TOPIC", "agendahub.events"),
		},
		Gateway: Gateway{
			BaseURL:       envOr("PAYMENT_GATEWAY_URL", "https://api.sandbox.midtrans.com"),
			ServerKey:     os.Getenv("PAYMENT_SERVER_KEY"),
			ChargeTimeout: 15 * time.Second,
		},
		RateLimit: RateLimit{
			GuestLimit:  envInt64("GUEST_RATE_LIMIT", 30),
			GuestWindow: time.Minute,
		},
		Auth: Auth{
			JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			TokenTTL:      24 * time.Hour,
			Issuer:        "agendahub",
		},
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = pstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
