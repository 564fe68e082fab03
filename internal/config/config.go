// Package config reads process configuration from the environment once at
// startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissing = errors.New("required environment variable not set")

const (
	defaultOTLPEndpoint = "localhost:4317"
	defaultTokenTTL     = 15 * 24 * time.Hour
)

type API struct {
	PostgresURL  string
	Port         string
	JWTSecret    string
	KafkaBrokers []string
	RedisURL     string
	OTLPEndpoint string
	CookieSecure bool
	TokenTTL     time.Duration
}

type Worker struct {
	KafkaBrokers    []string
	EmailServiceURL string
	PostgresURL     string
	OpsEmail        string
	OTLPEndpoint    string
}

type Email struct {
	Port         string
	OTLPEndpoint string
}

type Migrate struct {
	PostgresURL    string
	MigrationsPath string
}

// LoadAPI reports every missing or malformed variable at once.
func LoadAPI() (API, error) {
	var errs []error

	cfg := API{
		PostgresURL:  required("POSTGRES_URL", &errs),
		Port:         getEnvOrDefault("PORT", "8080"),
		JWTSecret:    required("JWT_SECRET", &errs),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		RedisURL:     os.Getenv("REDIS_URL"),
		OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", defaultOTLPEndpoint),
		TokenTTL:     defaultTokenTTL,
	}

	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("COOKIE_SECURE: %w", err))
		}
		cfg.CookieSecure = secure
	}

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("TOKEN_TTL: %w", err))
		case ttl <= 0:
			errs = append(errs, fmt.Errorf("TOKEN_TTL: must be positive, got %s", v))
		default:
			cfg.TokenTTL = ttl
		}
	}

	return cfg, errors.Join(errs...)
}

// LoadWorker reads the worker configuration. POSTGRES_URL is optional; without
// it orphaned orders are not reconciled.
func LoadWorker() (Worker, error) {
	var errs []error

	cfg := Worker{
		KafkaBrokers:    splitList(required("KAFKA_BROKERS", &errs)),
		EmailServiceURL: required("EMAIL_SERVICE_URL", &errs),
		PostgresURL:     os.Getenv("POSTGRES_URL"),
		OpsEmail:        os.Getenv("OPS_EMAIL"),
		OTLPEndpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", defaultOTLPEndpoint),
	}

	return cfg, errors.Join(errs...)
}

func LoadEmail() Email {
	return Email{
		Port:         getEnvOrDefault("PORT", "8084"),
		OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", defaultOTLPEndpoint),
	}
}

// LoadMigrate leaves MigrationsPath empty unless set, meaning the embedded
// migrations are used.
func LoadMigrate() (Migrate, error) {
	var errs []error
	cfg := Migrate{
		PostgresURL:    required("POSTGRES_URL", &errs),
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
	}
	return cfg, errors.Join(errs...)
}

func required(key string, errs *[]error) string {
	v := os.Getenv(key)
	if v == "" {
		*errs = append(*errs, fmt.Errorf("%w: %s", ErrMissing, key))
	}
	return v
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
