// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ledgersync/pkg/db" // Import db package for its Config struct

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Audit sinks.
const (
	AuditSinkLog   = "log"
	AuditSinkKafka = "kafka"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort  string
	StoreDriver string
	DB          db.Config

	// ProviderFetchTimeout bounds a single balance fetch from a provider.
	ProviderFetchTimeout time.Duration

	AuditSink    string
	KafkaBrokers []string
	AuditTopic   string
}

// LoadConfig loads configuration from environment variables, after loading
// an optional .env file. Missing variables fall back to local-development
// defaults.
func LoadConfig() (*AppConfig, error) {
	_ = godotenv.Load() // no .env file is fine

	serverPort := getEnv("SERVER_PORT", "8080")

	storeDriver := getEnv("STORE_DRIVER", StoreDriverPostgres)
	if storeDriver != StoreDriverPostgres && storeDriver != StoreDriverMemory {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", storeDriver)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	fetchTimeoutSec, err := strconv.Atoi(getEnv("PROVIDER_FETCH_TIMEOUT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_FETCH_TIMEOUT: %w", err)
	}
	if fetchTimeoutSec <= 0 {
		return nil, fmt.Errorf("PROVIDER_FETCH_TIMEOUT must be positive, got %d", fetchTimeoutSec)
	}

	auditSink := getEnv("AUDIT_SINK", AuditSinkLog)
	if auditSink != AuditSinkLog && auditSink != AuditSinkKafka {
		return nil, fmt.Errorf("invalid AUDIT_SINK %q", auditSink)
	}

	kafkaBrokers := splitAndTrim(getEnv("KAFKA_BROKERS", "localhost:9092"))
	if auditSink == AuditSinkKafka && len(kafkaBrokers) == 0 {
		return nil, fmt.Errorf("AUDIT_SINK=kafka requires KAFKA_BROKERS")
	}

	return &AppConfig{
		ServerPort:  serverPort,
		StoreDriver: storeDriver,
		DB: db.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "ledgersyncdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		ProviderFetchTimeout: time.Duration(fetchTimeoutSec) * time.Second,
		AuditSink:            auditSink,
		KafkaBrokers:         kafkaBrokers,
		AuditTopic:           getEnv("AUDIT_TOPIC", "ledger-audit"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
