// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"

	NotifyNone  = "none"
	NotifySQS   = "sqs"
	NotifyKafka = "kafka"
)

type Config struct {
	HTTPPort        string
	StoreBackend    string
	RulesetsTable   string
	AccountsTable   string
	EventsTable     string
	OperationsTable string
	PostgresURL     string

	JWTSecret string
	JWTIssuer string

	IdempotencyRetention time.Duration
	AppendMaxAttempts    int

	NotifyBackend string
	SQSQueueURL   string
	KafkaBrokers  []string
	KafkaTopic    string

	CORSAllowedOrigins []string
	LogLevel           slog.Level
	ShutdownTimeout    time.Duration
}

// Load reads a .env file when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	c := &Config{
		HTTPPort:        get("HTTP_PORT", "8080"),
		StoreBackend:    strings.ToLower(get("STORE_BACKEND", BackendMemory)),
		RulesetsTable:   get("DYNAMODB_RULESETS_TABLE_NAME", ""),
		AccountsTable:   get("DYNAMODB_ACCOUNTS_TABLE_NAME", ""),
		EventsTable:     get("DYNAMODB_EVENTS_TABLE_NAME", ""),
		OperationsTable: get("DYNAMODB_OPERATIONS_TABLE_NAME", ""),
		PostgresURL:     get("POSTGRES_URL", ""),
		JWTSecret:       get("JWT_SECRET", ""),
		JWTIssuer:       get("JWT_ISSUER", ""),
		NotifyBackend:   strings.ToLower(get("NOTIFY_BACKEND", NotifyNone)),
		SQSQueueURL:     get("SQS_QUEUE_URL", ""),
		KafkaBrokers:    splitList(get("KAFKA_BROKERS", "")),
		KafkaTopic:      get("KAFKA_TOPIC", ""),

		CORSAllowedOrigins: splitList(get("CORS_ALLOWED_ORIGINS", "")),
	}

	var err error
	if c.IdempotencyRetention, err = time.ParseDuration(get("IDEMPOTENCY_RETENTION", "168h")); err != nil {
		return nil, fmt.Errorf("invalid IDEMPOTENCY_RETENTION: %w", err)
	}
	if c.ShutdownTimeout, err = time.ParseDuration(get("SHUTDOWN_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	if c.AppendMaxAttempts, err = strconv.Atoi(get("APPEND_MAX_ATTEMPTS", "5")); err != nil {
		return nil, fmt.Errorf("invalid APPEND_MAX_ATTEMPTS: %w", err)
	}
	if err = c.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "INFO"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return c, c.Validate()
}

// Validate rejects a backend selection that lacks its required settings.
func (c *Config) Validate() error {
	var problems []error

	switch c.StoreBackend {
	case BackendMemory:
	case BackendDynamoDB:
		if c.RulesetsTable == "" || c.AccountsTable == "" || c.EventsTable == "" || c.OperationsTable == "" {
			problems = append(problems, errors.New("one or more DynamoDB table name environment variables are not set"))
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			problems = append(problems, errors.New("POSTGRES_URL is required for the postgres backend"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.NotifyBackend {
	case NotifyNone:
	case NotifySQS:
		if c.SQSQueueURL == "" {
			problems = append(problems, errors.New("SQS_QUEUE_URL is required for the sqs notifier"))
		}
	case NotifyKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			problems = append(problems, errors.New("KAFKA_BROKERS and KAFKA_TOPIC are required for the kafka notifier"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown NOTIFY_BACKEND %q", c.NotifyBackend))
	}

	if c.IdempotencyRetention <= 0 {
		problems = append(problems, errors.New("IDEMPOTENCY_RETENTION must be positive"))
	}
	if c.AppendMaxAttempts < 1 {
		problems = append(problems, errors.New("APPEND_MAX_ATTEMPTS must be >= 1"))
	}

	return errors.Join(problems...)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
