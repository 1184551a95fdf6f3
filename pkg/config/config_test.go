package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestFromLookup(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		c, err := FromLookup(lookup(map[string]string{"JWT_SECRET": "s"}))
		require.NoError(t, err)
		assert.Equal(t, "8080", c.HTTPPort)
		assert.Equal(t, BackendMemory, c.StoreBackend)
		assert.Equal(t, NotifyNone, c.NotifyBackend)
		assert.Equal(t, 7*24*time.Hour, c.IdempotencyRetention)
		assert.Equal(t, 5, c.AppendMaxAttempts)
		assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
		assert.Equal(t, slog.LevelInfo, c.LogLevel)
	})

	t.Run("Overrides", func(t *testing.T) {
		c, err := FromLookup(lookup(map[string]string{
			"JWT_SECRET":           "s",
			"STORE_BACKEND":        "Postgres",
			"POSTGRES_URL":         "postgres://localhost/loyalty",
			"NOTIFY_BACKEND":       "kafka",
			"KAFKA_BROKERS":        "a:9092, b:9092,",
			"KAFKA_TOPIC":          "balances",
			"CORS_ALLOWED_ORIGINS": "https://pos.example.com",
			"LOG_LEVEL":            "debug",
			"APPEND_MAX_ATTEMPTS":  "3",
		}))
		require.NoError(t, err)
		assert.Equal(t, BackendPostgres, c.StoreBackend)
		assert.Equal(t, []string{"a:9092", "b:9092"}, c.KafkaBrokers)
		assert.Equal(t, []string{"https://pos.example.com"}, c.CORSAllowedOrigins)
		assert.Equal(t, slog.LevelDebug, c.LogLevel)
		assert.Equal(t, 3, c.AppendMaxAttempts)
	})

	t.Run("Bad Duration", func(t *testing.T) {
		_, err := FromLookup(lookup(map[string]string{"JWT_SECRET": "s", "IDEMPOTENCY_RETENTION": "a week"}))
		assert.ErrorContains(t, err, "IDEMPOTENCY_RETENTION")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"DynamoDB Without Tables", map[string]string{"JWT_SECRET": "s", "STORE_BACKEND": "dynamodb", "DYNAMODB_EVENTS_TABLE_NAME": "events"}, "DynamoDB table"},
		{"Postgres Without URL", map[string]string{"JWT_SECRET": "s", "STORE_BACKEND": "postgres"}, "POSTGRES_URL"},
		{"Unknown Backend", map[string]string{"JWT_SECRET": "s", "STORE_BACKEND": "redis"}, "unknown STORE_BACKEND"},
		{"SQS Without Queue", map[string]string{"JWT_SECRET": "s", "NOTIFY_BACKEND": "sqs"}, "SQS_QUEUE_URL"},
		{"Kafka Without Topic", map[string]string{"JWT_SECRET": "s", "NOTIFY_BACKEND": "kafka", "KAFKA_BROKERS": "a:9092"}, "KAFKA_TOPIC"},
		{"Zero Attempts", map[string]string{"JWT_SECRET": "s", "APPEND_MAX_ATTEMPTS": "0"}, "APPEND_MAX_ATTEMPTS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromLookup(lookup(tt.env))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
