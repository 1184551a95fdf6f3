package backend

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/chris/loyalty-ledger/pkg/config"
	"github.com/chris/loyalty-ledger/pkg/notify"
	"github.com/chris/loyalty-ledger/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Memory", func(t *testing.T) {
		b, err := Open(context.Background(), &config.Config{StoreBackend: config.BackendMemory}, logger)
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, b.Store)
		assert.Nil(t, b.Ready)
		b.Close()
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := Open(context.Background(), &config.Config{StoreBackend: "redis"}, logger)
		assert.ErrorContains(t, err, "redis")
	})
}

func TestPublisher(t *testing.T) {
	t.Run("None", func(t *testing.T) {
		p, closeFn, err := Publisher(context.Background(), &config.Config{NotifyBackend: config.NotifyNone})
		require.NoError(t, err)
		assert.IsType(t, &notify.NoOpPublisher{}, p)
		assert.NoError(t, closeFn())
	})

	t.Run("Kafka", func(t *testing.T) {
		p, closeFn, err := Publisher(context.Background(), &config.Config{NotifyBackend: config.NotifyKafka, KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "balances"})
		require.NoError(t, err)
		assert.IsType(t, &notify.KafkaPublisher{}, p)
		assert.NoError(t, closeFn())
	})
}
