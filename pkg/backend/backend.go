// Package backend opens the storage and notification backends selected by config.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/loyalty-ledger/pkg/config"
	"github.com/chris/loyalty-ledger/pkg/notify"
	"github.com/chris/loyalty-ledger/pkg/storage"
	"github.com/chris/loyalty-ledger/pkg/storage/memory"
	"github.com/chris/loyalty-ledger/pkg/storage/postgres"
	dydbstore "github.com/chris/loyalty-ledger/pkg/storage/dynamodb"
)

// Backend is an opened store plus its lifecycle hooks.
type Backend struct {
	Store storage.Storage
	// Ready is nil when the backend has no cheap reachability check.
	Ready func(ctx context.Context) error
	Close func()
}

// Open connects the store named by cfg.StoreBackend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return &Backend{Store: memory.New(), Close: func() {}}, nil

	case config.BackendDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to load SDK config: %w", err)
		}
		store := dydbstore.New(dynamodb.NewFromConfig(awsCfg), cfg.RulesetsTable, cfg.AccountsTable, cfg.EventsTable, cfg.OperationsTable)
		return &Backend{Store: store, Close: func() {}}, nil

	case config.BackendPostgres:
		repo, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return &Backend{Store: repo, Ready: repo.Ping, Close: repo.Close}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Publisher builds the balance-update publisher named by cfg.NotifyBackend.
// The returned close func flushes pending messages.
func Publisher(ctx context.Context, cfg *config.Config) (notify.Publisher, func() error, error) {
	switch cfg.NotifyBackend {
	case config.NotifyNone:
		return &notify.NoOpPublisher{}, func() error { return nil }, nil

	case config.NotifySQS:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to load SDK config: %w", err)
		}
		return notify.NewSQSPublisher(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL), func() error { return nil }, nil

	case config.NotifyKafka:
		p := notify.NewKafkaPublisher(notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		return p, p.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown notify backend %q", cfg.NotifyBackend)
	}
}
