package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/loyalty-ledger/pkg/api"
	"github.com/chris/loyalty-ledger/pkg/backend"
	"github.com/chris/loyalty-ledger/pkg/config"
	"github.com/chris/loyalty-ledger/pkg/engine"
	"github.com/chris/loyalty-ledger/pkg/errs"
	"github.com/chris/loyalty-ledger/pkg/mapping"
	"github.com/chris/loyalty-ledger/pkg/query"
)

// queuedOperation is the SQS body POS terminals enqueue when they run offline.
type queuedOperation struct {
	api.NewOperation
	ActorUserId string `json:"actorUserId"`
}

type consumer struct {
	engine *engine.Engine
	query  *query.Service
	logger *slog.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	be, err := backend.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	publisher, _, err := backend.Publisher(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to create publisher", "error", err)
		os.Exit(1)
	}

	h := &consumer{
		engine: engine.New(be.Store, engine.Options{
			Retention:   cfg.IdempotencyRetention,
			MaxAttempts: cfg.AppendMaxAttempts,
			Publisher:   publisher,
			Logger:      logger,
		}),
		query:  query.New(be.Store, logger),
		logger: logger,
	}
	lambda.Start(h.HandleRequest)
}

// HandleRequest executes queued operations. Redelivered messages replay the
// stored result, so only infrastructure failures are reported back for retry.
func (c *consumer) HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, message := range sqsEvent.Records {
		log := c.logger.With("message_id", message.MessageId)

		var op queuedOperation
		if err := json.Unmarshal([]byte(message.Body), &op); err != nil {
			log.Error("dropping malformed message", "error", err)
			continue
		}
		if op.OperationId == "" {
			op.OperationId = message.MessageId
		}
		log = log.With("operation_id", op.OperationId, "op_type", op.OpType)

		err := c.execute(ctx, &op)
		switch {
		case err == nil:
			log.Info("operation executed")
		case errs.KindOf(err) == errs.KindInternal:
			log.Error("operation failed, will retry", "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: message.MessageId})
		default:
			log.Warn("operation rejected", "error", err)
		}
	}
	return resp, nil
}

func (c *consumer) execute(ctx context.Context, op *queuedOperation) error {
	acc, err := c.query.AccountByPublicCode(ctx, op.PublicCode)
	if err != nil {
		return err
	}
	req, err := mapping.ToDomainOperation(&op.NewOperation, acc.ID, op.ActorUserId)
	if err != nil {
		return err
	}
	_, err = c.engine.Execute(ctx, req)
	return err
}
