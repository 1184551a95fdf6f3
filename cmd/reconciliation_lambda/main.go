package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/loyalty-ledger/pkg/audit"
	"github.com/chris/loyalty-ledger/pkg/backend"
	"github.com/chris/loyalty-ledger/pkg/config"
	"github.com/chris/loyalty-ledger/pkg/engine"
)

var (
	auditor *audit.Auditor
	eng     *engine.Engine
	logger  *slog.Logger
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	be, err := backend.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	auditor = audit.New(be.Store, logger, audit.DefaultConcurrency)
	eng = engine.New(be.Store, engine.Options{Retention: cfg.IdempotencyRetention, Logger: logger})
}

// HandleRequest is triggered by an EventBridge Schedule. It drops expired
// idempotency records and then audits every account's ledger.
func HandleRequest(ctx context.Context) (*audit.Report, error) {
	logger.Info("starting reconciliation")

	if _, err := eng.PurgeExpired(ctx); err != nil {
		logger.Error("failed to purge operations", "error", err)
	}

	report, err := auditor.Run(ctx)
	if err != nil {
		logger.Error("audit failed", "error", err)
		return nil, err
	}
	for _, f := range report.Findings {
		logger.Error("ledger inconsistency", "account_id", f.AccountID, "seq", f.Seq, "problem", f.Problem)
	}

	logger.Info("reconciliation finished", "accounts", report.Accounts, "findings", len(report.Findings))
	return report, nil
}

func main() {
	lambda.Start(HandleRequest)
}
