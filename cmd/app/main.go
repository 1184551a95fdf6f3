package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chris/loyalty-ledger/pkg/auth"
	"github.com/chris/loyalty-ledger/pkg/backend"
	"github.com/chris/loyalty-ledger/pkg/config"
	"github.com/chris/loyalty-ledger/pkg/engine"
	"github.com/chris/loyalty-ledger/pkg/metrics"
	"github.com/chris/loyalty-ledger/pkg/query"
	"github.com/chris/loyalty-ledger/pkg/ruleset"
	"github.com/chris/loyalty-ledger/pkg/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const purgeInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET environment variable not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer be.Close()

	publisher, closePublisher, err := backend.Publisher(ctx, cfg)
	if err != nil {
		logger.Error("failed to create publisher", "backend", cfg.NotifyBackend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closePublisher(); err != nil {
			logger.Warn("failed to close publisher", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	eng := engine.New(be.Store, engine.Options{
		Retention:   cfg.IdempotencyRetention,
		MaxAttempts: cfg.AppendMaxAttempts,
		Publisher:   publisher,
		Metrics:     m,
		Logger:      logger,
	})

	router := server.NewRouter(server.Deps{
		Engine:         eng,
		Query:          query.New(be.Store, logger),
		Rulesets:       ruleset.New(be.Store, logger),
		Verifier:       auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
		Metrics:        m,
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Ready:          be.Ready,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go purgeLoop(ctx, eng, logger)

	go func() {
		logger.Info("starting server", "port", cfg.HTTPPort, "store", cfg.StoreBackend, "notify", cfg.NotifyBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// purgeLoop drops idempotency records past their retention window.
func purgeLoop(ctx context.Context, eng *engine.Engine, logger *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := eng.PurgeExpired(ctx); err != nil {
				logger.Error("failed to purge operations", "error", err)
			}
		}
	}
}
