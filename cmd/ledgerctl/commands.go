package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/chris/loyalty-ledger/pkg/audit"
	"github.com/chris/loyalty-ledger/pkg/auth"
	"github.com/chris/loyalty-ledger/pkg/backend"
	"github.com/chris/loyalty-ledger/pkg/config"
	"github.com/chris/loyalty-ledger/pkg/engine"
	"github.com/chris/loyalty-ledger/pkg/storage/postgres"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

const (
	fAddr        = "addr"
	fConcurrency = "concurrency"
	fSecret      = "secret"
	fIssuer      = "issuer"
	fTTL         = "ttl"
	fRole        = "role"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:        "migrate",
		Description: "apply the embedded postgres schema",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: fAddr, Required: true, EnvVars: []string{"POSTGRES_URL"}},
		},
		Action: func(c *cli.Context) error {
			if err := postgres.Migrate(c.Context, c.String(fAddr)); err != nil {
				return errors.Wrap(err, "migrate")
			}
			fmt.Fprintln(c.App.Writer, "schema is up to date")
			return nil
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:        "audit",
		Description: "replay every account ledger against its cached balance",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: fConcurrency, Value: audit.DefaultConcurrency, Aliases: []string{"c"}},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			be, err := backend.Open(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer be.Close()

			report, err := audit.New(be.Store, logger, c.Int(fConcurrency)).Run(c.Context)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return errors.WithStack(err)
			}
			if !report.OK() {
				return cli.Exit(fmt.Sprintf("%d inconsistencies found", len(report.Findings)), 2)
			}
			return nil
		},
	}
}

func purgeCommand() *cli.Command {
	return &cli.Command{
		Name:        "purge-operations",
		Description: "drop idempotency records past their retention window",
		Action: func(c *cli.Context) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			be, err := backend.Open(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer be.Close()

			n, err := engine.New(be.Store, engine.Options{Retention: cfg.IdempotencyRetention, Logger: logger}).PurgeExpired(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "purged %d operations\n", n)
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:        "token",
		Usage:       "token [--role ROLE]... USER_ID",
		Description: "issue a signed bearer token for local testing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: fSecret, Required: true, EnvVars: []string{"JWT_SECRET"}},
			&cli.StringFlag{Name: fIssuer, EnvVars: []string{"JWT_ISSUER"}},
			&cli.DurationFlag{Name: fTTL, Value: auth.DefaultTokenTTL},
			&cli.StringSliceFlag{Name: fRole, Aliases: []string{"r"}, Value: cli.NewStringSlice(string(auth.RoleClient))},
		},
		Action: func(c *cli.Context) error {
			userID := c.Args().First()
			if userID == "" {
				return cli.Exit("USER_ID is required", 1)
			}
			var roles []auth.Role
			for _, r := range c.StringSlice(fRole) {
				roles = append(roles, auth.Role(r))
			}

			token, err := auth.NewIssuer(c.String(fSecret), c.String(fIssuer), c.Duration(fTTL)).Issue(userID, roles...)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}

func load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	return cfg, logger, nil
}
