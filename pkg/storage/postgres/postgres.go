// Package postgres implements the storage contract on PostgreSQL. Appends run in
// one transaction that holds the account row lock until commit.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/chris/loyalty-ledger/pkg/storage"
	"github.com/chris/loyalty-ledger/pkg/storage/postgres/migrations"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jackc/pgx/v4/stdlib"
	pkgerrors "github.com/pkg/errors"
)

const uniqueViolation = "23505"

type Repo struct {
	pool *pgxpool.Pool
}

// Make sure we conform to the interface
var _ storage.Storage = (*Repo)(nil)

func New(ctx context.Context, addr string) (*Repo, error) {
	c, err := pgxpool.ParseConfig(addr)
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}

	dbpool, err := pgxpool.ConnectConfig(ctx, c)
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}

	if err = dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, pkgerrors.WithStack(err)
	}

	return &Repo{pool: dbpool}, nil
}

func (r *Repo) Close() {
	r.pool.Close()
}

// Migrate applies the embedded schema through a database/sql handle on the same DSN.
func Migrate(ctx context.Context, addr string) error {
	db, err := OpenDB(addr)
	if err != nil {
		return err
	}
	defer db.Close()

	return pkgerrors.WithStack(migrations.Up(ctx, db))
}

// OpenDB opens a database/sql handle backed by the pgx driver.
func OpenDB(addr string) (*sql.DB, error) {
	cc, err := pgx.ParseConfig(addr)
	if err != nil {
		return nil, pkgerrors.WithStack(err)
	}
	return stdlib.OpenDB(*cc), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// withTx runs fn in a transaction and commits only when fn succeeds.
func (r *Repo) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return pkgerrors.WithStack(err)
	}

	defer func() {
		if err == nil {
			err = pkgerrors.WithStack(tx.Commit(ctx))
		} else {
			_ = tx.Rollback(ctx)
		}
	}()

	return fn(tx)
}

// Ping reports whether the pool can reach the database.
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
