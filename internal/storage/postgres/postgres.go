// Package postgres provides the Postgres-backed implementation of the
// storage.Store interface using pgx.
//
// Postgres supplies the three transactional primitives the ledger depends
// on: snapshot isolation (REPEATABLE READ), explicit row locks
// (SELECT ... FOR UPDATE), and serialization-failure signaling
// (SQLSTATE 40001), mapped here onto the storage sentinel errors.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmynk/splitsync/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store implements storage.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database, verifies the connection and runs migrations.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Begin opens a transaction with the requested isolation and access mode.
func (s *Store) Begin(ctx context.Context, opts storage.TxOptions) (storage.Tx, error) {
	pgOpts := pgx.TxOptions{}
	if opts.Isolation == storage.RepeatableRead {
		pgOpts.IsoLevel = pgx.RepeatableRead
	}
	if opts.ReadOnly {
		pgOpts.AccessMode = pgx.ReadOnly
	}

	tx, err := s.pool.BeginTx(ctx, pgOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Tx implements storage.Tx on a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

// Commit commits the transaction. A snapshot conflict surfaces here as
// storage.ErrSerialization.
func (t *Tx) Commit(ctx context.Context) error {
	return mapError(t.tx.Commit(ctx))
}

// Rollback aborts the transaction. Calling it after Commit is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// mapError translates pgx and Postgres failures into storage sentinels.
// SQLSTATE classification follows the usual Postgres codes: 23505 unique
// violation, 23503 foreign key, 40001/40P01 serialization or deadlock,
// 23514 check violation (the member-capacity trigger raises this one with
// a named constraint).
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", storage.ErrDuplicate, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%w: %s", storage.ErrForeignKey, pgErr.ConstraintName)
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", storage.ErrSerialization, pgErr.Message)
		case "23514":
			if pgErr.ConstraintName == "group_members_capacity" {
				return storage.ErrCapacity
			}
		}
	}
	return err
}
