package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DB is the narrow persistence handle shared by repositories. Both the
// pgxpool and database/sql backends satisfy it.
type DB interface {
	Ping(ctx context.Context) error
	Close() error

	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row

	Begin(ctx context.Context) (Tx, error)

	SQLDB() *sql.DB
}

type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Rows interface {
	Close()
	Next() bool
	Scan(dest ...any) error
	Err() error
}

type Row interface {
	Scan(dest ...any) error
}

// ErrNilDB is returned by backends that were never connected.
var ErrNilDB = errors.New("nil db")

// WithTx runs fn inside a transaction. fn's error, or a failed commit,
// rolls the transaction back.
func WithTx(ctx context.Context, db DB, fn func(tx Tx) error) (err error) {
	if db == nil {
		return ErrNilDB
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.Background())
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// WithReadSnapshot runs fn in a read-only REPEATABLE READ transaction, so
// every statement in fn reads the same snapshot.
func WithReadSnapshot(ctx context.Context, db DB, fn func(tx Tx) error) error {
	return WithTx(ctx, db, func(tx Tx) error {
		if _, err := tx.Exec(ctx, `SET TRANSACTION ISOLATION LEVEL REPEATABLE READ, READ ONLY`); err != nil {
			return fmt.Errorf("set snapshot isolation: %w", err)
		}
		return fn(tx)
	})
}
