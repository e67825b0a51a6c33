// Package dbx holds the database plumbing shared by the repositories: the
// DBTX handle they are written against, transaction helpers and driver
// error checks.
package dbx

import (
	"context"
	"database/sql"
	"errors"
)

// ErrReadOnly is returned by ExecContext inside WithReadOnlyTx.
var ErrReadOnly = errors.New("write in read-only transaction")

// DBTX is the part of database/sql the repositories use.
// *sql.DB and *sql.Tx both satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on error or panic; panics are re-raised after the rollback.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := repomanager.Todos(tx).Create(ctx, todo)
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// WithReadOnlyTx runs fn in a read-only transaction so that several reads
// (a count and the page it describes) see the same snapshot. ExecContext
// on the handle fails with ErrReadOnly whatever the driver supports.
func WithReadOnlyTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) error {
	return WithTx(ctx, db, &sql.TxOptions{ReadOnly: true}, func(ctx context.Context, tx DBTX) error {
		return fn(ctx, readOnly{tx})
	})
}

type readOnly struct {
	DBTX
}

func (readOnly) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, ErrReadOnly
}
