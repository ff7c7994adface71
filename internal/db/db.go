// Package db is the hand-maintained query layer over Postgres. It follows the
// sqlc layout — a DBTX seam, a Queries struct, and a Querier interface — so
// handlers and the scheduler depend on the interface and tests can stub it.
package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every query works inside
// and outside a transaction.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// New creates a Queries bound to the given pool or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries executes all SQL in this package against its DBTX.
type Queries struct {
	db DBTX
}

// WithTx returns a Queries scoped to the transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}
