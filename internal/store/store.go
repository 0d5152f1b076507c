// Package store is the durable record of orders and admin identities,
// backed by postgres. Status writes are atomic read-modify-write
// transactions guarded by a version token and re-validated against the
// transition policy before anything is persisted.
package store

import (
	"context"
	"database/sql"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx so order hydration can
// run inside or outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
