package sqldb

import (
	"context"
	"errors"
)

var ErrNoRows = errors.New("sqldb: no rows in result set")

// Handle runs statements against a pooled connection.
type Handle interface {
	// Exec executes SQL statement like INSERT, UPDATE, DELETE.
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRows(ctx context.Context, query string, args ...any) (Rows, error) // Eager. Fail upfront on statement execution
	QueryRow(ctx context.Context, query string, args ...any) Row            // Lazy. only fails at Scan()
}

type Client interface {
	Init() error
	Close() error
	Conf() *Conf
	Handle // promoted
}

type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

type Row interface {
	Scan(dest ...any) error
}

type Result interface {
	RowsAffected() (int64, error)
}
