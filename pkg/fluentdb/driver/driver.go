// Package driver defines the narrow interfaces the fluentdb core consumes:
// connection acquisition, statement execution, row cursors and transaction
// handles. A database/sql backed implementation is provided, but the client
// works against any implementation of these contracts.
package driver

import (
	"context"
	"database/sql"
	"errors"
)

// ErrMappingFailed reports a row-to-entity conversion failure. It is
// surfaced per element on the result sequence and never corrupts elements
// delivered before it.
var ErrMappingFailed = errors.New("mapping failed")

// Column describes one column of a result cursor as reported by the driver.
type Column struct {
	Name     string
	Index    int
	TypeName string
}

// Cursor is a forward-only handle yielding rows on demand. A cursor is
// consumed exactly once and must be closed to release its resources.
type Cursor interface {
	// Columns returns the column metadata in driver-reported order.
	Columns() []Column

	// Next advances to the next row, reporting false at the end of the set.
	Next() bool

	// Values returns the current row's values in column order.
	Values() ([]any, error)

	// Err returns the error, if any, that terminated iteration.
	Err() error

	Close() error
}

// TxOptions carries the isolation and read-only policy for a transaction.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// Connection executes statements and begins transactions. Implementations
// are not required to be safe for concurrent use; the client serializes
// statements per connection.
type Connection interface {
	// Query sends exactly one statement and returns its row cursor.
	Query(ctx context.Context, query string, args ...any) (Cursor, error)

	// Exec sends exactly one statement and returns the affected-row count.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Begin starts a transaction on this connection.
	Begin(ctx context.Context, opts TxOptions) (TransactionHandle, error)
}

// TransactionHandle is the driver-level transaction owned by exactly one
// transaction context.
type TransactionHandle interface {
	// Connection returns the connection all statements of this transaction
	// run on, in submission order.
	Connection() Connection

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ConnectionProvider hands out pooled connections.
type ConnectionProvider interface {
	Acquire(ctx context.Context) (Connection, error)
	Release(conn Connection) error

	// Dialect reports the SQL dialect the pool speaks.
	Dialect() string
}

// EntityMapper converts a generic row into a caller-supplied destination.
// dest is a non-nil pointer to the target value.
type EntityMapper interface {
	MapRow(row Row, dest any) error
}
