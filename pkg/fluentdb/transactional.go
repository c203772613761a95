package fluentdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sllt/fluentdb/pkg/fluentdb/driver"
	"github.com/sllt/fluentdb/pkg/fluentdb/tx"
)

// TxOption configures the transaction to begin.
type TxOption func(*driver.TxOptions)

// WithIsolation sets the transaction isolation level.
func WithIsolation(level sql.IsolationLevel) TxOption {
	return func(o *driver.TxOptions) { o.Isolation = level }
}

// ReadOnly marks the transaction read-only.
func ReadOnly() TxOption {
	return func(o *driver.TxOptions) { o.ReadOnly = true }
}

// TransactionalDatabaseClient adds transaction control to a DatabaseClient.
// Two styles are supported: grouped units of work through InTransaction,
// and application-controlled transactions through Begin/Commit/Rollback
// after enabling synchronization on the chain.
type TransactionalDatabaseClient struct {
	*DatabaseClient
	preferRollbackError bool
}

// NewTransactional creates a TransactionalDatabaseClient on top of a
// connection provider.
func NewTransactional(provider driver.ConnectionProvider, opts ...Option) (*TransactionalDatabaseClient, error) {
	o := options{preferRollbackError: true}
	for _, opt := range opts {
		opt(&o)
	}

	client, err := New(provider, opts...)
	if err != nil {
		return nil, err
	}

	return &TransactionalDatabaseClient{
		DatabaseClient:      client,
		preferRollbackError: o.preferRollbackError,
	}, nil
}

// EnableTransactionSynchronization installs a synchronization scope on the
// chain and returns the derived context carrying it. Application-controlled
// transaction calls require the returned context; the scope lives no longer
// than that context's chain.
func (c *TransactionalDatabaseClient) EnableTransactionSynchronization(ctx context.Context) context.Context {
	sctx, _ := tx.WithScope(ctx)
	return sctx
}

// BeginTransaction starts an application-controlled transaction and binds
// it to the chain's scope, making it ambient for statements issued with
// this context. Fails with ErrSynchronizationNotEnabled when the chain has
// no scope, and with ErrTransactionAlreadyActive when the scope already has
// an active transaction.
func (c *TransactionalDatabaseClient) BeginTransaction(ctx context.Context, opts ...TxOption) error {
	scope, ok := tx.ScopeFrom(ctx)
	if !ok {
		return tx.ErrSynchronizationNotEnabled
	}

	tc := tx.NewContext(txOptions(opts), c.engine.logger)

	if err := scope.Bind(tc); err != nil {
		return err
	}

	if err := tc.Begin(ctx, c.engine.provider); err != nil {
		scope.Unbind(tc)
		return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	return nil
}

// CommitTransaction commits the chain's transaction. The scope keeps the
// terminal context bound, so a second lifecycle call reports
// ErrTransactionInactive rather than starting over.
func (c *TransactionalDatabaseClient) CommitTransaction(ctx context.Context) error {
	tc, err := c.bound(ctx)
	if err != nil {
		return err
	}

	return tc.Commit(ctx)
}

// RollbackTransaction rolls the chain's transaction back.
func (c *TransactionalDatabaseClient) RollbackTransaction(ctx context.Context) error {
	tc, err := c.bound(ctx)
	if err != nil {
		return err
	}

	return tc.Rollback(ctx)
}

func (c *TransactionalDatabaseClient) bound(ctx context.Context) (*tx.Context, error) {
	scope, ok := tx.ScopeFrom(ctx)
	if !ok {
		return nil, tx.ErrSynchronizationNotEnabled
	}

	tc := scope.Bound()
	if tc == nil {
		return nil, fmt.Errorf("%w: no transaction bound to scope", tx.ErrInactive)
	}

	return tc, nil
}

// InTransaction runs fn as one grouped unit of work. A transaction is begun
// and made ambient for the context passed to fn; it commits when fn returns
// nil and rolls back otherwise, and the scope is always torn down
// afterward. The original failure is surfaced, not masked by a rollback
// error, unless the rollback itself also fails, in which case the
// precedence is configurable (rollback failure wins by default).
func (c *TransactionalDatabaseClient) InTransaction(ctx context.Context, fn func(ctx context.Context) error, opts ...TxOption) error {
	sctx, scope := tx.WithScope(ctx)

	tc := tx.NewContext(txOptions(opts), c.engine.logger)

	if err := scope.Bind(tc); err != nil {
		return err
	}

	if err := tc.Begin(sctx, c.engine.provider); err != nil {
		scope.Unbind(tc)
		return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	// Teardown also covers a panicking unit of work.
	defer func() {
		if tc.State() == tx.StateActive {
			if err := scope.Teardown(context.WithoutCancel(sctx)); err != nil {
				c.engine.logger.Errorf("tearing down transaction scope: %v", err)
			}

			return
		}

		scope.Unbind(tc)
	}()

	if err := fn(sctx); err != nil {
		rbErr := tc.Rollback(sctx)
		if rbErr == nil {
			return err
		}

		if c.preferRollbackError {
			return fmt.Errorf("rollback failed: %w (unit of work failed: %w)", rbErr, err)
		}

		return fmt.Errorf("%w (rollback also failed: %w)", err, rbErr)
	}

	return tc.Commit(sctx)
}

func txOptions(opts []TxOption) driver.TxOptions {
	var o driver.TxOptions
	for _, opt := range opts {
		opt(&o)
	}

	return o
}
