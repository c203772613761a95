// Package tx implements the transaction lifecycle: a Context owning one
// driver transaction handle, and the synchronization Scope through which
// independently issued operations discover an ambient transaction.
package tx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sllt/fluentdb/pkg/fluentdb/driver"
	"github.com/sllt/fluentdb/pkg/fluentdb/logging"
)

var (
	// ErrAlreadyActive reports Begin on a context that is already active.
	ErrAlreadyActive = errors.New("transaction already active")

	// ErrInactive reports Commit or Rollback on a context that never became
	// active or already reached a terminal state.
	ErrInactive = errors.New("transaction inactive")

	// ErrSynchronizationNotEnabled reports an application-controlled
	// transaction call on a chain without an installed synchronization scope.
	ErrSynchronizationNotEnabled = errors.New("transaction synchronization not enabled")

	// ErrStatementInFlight reports a lifecycle call while a statement's
	// result sequence on this transaction is still open.
	ErrStatementInFlight = errors.New("statement in flight on transaction connection")
)

// State is the lifecycle state of a transaction context.
type State int

const (
	StateNone State = iota
	StateActive
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateActive:
		return "ACTIVE"
	case StateCommitted:
		return "COMMITTED"
	case StateRolledBack:
		return "ROLLED_BACK"
	default:
		return "UNKNOWN"
	}
}

// Context represents one logical unit of work. It exclusively owns its
// underlying transaction handle and the pooled connection backing it; both
// are released exactly once, on the transition to a terminal state.
type Context struct {
	id     uuid.UUID
	opts   driver.TxOptions
	logger logging.Logger

	mu       sync.Mutex
	state    State
	handle   driver.TransactionHandle
	conn     driver.Connection
	provider driver.ConnectionProvider

	// execMu serializes statements on the transaction's single connection.
	execMu sync.Mutex
}

// NewContext creates a context in state NONE.
func NewContext(opts driver.TxOptions, logger logging.Logger) *Context {
	if logger == nil {
		logger = logging.NopLogger{}
	}

	return &Context{id: uuid.New(), opts: opts, logger: logger}
}

// ID returns the context's unique identifier.
func (c *Context) ID() uuid.UUID {
	return c.id
}

// State reports the current lifecycle state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Begin acquires a connection from the provider and starts the underlying
// transaction, moving NONE to ACTIVE.
func (c *Context) Begin(ctx context.Context, provider driver.ConnectionProvider) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateActive:
		return ErrAlreadyActive
	case StateCommitted, StateRolledBack:
		return fmt.Errorf("%w: context is %s", ErrInactive, c.state)
	}

	conn, err := provider.Acquire(ctx)
	if err != nil {
		return err
	}

	handle, err := conn.Begin(ctx, c.opts)
	if err != nil {
		// The acquired connection must not leak when begin fails.
		if relErr := provider.Release(conn); relErr != nil {
			c.logger.Errorf("releasing connection after failed begin: %v", relErr)
		}

		return err
	}

	c.state = StateActive
	c.handle = handle
	c.conn = conn
	c.provider = provider

	c.logger.Debugf("transaction %s began", c.id)

	return nil
}

// Commit moves ACTIVE to COMMITTED. The underlying handle and connection
// are released even when the driver reports a commit failure; the failure
// is still surfaced.
func (c *Context) Commit(ctx context.Context) error {
	return c.finish(ctx, StateCommitted)
}

// Rollback moves ACTIVE to ROLLED_BACK. Release behaves as for Commit.
func (c *Context) Rollback(ctx context.Context) error {
	return c.finish(ctx, StateRolledBack)
}

func (c *Context) finish(ctx context.Context, terminal State) error {
	if !c.execMu.TryLock() {
		return ErrStatementInFlight
	}
	defer c.execMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return fmt.Errorf("%w: context is %s", ErrInactive, c.state)
	}

	var err error

	if terminal == StateCommitted {
		err = c.handle.Commit(ctx)
	} else {
		err = c.handle.Rollback(ctx)
	}

	c.state = terminal
	c.release()

	c.logger.Debugf("transaction %s finished as %s", c.id, terminal)

	return err
}

// release returns the pooled connection; called with mu held, exactly once.
func (c *Context) release() {
	if c.provider != nil && c.conn != nil {
		if err := c.provider.Release(c.conn); err != nil {
			c.logger.Errorf("releasing transaction connection: %v", err)
		}
	}

	c.handle = nil
	c.conn = nil
	c.provider = nil
}

// Acquire hands out the transaction's connection for one statement,
// serializing access until the returned release function is called. The
// caller must release when the statement's result sequence is exhausted,
// failed, or dropped.
func (c *Context) Acquire() (driver.Connection, func(), error) {
	c.execMu.Lock()

	c.mu.Lock()

	if c.state != StateActive {
		c.mu.Unlock()
		c.execMu.Unlock()

		return nil, nil, fmt.Errorf("%w: context is %s", ErrInactive, c.state)
	}

	conn := c.handle.Connection()
	c.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(c.execMu.Unlock)
	}

	return conn, release, nil
}
