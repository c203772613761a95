package tx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sllt/fluentdb/pkg/fluentdb/driver"
)

type fakeHandle struct {
	conn        driver.Connection
	commits     int
	rollbacks   int
	commitErr   error
	rollbackErr error
}

func (h *fakeHandle) Connection() driver.Connection { return h.conn }

func (h *fakeHandle) Commit(context.Context) error {
	h.commits++
	return h.commitErr
}

func (h *fakeHandle) Rollback(context.Context) error {
	h.rollbacks++
	return h.rollbackErr
}

type fakeConn struct {
	handle   *fakeHandle
	beginErr error
}

func (c *fakeConn) Query(context.Context, string, ...any) (driver.Cursor, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeConn) Exec(context.Context, string, ...any) (int64, error) {
	return 0, errors.New("not implemented")
}

func (c *fakeConn) Begin(context.Context, driver.TxOptions) (driver.TransactionHandle, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}

	if c.handle == nil {
		c.handle = &fakeHandle{conn: c}
	}

	return c.handle, nil
}

type fakeProvider struct {
	conn     *fakeConn
	acquired int
	released int
}

func (p *fakeProvider) Acquire(context.Context) (driver.Connection, error) {
	p.acquired++

	if p.conn == nil {
		p.conn = &fakeConn{}
	}

	return p.conn, nil
}

func (p *fakeProvider) Release(driver.Connection) error {
	p.released++
	return nil
}

func (p *fakeProvider) Dialect() string { return "sqlite" }

func TestContext_Lifecycle(t *testing.T) {
	t.Run("begin moves none to active", func(t *testing.T) {
		provider := &fakeProvider{}
		tc := NewContext(driver.TxOptions{}, nil)

		assert.Equal(t, StateNone, tc.State())

		require.NoError(t, tc.Begin(context.Background(), provider))
		assert.Equal(t, StateActive, tc.State())
		assert.Equal(t, 1, provider.acquired)
	})

	t.Run("begin on active fails", func(t *testing.T) {
		provider := &fakeProvider{}
		tc := NewContext(driver.TxOptions{}, nil)

		require.NoError(t, tc.Begin(context.Background(), provider))

		err := tc.Begin(context.Background(), provider)
		assert.ErrorIs(t, err, ErrAlreadyActive)
	})

	t.Run("commit is terminal and releases once", func(t *testing.T) {
		provider := &fakeProvider{}
		tc := NewContext(driver.TxOptions{}, nil)

		require.NoError(t, tc.Begin(context.Background(), provider))
		require.NoError(t, tc.Commit(context.Background()))

		assert.Equal(t, StateCommitted, tc.State())
		assert.Equal(t, 1, provider.released)
		assert.Equal(t, 1, provider.conn.handle.commits)

		err := tc.Commit(context.Background())
		assert.ErrorIs(t, err, ErrInactive)

		err = tc.Rollback(context.Background())
		assert.ErrorIs(t, err, ErrInactive)

		assert.Equal(t, 1, provider.released, "terminal context must not release twice")
	})

	t.Run("rollback is terminal", func(t *testing.T) {
		provider := &fakeProvider{}
		tc := NewContext(driver.TxOptions{}, nil)

		require.NoError(t, tc.Begin(context.Background(), provider))
		require.NoError(t, tc.Rollback(context.Background()))

		assert.Equal(t, StateRolledBack, tc.State())
		assert.ErrorIs(t, tc.Rollback(context.Background()), ErrInactive)
	})

	t.Run("commit on never-begun context fails", func(t *testing.T) {
		tc := NewContext(driver.TxOptions{}, nil)
		assert.ErrorIs(t, tc.Commit(context.Background()), ErrInactive)
	})

	t.Run("handle released even when commit reports an error", func(t *testing.T) {
		provider := &fakeProvider{conn: &fakeConn{handle: nil}}
		tc := NewContext(driver.TxOptions{}, nil)

		require.NoError(t, tc.Begin(context.Background(), provider))

		driverErr := errors.New("commit refused")
		provider.conn.handle.commitErr = driverErr

		err := tc.Commit(context.Background())
		assert.ErrorIs(t, err, driverErr)
		assert.Equal(t, StateCommitted, tc.State())
		assert.Equal(t, 1, provider.released)
	})

	t.Run("failed begin releases the acquired connection", func(t *testing.T) {
		provider := &fakeProvider{conn: &fakeConn{beginErr: errors.New("no tx for you")}}
		tc := NewContext(driver.TxOptions{}, nil)

		err := tc.Begin(context.Background(), provider)
		assert.Error(t, err)
		assert.Equal(t, StateNone, tc.State())
		assert.Equal(t, 1, provider.released)
	})
}

func TestContext_Acquire(t *testing.T) {
	t.Run("serializes statements on the transaction connection", func(t *testing.T) {
		provider := &fakeProvider{}
		tc := NewContext(driver.TxOptions{}, nil)

		require.NoError(t, tc.Begin(context.Background(), provider))

		conn, release, err := tc.Acquire()
		require.NoError(t, err)
		require.NotNil(t, conn)

		// A lifecycle call while a statement is in flight fails fast
		// instead of deadlocking.
		assert.ErrorIs(t, tc.Commit(context.Background()), ErrStatementInFlight)

		release()
		release() // release is idempotent

		require.NoError(t, tc.Commit(context.Background()))
	})

	t.Run("acquire on terminal context fails", func(t *testing.T) {
		provider := &fakeProvider{}
		tc := NewContext(driver.TxOptions{}, nil)

		require.NoError(t, tc.Begin(context.Background(), provider))
		require.NoError(t, tc.Commit(context.Background()))

		_, _, err := tc.Acquire()
		assert.ErrorIs(t, err, ErrInactive)
	})
}

func TestContext_ID(t *testing.T) {
	a := NewContext(driver.TxOptions{}, nil)
	b := NewContext(driver.TxOptions{}, nil)

	assert.NotEqual(t, a.ID(), b.ID())
}
