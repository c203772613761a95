package tx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sllt/fluentdb/pkg/fluentdb/driver"
)

func TestScope_Bind(t *testing.T) {
	t.Run("second active context is rejected", func(t *testing.T) {
		provider := &fakeProvider{}
		scope := NewScope()

		first := NewContext(driver.TxOptions{}, nil)
		require.NoError(t, first.Begin(context.Background(), provider))
		require.NoError(t, scope.Bind(first))

		second := NewContext(driver.TxOptions{}, nil)
		assert.ErrorIs(t, scope.Bind(second), ErrAlreadyActive)
		assert.Same(t, first, scope.Current())
	})

	t.Run("terminal context is displaced", func(t *testing.T) {
		provider := &fakeProvider{}
		scope := NewScope()

		first := NewContext(driver.TxOptions{}, nil)
		require.NoError(t, first.Begin(context.Background(), provider))
		require.NoError(t, scope.Bind(first))
		require.NoError(t, first.Commit(context.Background()))

		second := NewContext(driver.TxOptions{}, nil)
		require.NoError(t, scope.Bind(second))
		assert.Same(t, second, scope.Bound())
	})
}

func TestScope_Current(t *testing.T) {
	provider := &fakeProvider{}
	scope := NewScope()

	assert.Nil(t, scope.Current())

	tc := NewContext(driver.TxOptions{}, nil)
	require.NoError(t, tc.Begin(context.Background(), provider))
	require.NoError(t, scope.Bind(tc))

	assert.Same(t, tc, scope.Current())

	require.NoError(t, tc.Commit(context.Background()))

	// Current only reports active contexts; Bound still sees the
	// terminal one so lifecycle calls can report its state.
	assert.Nil(t, scope.Current())
	assert.Same(t, tc, scope.Bound())
}

func TestScope_Unbind(t *testing.T) {
	scope := NewScope()

	tc := NewContext(driver.TxOptions{}, nil)
	require.NoError(t, scope.Bind(tc))

	other := NewContext(driver.TxOptions{}, nil)
	scope.Unbind(other)
	assert.Same(t, tc, scope.Bound(), "unbinding a different context is a no-op")

	scope.Unbind(tc)
	assert.Nil(t, scope.Bound())
}

func TestScope_Teardown(t *testing.T) {
	t.Run("rolls back an active context", func(t *testing.T) {
		provider := &fakeProvider{}
		scope := NewScope()

		tc := NewContext(driver.TxOptions{}, nil)
		require.NoError(t, tc.Begin(context.Background(), provider))
		require.NoError(t, scope.Bind(tc))

		require.NoError(t, scope.Teardown(context.Background()))

		assert.Equal(t, StateRolledBack, tc.State())
		assert.Equal(t, 1, provider.conn.handle.rollbacks)
		assert.Nil(t, scope.Bound())
	})

	t.Run("empty scope is a no-op", func(t *testing.T) {
		assert.NoError(t, NewScope().Teardown(context.Background()))
	})

	t.Run("terminal context is only cleared", func(t *testing.T) {
		provider := &fakeProvider{}
		scope := NewScope()

		tc := NewContext(driver.TxOptions{}, nil)
		require.NoError(t, tc.Begin(context.Background(), provider))
		require.NoError(t, scope.Bind(tc))
		require.NoError(t, tc.Commit(context.Background()))

		require.NoError(t, scope.Teardown(context.Background()))
		assert.Equal(t, StateCommitted, tc.State())
	})
}

func TestAmbient(t *testing.T) {
	t.Run("no scope on the chain", func(t *testing.T) {
		assert.Nil(t, Ambient(context.Background()))
	})

	t.Run("scope without an active context", func(t *testing.T) {
		ctx, _ := WithScope(context.Background())
		assert.Nil(t, Ambient(ctx))
	})

	t.Run("active context is ambient for the chain", func(t *testing.T) {
		provider := &fakeProvider{}
		ctx, scope := WithScope(context.Background())

		tc := NewContext(driver.TxOptions{}, nil)
		require.NoError(t, tc.Begin(ctx, provider))
		require.NoError(t, scope.Bind(tc))

		assert.Same(t, tc, Ambient(ctx))

		// A sibling chain with its own scope sees nothing.
		other, _ := WithScope(context.Background())
		assert.Nil(t, Ambient(other))
	})
}
