package fluentdb

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/sllt/fluentdb/pkg/fluentdb/driver"
	"github.com/sllt/fluentdb/pkg/fluentdb/statement"
	"github.com/sllt/fluentdb/pkg/fluentdb/stream"
)

// RowExtractor converts a raw row plus its column metadata into an
// arbitrary value.
type RowExtractor func(row driver.Row, columns []driver.Column) (any, error)

// Fetch is the terminal step of a fluent chain. Exactly one consumption
// mode may be used, exactly once; the statement is not sent until that
// consumption begins.
type Fetch struct {
	engine   *engine
	spec     *statement.Spec
	buildErr error
	consumed atomic.Bool
}

func newFetch(e *engine, spec *statement.Spec, buildErr error) *Fetch {
	return &Fetch{engine: e, spec: spec, buildErr: buildErr}
}

// claim enforces the one-shot contract across all consumption modes.
func (f *Fetch) claim() error {
	if !f.consumed.CompareAndSwap(false, true) {
		return stream.ErrAlreadyConsumed
	}

	return f.buildErr
}

// RowsUpdated sends the statement and returns the affected-row count.
func (f *Fetch) RowsUpdated(ctx context.Context) (int64, error) {
	if err := f.claim(); err != nil {
		return 0, err
	}

	return f.engine.exec(ctx, f.spec)
}

// All returns the result rows as a lazy sequence of generic rows, one per
// cursor row, preserving driver-reported column order. Nothing is sent
// until the first Next call on the sequence.
func (f *Fetch) All() *stream.Stream[driver.Row] {
	if err := f.claim(); err != nil {
		return stream.Fail[driver.Row](err)
	}

	return f.rows()
}

// One sends the statement and returns exactly one generic row.
func (f *Fetch) One(ctx context.Context) (driver.Row, error) {
	if err := f.claim(); err != nil {
		return driver.Row{}, err
	}

	return f.rows().One(ctx)
}

// Map returns a lazy sequence produced by the caller-supplied extractor.
// An extractor failure terminates the sequence at the offending element.
func (f *Fetch) Map(extract RowExtractor) *stream.Stream[any] {
	if err := f.claim(); err != nil {
		return stream.Fail[any](err)
	}

	return stream.Map(f.rows(), func(row driver.Row) (any, error) {
		return extract(row, row.Columns())
	})
}

func (f *Fetch) rows() *stream.Stream[driver.Row] {
	return stream.New(func(ctx context.Context) (stream.NextFunc[driver.Row], func() error, error) {
		cursor, release, err := f.engine.query(ctx, f.spec)
		if err != nil {
			return nil, nil, err
		}

		next := func() (driver.Row, bool, error) {
			if !cursor.Next() {
				if err := cursor.Err(); err != nil {
					return driver.Row{}, false, wrapExecution(err)
				}

				return driver.Row{}, false, nil
			}

			values, err := cursor.Values()
			if err != nil {
				return driver.Row{}, false, wrapExecution(err)
			}

			return driver.NewRow(cursor.Columns(), values), true, nil
		}

		closeFn := func() error {
			defer release()
			return cursor.Close()
		}

		return next, closeFn, nil
	})
}

// As converts each result row into T through the client's entity mapper.
// A mapping failure terminates the sequence at the offending element
// without invalidating elements delivered before it.
func As[T any](f *Fetch) *stream.Stream[T] {
	if err := f.claim(); err != nil {
		return stream.Fail[T](err)
	}

	mapper := f.engine.mapper

	return stream.Map(f.rows(), func(row driver.Row) (T, error) {
		var v T

		if err := mapper.MapRow(row, &v); err != nil {
			return v, err
		}

		return v, nil
	})
}

func wrapExecution(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrExecutionFailed, err)
}
