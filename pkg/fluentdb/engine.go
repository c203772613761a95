package fluentdb

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sllt/fluentdb/pkg/fluentdb/driver"
	"github.com/sllt/fluentdb/pkg/fluentdb/logging"
	"github.com/sllt/fluentdb/pkg/fluentdb/metrics"
	"github.com/sllt/fluentdb/pkg/fluentdb/statement"
	"github.com/sllt/fluentdb/pkg/fluentdb/tx"
)

// engine issues exactly one statement per call and owns no state across
// calls. It resolves the connection to run on: the chain's ambient
// transaction when one is active, an ad-hoc auto-commit connection
// otherwise.
type engine struct {
	provider driver.ConnectionProvider
	dialect  statement.Dialect
	mapper   driver.EntityMapper
	logger   logging.Logger
	metrics  metrics.Metrics
	tracer   trace.Tracer
}

// resolve returns the connection for one statement plus its release
// function. Release must be called when the statement's results are fully
// consumed or dropped; for ambient transactions it only ends this
// statement's turn on the shared connection, never the transaction itself.
func (e *engine) resolve(ctx context.Context) (driver.Connection, func(), error) {
	if tc := tx.Ambient(ctx); tc != nil {
		return tc.Acquire()
	}

	conn, err := e.provider.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	logger := logging.NewContextLogger(ctx, e.logger)
	release := func() {
		if err := e.provider.Release(conn); err != nil {
			logger.Errorf("releasing connection: %v", err)
		}
	}

	return conn, release, nil
}

// query compiles and sends one row-producing statement. The returned
// release function gives the connection back once the cursor is done.
func (e *engine) query(ctx context.Context, spec *statement.Spec) (driver.Cursor, func(), error) {
	query, args, err := spec.Compile(e.dialect)
	if err != nil {
		return nil, nil, err
	}

	ctx, span := e.startSpan(ctx, spec, query)
	defer span.End()

	conn, release, err := e.resolve(ctx)
	if err != nil {
		return nil, nil, err
	}

	cursor, err := conn.Query(ctx, query, args...)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	return cursor, release, nil
}

// exec compiles and sends one statement, returning the affected-row count.
func (e *engine) exec(ctx context.Context, spec *statement.Spec) (int64, error) {
	query, args, err := spec.Compile(e.dialect)
	if err != nil {
		return 0, err
	}

	ctx, span := e.startSpan(ctx, spec, query)
	defer span.End()

	conn, release, err := e.resolve(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	affected, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}

	return affected, nil
}

func (e *engine) startSpan(ctx context.Context, spec *statement.Spec, query string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "fluentdb.execute", trace.WithAttributes(
		attribute.String("db.operation.kind", spec.Kind().String()),
		attribute.String("db.query.text", query),
	))
}
