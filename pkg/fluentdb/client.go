// Package fluentdb is a fluent client for relational databases: statements
// are built fluently, bound with typed parameters, executed on pooled
// connections and consumed as lazy, single-subscription sequences. The
// transactional client adds a synchronization protocol through which
// independently issued operations join an ambient transaction, with
// auto-commit as the fallback.
package fluentdb

import (
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/sllt/fluentdb/pkg/fluentdb/driver"
	"github.com/sllt/fluentdb/pkg/fluentdb/logging"
	"github.com/sllt/fluentdb/pkg/fluentdb/metrics"
	"github.com/sllt/fluentdb/pkg/fluentdb/statement"
)

// DatabaseClient executes statements in auto-commit mode: each statement is
// its own implicitly committed unit of work unless the chain carries an
// ambient transaction, in which case the statement enlists in it.
type DatabaseClient struct {
	engine *engine
}

// Option configures a client.
type Option func(*options)

type options struct {
	mapper              driver.EntityMapper
	logger              logging.Logger
	metrics             metrics.Metrics
	preferRollbackError bool
}

// WithMapper replaces the default reflection entity mapper.
func WithMapper(m driver.EntityMapper) Option {
	return func(o *options) { o.mapper = m }
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithOriginalErrorPrecedence surfaces the unit-of-work failure rather than
// the rollback failure when a grouped transaction fails on both.
func WithOriginalErrorPrecedence() Option {
	return func(o *options) { o.preferRollbackError = false }
}

// New creates a DatabaseClient on top of a connection provider.
func New(provider driver.ConnectionProvider, opts ...Option) (*DatabaseClient, error) {
	o := options{
		mapper:              driver.ReflectMapper{},
		logger:              logging.NopLogger{},
		metrics:             metrics.NopMetrics{},
		preferRollbackError: true,
	}

	for _, opt := range opts {
		opt(&o)
	}

	dialect, err := statement.ParseDialect(provider.Dialect())
	if err != nil {
		return nil, err
	}

	return &DatabaseClient{
		engine: &engine{
			provider: provider,
			dialect:  dialect,
			mapper:   o.mapper,
			logger:   o.logger,
			metrics:  o.metrics,
			tracer:   otel.GetTracerProvider().Tracer("fluentdb-sql"),
		},
	}, nil
}

// Execute starts a raw SQL statement. Placeholders are "$N" tokens or ?
// markers, bound by name or 0-based position.
func (c *DatabaseClient) Execute(sql string) *ExecuteSpec {
	return &ExecuteSpec{engine: c.engine, builder: statement.NewRaw(sql)}
}

// Select starts a generic select.
func (c *DatabaseClient) Select() *SelectSpec {
	return &SelectSpec{engine: c.engine}
}

// Insert starts a generic insert.
func (c *DatabaseClient) Insert() *InsertSpec {
	return &InsertSpec{engine: c.engine}
}

// ExecuteSpec accumulates bindings for a raw SQL statement.
type ExecuteSpec struct {
	engine  *engine
	builder *statement.RawBuilder
}

// Bind associates a placeholder with a value. Binding the same placeholder
// twice overwrites the previous value.
func (s *ExecuteSpec) Bind(identifier, value any) *ExecuteSpec {
	s.builder.Bind(identifier, value)
	return s
}

// BindNull associates a placeholder with a typed null; the declared type is
// transmitted even though the value is absent.
func (s *ExecuteSpec) BindNull(identifier any, null statement.TypedNull) *ExecuteSpec {
	s.builder.BindNull(identifier, null)
	return s
}

// Fetch finalizes the statement. Construction errors surface on the
// returned Fetch's consumption, never from here.
func (s *ExecuteSpec) Fetch() *Fetch {
	spec, err := s.builder.Build()
	return newFetch(s.engine, spec, err)
}

// SelectSpec accumulates a generic select.
type SelectSpec struct {
	engine  *engine
	builder *statement.SelectBuilder
}

// From names the table to select from.
func (s *SelectSpec) From(table string) *SelectSpec {
	if s.builder == nil {
		s.builder = statement.NewSelect(table)
	}

	return s
}

// Project restricts the selected columns; all columns when never called.
func (s *SelectSpec) Project(columns ...string) *SelectSpec {
	if s.builder != nil {
		s.builder.Columns(columns...)
	}

	return s
}

// Matching adds an equality criterion.
func (s *SelectSpec) Matching(column string, value any) *SelectSpec {
	if s.builder != nil {
		s.builder.Where(column, value)
	}

	return s
}

// OrderBy appends sort keys, e.g. statement.Desc("id").
func (s *SelectSpec) OrderBy(keys ...statement.SortKey) *SelectSpec {
	if s.builder != nil {
		s.builder.OrderBy(keys...)
	}

	return s
}

// Page sets the paging window.
func (s *SelectSpec) Page(offset, limit int) *SelectSpec {
	if s.builder != nil {
		s.builder.Offset(offset).Limit(limit)
	}

	return s
}

// Fetch finalizes the statement.
func (s *SelectSpec) Fetch() *Fetch {
	if s.builder == nil {
		return newFetch(s.engine, nil, fmt.Errorf("%w: select requires a table", ErrInvalidSpecification))
	}

	spec, err := s.builder.Build()

	return newFetch(s.engine, spec, err)
}

// InsertSpec accumulates a generic insert.
type InsertSpec struct {
	engine  *engine
	builder *statement.InsertBuilder
	err     error
}

// Into names the target table.
func (s *InsertSpec) Into(table string) *InsertSpec {
	if s.builder == nil {
		s.builder = statement.NewInsert(table)
	}

	return s
}

// Value adds a (column, value) pair.
func (s *InsertSpec) Value(column string, value any) *InsertSpec {
	if s.builder != nil {
		s.builder.Value(column, value)
	}

	return s
}

// NullValue adds a typed null for a column.
func (s *InsertSpec) NullValue(column string, null statement.TypedNull) *InsertSpec {
	if s.builder != nil {
		s.builder.NullValue(column, null)
	}

	return s
}

// Entity derives (column, value) pairs from a struct through the client's
// mapping rules (db tags, snake_case fallback).
func (s *InsertSpec) Entity(entity any) *InsertSpec {
	if s.builder == nil || s.err != nil {
		return s
	}

	columns, values, err := driver.EntityValues(entity)
	if err != nil {
		s.err = err
		return s
	}

	for i, column := range columns {
		s.builder.Value(column, values[i])
	}

	return s
}

// Fetch finalizes the statement.
func (s *InsertSpec) Fetch() *Fetch {
	if s.builder == nil {
		return newFetch(s.engine, nil, fmt.Errorf("%w: insert requires a table", ErrInvalidSpecification))
	}

	if s.err != nil {
		return newFetch(s.engine, nil, s.err)
	}

	spec, err := s.builder.Build()

	return newFetch(s.engine, spec, err)
}
