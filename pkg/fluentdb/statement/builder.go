package statement

import "fmt"

// RawBuilder accumulates a raw SQL statement and its bindings.
type RawBuilder struct {
	sql    string
	binder binder
}

// NewRaw starts a raw statement from a SQL template. Placeholders are
// either "$N" tokens or ? markers; one template must not mix the two.
func NewRaw(sql string) *RawBuilder {
	return &RawBuilder{sql: sql}
}

// Bind associates a placeholder with a value. identifier is a placeholder
// name (string) or a 0-based position (int). Binding the same placeholder
// twice overwrites the previous value.
func (b *RawBuilder) Bind(identifier, value any) *RawBuilder {
	b.binder.bind(identifier, value)
	return b
}

// BindNull associates a placeholder with a typed null.
func (b *RawBuilder) BindNull(identifier any, null TypedNull) *RawBuilder {
	b.binder.bindNull(identifier, null)
	return b
}

// Build yields the immutable spec, validating that every referenced
// placeholder is bound.
func (b *RawBuilder) Build() (*Spec, error) {
	if b.binder.err != nil {
		return nil, b.binder.err
	}

	if b.sql == "" {
		return nil, fmt.Errorf("%w: empty SQL template", ErrInvalidSpecification)
	}

	spec := &Spec{
		kind:       KindRaw,
		sql:        b.sql,
		named:      b.binder.named,
		positional: b.binder.positional,
	}

	// Placeholder coverage is validated eagerly so construction errors
	// never reach the database.
	if _, _, err := spec.Compile(DialectSQLite); err != nil {
		return nil, err
	}

	return spec, nil
}

// SelectBuilder accumulates a generic select.
type SelectBuilder struct {
	table    string
	columns  []string
	criteria map[string]any
	orderBy  []SortKey
	offset   int
	limit    int
}

// NewSelect starts a generic select against a table.
func NewSelect(table string) *SelectBuilder {
	return &SelectBuilder{table: table}
}

// Columns projects the given columns. The projection defaults to all
// columns when never called.
func (b *SelectBuilder) Columns(columns ...string) *SelectBuilder {
	b.columns = append(b.columns, columns...)
	return b
}

// Where adds an equality criterion on a column.
func (b *SelectBuilder) Where(column string, value any) *SelectBuilder {
	if b.criteria == nil {
		b.criteria = make(map[string]any)
	}

	b.criteria[column] = value

	return b
}

// OrderBy appends sort keys.
func (b *SelectBuilder) OrderBy(keys ...SortKey) *SelectBuilder {
	b.orderBy = append(b.orderBy, keys...)
	return b
}

// Offset sets the paging window start.
func (b *SelectBuilder) Offset(offset int) *SelectBuilder {
	b.offset = offset
	return b
}

// Limit sets the paging window size.
func (b *SelectBuilder) Limit(limit int) *SelectBuilder {
	b.limit = limit
	return b
}

// Build yields the immutable spec.
func (b *SelectBuilder) Build() (*Spec, error) {
	if b.table == "" {
		return nil, fmt.Errorf("%w: select requires a table", ErrInvalidSpecification)
	}

	if b.offset < 0 || b.limit < 0 {
		return nil, fmt.Errorf("%w: negative paging window (offset=%d, limit=%d)", ErrInvalidSpecification, b.offset, b.limit)
	}

	return &Spec{
		kind:     KindSelect,
		table:    b.table,
		columns:  b.columns,
		criteria: b.criteria,
		orderBy:  b.orderBy,
		offset:   b.offset,
		limit:    b.limit,
	}, nil
}

// InsertBuilder accumulates a generic insert.
type InsertBuilder struct {
	table  string
	values []ColumnValue
	index  map[string]int
}

// NewInsert starts a generic insert into a table.
func NewInsert(table string) *InsertBuilder {
	return &InsertBuilder{table: table, index: make(map[string]int)}
}

// Value adds a (column, value) pair, keeping first-call column order.
// Setting the same column twice overwrites the previous value.
func (b *InsertBuilder) Value(column string, value any) *InsertBuilder {
	if i, ok := b.index[column]; ok {
		b.values[i].Value = value
		return b
	}

	b.index[column] = len(b.values)
	b.values = append(b.values, ColumnValue{Column: column, Value: value})

	return b
}

// NullValue adds a typed null for a column.
func (b *InsertBuilder) NullValue(column string, null TypedNull) *InsertBuilder {
	return b.Value(column, null)
}

// Build yields the immutable spec.
func (b *InsertBuilder) Build() (*Spec, error) {
	if b.table == "" {
		return nil, fmt.Errorf("%w: insert requires a table", ErrInvalidSpecification)
	}

	if len(b.values) == 0 {
		return nil, fmt.Errorf("%w: insert requires at least one value", ErrInvalidSpecification)
	}

	for _, cv := range b.values {
		if cv.Column == "" {
			return nil, fmt.Errorf("%w: insert value with empty column name", ErrInvalidSpecification)
		}

		if _, err := bindingArg(cv.Value); err != nil {
			return nil, err
		}
	}

	return &Spec{
		kind:   KindInsert,
		table:  b.table,
		values: b.values,
	}, nil
}
