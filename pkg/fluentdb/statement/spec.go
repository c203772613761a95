// Package statement models one SQL operation: its template or generated
// shape, plus the typed parameter bindings attached to it. Specs are built
// fluently and are immutable once built; compilation to dialect SQL happens
// at execution time.
package statement

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrInvalidSpecification reports malformed statement construction. It is
// raised when the spec is built or compiled, never by the database.
var ErrInvalidSpecification = errors.New("invalid statement specification")

// Kind discriminates how a spec produces its SQL.
type Kind int

const (
	KindRaw Kind = iota + 1
	KindSelect
	KindInsert
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw-sql"
	case KindSelect:
		return "generic-select"
	case KindInsert:
		return "generic-insert"
	default:
		return "unknown"
	}
}

// SortKey is one ORDER BY term.
type SortKey struct {
	Column     string
	Descending bool
}

// Asc sorts ascending on column.
func Asc(column string) SortKey {
	return SortKey{Column: column}
}

// Desc sorts descending on column.
func Desc(column string) SortKey {
	return SortKey{Column: column, Descending: true}
}

// ColumnValue is one (column, value) pair of a generic insert.
type ColumnValue struct {
	Column string
	Value  any
}

// Spec is an immutable description of one SQL operation with its bindings.
type Spec struct {
	kind Kind

	// raw
	sql        string
	named      map[string]any
	positional map[int]any

	// generic select / insert
	table    string
	columns  []string
	criteria map[string]any
	orderBy  []SortKey
	offset   int
	limit    int
	values   []ColumnValue
}

// Kind reports how the spec was built.
func (s *Spec) Kind() Kind {
	return s.kind
}

// SQL returns the raw template for raw specs, or the empty string.
func (s *Spec) SQL() string {
	return s.sql
}

// Table returns the target table of generic specs.
func (s *Spec) Table() string {
	return s.table
}

var namedToken = regexp.MustCompile(`\$\d+`)

// Compile produces the final dialect SQL and the ordered driver arguments.
// It fails with ErrInvalidSpecification when a referenced placeholder has
// no binding or a binding references no placeholder.
func (s *Spec) Compile(dialect Dialect) (string, []any, error) {
	switch s.kind {
	case KindRaw:
		return s.compileRaw(dialect)
	case KindSelect:
		return s.compileSelect(dialect)
	case KindInsert:
		return s.compileInsert(dialect)
	default:
		return "", nil, fmt.Errorf("%w: unknown statement kind", ErrInvalidSpecification)
	}
}

func (s *Spec) compileRaw(dialect Dialect) (string, []any, error) {
	tokens := namedToken.FindAllString(s.sql, -1)
	questions := strings.Count(s.sql, "?")

	if len(tokens) > 0 && questions > 0 {
		return "", nil, fmt.Errorf("%w: template mixes $N and ? placeholders", ErrInvalidSpecification)
	}

	if len(tokens) > 0 {
		return s.compileNamed(dialect, tokens)
	}

	return s.compilePositional(dialect, questions)
}

func (s *Spec) compileNamed(dialect Dialect, tokens []string) (string, []any, error) {
	if s.positional != nil {
		return "", nil, fmt.Errorf("%w: positional bindings against named placeholders", ErrInvalidSpecification)
	}

	referenced := make(map[string]struct{}, len(tokens))
	args := make([]any, 0, len(tokens))

	for _, token := range tokens {
		referenced[token] = struct{}{}

		value, ok := s.named[token]
		if !ok {
			return "", nil, fmt.Errorf("%w: no binding for placeholder %s", ErrInvalidSpecification, token)
		}

		arg, err := bindingArg(value)
		if err != nil {
			return "", nil, err
		}

		args = append(args, arg)
	}

	for name := range s.named {
		if _, ok := referenced[name]; !ok {
			return "", nil, fmt.Errorf("%w: binding %s references no placeholder", ErrInvalidSpecification, name)
		}
	}

	// Rewrite named tokens in appearance order so every dialect receives
	// its native placeholder form with args in matching order.
	query := namedToken.ReplaceAllString(s.sql, "?")

	return dialect.rebind(query), args, nil
}

func (s *Spec) compilePositional(dialect Dialect, questions int) (string, []any, error) {
	if s.named != nil {
		return "", nil, fmt.Errorf("%w: named bindings against positional placeholders", ErrInvalidSpecification)
	}

	args := make([]any, 0, questions)

	for i := 0; i < questions; i++ {
		value, ok := s.positional[i]
		if !ok {
			return "", nil, fmt.Errorf("%w: no binding for placeholder at position %d", ErrInvalidSpecification, i)
		}

		arg, err := bindingArg(value)
		if err != nil {
			return "", nil, err
		}

		args = append(args, arg)
	}

	for pos := range s.positional {
		if pos >= questions {
			return "", nil, fmt.Errorf("%w: binding at position %d references no placeholder", ErrInvalidSpecification, pos)
		}
	}

	return dialect.rebind(s.sql), args, nil
}

func (s *Spec) compileSelect(dialect Dialect) (string, []any, error) {
	fields := "*"
	if len(s.columns) > 0 {
		fields = strings.Join(s.columns, ",")
	}

	var (
		bd   strings.Builder
		args []any
	)

	bd.WriteString("SELECT ")
	bd.WriteString(fields)
	bd.WriteString(" FROM ")
	bd.WriteString(s.table)

	if len(s.criteria) > 0 {
		// Sorted keys keep generated SQL deterministic.
		keys := make([]string, 0, len(s.criteria))
		for k := range s.criteria {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		conds := make([]string, 0, len(keys))

		for _, k := range keys {
			arg, err := bindingArg(s.criteria[k])
			if err != nil {
				return "", nil, err
			}

			conds = append(conds, k+"=?")
			args = append(args, arg)
		}

		bd.WriteString(" WHERE ")
		bd.WriteString(strings.Join(conds, " AND "))
	}

	if len(s.orderBy) > 0 {
		terms := make([]string, 0, len(s.orderBy))

		for _, key := range s.orderBy {
			term := key.Column
			if key.Descending {
				term += " DESC"
			} else {
				term += " ASC"
			}

			terms = append(terms, term)
		}

		bd.WriteString(" ORDER BY ")
		bd.WriteString(strings.Join(terms, ","))
	}

	if s.limit > 0 || s.offset > 0 {
		if dialect == DialectMySQL {
			bd.WriteString(" LIMIT ?,?")
			args = append(args, s.offset, s.limit)
		} else {
			bd.WriteString(" LIMIT ? OFFSET ?")
			args = append(args, s.limit, s.offset)
		}
	}

	return dialect.rebind(bd.String()), args, nil
}

func (s *Spec) compileInsert(dialect Dialect) (string, []any, error) {
	columns := make([]string, 0, len(s.values))
	args := make([]any, 0, len(s.values))

	for _, cv := range s.values {
		arg, err := bindingArg(cv.Value)
		if err != nil {
			return "", nil, err
		}

		columns = append(columns, cv.Column)
		args = append(args, arg)
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(columns)), ",")

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.table, strings.Join(columns, ","), placeholders)

	return dialect.rebind(query), args, nil
}
