package statement

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect represents a SQL dialect that statements can be compiled for.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect normalizes a dialect name.
//
// Supported values include:
//   - mysql, mariadb
//   - postgres, postgresql, cockroachdb
//   - sqlite, sqlite3
func ParseDialect(dialect string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case string(DialectMySQL), "mariadb":
		return DialectMySQL, nil
	case string(DialectPostgres), "postgresql", "cockroachdb":
		return DialectPostgres, nil
	case "", string(DialectSQLite), "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("%w: unsupported dialect %q", ErrInvalidSpecification, dialect)
	}
}

// rebind rewrites ? placeholders into the dialect's native form. Only
// postgres deviates from ?.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var (
		counter = 1
		out     strings.Builder
	)

	out.Grow(len(query) + 8)

	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			out.WriteByte(query[i])
			continue
		}

		out.WriteByte('$')
		out.WriteString(strconv.Itoa(counter))
		counter++
	}

	return out.String()
}
