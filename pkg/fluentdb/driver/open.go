package driver

import (
	"github.com/XSAM/otelsql"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/sllt/fluentdb/pkg/fluentdb/config"
	"github.com/sllt/fluentdb/pkg/fluentdb/logging"
	"github.com/sllt/fluentdb/pkg/fluentdb/metrics"

	// Dialect drivers the adapter can open.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Open opens an instrumented database/sql pool for the configured dialect
// and returns a ConnectionProvider over it. Traces are produced through
// otelsql.
func Open(cfg *config.Config, logger logging.Logger, m metrics.Metrics) (*SQLProvider, error) {
	driverName, attr, err := dialectDriver(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := otelsql.Open(driverName, cfg.ConnectionString(), otelsql.WithAttributes(attr))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s pool", cfg.Dialect)
	}

	return NewSQLProvider(db, cfg, logger, m), nil
}

func dialectDriver(dialect string) (string, attribute.KeyValue, error) {
	switch dialect {
	case "mysql", "mariadb":
		return "mysql", semconv.DBSystemMySQL, nil
	case "postgres", "postgresql":
		return "postgres", semconv.DBSystemPostgreSQL, nil
	case "", "sqlite", "sqlite3":
		return "sqlite", semconv.DBSystemSqlite, nil
	default:
		return "", attribute.KeyValue{}, errors.Errorf("unsupported dialect %q", dialect)
	}
}
