package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/sllt/fluentdb/pkg/fluentdb/config"
	"github.com/sllt/fluentdb/pkg/fluentdb/logging"
	"github.com/sllt/fluentdb/pkg/fluentdb/metrics"
)

// Log is the record emitted for every statement the adapter sends.
type Log struct {
	Type     string `json:"type"`
	Query    string `json:"query"`
	Duration int64  `json:"duration"`
	Args     []any  `json:"args,omitempty"`
}

func (l *Log) PrettyPrint(writer io.Writer) {
	fmt.Fprintf(writer, "\u001B[38;5;8m%-32s \u001B[38;5;24m%-6s\u001B[0m %8d\u001B[38;5;8mµs\u001B[0m %s\n",
		l.Type, "SQL", l.Duration, clean(l.Query))
}

func clean(query string) string {
	query = regexp.MustCompile(`\s+`).ReplaceAllString(query, " ")
	query = strings.TrimSpace(query)

	return query
}

func sendStats(logger logging.Logger, m metrics.Metrics, cfg *config.Config, start time.Time, queryType, query string, args ...any) {
	duration := time.Since(start).Microseconds()

	if logger != nil {
		logger.Debug(&Log{
			Type:     queryType,
			Query:    query,
			Duration: duration,
			Args:     args,
		})
	}

	if m != nil {
		m.RecordHistogram(context.Background(), "fluentdb_sql_stats", float64(duration),
			"hostname", cfg.HostName, "database", cfg.Database, "type", getOperationType(query))
	}
}

func getOperationType(query string) string {
	query = strings.TrimSpace(query)
	words := strings.Split(query, " ")

	return strings.ToUpper(words[0])
}

// SQLProvider is a ConnectionProvider backed by a database/sql pool.
type SQLProvider struct {
	db      *sql.DB
	cfg     *config.Config
	logger  logging.Logger
	metrics metrics.Metrics
}

// NewSQLProvider wraps an existing pool. The dialect from cfg is reported
// to the statement builders.
func NewSQLProvider(db *sql.DB, cfg *config.Config, logger logging.Logger, m metrics.Metrics) *SQLProvider {
	if logger == nil {
		logger = logging.NopLogger{}
	}

	if m == nil {
		m = metrics.NopMetrics{}
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	return &SQLProvider{db: db, cfg: cfg, logger: logger, metrics: m}
}

// Acquire checks a single connection out of the pool.
func (p *SQLProvider) Acquire(ctx context.Context) (Connection, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}

	return &sqlConn{conn: conn, provider: p}, nil
}

// Release returns a connection obtained from Acquire to the pool. Releasing
// a connection this provider did not hand out is a no-op.
func (p *SQLProvider) Release(conn Connection) error {
	sc, ok := conn.(*sqlConn)
	if !ok || sc.conn == nil {
		return nil
	}

	err := sc.conn.Close()
	sc.conn = nil

	return err
}

func (p *SQLProvider) Dialect() string {
	return p.cfg.Dialect
}

// Close shuts the underlying pool down.
func (p *SQLProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}

	return nil
}

type sqlConn struct {
	conn     *sql.Conn
	provider *SQLProvider
}

func (c *sqlConn) sendOperationStats(start time.Time, queryType, query string, args ...any) {
	sendStats(c.provider.logger, c.provider.metrics, c.provider.cfg, start, queryType, query, args...)
}

func (c *sqlConn) Query(ctx context.Context, query string, args ...any) (Cursor, error) {
	defer c.sendOperationStats(time.Now(), "Query", query, args...)

	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return newSQLCursor(rows)
}

func (c *sqlConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	defer c.sendOperationStats(time.Now(), "Exec", query, args...)

	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (c *sqlConn) Begin(ctx context.Context, opts TxOptions) (TransactionHandle, error) {
	tx, err := c.conn.BeginTx(ctx, &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, err
	}

	return &sqlTx{tx: tx, provider: c.provider}, nil
}

type sqlTx struct {
	tx       *sql.Tx
	provider *SQLProvider
}

func (t *sqlTx) sendOperationStats(start time.Time, queryType, query string, args ...any) {
	sendStats(t.provider.logger, t.provider.metrics, t.provider.cfg, start, queryType, query, args...)
}

func (t *sqlTx) Connection() Connection {
	return &txConn{tx: t}
}

func (t *sqlTx) Commit(_ context.Context) error {
	defer t.sendOperationStats(time.Now(), "TxCommit", "COMMIT")
	return t.tx.Commit()
}

func (t *sqlTx) Rollback(_ context.Context) error {
	defer t.sendOperationStats(time.Now(), "TxRollback", "ROLLBACK")
	return t.tx.Rollback()
}

type txConn struct {
	tx *sqlTx
}

func (c *txConn) Query(ctx context.Context, query string, args ...any) (Cursor, error) {
	defer c.tx.sendOperationStats(time.Now(), "TxQuery", query, args...)

	rows, err := c.tx.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return newSQLCursor(rows)
}

func (c *txConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	defer c.tx.sendOperationStats(time.Now(), "TxExec", query, args...)

	res, err := c.tx.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// Begin on a transaction connection is rejected; nested transactions are
// owned by the transaction context, not the driver.
func (c *txConn) Begin(context.Context, TxOptions) (TransactionHandle, error) {
	return nil, sql.ErrTxDone
}

type sqlCursor struct {
	rows    *sql.Rows
	columns []Column
}

func newSQLCursor(rows *sql.Rows) (*sqlCursor, error) {
	names, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}

	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name, Index: i}
	}

	if types, err := rows.ColumnTypes(); err == nil {
		for i, t := range types {
			if i < len(columns) {
				columns[i].TypeName = t.DatabaseTypeName()
			}
		}
	}

	return &sqlCursor{rows: rows, columns: columns}, nil
}

func (c *sqlCursor) Columns() []Column {
	return c.columns
}

func (c *sqlCursor) Next() bool {
	return c.rows.Next()
}

func (c *sqlCursor) Values() ([]any, error) {
	values := make([]any, len(c.columns))
	ptrs := make([]any, len(c.columns))

	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	return values, nil
}

func (c *sqlCursor) Err() error {
	return c.rows.Err()
}

func (c *sqlCursor) Close() error {
	return c.rows.Close()
}
