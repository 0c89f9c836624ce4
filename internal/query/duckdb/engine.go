package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/tablechat/tablechat/internal/query"
)

// Engine runs validated statements against a DuckDB database opened in
// read-only mode. The read-only handle is the last line of defense: even a
// statement that slipped past validation cannot mutate the database.
type Engine struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
}

type Options struct {
	Path         string
	MaxOpenConns int
	MaxIdleConns int
	MaxRows      int
	Timeout      time.Duration
}

func Open(options Options) (*Engine, error) {
	if strings.TrimSpace(options.Path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	db, err := sql.Open("duckdb", options.Path+"?access_mode=read_only")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if options.MaxOpenConns > 0 {
		db.SetMaxOpenConns(options.MaxOpenConns)
	}
	if options.MaxIdleConns > 0 {
		db.SetMaxIdleConns(options.MaxIdleConns)
	}
	return NewWithDB(db, options.MaxRows, options.Timeout), nil
}

// NewWithDB wraps an existing handle. Used by tests and by callers that
// manage the connection themselves.
func NewWithDB(db *sql.DB, maxRows int, timeout time.Duration) *Engine {
	if maxRows <= 0 {
		maxRows = 1000
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Engine{db: db, maxRows: maxRows, timeout: timeout}
}

func (e *Engine) DB() *sql.DB {
	return e.db
}

func (e *Engine) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := strings.TrimSpace(request.SQL)
	if sqlText == "" {
		return query.Result{}, &query.ExecutionError{Detail: "sql is required"}
	}

	limit := request.RowLimit
	if limit <= 0 || limit > e.maxRows {
		limit = e.maxRows
	}
	timeout := request.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.db.QueryContext(execCtx, sqlText)
	if err != nil {
		return query.Result{}, wrapExecError("execute query", err, execCtx)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, wrapExecError("query columns", err, execCtx)
	}

	resultRows := make([][]any, 0)
	truncated := false
	for rows.Next() {
		if len(resultRows) == limit {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, wrapExecError("scan row", err, execCtx)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, wrapExecError("iterate rows", err, execCtx)
	}

	return query.Result{
		Columns:   columns,
		Rows:      resultRows,
		RowCount:  len(resultRows),
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

func wrapExecError(detail string, err error, ctx context.Context) *query.ExecutionError {
	timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	return &query.ExecutionError{Timeout: timeout, Detail: detail, Err: err}
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
