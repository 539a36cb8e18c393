// Package telemetry persists error-level log records to DuckDB so failed
// deletions can be queried after the fact.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"github.com/soundprediction/go-zepsync/pkg/types"
)

// DuckDBHandler is a slog.Handler that writes error logs to DuckDB
type DuckDBHandler struct {
	next slog.Handler
	db   *sql.DB
}

// Open opens (or creates) a DuckDB database at path. An empty path opens an
// in-memory database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to duckdb: %w", err)
	}
	return db, nil
}

// NewDuckDBHandler creates a new DuckDBHandler
func NewDuckDBHandler(next slog.Handler, db *sql.DB) (*DuckDBHandler, error) {
	h := &DuckDBHandler{
		next: next,
		db:   db,
	}

	if err := h.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return h, nil
}

// initSchema creates the execution_errors table
func (h *DuckDBHandler) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS execution_errors (
		id VARCHAR,
		timestamp TIMESTAMP,
		level VARCHAR,
		message VARCHAR,
		graph_id VARCHAR,
		run_id VARCHAR,
		command VARCHAR,
		request_source VARCHAR,
		source_file VARCHAR,
		line_number INTEGER,
		attributes JSON
	);
	`
	_, err := h.db.Exec(query)
	return err
}

// Enabled implements slog.Handler
func (h *DuckDBHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelError || h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *DuckDBHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.next.Enabled(ctx, r.Level) {
		if err := h.next.Handle(ctx, r); err != nil {
			return err
		}
	}

	// Only log errors (and above) to DB
	if r.Level < slog.LevelError {
		return nil
	}

	attrs := make(map[string]any)
	r.Attrs(func(a slog.Attr) bool {
		v := a.Value.Resolve().Any()
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		attrs[a.Key] = v
		return true
	})
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		attrsJSON = []byte("{}")
	}

	var sourceFile string
	var line int
	if r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		sourceFile, line = f.File, f.Line
	}

	query := `
	INSERT INTO execution_errors (
		id, timestamp, level, message,
		graph_id, run_id, command, request_source,
		source_file, line_number, attributes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`

	// The write is synchronous so that a process exiting right after a
	// failure still records it.
	_, err = h.db.ExecContext(context.WithoutCancel(ctx), query,
		uuid.New().String(), r.Time.UTC(), r.Level.String(), r.Message,
		contextString(ctx, types.ContextKeyGraphID),
		contextString(ctx, types.ContextKeyRunID),
		contextString(ctx, types.ContextKeyCommand),
		contextString(ctx, types.ContextKeyRequestSource),
		sourceFile, line, string(attrsJSON),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to log error to DuckDB: %v\n", err)
	}
	return nil
}

// WithAttrs implements slog.Handler
func (h *DuckDBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &DuckDBHandler{
		next: h.next.WithAttrs(attrs),
		db:   h.db,
	}
}

// WithGroup implements slog.Handler
func (h *DuckDBHandler) WithGroup(name string) slog.Handler {
	return &DuckDBHandler{
		next: h.next.WithGroup(name),
		db:   h.db,
	}
}

// ErrorRecord is one row of execution_errors.
type ErrorRecord struct {
	Message string
	GraphID string
	RunID   string
	Command string
}

// RecentErrors returns the latest error rows, newest first.
func RecentErrors(ctx context.Context, db *sql.DB, limit int) ([]ErrorRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT message, COALESCE(graph_id, ''), COALESCE(run_id, ''), COALESCE(command, '')
		FROM execution_errors
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}
	defer rows.Close()

	var out []ErrorRecord
	for rows.Next() {
		var rec ErrorRecord
		if err := rows.Scan(&rec.Message, &rec.GraphID, &rec.RunID, &rec.Command); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func contextString(ctx context.Context, key types.ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
