package persist

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// DB is the durable mirror of the in-memory state. SQLite supports one
// writer at a time, so a single connection plus a write mutex
// serializes all mutations; the sweep and the ingest path write
// concurrently otherwise.
type DB struct {
	conn    *sql.DB
	writeMu sync.Mutex
	logger  *slog.Logger
}

// Open opens (creating if needed) the SQLite database with WAL mode.
func Open(dbPath string, logger *slog.Logger) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal=WAL&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			logger.Warn("pragma failed", "pragma", pragma, "error", err)
		}
	}

	return &DB{conn: conn, logger: logger.With("component", "persist")}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// timeLayout is a fixed-width UTC format. RFC3339Nano trims trailing
// zeros, which breaks lexicographic comparison of TEXT columns at
// sub-second granularity; this layout keeps string order equal to
// chronological order for the updated_at cutoff and ORDER BY.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// EnsureSchema creates the tables if they don't exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
