// Package db opens the trainer's sqlite run ledger.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Open connects to the sqlite file at path (created if missing) through the
// tracing connector, so every statement is logged at debug level.
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(newTracingConnector(dsn, logger))
	// One writer; also keeps ":memory:" to a single database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func buildDSN(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty ledger path")
	}
	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
	}
	if path == ":memory:" {
		return "file::memory:?" + strings.Join(params, "&"), nil
	}
	params = append(params, "_journal_mode=WAL")

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
