// Package db persists the console session in a local SQLite file so a
// login survives across dtadmin invocations.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the session database. It holds a single connection.
type DB struct {
	sql  *sql.DB
	path string
}

// pragmas run on every open. The console and a concurrent CLI call may
// both touch the file, so writers wait instead of failing.
var pragmas = []string{
	"PRAGMA journal_mode = WAL;",
	"PRAGMA synchronous = FULL;",
}

// Open opens or creates the session database at path and applies pending
// migrations. The file is readable by the owner only.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("session db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("session db dir: %w", err)
	}

	s, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(3000)", path))
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(1)
	s.SetMaxIdleConns(1)
	s.SetConnMaxLifetime(0)

	d := &DB{sql: s, path: path}
	if err := d.init(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open session db %s: %w", path, err)
	}
	_ = os.Chmod(path, 0o600)
	return d, nil
}

func (d *DB) init(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := d.sql.PingContext(pctx); err != nil {
		return err
	}
	for _, p := range pragmas {
		if _, err := d.sql.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return Migrate(ctx, d.sql)
}

// Path is the database file.
func (d *DB) Path() string { return d.path }

func (d *DB) Close() error {
	return d.sql.Close()
}
