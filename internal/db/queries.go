package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dtadmin/internal/session"
)

// nowUnix returns the current Unix timestamp in seconds.
func nowUnix() int64 { return time.Now().Unix() }

// Store adapts DB to session.TokenStore.
type Store struct {
	db *DB
}

var _ session.TokenStore = (*Store)(nil)

// TokenStore returns the session store backed by d.
func (d *DB) TokenStore() *Store {
	return &Store{db: d}
}

func (s *Store) Get(ctx context.Context, key session.Key) (string, error) {
	var v string
	err := s.db.sql.QueryRowContext(ctx, "SELECT value FROM session_kv WHERE key = ?", string(key)).Scan(&v)
	if err == nil {
		return v, nil
	}
	if err == sql.ErrNoRows {
		return "", nil
	}
	return "", err
}

// Set upserts all values in one transaction. Empty values delete their key.
func (s *Store) Set(ctx context.Context, values map[session.Key]string) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := nowUnix()
	for k, v := range values {
		if k == "" {
			return errors.New("session key is required")
		}
		if v == "" {
			if _, err := tx.ExecContext(ctx, "DELETE FROM session_kv WHERE key = ?", string(k)); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO session_kv(key, value, updated_at) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
`, string(k), v, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.sql.ExecContext(ctx, "DELETE FROM session_kv")
	return err
}

// UpdatedAt reports when key was last written.
func (s *Store) UpdatedAt(ctx context.Context, key session.Key) (time.Time, bool, error) {
	var ts int64
	err := s.db.sql.QueryRowContext(ctx, "SELECT updated_at FROM session_kv WHERE key = ?", string(key)).Scan(&ts)
	if err == nil {
		return time.Unix(ts, 0), true, nil
	}
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	return time.Time{}, false, err
}

// GetMeta fetches a single meta key. The boolean indicates whether it exists.
func (d *DB) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if err == nil {
		return v, true, nil
	}
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	return "", false, err
}

// SetMeta upserts a meta key/value pair.
func (d *DB) SetMeta(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("meta key is required")
	}
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO meta(key, value, updated_at) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
`, key, value, nowUnix())
	return err
}

// IsInitialized reports whether setup has completed.
func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	v, ok, err := d.GetMeta(ctx, "initialized")
	if err != nil {
		return false, err
	}
	return ok && v == "1", nil
}

// SetInitialized marks the store as set up for apiAddr.
func (d *DB) SetInitialized(ctx context.Context, apiAddr string) error {
	if err := d.SetMeta(ctx, "api_addr", apiAddr); err != nil {
		return err
	}
	return d.SetMeta(ctx, "initialized", "1")
}
