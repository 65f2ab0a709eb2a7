// Package db tests verify the SQLite session store.
package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dtadmin/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	d, err := Open(context.Background(), filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// TestStoreSetGetClear covers the TokenStore contract against SQLite.
func TestStoreSetGetClear(t *testing.T) {
	ctx := context.Background()
	st := openTest(t).TokenStore()

	require.NoError(t, st.Set(ctx, map[session.Key]string{
		session.KeyAccessToken:  "a1",
		session.KeyRefreshToken: "r1",
	}))
	require.NoError(t, st.Set(ctx, map[session.Key]string{session.KeyAccessToken: "a2"}))

	v, err := st.Get(ctx, session.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a2", v)
	v, err = st.Get(ctx, session.KeyRefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "r1", v)

	_, ok, err := st.UpdatedAt(ctx, session.KeyAccessToken)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, st.Set(ctx, map[session.Key]string{session.KeyAccessToken: "a3", session.KeyRefreshToken: ""}))
	v, err = st.Get(ctx, session.KeyRefreshToken)
	require.NoError(t, err)
	assert.Empty(t, v)
	_, ok, err = st.UpdatedAt(ctx, session.KeyRefreshToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Clear(ctx))
	v, err = st.Get(ctx, session.KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, v)
	v, err = st.Get(ctx, session.KeyRefreshToken)
	require.NoError(t, err)
	assert.Empty(t, v)
}

// TestReopenKeepsSession confirms values survive a reopen and migrations are idempotent.
func TestReopenKeepsSession(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	d, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, d.TokenStore().Set(ctx, map[session.Key]string{session.KeyAccessToken: "keep"}))
	require.NoError(t, d.SetInitialized(ctx, "https://api.example.test"))
	require.NoError(t, d.Close())

	d, err = Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	v, err := d.TokenStore().Get(ctx, session.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "keep", v)

	ok, err := d.IsInitialized(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	addr, ok, err := d.GetMeta(ctx, "api_addr")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://api.example.test", addr)
}

func TestOpenCreatesPrivateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	d, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	assert.Equal(t, path, d.Path())

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	_, err = Open(context.Background(), "")
	assert.Error(t, err)
}
