package setup

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dtadmin/internal/config"
	"dtadmin/internal/db"
	"dtadmin/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"API_ADDR", "STORE_KIND", "STORE_PATH", "LOG_LEVEL", "LOG_FILE", "API_INSECURE"} {
		t.Setenv(config.EnvPrefix+k, "")
		require.NoError(t, os.Unsetenv(config.EnvPrefix+k))
	}
	t.Setenv(config.EnvPrefix+"HOME", t.TempDir())
}

func TestRunWritesConfigAndMarksStore(t *testing.T) {
	clearEnv(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	c, err := Run(ctx, Options{ConfigPath: path, Addr: "https://api.driptyard.test/"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.driptyard.test", c.API.Addr)
	assert.Equal(t, config.StoreSQLite, c.Store.Kind)
	assert.Equal(t, filepath.Join(dir, "dtadmin.db"), c.Store.Path)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, c.API.Addr, loaded.API.Addr)

	d, err := db.Open(ctx, c.Store.Path)
	require.NoError(t, err)
	defer d.Close()
	ok, err := d.IsInitialized(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	addr, _, err := d.GetMeta(ctx, "api_addr")
	require.NoError(t, err)
	assert.Equal(t, c.API.Addr, addr)
}

func TestRunRefusesToOverwrite(t *testing.T) {
	clearEnv(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := Run(ctx, Options{ConfigPath: path, Addr: "localhost:8000"})
	require.NoError(t, err)
	_, err = Run(ctx, Options{ConfigPath: path, Addr: "localhost:8000"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = Run(ctx, Options{ConfigPath: path, Addr: "localhost:9000", Force: true})
	require.NoError(t, err)
}

func TestRunPlacesStoreNextToConfig(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv(config.EnvPrefix+"HOME", home)

	cases := []struct {
		kind, file string
	}{
		{"", "dtadmin.db"},
		{config.StoreSQLite, "dtadmin.db"},
		{config.StoreFile, "session.json"},
	}
	for _, tc := range cases {
		dir := t.TempDir()
		c, err := Run(context.Background(), Options{ConfigPath: filepath.Join(dir, "config.yaml"), Addr: "localhost:8000", StoreKind: tc.kind})
		require.NoError(t, err, "kind %q", tc.kind)
		assert.Equal(t, filepath.Join(dir, tc.file), c.Store.Path, "kind %q", tc.kind)
	}
	assert.NoFileExists(t, filepath.Join(home, "dtadmin.db"))

	dir := t.TempDir()
	custom := filepath.Join(t.TempDir(), "elsewhere.db")
	c, err := Run(context.Background(), Options{ConfigPath: filepath.Join(dir, "config.yaml"), Addr: "localhost:8000", StorePath: custom})
	require.NoError(t, err)
	assert.Equal(t, custom, c.Store.Path)
}

func TestRunRejectsBadInput(t *testing.T) {
	clearEnv(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := Run(ctx, Options{ConfigPath: path})
	require.Error(t, err)

	_, err = Run(ctx, Options{ConfigPath: path, Addr: "ftp://example.com"})
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestResetSessionClearsTokens(t *testing.T) {
	clearEnv(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.yaml")
	c, err := Run(ctx, Options{ConfigPath: path, Addr: "localhost:8000", StoreKind: config.StoreFile})
	require.NoError(t, err)

	st, closeStore, err := OpenStore(ctx, c)
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, map[session.Key]string{session.KeyAccessToken: "a", session.KeyRefreshToken: "r"}))
	require.NoError(t, closeStore())

	_, err = ResetSession(ctx, ResetSessionOptions{ConfigPath: path})
	require.NoError(t, err)

	st, closeStore, err = OpenStore(ctx, c)
	require.NoError(t, err)
	defer closeStore()
	v, err := st.Get(ctx, session.KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestResetSessionNeedsSetup(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	c := config.Default()
	c.Store.Path = filepath.Join(dir, "dtadmin.db")
	require.NoError(t, config.Save(path, c))

	_, err := ResetSession(context.Background(), ResetSessionOptions{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run setup")
}

func TestReadPassword(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("\nsecret1\nother\nsecret2\nsecret2\n"))
	var out strings.Builder
	p, err := readPassword(in, &out, "Password", true)
	require.NoError(t, err)
	assert.Equal(t, "secret2", p)
	assert.Contains(t, out.String(), "password cannot be empty")
	assert.Contains(t, out.String(), "passwords do not match")

	_, err = readPassword(bufio.NewReader(strings.NewReader("")), io.Discard, "Password", false)
	require.Error(t, err)
}

func TestReadConfirm(t *testing.T) {
	for in, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "": false, "sure": false} {
		got, err := readConfirm(bufio.NewReader(strings.NewReader(in)), io.Discard, "Delete?")
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
