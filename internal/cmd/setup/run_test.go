package setup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dtadmin/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	for _, k := range []string{"API_ADDR", "API_INSECURE", "STORE_KIND", "STORE_PATH", "LOG_LEVEL", "LOG_FILE"} {
		t.Setenv(config.EnvPrefix+k, "")
		require.NoError(t, os.Unsetenv(config.EnvPrefix+k))
	}
	t.Setenv(config.EnvPrefix+"HOME", t.TempDir())
}

func TestSetupWritesConfig(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	var out strings.Builder
	require.NoError(t, run(context.Background(), []string{"-config", path, "-addr", "localhost:8000", "-page-size", "25"}, &out))
	assert.Contains(t, out.String(), "Token store: sqlite "+filepath.Join(dir, "dtadmin.db"))
	assert.Contains(t, out.String(), "Next: dtadmin login")

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8000", c.API.Addr)
	assert.True(t, c.API.Insecure, "localhost defaults to insecure")
	assert.Equal(t, 25, c.UI.PageSize)
	assert.FileExists(t, c.Store.Path)

	err = run(context.Background(), []string{"-config", path, "-addr", "localhost:8000"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-force")
}

func TestSetupRequiresAddress(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	var out strings.Builder
	require.Error(t, run(context.Background(), []string{"-config", path}, &out))
	assert.NoFileExists(t, path)
}
