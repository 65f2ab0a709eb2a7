package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dtadmin/internal/adminapi"
	"dtadmin/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	srv    *httptest.Server
	access string

	mu      sync.Mutex
	logouts int
	resets  []map[string]string
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "2",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	b := &backend{access: tok}

	r := chi.NewRouter()
	r.Post(adminapi.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		var in adminapi.Credentials
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Password != "Secret123" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": b.access, "refresh_token": "r1",
			"user":        map[string]any{"id": 2, "email": in.Email, "username": "mod", "is_moderator": true},
			"permissions": map[string]bool{"can_see_users": true, "can_manage_users": true},
		})
	})
	r.Post(adminapi.PathLogout, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.logouts++
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post(adminapi.PathResetRequest, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.mu.Lock()
		b.resets = append(b.resets, in)
		b.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})
	r.Post(adminapi.PathResetVerify, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["token"] != "123456" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid or expired code"})
			return
		}
		b.mu.Lock()
		b.resets = append(b.resets, in)
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	b.srv = httptest.NewServer(r)
	t.Cleanup(b.srv.Close)
	return b
}

// configFor writes a config using a JSON file store so the session
// survives between commands.
func configFor(t *testing.T, b *backend) []string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	c := config.Default()
	c.API.Addr = b.srv.URL
	c.Store = config.StoreConfig{Kind: config.StoreFile, Path: filepath.Join(dir, "session.json")}
	require.NoError(t, config.Save(path, c))
	return []string{"-config", path}
}

func TestLoginWhoamiLogout(t *testing.T) {
	b := newBackend(t)
	cfg := configFor(t, b)
	ctx := context.Background()
	t.Setenv("DTADMIN_PASSWORD", "Secret123")

	var out strings.Builder
	require.NoError(t, login(ctx, append(cfg, "-email", "mod@example.com", "-password-env"), &out))
	assert.Equal(t, "Signed in as mod (moderator)\n", out.String())

	out.Reset()
	require.NoError(t, whoami(ctx, cfg, &out))
	text := out.String()
	assert.Contains(t, text, "mod (#2)")
	assert.Contains(t, text, "moderator")
	assert.Contains(t, text, "See users, Manage users")
	assert.NotContains(t, text, "unknown")

	out.Reset()
	require.NoError(t, logout(ctx, cfg, &out))
	assert.Equal(t, 1, b.logouts)

	err := whoami(ctx, cfg, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")
}

func TestLoginShowsServerMessage(t *testing.T) {
	b := newBackend(t)
	cfg := configFor(t, b)
	prev := promptPassword
	promptPassword = func(string, bool) (string, error) { return "wrong", nil }
	t.Cleanup(func() { promptPassword = prev })

	err := login(context.Background(), append(cfg, "-email", "mod@example.com"), &strings.Builder{})
	require.Error(t, err)
	assert.Equal(t, "Incorrect email or password", err.Error())
}

func TestLoginPromptsForEmail(t *testing.T) {
	b := newBackend(t)
	cfg := configFor(t, b)
	prevLine, prevPass := promptLine, promptPassword
	promptLine = func(string) (string, error) { return "mod@example.com", nil }
	promptPassword = func(string, bool) (string, error) { return "Secret123", nil }
	t.Cleanup(func() { promptLine, promptPassword = prevLine, prevPass })

	var out strings.Builder
	require.NoError(t, login(context.Background(), cfg, &out))
	assert.Contains(t, out.String(), "Signed in as mod")
}

func TestPasswordReset(t *testing.T) {
	b := newBackend(t)
	cfg := configFor(t, b)
	ctx := context.Background()
	prev := promptPassword
	promptPassword = func(string, bool) (string, error) { return "N3wPassword!", nil }
	t.Cleanup(func() { promptPassword = prev })

	var out strings.Builder
	require.NoError(t, passwordReset(ctx, append([]string{"request"}, append(cfg, "-email", "mod@example.com")...), &out))
	assert.Contains(t, out.String(), "reset code has been sent")

	err := passwordReset(ctx, append([]string{"verify"}, append(cfg, "-email", "mod@example.com", "-code", "000000")...), &out)
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired code", err.Error())

	require.NoError(t, passwordReset(ctx, append([]string{"verify"}, append(cfg, "-email", "mod@example.com", "-code", "123456")...), &out))

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.resets, 2)
	assert.Equal(t, "mod@example.com", b.resets[0]["email"])
	assert.Equal(t, "N3wPassword!", b.resets[1]["new_password"])

	err = passwordReset(ctx, []string{"explode"}, &out)
	assert.Error(t, err)
}
