package adminapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"dtadmin/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-process marketplace API. Protected routes accept
// only "Bearer <access>".
type fakeBackend struct {
	srv *httptest.Server

	mu           sync.Mutex
	access       string
	refresh      string
	rotate       string
	refreshFails bool
	rejectAll    bool
	failOverview bool
	logoutStatus int
	logoutAuth   string
	refreshCalls int
	unauthorized int
	hits         map[string]int
	lastQuery    url.Values
	lastBody     map[string]any
	spotlights   map[string]map[string]any

	// refreshGate, when set, runs inside the refresh handler before it answers.
	refreshGate func()
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		access:       "a2",
		refresh:      "r1",
		logoutStatus: http.StatusOK,
		hits:         map[string]int{},
		spotlights:   map[string]map[string]any{},
	}

	r := chi.NewRouter()
	r.Post(PathLogin, b.login)
	r.Post(PathRefresh, b.refreshToken)
	r.Post(PathLogout, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits["POST "+PathLogout]++
		b.logoutAuth = r.Header.Get("authorization")
		status := b.logoutStatus
		b.mu.Unlock()
		writeJSON(w, status, map[string]string{"detail": http.StatusText(status)})
	})
	r.Group(func(r chi.Router) {
		r.Use(b.requireToken)
		r.Get(PathMe, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"user_id": 7, "email": "legacy@example.com", "username": "legacy",
				"is_admin": false, "is_moderator": true,
				"permissions": map[string]bool{"can_see_users": false, "can_manage_users": true, "can_see_listings": true},
			})
		})
		r.Get("/admin/users", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"users": []map[string]any{
					{"id": 1, "email": "alice@example.com", "username": "alice", "is_active": true, "is_verified": true, "listings_count": 4},
				},
				"total": 1, "total_pages": 1,
			})
		})
		r.Post("/admin/users", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"detail": []map[string]any{{"loc": []string{"body", "email"}, "msg": "email already registered"}},
			})
		})
		r.Get("/admin/products", func(w http.ResponseWriter, r *http.Request) {
			items := []map[string]any{}
			for i := 1; i <= 3; i++ {
				items = append(items, map[string]any{"id": i, "title": "Jacket", "price": "49.90", "owner": map[string]any{"id": 9, "username": "sam"}})
			}
			writeJSON(w, http.StatusOK, map[string]any{"products": items, "total": 25, "total_pages": 3, "page_size": 10})
		})
		r.Post("/admin/products/{id}/spotlight", func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			sp := map[string]any{
				"start_time":          time.Now().UTC().Format(time.RFC3339),
				"end_time":            time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
				"duration_hours":      b.lastBody["duration_hours"],
				"applied_by_username": "admin",
				"status":              "active",
			}
			b.spotlights[chi.URLParam(r, "id")] = sp
			b.mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]string{"message": "Spotlight applied"})
		})
		r.Get("/admin/products/{id}/spotlight", func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			sp, ok := b.spotlights[chi.URLParam(r, "id")]
			b.mu.Unlock()
			if !ok {
				writeJSON(w, http.StatusNotFound, map[string]string{"detail": "No active spotlight"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"is_spotlighted": true, "spotlight": sp})
		})
		r.Delete("/admin/products/{id}/spotlight", func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			delete(b.spotlights, chi.URLParam(r, "id"))
			b.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/admin/logs", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"items": []map[string]any{
					{"id": 1, "timestamp": "2026-03-01T10:00:00", "admin_name": "root", "action": "delete_product", "target": "Product #3"},
				},
				"available_actions": []string{"delete_product", "suspend_user"},
			})
		})
		r.Get("/admin/stats/overview", func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			fail := b.failOverview
			b.mu.Unlock()
			if fail {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "database unavailable"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"total_users": 120, "total_users_change": 12.5,
				"total_products": 300, "pending_verifications": 4, "flagged_content_count": 2, "flagged_content_change": -50,
			})
		})
		r.Put("/moderators/{id}/permissions", func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			body := b.lastBody
			b.mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]any{"message": "saved", "permissions": body})
		})
	})

	b.srv = httptest.NewServer(b.capture(r))
	t.Cleanup(b.srv.Close)
	return b
}

// capture records the query and JSON body of every request.
func (b *fakeBackend) capture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &body)
			r.Body = io.NopCloser(strings.NewReader(string(raw)))
		}
		if r.URL.Path != PathRefresh {
			b.mu.Lock()
			b.lastQuery = r.URL.Query()
			b.lastBody = body
			b.mu.Unlock()
		}
		next.ServeHTTP(w, r)
	})
}

func (b *fakeBackend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.Method+" "+r.URL.Path]++
		ok := !b.rejectAll && r.Header.Get("authorization") == "Bearer "+b.access
		if !ok {
			b.unauthorized++
		}
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var in Credentials
	_ = json.NewDecoder(r.Body).Decode(&in)
	b.mu.Lock()
	b.hits["POST "+PathLogin]++
	access := b.access
	b.mu.Unlock()

	if in.Email == "nodetail@example.com" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if in.Password != "Secret123" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
		return
	}
	out := map[string]any{"access_token": access, "refresh_token": "r1", "token_type": "bearer"}
	switch in.Email {
	case "admin@example.com":
		out["user"] = map[string]any{"id": 1, "email": in.Email, "username": "root", "is_admin": true}
	case "mod@example.com":
		out["user"] = map[string]any{"id": 2, "email": in.Email, "username": "mod", "is_moderator": true}
		out["permissions"] = map[string]bool{"can_see_listings": true, "can_manage_listings": true}
	case "buyer@example.com":
		out["user"] = map[string]any{"id": 3, "email": in.Email, "username": "buyer"}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *fakeBackend) refreshToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	b.mu.Lock()
	b.refreshCalls++
	gate := b.refreshGate
	b.mu.Unlock()
	if gate != nil {
		gate()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refreshFails || in.RefreshToken != b.refresh || r.Header.Get("authorization") != "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid refresh token"})
		return
	}
	out := map[string]string{"access_token": b.access}
	if b.rotate != "" {
		out["refresh_token"] = b.rotate
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *fakeBackend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func (b *fakeBackend) refreshes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// signOuts records sign-out hook invocations.
type signOuts struct {
	mu      sync.Mutex
	reasons []SignOutReason
}

func (s *signOuts) record(r SignOutReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reasons = append(s.reasons, r)
}

func (s *signOuts) all() []SignOutReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SignOutReason(nil), s.reasons...)
}

func newTestClient(t *testing.T, b *fakeBackend, store session.TokenStore, m *Metrics) (*Client, *signOuts) {
	t.Helper()
	so := &signOuts{}
	c, err := NewClient(ClientOptions{
		Addr:      b.srv.URL,
		Timeout:   5 * time.Second,
		Store:     store,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   m,
		OnSignOut: so.record,
	})
	require.NoError(t, err)
	return c, so
}

// signedIn returns a store holding a stale access token and refresh token r1.
func signedIn(t *testing.T) session.TokenStore {
	t.Helper()
	st := session.NewMemoryStore()
	require.NoError(t, st.Set(context.Background(), map[session.Key]string{
		session.KeyAccessToken:  "a1",
		session.KeyRefreshToken: "r1",
	}))
	return st
}

func get(t *testing.T, st session.TokenStore, k session.Key) string {
	t.Helper()
	v, err := st.Get(context.Background(), k)
	require.NoError(t, err)
	return v
}
