package list

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dtadmin/internal/config"
	"dtadmin/internal/permissions"
	"dtadmin/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	srv *httptest.Server

	mu      sync.Mutex
	queries []url.Values
}

func (b *backend) last() url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries[len(b.queries)-1]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	products := []map[string]any{
		{"id": 1, "title": "Lamp", "price": "12.00", "is_active": true, "owner": "sam"},
		{"id": 2, "title": "Desk", "price": "80.00", "is_active": true, "is_verified": true},
		{"id": 3, "title": "Bike", "price": "150.00", "is_flagged": true},
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			b.queries = append(b.queries, r.URL.Query())
			b.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/admin/products", func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if r.URL.Query().Get("page") == "2" {
			page = 2
		}
		items := products[:2]
		if page == 2 {
			items = products[2:]
		}
		writeJSON(w, map[string]any{"products": items, "total": 3, "total_pages": 2, "page_size": 2})
	})
	r.Get("/admin/logs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"logs":    []map[string]any{{"id": 1, "admin": "root", "action": "delete_product", "target": "Lamp"}},
			"actions": []string{"suspend_user", "delete_product"},
			"total":   1, "total_pages": 1,
		})
	})
	b.srv = httptest.NewServer(r)
	t.Cleanup(b.srv.Close)
	return b
}

// signIn writes a config and a stored session for u.
func signIn(t *testing.T, b *backend, u session.User, p *permissions.Set) []string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	c := config.Default()
	c.API.Addr = b.srv.URL
	c.Store = config.StoreConfig{Kind: config.StoreFile, Path: filepath.Join(dir, "session.json")}
	require.NoError(t, config.Save(path, c))

	st, err := session.NewFileStore(afero.NewOsFs(), c.Store.Path)
	require.NoError(t, err)
	v, err := session.Values("tok", "ref", &u, p)
	require.NoError(t, err)
	require.NoError(t, st.Set(context.Background(), v))
	return []string{"-config", path}
}

var admin = session.User{ID: 1, Username: "root", IsAdmin: true}

func TestListProductsPage(t *testing.T) {
	b := newBackend(t)
	cfg := signIn(t, b, admin, nil)

	var out strings.Builder
	args := append([]string{"products"}, cfg...)
	args = append(args, "-search", "la", "-status", "active", "-filter", "verified=true", "-page-size", "2")
	require.NoError(t, run(context.Background(), args, &out))

	q := b.last()
	assert.Equal(t, "1", q.Get("page"))
	assert.Equal(t, "2", q.Get("page_size"))
	assert.Equal(t, "la", q.Get("search"))
	assert.Equal(t, "active", q.Get("status"))
	assert.Equal(t, "true", q.Get("verified"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "Lamp")
	assert.Contains(t, lines[2], "Desk")
	assert.Equal(t, "1-2 of 3 (page 1/2)", lines[3])
}

func TestListAllPages(t *testing.T) {
	b := newBackend(t)
	cfg := signIn(t, b, admin, nil)

	var out strings.Builder
	require.NoError(t, run(context.Background(), append(append([]string{"products"}, cfg...), "-all"), &out))
	text := out.String()
	for _, title := range []string{"Lamp", "Desk", "Bike"} {
		assert.Contains(t, text, title)
	}
	assert.True(t, strings.HasSuffix(text, "3 of 3\n"), text)
}

func TestListLogsAdminOnly(t *testing.T) {
	b := newBackend(t)
	p := permissions.Full()
	cfg := signIn(t, b, session.User{ID: 2, Username: "mod", IsModerator: true}, &p)

	err := run(context.Background(), append([]string{"logs"}, cfg...), &strings.Builder{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot view logs")
}

func TestListLogsShowsActions(t *testing.T) {
	b := newBackend(t)
	cfg := signIn(t, b, admin, nil)

	var out strings.Builder
	require.NoError(t, run(context.Background(), append(append([]string{"logs"}, cfg...), "-since", "7", "-action", "delete_product"), &out))
	q := b.last()
	assert.Equal(t, "delete_product", q.Get("action"))
	assert.Equal(t, time.Now().AddDate(0, 0, -7).Format(time.DateOnly), q.Get("start_date"))
	assert.Contains(t, out.String(), "actions: delete_product, suspend_user")
}

func TestListModeratorGate(t *testing.T) {
	b := newBackend(t)
	p := permissions.Set{CanSeeListings: true}
	cfg := signIn(t, b, session.User{ID: 2, Username: "mod", IsModerator: true}, &p)

	require.NoError(t, run(context.Background(), append([]string{"products"}, cfg...), &strings.Builder{}))
	err := run(context.Background(), append([]string{"users"}, cfg...), &strings.Builder{})
	require.Error(t, err)
}

func TestListUnknownResource(t *testing.T) {
	err := run(context.Background(), []string{"orders"}, &strings.Builder{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "products|users|reports|logs|spotlight")
}
