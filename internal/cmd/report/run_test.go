package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"dtadmin/internal/cmd/cmdutil"
	"dtadmin/internal/config"
	"dtadmin/internal/permissions"
	"dtadmin/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decision struct {
	id, action, note string
}

type backend struct {
	srv *httptest.Server

	mu   sync.Mutex
	seen []decision
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	r := chi.NewRouter()
	r.Post("/admin/reports/{id}/{action}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Notes string `json:"admin_notes"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		id := chi.URLParam(r, "id")
		if id == "99" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Report already resolved"})
			return
		}
		b.mu.Lock()
		b.seen = append(b.seen, decision{id: id, action: chi.URLParam(r, "action"), note: body.Notes})
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	b.srv = httptest.NewServer(r)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) decisions() []decision {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]decision(nil), b.seen...)
}

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

func answer(t *testing.T, yes bool) *[]string {
	t.Helper()
	var asked []string
	prev := cmdutil.Confirmer
	cmdutil.Confirmer = func(q string) (bool, error) {
		asked = append(asked, q)
		return yes, nil
	}
	t.Cleanup(func() { cmdutil.Confirmer = prev })
	return &asked
}

var moderator = session.User{ID: 2, Username: "mod", IsModerator: true}

func TestApproveWithYes(t *testing.T) {
	b := newBackend(t)
	cfg := signIn(t, b, moderator, &permissions.Set{CanSeeFlaggedContent: true, CanManageFlaggedContent: true})
	asked := answer(t, false)

	var out strings.Builder
	args := append(append([]string{"approve"}, cfg...), "-yes", "-note", " counterfeit ", "12")
	require.NoError(t, run(context.Background(), args, &out))
	assert.Equal(t, "Report approved\n", out.String())
	assert.Empty(t, *asked)
	assert.Equal(t, []decision{{id: "12", action: "approve", note: "counterfeit"}}, b.decisions())
}

func TestRejectAsksFirst(t *testing.T) {
	b := newBackend(t)
	cfg := signIn(t, b, session.User{ID: 1, Username: "root", IsAdmin: true}, nil)

	asked := answer(t, false)
	var out strings.Builder
	err := run(context.Background(), append(append([]string{"reject"}, cfg...), "5"), &out)
	require.ErrorIs(t, err, cmdutil.ErrAborted)
	require.Len(t, *asked, 1)
	assert.Contains(t, (*asked)[0], `"#5"`)
	assert.Empty(t, b.decisions())

	answer(t, true)
	require.NoError(t, run(context.Background(), append(append([]string{"review"}, cfg...), "5"), &out))
	assert.Equal(t, "Report marked as under review\n", out.String())
	assert.Equal(t, []decision{{id: "5", action: "review"}}, b.decisions())
}

func TestReportShowsServerMessage(t *testing.T) {
	b := newBackend(t)
	cfg := signIn(t, b, session.User{ID: 1, Username: "root", IsAdmin: true}, nil)

	var out strings.Builder
	err := run(context.Background(), append(append([]string{"approve"}, cfg...), "-yes", "99"), &out)
	require.EqualError(t, err, "Report already resolved")
	assert.Empty(t, out.String())
}

func TestReportNeedsManageFlaggedContent(t *testing.T) {
	b := newBackend(t)
	cfg := signIn(t, b, moderator, &permissions.Set{CanSeeFlaggedContent: true})

	var out strings.Builder
	err := run(context.Background(), append(append([]string{"approve"}, cfg...), "-yes", "12"), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not permitted")
	assert.Empty(t, b.decisions())
}
