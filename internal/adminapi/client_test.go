package adminapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"dtadmin/internal/listquery"
	"dtadmin/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnauthorizedRefreshesAndRetries(t *testing.T) {
	b := newFakeBackend(t)
	st := signedIn(t)
	c, so := newTestClient(t, b, st, nil)

	res, err := c.ListUsers(context.Background(), listquery.Query{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "alice", res.Items[0].Username)
	assert.Equal(t, 4, res.Items[0].ListingCount)

	assert.Equal(t, 1, b.refreshes())
	assert.Equal(t, 2, b.count("GET /admin/users"))
	assert.Equal(t, "a2", get(t, st, session.KeyAccessToken))
	assert.Equal(t, "r1", get(t, st, session.KeyRefreshToken))
	assert.Empty(t, so.all())
}

func TestRefreshPersistsRotatedRefreshToken(t *testing.T) {
	b := newFakeBackend(t)
	b.rotate = "r2"
	st := signedIn(t)
	c, _ := newTestClient(t, b, st, nil)

	_, err := c.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a2", get(t, st, session.KeyAccessToken))
	assert.Equal(t, "r2", get(t, st, session.KeyRefreshToken))
}

func TestSecondUnauthorizedIsNotRetried(t *testing.T) {
	b := newFakeBackend(t)
	b.rejectAll = true
	st := signedIn(t)
	c, so := newTestClient(t, b, st, nil)

	_, err := c.ListUsers(context.Background(), listquery.Query{Page: 1})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))

	assert.Equal(t, 1, b.refreshes())
	assert.Equal(t, 2, b.count("GET /admin/users"), "one original request and one retry")
	assert.Empty(t, get(t, st, session.KeyAccessToken))
	assert.Empty(t, get(t, st, session.KeyRefreshToken))
	assert.Equal(t, []SignOutReason{ReasonExpired}, so.all())
}

func TestRefreshFailureTearsDownSession(t *testing.T) {
	b := newFakeBackend(t)
	b.refreshFails = true
	st := signedIn(t)
	c, so := newTestClient(t, b, st, nil)

	_, err := c.ListProducts(context.Background(), listquery.Query{Page: 1})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.Equal(t, 1, b.count("GET /admin/products"))
	assert.Empty(t, get(t, st, session.KeyAccessToken))
	assert.Equal(t, []SignOutReason{ReasonExpired}, so.all())
}

func TestMissingRefreshTokenSkipsRefreshCall(t *testing.T) {
	b := newFakeBackend(t)
	st := session.NewMemoryStore()
	require.NoError(t, st.Set(context.Background(), map[session.Key]string{session.KeyAccessToken: "a1"}))
	c, so := newTestClient(t, b, st, nil)

	_, err := c.Overview(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, b.refreshes())
	assert.Equal(t, []SignOutReason{ReasonExpired}, so.all())
}

func TestServerErrorsAreNotRetried(t *testing.T) {
	b := newFakeBackend(t)
	b.failOverview = true
	st := session.NewMemoryStore()
	require.NoError(t, st.Set(context.Background(), map[session.Key]string{session.KeyAccessToken: "a2"}))
	c, so := newTestClient(t, b, st, nil)

	_, err := c.Overview(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Equal(t, 1, b.count("GET /admin/stats/overview"))
	assert.Equal(t, "database unavailable", Message(err, "Failed to load"))
	assert.Empty(t, so.all())
	assert.Equal(t, "a2", get(t, st, session.KeyAccessToken))
}

func TestTransportErrorLeavesSessionAlone(t *testing.T) {
	b := newFakeBackend(t)
	st := signedIn(t)
	c, so := newTestClient(t, b, st, nil)
	b.srv.Close()

	_, err := c.Overview(context.Background())
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.NotEmpty(t, Message(err, "fallback"))
	assert.Empty(t, so.all())
	assert.Equal(t, "a1", get(t, st, session.KeyAccessToken))
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const n = 8
	b := newFakeBackend(t)
	all401 := make(chan struct{})
	var once sync.Once
	b.refreshGate = func() {
		deadline := time.After(2 * time.Second)
		for {
			b.mu.Lock()
			got := b.unauthorized
			b.mu.Unlock()
			if got >= n {
				once.Do(func() { close(all401) })
				break
			}
			select {
			case <-deadline:
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
		// Let every caller reach the shared flight.
		time.Sleep(100 * time.Millisecond)
	}
	st := signedIn(t)
	c, so := newTestClient(t, b, st, nil)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.ListUsers(context.Background(), listquery.Query{Page: 1})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	select {
	case <-all401:
	default:
		t.Fatal("requests did not all hit the expired token")
	}
	assert.Equal(t, 1, b.refreshes())
	assert.Equal(t, 2*n, b.count("GET /admin/users"))
	assert.Empty(t, so.all())
}

func TestMetricsRecordExchanges(t *testing.T) {
	b := newFakeBackend(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c, _ := newTestClient(t, b, signedIn(t), m)

	_, err := c.ListUsers(context.Background(), listquery.Query{Page: 1})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/admin/users", "401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/admin/users", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("POST", PathRefresh, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SignOuts.WithLabelValues("expired")))
}

func TestListProductsFirstPage(t *testing.T) {
	b := newFakeBackend(t)
	st := session.NewMemoryStore()
	require.NoError(t, st.Set(context.Background(), map[session.Key]string{session.KeyAccessToken: "a2"}))
	c, _ := newTestClient(t, b, st, nil)

	lc := listquery.New[Product](c.ListProducts)
	require.NoError(t, lc.Load(context.Background()))

	v := lc.Snapshot()
	require.Len(t, v.Items, 3)
	assert.Equal(t, "1-3 of 25", v.Summary())
	assert.True(t, v.CanNext)
	assert.False(t, v.CanPrev)
	assert.Equal(t, "sam", v.Items[0].Owner)
	assert.Equal(t, int64(9), v.Items[0].OwnerID)
	assert.Equal(t, "49.90", v.Items[0].Price.String())

	b.mu.Lock()
	q := b.lastQuery
	b.mu.Unlock()
	assert.Equal(t, "1", q.Get("page"))
	assert.Equal(t, "10", q.Get("page_size"))
}

func TestSpotlightLifecycle(t *testing.T) {
	b := newFakeBackend(t)
	st := session.NewMemoryStore()
	require.NoError(t, st.Set(context.Background(), map[session.Key]string{session.KeyAccessToken: "a2"}))
	c, _ := newTestClient(t, b, st, nil)
	ctx := context.Background()

	before, err := c.GetSpotlight(ctx, 42)
	require.NoError(t, err)
	assert.False(t, before.Spotlighted)

	require.NoError(t, c.ApplySpotlight(ctx, 42, SpotlightRequest{DurationHours: 24}))
	b.mu.Lock()
	sent := b.lastBody
	b.mu.Unlock()
	assert.Equal(t, 24.0, sent["duration_hours"])
	assert.NotContains(t, sent, "custom_end_time")

	after, err := c.GetSpotlight(ctx, 42)
	require.NoError(t, err)
	assert.True(t, after.Spotlighted)
	require.NotNil(t, after.Spotlight)
	assert.Equal(t, 24, after.Spotlight.DurationHours)
	assert.Equal(t, "admin", after.Spotlight.AppliedBy)
	assert.True(t, after.Spotlight.Active(time.Now()))

	require.NoError(t, c.RemoveSpotlight(ctx, 42))
	gone, err := c.GetSpotlight(ctx, 42)
	require.NoError(t, err)
	assert.False(t, gone.Spotlighted)
}

func TestSpotlightRequestValidation(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(48 * time.Hour)

	assert.Error(t, SpotlightRequest{}.Validate(now))
	assert.Error(t, SpotlightRequest{DurationHours: 24, CustomEndTime: &future}.Validate(now))
	assert.Error(t, SpotlightRequest{CustomEndTime: &past}.Validate(now))
	assert.Error(t, SpotlightRequest{DurationHours: -1}.Validate(now))
	assert.NoError(t, SpotlightRequest{DurationHours: 24}.Validate(now))
	assert.NoError(t, SpotlightRequest{CustomEndTime: &future}.Validate(now))
}

func TestLogsCarryActionVocabulary(t *testing.T) {
	b := newFakeBackend(t)
	st := session.NewMemoryStore()
	require.NoError(t, st.Set(context.Background(), map[session.Key]string{session.KeyAccessToken: "a2"}))
	c, _ := newTestClient(t, b, st, nil)

	res, err := c.ListLogs(context.Background(), listquery.Query{Page: 1, Filters: map[string]string{"action": "delete_product"}})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "root", res.Items[0].Actor)
	assert.Equal(t, 1, res.TotalPages)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, []string{"delete_product", "suspend_user"}, res.Facets[FacetAction])

	b.mu.Lock()
	q := b.lastQuery
	b.mu.Unlock()
	assert.Equal(t, "delete_product", q.Get("action"))
}

func TestOverviewCounters(t *testing.T) {
	b := newFakeBackend(t)
	st := session.NewMemoryStore()
	require.NoError(t, st.Set(context.Background(), map[session.Key]string{session.KeyAccessToken: "a2"}))
	c, _ := newTestClient(t, b, st, nil)

	o, err := c.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(120), o.TotalUsers.Value)
	assert.Equal(t, "+12.5%", o.TotalUsers.FormatChange())
	assert.Equal(t, int64(2), o.FlaggedContent.Value)
	assert.Equal(t, "-50.0%", o.FlaggedContent.FormatChange())
}

func TestRouteOf(t *testing.T) {
	assert.Equal(t, "/admin/products/:id/spotlight", routeOf("/admin/products/42/spotlight"))
	assert.Equal(t, "/admin/users", routeOf("/admin/users"))
	assert.Equal(t, "/moderators/:id/permissions", routeOf("/moderators/5/permissions"))
}

func TestNewClientAddress(t *testing.T) {
	c, err := NewClient(ClientOptions{Addr: "api.driptyard.com", Store: session.NewMemoryStore()})
	require.NoError(t, err)
	assert.Equal(t, "https://api.driptyard.com", c.Addr())

	_, err = NewClient(ClientOptions{Addr: "https://x"})
	assert.Error(t, err)
}
