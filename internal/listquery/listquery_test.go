package listquery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct{ ID int }

// recorder is a Fetcher that remembers each query and replays a fixed page.
type recorder struct {
	mu      sync.Mutex
	queries []Query
	res     Result[row]
	err     error
}

func (r *recorder) fetch(_ context.Context, q Query) (Result[row], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
	return r.res, r.err
}

func (r *recorder) last() Query {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries[len(r.queries)-1]
}

func threeOfTwentyFive() Result[row] {
	return Result[row]{Items: []row{{1}, {2}, {3}}, Total: 25, TotalPages: 3, PageSize: 10}
}

func TestFilterChangeResetsPage(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{res: threeOfTwentyFive()}
	c := New(rec.fetch)
	require.NoError(t, c.Load(ctx))

	require.True(t, c.Next())
	require.NoError(t, c.Load(ctx))
	require.True(t, c.Next())
	require.NoError(t, c.Load(ctx))
	require.Equal(t, 3, rec.last().Page)

	require.True(t, c.SetSearch("boots"))
	require.NoError(t, c.Load(ctx))
	assert.Equal(t, 1, rec.last().Page)
	assert.Equal(t, "boots", rec.last().Search)

	require.True(t, c.Next())
	require.NoError(t, c.Load(ctx))
	require.Equal(t, 2, rec.last().Page)

	require.True(t, c.SetFilter("status", "active"))
	require.NoError(t, c.Load(ctx))
	assert.Equal(t, 1, rec.last().Page)
	assert.Equal(t, "active", rec.last().Filters["status"])

	assert.False(t, c.SetFilter("status", "active"), "same value is not a change")
	assert.False(t, c.SetSearch("boots"))
}

func TestPaginationBounds(t *testing.T) {
	rec := &recorder{res: threeOfTwentyFive()}
	c := New(rec.fetch)

	ctx, tk := c.Begin(context.Background())
	_ = ctx
	v := c.Snapshot()
	assert.True(t, v.Loading)
	assert.False(t, v.CanPrev)
	assert.False(t, v.CanNext, "both disabled while loading")
	assert.False(t, c.Next())
	assert.False(t, c.SetPage(2))

	require.True(t, c.Complete(tk, rec.res, nil))
	v = c.Snapshot()
	assert.False(t, v.CanPrev, "previous disabled on page 1")
	assert.True(t, v.CanNext)

	require.True(t, c.SetPage(3))
	v = c.Snapshot()
	assert.True(t, v.CanPrev)
	assert.False(t, v.CanNext, "next disabled on the last page")

	assert.False(t, c.SetPage(9), "clamped to total pages")
	assert.Equal(t, 3, c.Query().Page)
}

func TestProductsFirstPageSummary(t *testing.T) {
	rec := &recorder{res: threeOfTwentyFive()}
	c := New(rec.fetch)
	require.NoError(t, c.Load(context.Background()))

	v := c.Snapshot()
	assert.Len(t, v.Items, 3)
	assert.Equal(t, "1-3 of 25", v.Summary())
	assert.True(t, v.CanNext)
	assert.False(t, v.CanPrev)
}

func TestNormalizationFallbacks(t *testing.T) {
	rec := &recorder{res: Result[row]{}}
	c := New(rec.fetch, WithPageSize(20))
	require.NoError(t, c.Load(context.Background()))

	v := c.Snapshot()
	assert.Equal(t, 1, v.TotalPages)
	assert.NotNil(t, v.Items)
	assert.True(t, v.Empty())
	assert.NoError(t, v.Err)
	assert.Equal(t, 20, v.PageSize)
	assert.Equal(t, "0 of 0", v.Summary())
	assert.False(t, v.CanNext)
}

func TestErrorClearsItems(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{res: threeOfTwentyFive()}
	c := New(rec.fetch)
	require.NoError(t, c.Load(ctx))
	require.Len(t, c.Snapshot().Items, 3)

	boom := errors.New("boom")
	rec.err = boom
	require.ErrorIs(t, c.Load(ctx), boom)

	v := c.Snapshot()
	assert.Empty(t, v.Items)
	assert.ErrorIs(t, v.Err, boom)
	assert.False(t, v.Loading)
	assert.False(t, v.Empty(), "an error is not the empty state")

	rec.err = nil
	require.NoError(t, c.Load(ctx))
	assert.NoError(t, c.Snapshot().Err)
}

func TestStaleResponsesAreDiscarded(t *testing.T) {
	c := New[row](nil)

	ctx1, first := c.Begin(context.Background())
	require.True(t, c.SetSearch("a"))
	_, second := c.Begin(context.Background())

	assert.ErrorIs(t, ctx1.Err(), context.Canceled, "superseded fetch is canceled")

	// The newer response lands first.
	require.True(t, c.Complete(second, Result[row]{Items: []row{{2}}, Total: 1, TotalPages: 1}, nil))
	// The older one arrives late and must not overwrite it.
	assert.False(t, c.Complete(first, Result[row]{Items: []row{{1}, {9}}, Total: 2, TotalPages: 1}, nil))

	v := c.Snapshot()
	require.Len(t, v.Items, 1)
	assert.Equal(t, 2, v.Items[0].ID)
}

func TestCloseDropsInFlight(t *testing.T) {
	c := New[row](nil)
	ctx, tk := c.Begin(context.Background())
	c.Close()
	assert.Error(t, ctx.Err())
	assert.False(t, c.Complete(tk, Result[row]{Items: []row{{1}}}, nil))
	assert.False(t, c.Snapshot().Loading)
}

func TestServerPageSizeWins(t *testing.T) {
	rec := &recorder{res: Result[row]{Items: []row{{1}}, Total: 40, TotalPages: 2, PageSize: 20}}
	c := New(rec.fetch)
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, 20, c.Query().PageSize)
	require.True(t, c.Next())
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, 20, rec.last().PageSize)
}

func TestQueryValues(t *testing.T) {
	q := Query{Page: 2, PageSize: 10, Search: " shoes ", Filters: map[string]string{"role": "moderator", "status": ""}}
	v := q.Values()
	assert.Equal(t, "2", v.Get("page"))
	assert.Equal(t, "10", v.Get("page_size"))
	assert.Equal(t, "shoes", v.Get("search"))
	assert.Equal(t, "moderator", v.Get("role"))
	_, ok := v["status"]
	assert.False(t, ok)
}

func TestClearFilters(t *testing.T) {
	c := New[row](nil, WithFilter("status", "pending"))
	assert.Equal(t, "pending", c.Filter("status"))
	assert.True(t, c.ClearFilters())
	assert.Empty(t, c.Filter("status"))
	assert.False(t, c.ClearFilters())
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(0)
	a := d.Next()
	b := d.Next()
	assert.False(t, d.Current(a))
	assert.True(t, d.Current(b))
}

func TestInitialOptions(t *testing.T) {
	r := &recorder{res: threeOfTwentyFive()}
	c := New(r.fetch, WithPage(3), WithSearch("lamp"), WithFilter("status", "active"), WithPageSize(5))
	require.NoError(t, c.Load(context.Background()))

	q := r.last()
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, "lamp", q.Search)
	assert.Equal(t, "active", q.Filters["status"])
	assert.Equal(t, 5, q.PageSize)
	assert.False(t, c.CanNext())
	assert.True(t, c.CanPrev())
}
