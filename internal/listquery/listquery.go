// Package listquery binds a list screen's page, search term and filters
// to repeated server fetches.
//
// A Controller owns the query state and the last result. Callers issue a
// fetch with Begin, run it however they like (synchronously or in a UI
// command), and hand the outcome back with Complete. Only the most recent
// ticket is applied; older responses are dropped.
package listquery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// DefaultPageSize is used until the server reports its own page size.
const DefaultPageSize = 10

// Query is the request-side state of a list.
type Query struct {
	Page     int
	PageSize int
	Search   string
	Filters  map[string]string
}

// Clone returns a deep copy so a ticket's query cannot change under a running fetch.
func (q Query) Clone() Query {
	out := q
	if q.Filters != nil {
		out.Filters = make(map[string]string, len(q.Filters))
		for k, v := range q.Filters {
			out.Filters[k] = v
		}
	}
	return out
}

// Values encodes the query as URL parameters. Empty filters are omitted.
func (q Query) Values() url.Values {
	v := url.Values{}
	page := q.Page
	if page < 1 {
		page = 1
	}
	v.Set("page", strconv.Itoa(page))
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		v.Set("search", s)
	}
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if val := strings.TrimSpace(q.Filters[k]); val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// Result is one normalized page from the server.
type Result[T any] struct {
	Items      []T
	Total      int
	TotalPages int
	PageSize   int
	// Facets carries side vocabularies returned with a page, such as the
	// distinct action names on the audit log.
	Facets map[string][]string
}

// Fetcher loads one page.
type Fetcher[T any] func(ctx context.Context, q Query) (Result[T], error)

// Ticket identifies one issued fetch.
type Ticket struct {
	Seq   uint64
	Query Query
}

// ErrStale is returned by Load when a newer fetch superseded this one.
var ErrStale = errors.New("superseded by a newer request")

// Controller is safe for concurrent use.
type Controller[T any] struct {
	fetch Fetcher[T]

	mu      sync.Mutex
	q       Query
	seq     uint64
	loading bool
	cancel  context.CancelFunc
	res     Result[T]
	err     error
	loaded  bool
}

// Option configures a Controller.
type Option func(*Query)

// WithPageSize sets the initial page size.
func WithPageSize(n int) Option {
	return func(q *Query) {
		if n > 0 {
			q.PageSize = n
		}
	}
}

// WithFilter sets an initial filter value.
func WithFilter(name, value string) Option {
	return func(q *Query) {
		q.Filters[name] = value
	}
}

// WithPage sets the initial page, for callers that start mid-list.
func WithPage(n int) Option {
	return func(q *Query) {
		if n > 1 {
			q.Page = n
		}
	}
}

// WithSearch sets the initial search term.
func WithSearch(term string) Option {
	return func(q *Query) {
		q.Search = term
	}
}

func New[T any](fetch Fetcher[T], opts ...Option) *Controller[T] {
	q := Query{Page: 1, PageSize: DefaultPageSize, Filters: map[string]string{}}
	for _, o := range opts {
		o(&q)
	}
	return &Controller[T]{fetch: fetch, q: q, res: Result[T]{TotalPages: 1}}
}

// Query returns a copy of the current query.
func (c *Controller[T]) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.Clone()
}

// SetSearch changes the search term and returns to page 1.
// It reports whether anything changed, which means a refetch is due.
func (c *Controller[T]) SetSearch(term string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.q.Search == term {
		return false
	}
	c.q.Search = term
	c.q.Page = 1
	return true
}

// SetFilter changes one structured filter and returns to page 1.
// An empty value removes the filter.
func (c *Controller[T]) SetFilter(name, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.q.Filters[name] == value {
		return false
	}
	if value == "" {
		delete(c.q.Filters, name)
	} else {
		c.q.Filters[name] = value
	}
	c.q.Page = 1
	return true
}

// Filter returns the current value of a filter.
func (c *Controller[T]) Filter(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.Filters[name]
}

// ClearFilters removes the search term and all filters.
func (c *Controller[T]) ClearFilters() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.q.Search == "" && len(c.q.Filters) == 0 {
		return false
	}
	c.q.Search = ""
	c.q.Filters = map[string]string{}
	c.q.Page = 1
	return true
}

// SetPage jumps to page n, clamped to the known bounds. It is refused while loading.
func (c *Controller[T]) SetPage(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return false
	}
	if n < 1 {
		n = 1
	}
	if n > c.totalPagesLocked() {
		n = c.totalPagesLocked()
	}
	if n == c.q.Page {
		return false
	}
	c.q.Page = n
	return true
}

// Next advances one page when CanNext allows it.
func (c *Controller[T]) Next() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.canNextLocked() {
		return false
	}
	c.q.Page++
	return true
}

// Prev goes back one page when CanPrev allows it.
func (c *Controller[T]) Prev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.canPrevLocked() {
		return false
	}
	c.q.Page--
	return true
}

// CanPrev is false on page 1 and while a fetch is in flight.
func (c *Controller[T]) CanPrev() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canPrevLocked()
}

// CanNext is false on the last page and while a fetch is in flight.
func (c *Controller[T]) CanNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canNextLocked()
}

func (c *Controller[T]) canPrevLocked() bool {
	return !c.loading && c.q.Page > 1
}

func (c *Controller[T]) canNextLocked() bool {
	return !c.loading && c.q.Page < c.totalPagesLocked()
}

func (c *Controller[T]) totalPagesLocked() int {
	if c.res.TotalPages < 1 {
		return 1
	}
	return c.res.TotalPages
}

// Begin marks the list as loading and returns a ticket for the current
// query. The returned context is canceled when a newer fetch begins or
// the controller is closed.
func (c *Controller[T]) Begin(ctx context.Context) (context.Context, Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.seq++
	c.loading = true
	return ctx, Ticket{Seq: c.seq, Query: c.q.Clone()}
}

// Complete applies a fetch outcome. It returns false and changes nothing
// when t is not the latest ticket.
func (c *Controller[T]) Complete(t Ticket, res Result[T], err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Seq != c.seq {
		return false
	}
	c.loading = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.loaded = true
	if err != nil {
		c.err = err
		c.res = Result[T]{Items: []T{}, TotalPages: 1, PageSize: c.q.PageSize}
		return true
	}
	c.err = nil
	c.res = normalize(res, c.q.PageSize)
	c.q.PageSize = c.res.PageSize
	return true
}

// Load runs one fetch synchronously.
func (c *Controller[T]) Load(ctx context.Context) error {
	if c.fetch == nil {
		return errors.New("listquery: no fetcher")
	}
	fctx, t := c.Begin(ctx)
	res, err := c.fetch(fctx, t.Query)
	if !c.Complete(t, res, err) {
		return ErrStale
	}
	return err
}

// Fetcher exposes the controller's fetch function for callers that run
// tickets on their own goroutines.
func (c *Controller[T]) Fetcher() Fetcher[T] {
	return c.fetch
}

// Close cancels any in-flight fetch and makes its result stale.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
	c.loading = false
}

func normalize[T any](res Result[T], pageSize int) Result[T] {
	if res.Items == nil {
		res.Items = []T{}
	}
	if res.TotalPages < 1 {
		res.TotalPages = 1
	}
	if res.Total < 0 {
		res.Total = len(res.Items)
	}
	if res.PageSize <= 0 {
		res.PageSize = pageSize
	}
	if res.PageSize <= 0 {
		res.PageSize = DefaultPageSize
	}
	return res
}

// View is an immutable snapshot for rendering.
type View[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	Total      int
	TotalPages int
	Search     string
	Filters    map[string]string
	Facets     map[string][]string
	Loading    bool
	Loaded     bool
	Err        error
	CanPrev    bool
	CanNext    bool
}

// Empty reports a settled, successful, zero-row result.
func (v View[T]) Empty() bool {
	return v.Loaded && !v.Loading && v.Err == nil && len(v.Items) == 0
}

// Summary renders the visible range, e.g. "1-3 of 25".
func (v View[T]) Summary() string {
	if len(v.Items) == 0 {
		return fmt.Sprintf("0 of %d", v.Total)
	}
	from := (v.Page-1)*v.PageSize + 1
	to := from + len(v.Items) - 1
	return fmt.Sprintf("%d-%d of %d", from, to, v.Total)
}

// Snapshot returns the current view.
func (c *Controller[T]) Snapshot() View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.q.Clone()
	items := make([]T, len(c.res.Items))
	copy(items, c.res.Items)
	return View[T]{
		Items:      items,
		Page:       q.Page,
		PageSize:   q.PageSize,
		Total:      c.res.Total,
		TotalPages: c.totalPagesLocked(),
		Search:     q.Search,
		Filters:    q.Filters,
		Facets:     c.res.Facets,
		Loading:    c.loading,
		Loaded:     c.loaded,
		Err:        c.err,
		CanPrev:    c.canPrevLocked(),
		CanNext:    c.canNextLocked(),
	}
}
