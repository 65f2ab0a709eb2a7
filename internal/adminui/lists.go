package adminui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dtadmin/internal/listquery"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// column renders one table column of a list screen.
type column[T any] struct {
	title string
	width int
	cell  func(T) string
}

// filterSpec binds a key to cycling one structured filter through values.
// An empty value means "all".
type filterSpec struct {
	key    string
	name   string
	label  string
	values []string
	// facet takes the values from the page's facets instead.
	facet string
	// since cycles through "N days ago" dates instead of fixed values.
	since []int
}

// listScreen couples a listquery.Controller to a table and a debounced
// search box.
type listScreen[T any] struct {
	id      screen
	title   string
	ctrl    *listquery.Controller[T]
	cols    []column[T]
	filters []filterSpec
	tbl     table.Model
	search  textinput.Model
	deb     *listquery.Debouncer
	facets  map[string][]string
	lastErr string
}

func newListScreen[T any](id screen, title string, fetch listquery.Fetcher[T], pageSize int, debounce time.Duration, cols []column[T], filters []filterSpec) *listScreen[T] {
	tcols := make([]table.Column, 0, len(cols))
	for _, c := range cols {
		tcols = append(tcols, table.Column{Title: c.title, Width: c.width})
	}
	tbl := table.New(table.WithColumns(tcols), table.WithFocused(true), table.WithHeight(12))
	tbl.SetStyles(tableStyles())

	search := textinput.New()
	search.Prompt = "Search: "
	search.Placeholder = "type to filter, enter to apply"
	search.CharLimit = 100

	return &listScreen[T]{
		id:      id,
		title:   title,
		ctrl:    listquery.New(fetch, listquery.WithPageSize(pageSize)),
		cols:    cols,
		filters: filters,
		tbl:     tbl,
		search:  search,
		deb:     listquery.NewDebouncer(debounce),
	}
}

// pageMsg carries a finished fetch back to Update. apply runs there so the
// controller and table change on the UI goroutine.
type pageMsg struct {
	screen screen
	apply  func() bool
	err    error
}

// searchTickMsg fires after the debounce delay for one keystroke.
type searchTickMsg struct {
	screen screen
	id     uint64
}

// fetch starts a request for the current query. A newer fetch cancels this
// one and its result is dropped on arrival.
func (s *listScreen[T]) fetch(ctx context.Context) tea.Cmd {
	fctx, t := s.ctrl.Begin(ctx)
	fetch := s.ctrl.Fetcher()
	ctrl := s.ctrl
	id := s.id
	return func() tea.Msg {
		res, err := fetch(fctx, t.Query)
		return pageMsg{screen: id, err: err, apply: func() bool { return ctrl.Complete(t, res, err) }}
	}
}

// onPage applies a page. It reports false for a stale response.
func (s *listScreen[T]) onPage(msg pageMsg) bool {
	if !msg.apply() {
		return false
	}
	v := s.ctrl.Snapshot()
	if v.Facets != nil {
		s.facets = v.Facets
	}
	s.lastErr = ""
	if v.Err != nil {
		s.lastErr = v.Err.Error()
	}
	rows := make([]table.Row, 0, len(v.Items))
	for _, it := range v.Items {
		row := make(table.Row, 0, len(s.cols))
		for _, c := range s.cols {
			row = append(row, truncate(c.cell(it), c.width))
		}
		rows = append(rows, row)
	}
	s.tbl.SetRows(rows)
	if s.tbl.Cursor() >= len(rows) {
		s.tbl.SetCursor(max(0, len(rows)-1))
	}
	return true
}

// close drops any in-flight fetch.
func (s *listScreen[T]) close() {
	s.ctrl.Close()
}

func (s *listScreen[T]) selected() (T, bool) {
	var zero T
	v := s.ctrl.Snapshot()
	i := s.tbl.Cursor()
	if i < 0 || i >= len(v.Items) {
		return zero, false
	}
	return v.Items[i], true
}

func (s *listScreen[T]) searching() bool {
	return s.search.Focused()
}

// update handles list keys. handled is false for keys the owning screen
// should interpret as actions.
func (s *listScreen[T]) update(ctx context.Context, msg tea.Msg) (cmd tea.Cmd, handled bool) {
	switch msg := msg.(type) {
	case searchTickMsg:
		if msg.screen != s.id || !s.deb.Current(msg.id) {
			return nil, true
		}
		if s.ctrl.SetSearch(strings.TrimSpace(s.search.Value())) {
			return s.fetch(ctx), true
		}
		return nil, true
	case tea.KeyMsg:
		if s.searching() {
			switch msg.String() {
			case "esc", "enter", "tab":
				s.search.Blur()
				s.tbl.Focus()
				if s.ctrl.SetSearch(strings.TrimSpace(s.search.Value())) {
					return s.fetch(ctx), true
				}
				return nil, true
			}
			var c tea.Cmd
			s.search, c = s.search.Update(msg)
			id := s.deb.Next()
			sid := s.id
			tick := tea.Tick(s.deb.Delay, func(time.Time) tea.Msg { return searchTickMsg{screen: sid, id: id} })
			return tea.Batch(c, tick), true
		}
		switch msg.String() {
		case "/":
			s.tbl.Blur()
			return s.search.Focus(), true
		case "right", "n", "pgdown":
			if s.ctrl.Next() {
				return s.fetch(ctx), true
			}
			return nil, true
		case "left", "p", "pgup":
			if s.ctrl.Prev() {
				return s.fetch(ctx), true
			}
			return nil, true
		case "home":
			if s.ctrl.SetPage(1) {
				return s.fetch(ctx), true
			}
			return nil, true
		case "x":
			s.search.SetValue("")
			if s.ctrl.ClearFilters() {
				return s.fetch(ctx), true
			}
			return nil, true
		case "r":
			return s.fetch(ctx), true
		}
		for _, f := range s.filters {
			if msg.String() == f.key {
				if s.ctrl.SetFilter(f.name, s.nextValue(f)) {
					return s.fetch(ctx), true
				}
				return nil, true
			}
		}
	}
	if k, ok := msg.(tea.KeyMsg); ok && !isNavKey(k.String()) {
		return nil, false
	}
	var c tea.Cmd
	s.tbl, c = s.tbl.Update(msg)
	return c, true
}

// isNavKey lists the table keys that move the cursor. Other letters are
// left to the screen's actions.
func isNavKey(k string) bool {
	switch k {
	case "up", "down", "k", "j", "g", "G", "end", "ctrl+u", "ctrl+d":
		return true
	}
	return false
}

func (s *listScreen[T]) filterValues(f filterSpec) []string {
	if f.facet != "" {
		return append([]string{""}, s.facets[f.facet]...)
	}
	if len(f.since) > 0 {
		out := []string{""}
		now := time.Now()
		for _, d := range f.since {
			out = append(out, now.AddDate(0, 0, -d).Format(time.DateOnly))
		}
		return out
	}
	return append([]string{""}, f.values...)
}

func (s *listScreen[T]) nextValue(f filterSpec) string {
	vals := s.filterValues(f)
	cur := s.ctrl.Filter(f.name)
	for i, v := range vals {
		if v == cur {
			return vals[(i+1)%len(vals)]
		}
	}
	return ""
}

func (s *listScreen[T]) view(spin string) string {
	v := s.ctrl.Snapshot()
	var b strings.Builder
	b.WriteString(titleStyle.Render(s.title))
	if v.Loading {
		b.WriteString(" " + spin)
	}
	b.WriteString("\n")
	b.WriteString(s.search.View() + "\n")

	var fs []string
	for _, f := range s.filters {
		val := v.Filters[f.name]
		if val == "" {
			val = "all"
		}
		fs = append(fs, fmt.Sprintf("[%s] %s: %s", f.key, f.label, val))
	}
	if len(fs) > 0 {
		b.WriteString(headerStyle.Render(strings.Join(fs, "   ")) + "\n")
	}
	b.WriteString("\n")

	switch {
	case v.Err != nil:
		b.WriteString(errStyle.Render("Could not load "+strings.ToLower(s.title)+". Change a filter or press r to retry.") + "\n")
	case v.Empty():
		b.WriteString(mutedStyle.Render("Nothing to show.") + "\n")
	default:
		b.WriteString(s.tbl.View() + "\n")
	}
	b.WriteString(pager(v.Page, v.TotalPages, v.Summary(), v.CanPrev, v.CanNext) + "\n")
	return b.String()
}

func pager(page, pages int, summary string, canPrev, canNext bool) string {
	prev, next := "‹ prev", "next ›"
	if !canPrev {
		prev = mutedStyle.Render(prev)
	}
	if !canNext {
		next = mutedStyle.Render(next)
	}
	return fmt.Sprintf("%s  page %d/%d  %s  %s", prev, page, pages, summary, next)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
