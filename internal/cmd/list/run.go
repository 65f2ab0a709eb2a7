// Package list implements "dtadmin list <resource>", a paginated table of
// listings, users, reports, audit logs or spotlight history.
package list

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"dtadmin/internal/adminapi"
	"dtadmin/internal/cmd/cmdutil"
	"dtadmin/internal/listquery"
	"dtadmin/internal/permissions"
	"dtadmin/internal/session"
)

type column[T any] struct {
	title string
	cell  func(T) string
}

type options struct {
	page     int
	pageSize int
	search   string
	filters  map[string]string
	all      bool
}

// resource binds a name to its fetch, columns and read gate.
type resource struct {
	name string
	// can is the read capability; empty means admins only.
	can  permissions.Capability
	show func(ctx context.Context, c *adminapi.Client, w io.Writer, o options) error
}

func id(n int64) string { return strconv.FormatInt(n, 10) }

var resources = []resource{
	{"products", permissions.SeeListings, func(ctx context.Context, c *adminapi.Client, w io.Writer, o options) error {
		return show(ctx, w, "listings", c.ListProducts, o, []column[adminapi.Product]{
			{"ID", func(p adminapi.Product) string { return id(p.ID) }},
			{"TITLE", func(p adminapi.Product) string { return cmdutil.Truncate(p.Title, 40) }},
			{"PRICE", func(p adminapi.Product) string { return p.Price.String() }},
			{"OWNER", func(p adminapi.Product) string { return p.Owner }},
			{"ACTIVE", func(p adminapi.Product) string { return cmdutil.YesNo(p.IsActive) }},
			{"VERIFIED", func(p adminapi.Product) string { return cmdutil.YesNo(p.IsVerified) }},
			{"FLAGGED", func(p adminapi.Product) string { return cmdutil.YesNo(p.IsFlagged) }},
			{"SPOTLIGHT", func(p adminapi.Product) string { return cmdutil.YesNo(p.Spotlighted) }},
		})
	}},
	{"users", permissions.SeeUsers, func(ctx context.Context, c *adminapi.Client, w io.Writer, o options) error {
		return show(ctx, w, "users", c.ListUsers, o, []column[adminapi.User]{
			{"ID", func(u adminapi.User) string { return id(u.ID) }},
			{"USERNAME", func(u adminapi.User) string { return u.Username }},
			{"EMAIL", func(u adminapi.User) string { return u.Email }},
			{"ROLE", func(u adminapi.User) string { return u.Role() }},
			{"STATUS", func(u adminapi.User) string { return u.Status() }},
			{"LISTINGS", func(u adminapi.User) string { return strconv.Itoa(u.ListingCount) }},
			{"JOINED", func(u adminapi.User) string { return cmdutil.When(u.CreatedAt) }},
		})
	}},
	{"reports", permissions.SeeFlaggedContent, func(ctx context.Context, c *adminapi.Client, w io.Writer, o options) error {
		return show(ctx, w, "reports", c.ListReports, o, []column[adminapi.Report]{
			{"ID", func(r adminapi.Report) string { return id(r.ID) }},
			{"LISTING", func(r adminapi.Report) string { return cmdutil.Truncate(r.ProductTitle, 32) }},
			{"REASON", func(r adminapi.Report) string { return cmdutil.Truncate(r.Reason, 40) }},
			{"REPORTS", func(r adminapi.Report) string { return strconv.Itoa(r.ReportCount) }},
			{"STATUS", func(r adminapi.Report) string { return r.Status }},
			{"REPORTED", func(r adminapi.Report) string { return cmdutil.When(r.ReportedAt) }},
		})
	}},
	{"logs", "", func(ctx context.Context, c *adminapi.Client, w io.Writer, o options) error {
		return show(ctx, w, "activity logs", c.ListLogs, o, []column[adminapi.LogEntry]{
			{"TIME", func(l adminapi.LogEntry) string { return cmdutil.When(l.Timestamp) }},
			{"ACTOR", func(l adminapi.LogEntry) string { return l.Actor }},
			{"ROLE", func(l adminapi.LogEntry) string { return l.ActorRole }},
			{"ACTION", func(l adminapi.LogEntry) string { return l.Action }},
			{"TARGET", func(l adminapi.LogEntry) string { return l.Target }},
			{"DETAILS", func(l adminapi.LogEntry) string { return cmdutil.Truncate(l.Details, 48) }},
		})
	}},
	{"spotlight", permissions.SeeSpotlightHistory, func(ctx context.Context, c *adminapi.Client, w io.Writer, o options) error {
		return show(ctx, w, "spotlight history", c.SpotlightHistory, o, []column[adminapi.SpotlightHistoryEntry]{
			{"LISTING", func(h adminapi.SpotlightHistoryEntry) string { return cmdutil.Truncate(h.ProductTitle, 32) }},
			{"APPLIED BY", func(h adminapi.SpotlightHistoryEntry) string { return h.AppliedBy }},
			{"START", func(h adminapi.SpotlightHistoryEntry) string { return cmdutil.When(h.StartTime) }},
			{"END", func(h adminapi.SpotlightHistoryEntry) string { return cmdutil.When(h.EndTime) }},
			{"STATUS", func(h adminapi.SpotlightHistoryEntry) string { return h.Status }},
			{"REMOVED BY", func(h adminapi.SpotlightHistoryEntry) string { return h.RemovedBy }},
		})
	}},
}

func lookup(name string) (resource, bool) {
	for _, r := range resources {
		if r.name == name {
			return r, true
		}
	}
	return resource{}, false
}

func names() string {
	var out []string
	for _, r := range resources {
		out = append(out, r.name)
	}
	return strings.Join(out, "|")
}

func allowed(r resource, s session.Session) bool {
	if r.can == "" {
		return s.User != nil && s.User.IsAdmin
	}
	return s.Can(r.can)
}

func Run(args []string) error {
	ctx, cancel := cmdutil.Context()
	defer cancel()
	return run(ctx, args, os.Stdout)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("list: missing resource (%s)", names())
	}
	res, ok := lookup(args[0])
	if !ok {
		return fmt.Errorf("list: unknown resource %q (%s)", args[0], names())
	}

	fs := flag.NewFlagSet("list "+res.name, flag.ContinueOnError)
	var common cmdutil.Common
	common.Register(fs)
	o := options{filters: map[string]string{}}
	fs.IntVar(&o.page, "page", 1, "page number")
	fs.IntVar(&o.pageSize, "page-size", 0, "rows per page (default from config)")
	fs.StringVar(&o.search, "search", "", "search term")
	fs.BoolVar(&o.all, "all", false, "fetch every page")
	fs.Var(cmdutil.Pairs(o.filters), "filter", "filter as key=value (repeatable)")
	status := fs.String("status", "", "status filter")
	role := fs.String("role", "", "role filter (users)")
	action := fs.String("action", "", "action filter (logs)")
	since := fs.Int("since", 0, "only entries from the last N days (logs)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("list %s: unexpected argument %q", res.name, fs.Arg(0))
	}
	for k, v := range map[string]string{"status": *status, "role": *role, "action": *action} {
		if v != "" {
			o.filters[k] = v
		}
	}
	if *since > 0 {
		o.filters["start_date"] = time.Now().AddDate(0, 0, -*since).Format(time.DateOnly)
	}

	env, err := cmdutil.Open(ctx, common, cmdutil.OpenOptions{})
	if err != nil {
		return err
	}
	defer env.Close()
	if o.pageSize == 0 {
		o.pageSize = env.Config.UI.PageSize
	}

	s, err := env.Client.Session(ctx)
	if err != nil {
		return err
	}
	if !s.Authenticated() {
		return errors.New("not signed in; run dtadmin login")
	}
	if !allowed(res, s) {
		return fmt.Errorf("your account cannot view %s", res.name)
	}
	return res.show(ctx, env.Client, stdout, o)
}

// show loads one page, or every page with o.all, and prints it as a table
// followed by a range summary.
func show[T any](ctx context.Context, w io.Writer, what string, fetch listquery.Fetcher[T], o options, cols []column[T]) error {
	opts := []listquery.Option{
		listquery.WithPage(o.page),
		listquery.WithPageSize(o.pageSize),
		listquery.WithSearch(o.search),
	}
	for k, v := range o.filters {
		opts = append(opts, listquery.WithFilter(k, v))
	}
	ctrl := listquery.New(fetch, opts...)
	defer ctrl.Close()

	var rows [][]string
	var v listquery.View[T]
	for {
		if err := ctrl.Load(ctx); err != nil {
			return errors.New(adminapi.Message(err, "Failed to load "+what))
		}
		v = ctrl.Snapshot()
		for _, it := range v.Items {
			row := make([]string, len(cols))
			for i, c := range cols {
				row[i] = c.cell(it)
			}
			rows = append(rows, row)
		}
		if !o.all || !ctrl.Next() {
			break
		}
	}

	if len(rows) == 0 {
		_, err := fmt.Fprintf(w, "No %s found\n", what)
		return err
	}
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.title
	}
	if err := cmdutil.Table(w, header, rows); err != nil {
		return err
	}
	summary := fmt.Sprintf("%s (page %d/%d)", v.Summary(), v.Page, v.TotalPages)
	if o.all {
		summary = fmt.Sprintf("%d of %d", len(rows), v.Total)
	}
	if acts := v.Facets[adminapi.FacetAction]; len(acts) > 0 {
		acts = append([]string(nil), acts...)
		sort.Strings(acts)
		summary += "\nactions: " + strings.Join(acts, ", ")
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}
