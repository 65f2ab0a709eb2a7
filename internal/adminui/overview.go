package adminui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"dtadmin/internal/adminapi"
	"dtadmin/internal/listquery"
	"dtadmin/internal/permissions"
	"dtadmin/internal/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"
)

const overviewPanelSize = 5

type overviewData struct {
	stats        adminapi.Overview
	recent       []adminapi.LogEntry
	pending      []adminapi.Report
	pendingTotal int
}

type overviewState struct {
	seq     int
	loading bool
	data    *overviewData
	err     string
}

type overviewMsg struct {
	seq  int
	data *overviewData
	err  error
}

// loadOverview fetches the counters and the side panels in parallel. Only
// the counters are required; a failed panel is logged and left empty.
func loadOverview(ctx context.Context, c *adminapi.Client, lg *slog.Logger, s session.Session, seq int) tea.Cmd {
	admin := s.User != nil && s.User.IsAdmin
	flagged := s.Can(permissions.SeeFlaggedContent)
	return func() tea.Msg {
		d := &overviewData{}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			o, err := c.Overview(gctx)
			if err != nil {
				return err
			}
			d.stats = o
			return nil
		})
		if admin {
			g.Go(func() error {
				res, err := c.ListLogs(gctx, listquery.Query{Page: 1, PageSize: overviewPanelSize})
				if err != nil {
					lg.Warn("overview: recent activity", "err", err)
					return nil
				}
				d.recent = res.Items
				return nil
			})
		}
		if flagged {
			g.Go(func() error {
				res, err := c.ListReports(gctx, listquery.Query{Page: 1, PageSize: overviewPanelSize, Filters: map[string]string{"status": "pending"}})
				if err != nil {
					lg.Warn("overview: pending reports", "err", err)
					return nil
				}
				d.pending, d.pendingTotal = res.Items, res.Total
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return overviewMsg{seq: seq, err: err}
		}
		return overviewMsg{seq: seq, data: d}
	}
}

func (o *overviewState) view(s session.Session, spin string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Overview"))
	if o.loading {
		b.WriteString(" " + spin)
	}
	b.WriteString("\n\n")
	if !s.Can(permissions.SeeDashboard) {
		b.WriteString(mutedStyle.Render("The dashboard is not enabled for your account.") + "\n")
		return b.String()
	}
	if o.err != "" {
		b.WriteString(errStyle.Render(o.err) + "\n")
		b.WriteString(helpStyle.Render("r=retry") + "\n")
		return b.String()
	}
	if o.data == nil {
		return b.String()
	}

	st := o.data.stats
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		counterBox("Users", st.TotalUsers),
		counterBox("Listings", st.TotalProducts),
		counterBox("Pending verifications", st.PendingVerifications),
		counterBox("Flagged content", st.FlaggedContent),
	) + "\n\n")

	if s.Can(permissions.SeeFlaggedContent) {
		b.WriteString(headerStyle.Render(fmt.Sprintf("Pending reports (%d)", o.data.pendingTotal)) + "\n")
		if len(o.data.pending) == 0 {
			b.WriteString(mutedStyle.Render("  none") + "\n")
		}
		for _, r := range o.data.pending {
			b.WriteString(fmt.Sprintf("  #%d %s: %s\n", r.ID, truncate(r.ProductTitle, 30), truncate(r.Reason, 40)))
		}
		b.WriteString("\n")
	}
	if s.User != nil && s.User.IsAdmin {
		b.WriteString(headerStyle.Render("Recent activity") + "\n")
		if len(o.data.recent) == 0 {
			b.WriteString(mutedStyle.Render("  none") + "\n")
		}
		for _, l := range o.data.recent {
			b.WriteString(fmt.Sprintf("  %s  %s %s %s\n", when(l.Timestamp), l.Actor, l.Action, l.Target))
		}
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("r=refresh") + "\n")
	return b.String()
}

func counterBox(label string, c adminapi.Counter) string {
	change := c.FormatChange()
	switch {
	case c.Change > 0:
		change = okStyle.Render(change)
	case c.Change < 0:
		change = errStyle.Render(change)
	default:
		change = mutedStyle.Render(change)
	}
	return counterStyle.Render(fmt.Sprintf("%s\n%s\n%s", labelStyle.Render(label), titleStyle.Render(fmt.Sprint(c.Value)), change))
}
