package adminui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dtadmin/internal/actions"
	"dtadmin/internal/adminapi"
	"dtadmin/internal/permissions"
	"dtadmin/internal/session"
	"dtadmin/internal/validate"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// productDetail shows one listing with its spotlight state.
type productDetail struct {
	product adminapi.Product
	status  adminapi.SpotlightStatus
	loading bool
	err     string
	spot    *spotlightForm
}

// spotlightForm takes either a duration in hours or an explicit end time.
type spotlightForm struct {
	hours textinput.Model
	until textinput.Model
	err   string
	errs  validate.FieldErrors
}

func newSpotlightForm() *spotlightForm {
	hours := textinput.New()
	hours.Prompt = "Duration (hours): "
	hours.Placeholder = "24"
	hours.CharLimit = 5
	hours.Focus()
	until := textinput.New()
	until.Prompt = "Or until:         "
	until.Placeholder = stamp
	until.CharLimit = len(stamp)
	return &spotlightForm{hours: hours, until: until}
}

// request parses the form into a spotlight request and checks it locally.
func (f *spotlightForm) request(now time.Time) (adminapi.SpotlightRequest, error) {
	var r adminapi.SpotlightRequest
	if v := strings.TrimSpace(f.hours.Value()); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return r, validate.FieldErrors{"duration_hours": "must be a whole number of hours"}
		}
		r.DurationHours = n
	}
	if v := strings.TrimSpace(f.until.Value()); v != "" {
		t, err := time.ParseInLocation(stamp, v, time.Local)
		if err != nil {
			return r, validate.FieldErrors{"custom_end_time": "use the format " + stamp}
		}
		r.CustomEndTime = &t
	}
	return r, r.Validate(now)
}

type spotlightMsg struct {
	id     int64
	status adminapi.SpotlightStatus
	err    error
}

func loadSpotlightCmd(ctx context.Context, c *adminapi.Client, id int64) tea.Cmd {
	return func() tea.Msg {
		s, err := c.GetSpotlight(ctx, id)
		return spotlightMsg{id: id, status: s, err: err}
	}
}

func (m Model) openProduct(p adminapi.Product) (tea.Model, tea.Cmd) {
	m.detail = &productDetail{product: p, loading: true}
	m.st = screenProduct
	return m, loadSpotlightCmd(m.ctx, m.client, p.ID)
}

func (m Model) updateDetail(msg tea.Msg) (tea.Model, tea.Cmd) {
	d := m.detail
	if d == nil {
		m.st = screenProducts
		return m, nil
	}
	if d.spot != nil {
		return m.updateSpotlightForm(msg)
	}
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	p := d.product
	client := m.client
	switch k.String() {
	case "esc", "backspace", "q":
		m.detail = nil
		m.st = screenProducts
		return m, nil
	case "r":
		d.loading = true
		return m, loadSpotlightCmd(m.ctx, client, p.ID)
	case "s":
		if d.status.Spotlighted {
			cmd := m.notify(actions.LevelInfo, "Already spotlighted. Remove the current spotlight first.")
			return m, cmd
		}
		if !actions.MustLookup(actions.ApplySpotlight).Allowed(m.sess) {
			cmd := m.notify(actions.LevelError, "You do not have permission to do that")
			return m, cmd
		}
		d.spot = newSpotlightForm()
		return m, textinput.Blink
	case "R":
		if !d.status.Spotlighted {
			return m, nil
		}
		cmd := m.ask(actions.RemoveSpotlight, p.ID, p.Title, screenProduct, "", func(ctx context.Context, _ string) error {
			return client.RemoveSpotlight(ctx, p.ID)
		})
		return m, cmd
	case "d":
		cmd := m.ask(actions.DeleteProduct, p.ID, p.Title, screenProducts, "", func(ctx context.Context, _ string) error {
			return client.DeleteProduct(ctx, p.ID)
		})
		return m, cmd
	case "a", "v", "f":
		var u adminapi.ProductUpdate
		switch k.String() {
		case "a":
			u.IsActive = ptr(!p.IsActive)
		case "v":
			u.IsVerified = ptr(!p.IsVerified)
		case "f":
			u.IsFlagged = ptr(!p.IsFlagged)
		}
		cmd := m.ask(actions.UpdateProduct, p.ID, p.Title, screenProduct, "", func(ctx context.Context, _ string) error {
			return client.UpdateProduct(ctx, p.ID, u)
		})
		return m, cmd
	}
	return m, nil
}

func (m Model) updateSpotlightForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	d := m.detail
	f := d.spot
	busy := m.tracker.Busy(actions.ApplySpotlight, d.product.ID)
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			if !busy {
				d.spot = nil
			}
			return m, nil
		case "tab", "shift+tab", "up", "down":
			if f.hours.Focused() {
				f.hours.Blur()
				return m, f.until.Focus()
			}
			f.until.Blur()
			return m, f.hours.Focus()
		case "enter":
			if busy {
				return m, nil
			}
			req, err := f.request(time.Now())
			if err != nil {
				f.errs = adminapi.FieldErrorsOf(err)
				f.err = adminapi.Message(err, "Invalid spotlight")
				return m, nil
			}
			f.err, f.errs = "", nil
			client, id := m.client, d.product.ID
			cmd := m.ask(actions.ApplySpotlight, id, d.product.Title, screenProduct, "", func(ctx context.Context, _ string) error {
				return client.ApplySpotlight(ctx, id, req)
			})
			return m, cmd
		}
	}
	var c1, c2 tea.Cmd
	f.hours, c1 = f.hours.Update(msg)
	f.until, c2 = f.until.Update(msg)
	return m, tea.Batch(c1, c2)
}

func ptr[T any](v T) *T { return &v }

func (d *productDetail) view(s session.Session, spin string) string {
	p := d.product
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Listing #%d", p.ID)) + "\n\n")
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	row("Title", p.Title)
	row("Price", p.Price.String())
	row("Condition", p.Condition)
	row("Category", p.Category)
	row("Owner", fmt.Sprintf("%s (#%d)", p.Owner, p.OwnerID))
	row("Status", productStatus(p))
	row("Verified", yesNo(p.IsVerified))
	row("Created", when(p.CreatedAt))
	row("Images", fmt.Sprint(len(p.Images)))
	if p.Description != "" {
		b.WriteString("\n" + mutedStyle.Render(truncate(p.Description, 400)) + "\n")
	}

	b.WriteString("\n" + headerStyle.Render("Spotlight") + "\n")
	switch {
	case d.loading:
		b.WriteString(spin + " loading\n")
	case d.err != "":
		b.WriteString(errStyle.Render(d.err) + "\n")
	case d.status.Spotlighted && d.status.Spotlight != nil:
		sp := d.status.Spotlight
		row("Until", when(sp.EndTime))
		row("Started", when(sp.StartTime))
		row("Applied by", sp.AppliedBy)
		row("State", sp.Status)
	case d.status.Spotlighted:
		b.WriteString("Spotlighted\n")
	default:
		b.WriteString(mutedStyle.Render("Not spotlighted") + "\n")
	}

	if f := d.spot; f != nil {
		b.WriteString("\n" + f.hours.View() + "\n")
		if e := f.errs["duration_hours"]; e != "" {
			b.WriteString(errStyle.Render("  "+e) + "\n")
		}
		b.WriteString(f.until.View() + "\n")
		if e := f.errs["custom_end_time"]; e != "" {
			b.WriteString(errStyle.Render("  "+e) + "\n")
		}
		if f.err != "" && len(f.errs) == 0 {
			b.WriteString(errStyle.Render(f.err) + "\n")
		}
		b.WriteString(helpStyle.Render("tab=switch field  enter=apply  esc=cancel") + "\n")
		return b.String()
	}

	var keys []string
	if s.Can(permissions.ManageListings) {
		keys = append(keys, "a=toggle active", "v=toggle verified", "f=toggle flagged", "d=delete")
	}
	if !d.status.Spotlighted && s.Can(permissions.Spotlight) {
		keys = append(keys, "s=spotlight")
	}
	if d.status.Spotlighted && s.Can(permissions.RemoveSpotlight) {
		keys = append(keys, "R=remove spotlight")
	}
	keys = append(keys, "r=reload", "esc=back")
	b.WriteString("\n" + helpStyle.Render(strings.Join(keys, "  ")) + "\n")
	return b.String()
}
