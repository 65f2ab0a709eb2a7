package adminui

import (
	"context"

	"dtadmin/internal/actions"
	"dtadmin/internal/adminapi"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) updateProducts(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd, handled := m.products.update(m.ctx, msg)
	if handled {
		return m, cmd
	}
	k := msg.(tea.KeyMsg)
	p, ok := m.products.selected()
	if !ok {
		return m, nil
	}
	client := m.client
	switch k.String() {
	case "enter":
		return m.openProduct(p)
	case "d":
		cmd := m.ask(actions.DeleteProduct, p.ID, p.Title, screenProducts, "", func(ctx context.Context, _ string) error {
			return client.DeleteProduct(ctx, p.ID)
		})
		return m, cmd
	}
	return m, nil
}

func (m Model) updateUsers(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd, handled := m.users.update(m.ctx, msg)
	if handled {
		return m, cmd
	}
	k := msg.(tea.KeyMsg)
	if k.String() == "a" {
		return m.openUserForm(nil)
	}
	u, ok := m.users.selected()
	if !ok {
		return m, nil
	}
	client := m.client
	switch k.String() {
	case "enter", "e":
		return m.openUserForm(&u)
	case "d":
		cmd = m.ask(actions.DeleteUser, u.ID, u.Username, screenUsers, "", func(ctx context.Context, _ string) error {
			return client.DeleteUser(ctx, u.ID)
		})
	case "u":
		if u.IsSuspended {
			cmd = m.ask(actions.UnsuspendUser, u.ID, u.Username, screenUsers, "", func(ctx context.Context, _ string) error {
				return client.UnsuspendUser(ctx, u.ID)
			})
		} else {
			cmd = m.ask(actions.SuspendUser, u.ID, u.Username, screenUsers, "Reason (optional): ", func(ctx context.Context, note string) error {
				return client.SuspendUser(ctx, u.ID, note)
			})
		}
	case "w":
		cmd = m.ask(actions.ResetPassword, u.ID, u.Username, screenUsers, "", func(ctx context.Context, _ string) error {
			return client.ResetUserPassword(ctx, u.ID)
		})
	case "m":
		return m.openPerms(u)
	}
	return m, cmd
}

func (m Model) updateReports(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd, handled := m.reports.update(m.ctx, msg)
	if handled {
		return m, cmd
	}
	k := msg.(tea.KeyMsg)
	r, ok := m.reports.selected()
	if !ok {
		return m, nil
	}
	var run func(context.Context, int64, string) error
	var name actions.Name
	switch k.String() {
	case "a":
		name, run = actions.ApproveReport, m.client.ApproveReport
	case "R":
		name, run = actions.RejectReport, m.client.RejectReport
	case "v":
		name, run = actions.ReviewReport, m.client.ReviewReport
	default:
		return m, nil
	}
	cmd = m.ask(name, r.ID, r.ProductTitle, screenReports, "Note (optional): ", func(ctx context.Context, note string) error {
		return run(ctx, r.ID, note)
	})
	return m, cmd
}

func (m Model) openPerms(u adminapi.User) (tea.Model, tea.Cmd) {
	if !u.IsModerator || u.IsAdmin {
		cmd := m.notify(actions.LevelInfo, "Only moderators have editable permissions")
		return m, cmd
	}
	if !actions.MustLookup(actions.SavePermissions).Allowed(m.sess) {
		cmd := m.notify(actions.LevelError, "You do not have permission to do that")
		return m, cmd
	}
	m.perms = &permScreen{user: u, loading: true}
	m.st = screenPermissions
	return m, loadPermsCmd(m.ctx, m.client, u.ID)
}

func (m Model) onPermsLoaded(msg permsLoadedMsg) (tea.Model, tea.Cmd) {
	if p := m.perms; p != nil && p.user.ID == msg.userID {
		p.loading = false
		if msg.err != nil {
			p.err = adminapi.Message(msg.err, "Failed to load permissions")
		} else {
			p.editor = newPermEditor(msg.set)
			p.loaded = true
			p.err = ""
		}
	}
	if f := m.form; f != nil && f.editing() && f.orig.ID == msg.userID {
		if msg.err != nil {
			f.err = adminapi.Message(msg.err, "Failed to load permissions")
		} else {
			f.perms = newPermEditor(msg.set)
			f.permsKnown = true
			set := msg.set
			f.orig.Permissions = &set
		}
	}
	return m, nil
}

func (m Model) updatePerms(msg tea.Msg) (tea.Model, tea.Cmd) {
	p := m.perms
	if p == nil {
		m.st = screenUsers
		return m, nil
	}
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch k.String() {
	case "esc":
		m.perms = nil
		m.st = screenUsers
		return m, nil
	case "ctrl+s":
		if !p.loaded {
			return m, nil
		}
		client, id, set := m.client, p.user.ID, p.editor.set
		cmd := m.ask(actions.SavePermissions, id, p.user.Username, screenUsers, "", func(ctx context.Context, _ string) error {
			_, err := client.UpdateModeratorPermissions(ctx, id, set)
			return err
		})
		return m, cmd
	}
	if p.loaded {
		p.editor.update(k.String())
	}
	return m, nil
}
