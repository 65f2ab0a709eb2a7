package adminui

import (
	"context"
	"strings"

	"dtadmin/internal/actions"
	"dtadmin/internal/adminapi"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// pending is an open confirmation dialog. The dialog stays up while the
// action runs and after a failure, so the user can retry.
type pending struct {
	*actions.Confirm
	owner screen
	run   func(ctx context.Context, note string) error
	// note is an optional free-text field sent with the action.
	note *textinput.Model
}

// ask opens a confirmation for actions that need one and runs the others
// straight away. notePrompt adds a free-text field to the dialog.
func (m *Model) ask(name actions.Name, id int64, label string, owner screen, notePrompt string, run func(context.Context, string) error) tea.Cmd {
	spec := actions.MustLookup(name)
	if !spec.Allowed(m.sess) {
		return m.notify(actions.LevelError, "You do not have permission to do that")
	}
	if !spec.Confirm {
		return m.runAction(spec, id, owner, func(ctx context.Context) error { return run(ctx, "") })
	}
	p := &pending{Confirm: actions.NewConfirm(spec, id, label), owner: owner, run: run}
	var cmd tea.Cmd
	if notePrompt != "" {
		ti := textinput.New()
		ti.Prompt = notePrompt
		ti.CharLimit = 500
		cmd = ti.Focus()
		p.note = &ti
	}
	m.confirm = p
	return cmd
}

func (m Model) runAction(spec actions.Spec, id int64, owner screen, fn func(context.Context) error) tea.Cmd {
	t, ctx := m.tracker, m.ctx
	return func() tea.Msg {
		return actionDoneMsg{out: actions.Run(ctx, t, spec, id, fn), name: spec.Name, owner: owner}
	}
}

func (m Model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	p := m.confirm
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		if p.note != nil {
			var cmd tea.Cmd
			*p.note, cmd = p.note.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	busy := m.tracker.Busy(p.Spec.Name, p.ID)
	switch k.String() {
	case "esc":
		if !busy {
			m.confirm = nil
		}
		return m, nil
	case "enter":
		return m.confirmNow()
	case "y":
		if p.note == nil {
			return m.confirmNow()
		}
	case "n":
		if p.note == nil && !busy {
			m.confirm = nil
			return m, nil
		}
	}
	if p.note != nil {
		var cmd tea.Cmd
		*p.note, cmd = p.note.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) confirmNow() (tea.Model, tea.Cmd) {
	p := m.confirm
	if m.tracker.Busy(p.Spec.Name, p.ID) {
		return m, nil
	}
	p.Err = ""
	note := ""
	if p.note != nil {
		note = strings.TrimSpace(p.note.Value())
	}
	run := p.run
	return m, m.runAction(p.Spec, p.ID, p.owner, func(ctx context.Context) error { return run(ctx, note) })
}

func (m Model) onActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	out := msg.out
	if out.Skipped {
		cmd := m.notify(actions.LevelInfo, out.Toast.Text)
		return m, cmd
	}
	cmds := []tea.Cmd{m.notify(out.Toast.Level, out.Toast.Text)}
	if p := m.confirm; p != nil && actions.Key(p.Spec.Name, p.ID) == out.Key {
		if out.CloseDialog {
			m.confirm = nil
		} else {
			p.Err = out.Toast.Text
		}
	}

	switch msg.name {
	case actions.CreateUser, actions.UpdateUser:
		if m.form == nil {
			break
		}
		if out.Err == nil {
			m.form = nil
			if m.st == screenUserForm {
				m.st = screenUsers
			}
		} else {
			m.form.errs = adminapi.FieldErrorsOf(out.Err)
			m.form.err = out.Toast.Text
		}
	case actions.SavePermissions:
		if m.perms == nil {
			break
		}
		if out.Err == nil {
			m.perms = nil
			if m.st == screenPermissions {
				m.st = screenUsers
			}
		} else {
			m.perms.err = out.Toast.Text
		}
	case actions.ApplySpotlight:
		if m.detail != nil && m.detail.spot != nil {
			if out.Err == nil {
				m.detail.spot = nil
			} else {
				m.detail.spot.errs = adminapi.FieldErrorsOf(out.Err)
				m.detail.spot.err = out.Toast.Text
			}
		}
	case actions.DeleteProduct:
		if out.Err == nil && m.st == screenProduct {
			m.detail = nil
			m.st = screenProducts
		}
	}

	if out.Refetch {
		cmds = append(cmds, m.refetch(msg.owner))
	}
	return m, tea.Batch(cmds...)
}

// refetch reloads whatever owner shows after a successful action.
func (m Model) refetch(owner screen) tea.Cmd {
	if owner == screenProduct {
		cmds := []tea.Cmd{m.products.fetch(m.ctx)}
		if m.detail != nil {
			m.detail.loading = true
			cmds = append(cmds, loadSpotlightCmd(m.ctx, m.client, m.detail.product.ID))
		}
		return tea.Batch(cmds...)
	}
	return m.enter(owner)
}

func (p *pending) view(t *actions.Tracker, spin string) string {
	var b strings.Builder
	b.WriteString(p.Prompt() + "\n")
	if p.note != nil {
		b.WriteString("\n" + p.note.View() + "\n")
	}
	if t.Busy(p.Spec.Name, p.ID) {
		b.WriteString("\n" + spin + " working\n")
	}
	if p.Err != "" {
		b.WriteString("\n" + errStyle.Render(p.Err) + "\n")
	}
	help := "y/enter=confirm  n/esc=cancel"
	if p.note != nil {
		help = "enter=confirm  esc=cancel"
	}
	b.WriteString("\n" + helpStyle.Render(help))
	return dialogStyle.Render(b.String())
}
