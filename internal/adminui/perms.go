package adminui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dtadmin/internal/adminapi"
	"dtadmin/internal/permissions"
	tea "github.com/charmbracelet/bubbletea"
)

// permEditor is the checkbox list for the ten moderator capabilities.
// Toggling goes through permissions.Set so the read/manage cascade holds.
type permEditor struct {
	set    permissions.Set
	cursor int
	hint   string
}

func newPermEditor(s permissions.Set) permEditor {
	return permEditor{set: s.Normalize()}
}

// update handles a key and reports whether it was used.
func (p *permEditor) update(k string) bool {
	switch k {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(permissions.All)-1 {
			p.cursor++
		}
	case " ", "space", "enter":
		c := permissions.All[p.cursor]
		p.hint = ""
		if p.set.Has(c) {
			p.set = p.set.With(c, false)
			return true
		}
		next, err := p.set.Enable(c)
		if errors.Is(err, permissions.ErrRequiresRead) {
			r, _ := permissions.Requires(c)
			p.hint = fmt.Sprintf("Enable %q first", r.Label())
			return true
		}
		p.set = next
	default:
		return false
	}
	return true
}

func (p permEditor) view(focused bool) string {
	var b strings.Builder
	for i, c := range permissions.All {
		cursor := "  "
		if focused && i == p.cursor {
			cursor = "> "
		}
		box := "[ ]"
		if p.set.Has(c) {
			box = "[x]"
		}
		line := fmt.Sprintf("%s%s %s", cursor, box, c.Label())
		if r, ok := permissions.Requires(c); ok {
			line = fmt.Sprintf("%s    %s %s", cursor, box, c.Label())
			if !p.set.Has(r) {
				line = mutedStyle.Render(line)
			}
		}
		b.WriteString(line + "\n")
	}
	if p.hint != "" {
		b.WriteString(infoStyle.Render(p.hint) + "\n")
	}
	return b.String()
}

// permScreen edits one moderator's permission set through
// GET/PUT /moderators/{id}/permissions.
type permScreen struct {
	user    adminapi.User
	editor  permEditor
	loading bool
	loaded  bool
	err     string
}

type permsLoadedMsg struct {
	userID int64
	set    permissions.Set
	err    error
}

func loadPermsCmd(ctx context.Context, c *adminapi.Client, id int64) tea.Cmd {
	return func() tea.Msg {
		set, err := c.ModeratorPermissions(ctx, id)
		return permsLoadedMsg{userID: id, set: set, err: err}
	}
}

func (s *permScreen) view(busy bool, spin string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Permissions: "+s.user.Username) + "\n")
	b.WriteString(headerStyle.Render(s.user.Email) + "\n\n")
	if s.loading {
		b.WriteString(spin + " loading\n")
		return b.String()
	}
	if s.err != "" {
		b.WriteString(errStyle.Render(s.err) + "\n\n")
	}
	if !s.loaded {
		b.WriteString(helpStyle.Render("esc=back") + "\n")
		return b.String()
	}
	b.WriteString(s.editor.view(true))
	b.WriteString("\n")
	if busy {
		b.WriteString(spin + " saving\n")
	}
	b.WriteString(helpStyle.Render("space=toggle  ctrl+s=save  esc=back") + "\n")
	return b.String()
}
