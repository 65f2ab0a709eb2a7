package adminui

import (
	"context"
	"fmt"
	"strings"

	"dtadmin/internal/actions"
	"dtadmin/internal/adminapi"
	"dtadmin/internal/permissions"
	"dtadmin/internal/validate"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Text fields of the user form, in tab order.
const (
	fieldEmail = iota
	fieldUsername
	fieldPassword
	fieldFirstName
	fieldLastName
	fieldPhone
	fieldCount
)

// fieldKeys are the JSON names field errors are reported under.
var fieldKeys = [fieldCount]string{"email", "username", "password", "first_name", "last_name", "phone"}

type formFlag struct {
	label string
	key   string
	v     *bool
}

// userForm creates or edits an account, including the permission set when
// the account is a moderator.
type userForm struct {
	orig    *adminapi.User
	inputs  [fieldCount]textinput.Model
	focus   int
	flagPos int

	isAdmin, isModerator bool
	isActive, isVerified bool
	isBanned             bool

	perms permEditor
	// permsKnown is false while an existing moderator's set is still loading,
	// so an empty editor is never saved over it.
	permsKnown bool
	errs       validate.FieldErrors
	err        string
}

func newUserForm(u *adminapi.User) *userForm {
	f := &userForm{orig: u, isActive: true, permsKnown: true}
	prompts := [fieldCount]string{"Email:      ", "Username:   ", "Password:   ", "First name: ", "Last name:  ", "Phone:      "}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = prompts[i]
		ti.CharLimit = 254
		f.inputs[i] = ti
	}
	f.inputs[fieldPassword].EchoMode = textinput.EchoPassword
	f.perms = newPermEditor(permissions.Set{})
	if u != nil {
		f.inputs[fieldEmail].SetValue(u.Email)
		f.inputs[fieldUsername].SetValue(u.Username)
		f.inputs[fieldFirstName].SetValue(u.FirstName)
		f.inputs[fieldLastName].SetValue(u.LastName)
		f.inputs[fieldPhone].SetValue(u.Phone)
		f.isAdmin, f.isModerator = u.IsAdmin, u.IsModerator
		f.isActive, f.isVerified, f.isBanned = u.IsActive, u.IsVerified, u.IsBanned
		if u.Permissions != nil {
			f.perms = newPermEditor(*u.Permissions)
		} else if u.IsModerator && !u.IsAdmin {
			f.permsKnown = false
		}
	}
	f.inputs[fieldEmail].Focus()
	return f
}

func (f *userForm) editing() bool { return f.orig != nil }

// fields lists the visible text fields. Passwords are only set on create.
func (f *userForm) fields() []int {
	if f.editing() {
		return []int{fieldEmail, fieldUsername, fieldFirstName, fieldLastName, fieldPhone}
	}
	return []int{fieldEmail, fieldUsername, fieldPassword, fieldFirstName, fieldLastName, fieldPhone}
}

func (f *userForm) flags() []formFlag {
	out := []formFlag{{"Admin", "is_admin", &f.isAdmin}, {"Moderator", "is_moderator", &f.isModerator}}
	if f.editing() {
		out = append(out, formFlag{"Active", "is_active", &f.isActive}, formFlag{"Verified", "is_verified", &f.isVerified}, formFlag{"Banned", "is_banned", &f.isBanned})
	}
	return out
}

func (f *userForm) showPerms() bool { return f.isModerator && !f.isAdmin }

func (f *userForm) regions() int {
	n := len(f.fields()) + 1
	if f.showPerms() {
		n++
	}
	return n
}

func (f *userForm) onFlags() bool { return f.focus == len(f.fields()) }
func (f *userForm) onPerms() bool { return f.showPerms() && f.focus == len(f.fields())+1 }

func (f *userForm) move(delta int) tea.Cmd {
	fs := f.fields()
	if f.focus < len(fs) {
		f.inputs[fs[f.focus]].Blur()
	}
	f.focus = (f.focus + delta + f.regions()) % f.regions()
	if f.focus < len(fs) {
		return f.inputs[fs[f.focus]].Focus()
	}
	return nil
}

func (f *userForm) value(i int) string { return strings.TrimSpace(f.inputs[i].Value()) }

func (f *userForm) create() adminapi.UserCreate {
	u := adminapi.UserCreate{
		Email:       f.value(fieldEmail),
		Username:    f.value(fieldUsername),
		Password:    f.inputs[fieldPassword].Value(),
		FirstName:   f.value(fieldFirstName),
		LastName:    f.value(fieldLastName),
		Phone:       f.value(fieldPhone),
		IsAdmin:     f.isAdmin,
		IsModerator: f.isModerator,
	}
	if f.showPerms() {
		p := f.perms.set
		u.Permissions = &p
	}
	return u
}

// update returns the changed fields only. ok is false when nothing changed.
func (f *userForm) update() (u adminapi.UserUpdate, ok bool) {
	o := f.orig
	str := func(now, was string) *string {
		if now == was {
			return nil
		}
		ok = true
		return &now
	}
	bl := func(now, was bool) *bool {
		if now == was {
			return nil
		}
		ok = true
		return &now
	}
	u.Email = str(f.value(fieldEmail), o.Email)
	u.Username = str(f.value(fieldUsername), o.Username)
	u.FirstName = str(f.value(fieldFirstName), o.FirstName)
	u.LastName = str(f.value(fieldLastName), o.LastName)
	u.Phone = str(f.value(fieldPhone), o.Phone)
	u.IsAdmin = bl(f.isAdmin, o.IsAdmin)
	u.IsModerator = bl(f.isModerator, o.IsModerator)
	u.IsActive = bl(f.isActive, o.IsActive)
	u.IsVerified = bl(f.isVerified, o.IsVerified)
	u.IsBanned = bl(f.isBanned, o.IsBanned)
	if f.showPerms() && f.permsKnown && (o.Permissions == nil || *o.Permissions != f.perms.set) {
		p := f.perms.set
		u.Permissions = &p
		ok = true
	}
	return u, ok
}

func (m Model) openUserForm(u *adminapi.User) (tea.Model, tea.Cmd) {
	name := actions.CreateUser
	if u != nil {
		name = actions.UpdateUser
	}
	if !actions.MustLookup(name).Allowed(m.sess) {
		cmd := m.notify(actions.LevelError, "You do not have permission to do that")
		return m, cmd
	}
	m.form = newUserForm(u)
	m.st = screenUserForm
	cmds := []tea.Cmd{textinput.Blink}
	if u != nil && u.IsModerator && !u.IsAdmin && u.Permissions == nil {
		cmds = append(cmds, loadPermsCmd(m.ctx, m.client, u.ID))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	f := m.form
	if f == nil {
		m.st = screenUsers
		return m, nil
	}
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, f.updateInput(msg)
	}
	switch k.String() {
	case "esc":
		m.form = nil
		m.st = screenUsers
		return m, nil
	case "tab", "down":
		if k.String() == "down" && f.onPerms() {
			f.perms.update("down")
			return m, nil
		}
		return m, f.move(1)
	case "shift+tab", "up":
		if k.String() == "up" && f.onPerms() {
			f.perms.update("up")
			return m, nil
		}
		return m, f.move(-1)
	case "ctrl+s":
		return m.submitForm()
	case "enter":
		if f.onFlags() || f.onPerms() {
			break
		}
		return m, f.move(1)
	}
	switch {
	case f.onFlags():
		fl := f.flags()
		switch k.String() {
		case "left", "h":
			f.flagPos = (f.flagPos + len(fl) - 1) % len(fl)
		case "right", "l":
			f.flagPos = (f.flagPos + 1) % len(fl)
		case " ", "space", "enter":
			v := fl[f.flagPos%len(fl)].v
			*v = !*v
		}
		return m, nil
	case f.onPerms():
		f.perms.update(k.String())
		return m, nil
	}
	return m, f.updateInput(msg)
}

func (f *userForm) updateInput(msg tea.Msg) tea.Cmd {
	fs := f.fields()
	if f.focus >= len(fs) {
		return nil
	}
	var cmd tea.Cmd
	i := fs[f.focus]
	f.inputs[i], cmd = f.inputs[i].Update(msg)
	return cmd
}

func (m Model) submitForm() (tea.Model, tea.Cmd) {
	f := m.form
	client := m.client
	f.err, f.errs = "", nil
	if !f.editing() {
		u := f.create()
		if err := validate.Struct(u); err != nil {
			f.errs = adminapi.FieldErrorsOf(err)
			return m, nil
		}
		cmd := m.ask(actions.CreateUser, 0, u.Username, screenUsers, "", func(ctx context.Context, _ string) error {
			_, err := client.CreateUser(ctx, u)
			return err
		})
		return m, cmd
	}
	u, changed := f.update()
	if !changed {
		m.form = nil
		m.st = screenUsers
		cmd := m.notify(actions.LevelInfo, "No changes")
		return m, cmd
	}
	if err := validate.Struct(u); err != nil {
		f.errs = adminapi.FieldErrorsOf(err)
		return m, nil
	}
	id := f.orig.ID
	cmd := m.ask(actions.UpdateUser, id, f.orig.Username, screenUsers, "", func(ctx context.Context, _ string) error {
		return client.UpdateUser(ctx, id, u)
	})
	return m, cmd
}

func (f *userForm) view(t *actions.Tracker, spin string) string {
	var b strings.Builder
	title := "New user"
	busy := t.Busy(actions.CreateUser, 0)
	if f.editing() {
		title = fmt.Sprintf("Edit %s (#%d)", f.orig.Username, f.orig.ID)
		busy = t.Busy(actions.UpdateUser, f.orig.ID)
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")
	for _, i := range f.fields() {
		b.WriteString(f.inputs[i].View() + "\n")
		if e := f.errs[fieldKeys[i]]; e != "" {
			b.WriteString(errStyle.Render("  "+e) + "\n")
		}
	}

	b.WriteString("\n")
	var fs []string
	for i, fl := range f.flags() {
		box := "[ ]"
		if *fl.v {
			box = "[x]"
		}
		item := box + " " + fl.label
		if f.onFlags() && i == f.flagPos {
			item = activeTab.Render(item)
		}
		fs = append(fs, item)
	}
	b.WriteString(strings.Join(fs, "  ") + "\n")
	for _, fl := range f.flags() {
		if e := f.errs[fl.key]; e != "" {
			b.WriteString(errStyle.Render("  "+fl.label+": "+e) + "\n")
		}
	}

	if f.showPerms() {
		b.WriteString("\n" + headerStyle.Render("Moderator permissions") + "\n")
		b.WriteString(f.perms.view(f.onPerms()))
	}
	b.WriteString("\n")
	if f.err != "" {
		b.WriteString(errStyle.Render(f.err) + "\n")
	}
	if busy {
		b.WriteString(spin + " saving\n")
	}
	b.WriteString(helpStyle.Render("tab=next  ←/→ space=flags  ctrl+s=save  esc=cancel") + "\n")
	return b.String()
}
