// Package adminui implements the interactive marketplace console using Bubble Tea.
package adminui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"dtadmin/internal/actions"
	"dtadmin/internal/adminapi"
	"dtadmin/internal/permissions"
	"dtadmin/internal/session"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// screen represents the current view in the console.
type screen int

const (
	screenLogin screen = iota
	screenOverview
	screenProducts
	screenUsers
	screenReports
	screenSpotlight
	screenLogs
	screenProduct
	screenUserForm
	screenPermissions
)

const toastTTL = 4 * time.Second

// tab is one top-level section reachable with a number key.
type tab struct {
	id    screen
	key   string
	title string
	can   func(session.Session) bool
}

func requires(c permissions.Capability) func(session.Session) bool {
	return func(s session.Session) bool { return s.Can(c) }
}

func adminOnly(s session.Session) bool { return s.User != nil && s.User.IsAdmin }

var tabs = []tab{
	{screenOverview, "1", "Overview", requires(permissions.SeeDashboard)},
	{screenProducts, "2", "Listings", requires(permissions.SeeListings)},
	{screenUsers, "3", "Users", requires(permissions.SeeUsers)},
	{screenReports, "4", "Flagged", requires(permissions.SeeFlaggedContent)},
	{screenSpotlight, "5", "Spotlights", requires(permissions.SeeSpotlightHistory)},
	{screenLogs, "6", "Activity", adminOnly},
}

// Options tunes the console.
type Options struct {
	PageSize       int
	SearchDebounce time.Duration
	Logger         *slog.Logger
}

// Model holds all UI state for the console.
type Model struct {
	ctx    context.Context
	client *adminapi.Client
	lg     *slog.Logger
	addr   string

	st            screen
	width, height int
	sess          session.Session

	email     textinput.Model
	pass      textinput.Model
	loggingIn bool
	loginErr  string

	spin     spinner.Model
	toast    actions.Toast
	toastSeq int

	tracker  *actions.Tracker
	confirm  *pending
	signOuts chan adminapi.SignOutReason

	overview *overviewState
	products *listScreen[adminapi.Product]
	users    *listScreen[adminapi.User]
	reports  *listScreen[adminapi.Report]
	history  *listScreen[adminapi.SpotlightHistoryEntry]
	logs     *listScreen[adminapi.LogEntry]

	detail *productDetail
	form   *userForm
	perms  *permScreen
}

// New constructs the console. The client's sign-out hook is taken over so
// an expired session lands back on the login screen.
func New(ctx context.Context, client *adminapi.Client, opt Options) Model {
	lg := opt.Logger
	if lg == nil {
		lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	email := textinput.New()
	email.Placeholder = "admin@example.com"
	email.Prompt = "Email:    "
	email.CharLimit = 254
	email.Focus()
	pass := textinput.New()
	pass.Placeholder = "password"
	pass.Prompt = "Password: "
	pass.EchoMode = textinput.EchoPassword

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		client:   client,
		lg:       lg,
		addr:     redactAddr(client.Addr()),
		st:       screenLogin,
		email:    email,
		pass:     pass,
		spin:     sp,
		tracker:  actions.NewTracker(),
		signOuts: make(chan adminapi.SignOutReason, 1),
		overview: &overviewState{},
	}
	ch := m.signOuts
	client.SetSignOutHandler(func(r adminapi.SignOutReason) {
		select {
		case ch <- r:
		default:
		}
	})

	ps, deb := opt.PageSize, opt.SearchDebounce
	m.products = newListScreen(screenProducts, "Listings", client.ListProducts, ps, deb, productColumns, []filterSpec{
		{key: "s", name: "status", label: "Status", values: []string{"active", "inactive", "flagged", "sold"}},
		{key: "v", name: "verified", label: "Verified", values: []string{"true", "false"}},
	})
	m.users = newListScreen(screenUsers, "Users", client.ListUsers, ps, deb, userColumns, []filterSpec{
		{key: "o", name: "role", label: "Role", values: []string{"admin", "moderator", "user"}},
		{key: "s", name: "status", label: "Status", values: []string{"active", "inactive", "suspended", "banned", "unverified"}},
	})
	m.reports = newListScreen(screenReports, "Flagged content", client.ListReports, ps, deb, reportColumns, []filterSpec{
		{key: "s", name: "status", label: "Status", values: []string{"pending", "under_review", "approved", "rejected"}},
	})
	m.history = newListScreen(screenSpotlight, "Spotlight history", client.SpotlightHistory, ps, deb, historyColumns, []filterSpec{
		{key: "s", name: "status", label: "Status", values: []string{"active", "expired", "removed"}},
	})
	m.logs = newListScreen(screenLogs, "Activity log", client.ListLogs, ps, deb, logColumns, []filterSpec{
		{key: "a", name: adminapi.FacetAction, label: "Action", facet: adminapi.FacetAction},
		{key: "d", name: "start_date", label: "Since", since: []int{1, 7, 30}},
	})

	if s, err := client.Session(ctx); err == nil && s.Authenticated() && s.User != nil && s.User.CanAdminister() {
		m.sess = s
		m.st = m.landing()
		m.email.Blur()
	}
	return m
}

// Run starts the console and blocks until it exits.
func Run(ctx context.Context, client *adminapi.Client, opt Options) error {
	p := tea.NewProgram(New(ctx, client, opt), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init returns the initial command for the Bubble Tea runtime.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, waitSignOut(m.signOuts)}
	if m.st == screenLogin {
		cmds = append(cmds, textinput.Blink)
	} else {
		cmds = append(cmds, m.enter(m.st))
	}
	return tea.Batch(cmds...)
}

type signedOutMsg struct{ reason adminapi.SignOutReason }

type loginMsg struct {
	sess session.Session
	err  error
}

type logoutMsg struct{ err error }

type toastExpiredMsg struct{ seq int }

type actionDoneMsg struct {
	out   actions.Outcome
	name  actions.Name
	owner screen
}

func waitSignOut(ch <-chan adminapi.SignOutReason) tea.Cmd {
	return func() tea.Msg { return signedOutMsg{reason: <-ch} }
}

func loginCmd(ctx context.Context, c *adminapi.Client, email, password string) tea.Cmd {
	return func() tea.Msg {
		s, err := c.Login(ctx, adminapi.Credentials{Email: email, Password: password})
		return loginMsg{sess: s, err: err}
	}
}

func logoutCmd(ctx context.Context, c *adminapi.Client) tea.Cmd {
	return func() tea.Msg { return logoutMsg{err: c.Logout(ctx)} }
}

// Update routes messages based on UI state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := max(5, msg.Height-14)
		m.products.tbl.SetHeight(h)
		m.users.tbl.SetHeight(h)
		m.reports.tbl.SetHeight(h)
		m.history.tbl.SetHeight(h)
		m.logs.tbl.SetHeight(h)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = actions.Toast{}
		}
		return m, nil
	case signedOutMsg:
		return m.onSignedOut(msg.reason)
	case loginMsg:
		m.loggingIn = false
		if msg.err != nil {
			m.loginErr = adminapi.LoginMessage(msg.err)
			m.pass.SetValue("")
			cmd := m.pass.Focus()
			return m, cmd
		}
		m.sess = msg.sess
		m.loginErr = ""
		m.pass.SetValue("")
		m.pass.Blur()
		m.email.Blur()
		m.st = m.landing()
		toast := m.notify(actions.LevelSuccess, "Signed in as "+msg.sess.User.Username)
		return m, tea.Batch(toast, m.enter(m.st))
	case logoutMsg:
		if msg.err != nil {
			m.lg.Warn("server logout failed", "err", msg.err)
			cmd := m.notify(actions.LevelError, "Signed out locally. Server logout failed: "+adminapi.Message(msg.err, "unreachable"))
			return m, cmd
		}
		return m, nil
	case overviewMsg:
		if msg.seq == m.overview.seq {
			m.overview.loading = false
			m.overview.data = msg.data
			m.overview.err = ""
			if msg.err != nil {
				m.overview.err = adminapi.Message(msg.err, "Failed to load dashboard")
			}
		}
		return m, nil
	case pageMsg:
		return m.onPage(msg)
	case spotlightMsg:
		if m.detail != nil && m.detail.product.ID == msg.id {
			m.detail.loading = false
			m.detail.status = msg.status
			m.detail.err = ""
			if msg.err != nil {
				m.detail.err = adminapi.Message(msg.err, "Failed to load spotlight")
			}
		}
		return m, nil
	case permsLoadedMsg:
		return m.onPermsLoaded(msg)
	case actionDoneMsg:
		return m.onActionDone(msg)
	case searchTickMsg:
		return m.routeList(msg.screen, msg)
	}

	k, isKey := msg.(tea.KeyMsg)
	if isKey && k.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.st == screenLogin {
		return m.updateLogin(msg)
	}
	if m.confirm != nil {
		return m.updateConfirm(msg)
	}

	switch m.st {
	case screenProduct:
		return m.updateDetail(msg)
	case screenUserForm:
		return m.updateForm(msg)
	case screenPermissions:
		return m.updatePerms(msg)
	}

	if isKey && !m.typing() {
		switch k.String() {
		case "q":
			return m, tea.Quit
		case "L":
			return m, logoutCmd(m.ctx, m.client)
		}
		for _, t := range tabs {
			if k.String() == t.key {
				if !t.can(m.sess) {
					cmd := m.notify(actions.LevelError, "You do not have access to "+t.title)
					return m, cmd
				}
				m.st = t.id
				cmd := m.enter(t.id)
				return m, cmd
			}
		}
	}

	switch m.st {
	case screenOverview:
		if isKey && k.String() == "r" {
			cmd := m.enter(screenOverview)
			return m, cmd
		}
		return m, nil
	case screenProducts:
		return m.updateProducts(msg)
	case screenUsers:
		return m.updateUsers(msg)
	case screenReports:
		return m.updateReports(msg)
	default:
		return m.routeList(m.st, msg)
	}
}

func (m Model) updateLogin(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "esc":
			return m, tea.Quit
		case "tab", "shift+tab", "up", "down":
			if m.email.Focused() {
				m.email.Blur()
				cmd := m.pass.Focus()
				return m, cmd
			}
			m.pass.Blur()
			cmd := m.email.Focus()
			return m, cmd
		case "enter":
			if m.loggingIn {
				return m, nil
			}
			if m.email.Focused() {
				m.email.Blur()
				cmd := m.pass.Focus()
				return m, cmd
			}
			m.loggingIn = true
			m.loginErr = ""
			return m, loginCmd(m.ctx, m.client, m.email.Value(), m.pass.Value())
		}
	}
	var c1, c2 tea.Cmd
	m.email, c1 = m.email.Update(msg)
	m.pass, c2 = m.pass.Update(msg)
	return m, tea.Batch(c1, c2)
}

func (m Model) onSignedOut(r adminapi.SignOutReason) (tea.Model, tea.Cmd) {
	m.sess = session.Session{}
	m.st = screenLogin
	m.confirm = nil
	m.detail = nil
	m.form = nil
	m.perms = nil
	m.loggingIn = false
	for _, c := range []interface{ close() }{m.products, m.users, m.reports, m.history, m.logs} {
		c.close()
	}
	m.overview.seq++
	m.overview.loading = false
	m.pass.SetValue("")
	m.pass.Blur()

	level, text := actions.LevelInfo, "Signed out"
	if r == adminapi.ReasonExpired {
		level, text = actions.LevelError, "Your session has expired. Please sign in again."
	}
	toast := m.notify(level, text)
	focus := m.email.Focus()
	return m, tea.Batch(toast, focus, waitSignOut(m.signOuts))
}

// landing is the first section the session may open.
func (m Model) landing() screen {
	for _, t := range tabs {
		if t.can(m.sess) {
			return t.id
		}
	}
	return screenOverview
}

// enter fetches the data a section shows. Every visit refetches.
func (m Model) enter(s screen) tea.Cmd {
	switch s {
	case screenOverview:
		if !m.sess.Can(permissions.SeeDashboard) {
			return nil
		}
		m.overview.seq++
		m.overview.loading = true
		return loadOverview(m.ctx, m.client, m.lg, m.sess, m.overview.seq)
	case screenProducts:
		return m.products.fetch(m.ctx)
	case screenUsers:
		return m.users.fetch(m.ctx)
	case screenReports:
		return m.reports.fetch(m.ctx)
	case screenSpotlight:
		return m.history.fetch(m.ctx)
	case screenLogs:
		return m.logs.fetch(m.ctx)
	}
	return nil
}

func (m Model) typing() bool {
	switch m.st {
	case screenProducts:
		return m.products.searching()
	case screenUsers:
		return m.users.searching()
	case screenReports:
		return m.reports.searching()
	case screenSpotlight:
		return m.history.searching()
	case screenLogs:
		return m.logs.searching()
	}
	return false
}

func (m Model) onPage(msg pageMsg) (tea.Model, tea.Cmd) {
	var applied bool
	var title string
	switch msg.screen {
	case screenProducts:
		applied, title = m.products.onPage(msg), "listings"
		if applied && m.detail != nil {
			for _, p := range m.products.ctrl.Snapshot().Items {
				if p.ID == m.detail.product.ID {
					m.detail.product = p
				}
			}
		}
	case screenUsers:
		applied, title = m.users.onPage(msg), "users"
	case screenReports:
		applied, title = m.reports.onPage(msg), "flagged content"
	case screenSpotlight:
		applied, title = m.history.onPage(msg), "spotlight history"
	case screenLogs:
		applied, title = m.logs.onPage(msg), "activity log"
	}
	if !applied || msg.err == nil || !m.sess.Authenticated() {
		return m, nil
	}
	if adminapi.StatusOf(msg.err) == 401 {
		return m, nil
	}
	cmd := m.notify(actions.LevelError, adminapi.Message(msg.err, "Failed to load "+title))
	return m, cmd
}

func (m Model) routeList(s screen, msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch s {
	case screenProducts:
		cmd, _ = m.products.update(m.ctx, msg)
	case screenUsers:
		cmd, _ = m.users.update(m.ctx, msg)
	case screenReports:
		cmd, _ = m.reports.update(m.ctx, msg)
	case screenSpotlight:
		cmd, _ = m.history.update(m.ctx, msg)
	case screenLogs:
		cmd, _ = m.logs.update(m.ctx, msg)
	}
	return m, cmd
}

// notify shows a toast that clears itself after toastTTL.
func (m *Model) notify(level actions.Level, text string) tea.Cmd {
	m.toastSeq++
	m.toast = actions.Toast{Level: level, Text: text}
	seq := m.toastSeq
	return tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{seq: seq} })
}

// View renders the current screen.
func (m Model) View() string {
	var b strings.Builder
	if m.st == screenLogin {
		b.WriteString(m.viewLogin())
	} else {
		b.WriteString(m.viewHeader())
		switch m.st {
		case screenOverview:
			b.WriteString(m.overview.view(m.sess, m.spin.View()))
		case screenProducts:
			b.WriteString(m.products.view(m.spin.View()))
			b.WriteString(helpStyle.Render(listHelp+"  enter=open  d=delete") + "\n")
		case screenUsers:
			b.WriteString(m.users.view(m.spin.View()))
			b.WriteString(helpStyle.Render(listHelp+"  a=add  enter=edit  d=delete  u=suspend/unsuspend  w=reset password  m=permissions") + "\n")
		case screenReports:
			b.WriteString(m.reports.view(m.spin.View()))
			b.WriteString(helpStyle.Render(listHelp+"  a=approve  R=reject  v=review") + "\n")
		case screenSpotlight:
			b.WriteString(m.history.view(m.spin.View()))
			b.WriteString(helpStyle.Render(listHelp) + "\n")
		case screenLogs:
			b.WriteString(m.logs.view(m.spin.View()))
			b.WriteString(helpStyle.Render(listHelp) + "\n")
		case screenProduct:
			if m.detail != nil {
				b.WriteString(m.detail.view(m.sess, m.spin.View()))
			}
		case screenUserForm:
			if m.form != nil {
				b.WriteString(m.form.view(m.tracker, m.spin.View()))
			}
		case screenPermissions:
			if m.perms != nil {
				b.WriteString(m.perms.view(m.tracker.Busy(actions.SavePermissions, m.perms.user.ID), m.spin.View()))
			}
		}
	}
	if m.confirm != nil {
		b.WriteString("\n" + m.confirm.view(m.tracker, m.spin.View()) + "\n")
	}
	if m.toast.Text != "" {
		b.WriteString("\n" + toastStyle(m.toast.Level).Render(m.toast.Text) + "\n")
	}
	return b.String()
}

const listHelp = "/=search  ←/→=page  x=clear  r=refresh"

func (m Model) viewLogin() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Driptyard admin") + "\n")
	b.WriteString(headerStyle.Render(m.addr) + "\n\n")
	b.WriteString(m.email.View() + "\n")
	b.WriteString(m.pass.View() + "\n\n")
	if m.loggingIn {
		b.WriteString(m.spin.View() + " signing in\n")
	}
	if m.loginErr != "" {
		b.WriteString(errStyle.Render(m.loginErr) + "\n")
	}
	b.WriteString(helpStyle.Render("tab=switch field  enter=sign in  esc=quit") + "\n")
	return b.String()
}

func (m Model) viewHeader() string {
	var tabsView []string
	for _, t := range tabs {
		if !t.can(m.sess) {
			continue
		}
		label := t.key + " " + t.title
		if t.id == m.st || (t.id == screenProducts && m.st == screenProduct) ||
			(t.id == screenUsers && (m.st == screenUserForm || m.st == screenPermissions)) {
			tabsView = append(tabsView, activeTab.Render(label))
		} else {
			tabsView = append(tabsView, tabStyle.Render(label))
		}
	}
	who := ""
	if m.sess.User != nil {
		who = fmt.Sprintf("%s (%s)", m.sess.User.Username, m.sess.User.Role())
	}
	return strings.Join(tabsView, "") + "  " + mutedStyle.Render(who+"  L=sign out  q=quit") + "\n\n"
}

func redactAddr(addr string) string {
	u, err := parseAddr(addr)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// parseAddr parses addr, defaulting the scheme to https.
func parseAddr(addr string) (*url.URL, error) {
	if !strings.Contains(addr, "://") {
		addr = "https://" + addr
	}
	return url.Parse(addr)
}

// RequireInsecureByDefault reports whether addr points at the local host,
// where a self-signed certificate is expected.
func RequireInsecureByDefault(addr string) bool {
	u, err := parseAddr(addr)
	if err != nil {
		return true
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
