// Package user implements account management: "user" for the account
// lifecycle and "permissions" for moderator capabilities.
package user

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"dtadmin/internal/actions"
	"dtadmin/internal/adminapi"
	"dtadmin/internal/cmd/cmdutil"
	"dtadmin/internal/permissions"
	isetup "dtadmin/internal/setup"
	"dtadmin/internal/validate"
)

var promptPassword = isetup.PromptPassword

// Run handles "user show|create|update|delete|suspend|unsuspend|reset-password".
func Run(args []string) error {
	ctx, cancel := cmdutil.Context()
	defer cancel()
	return run(ctx, args, os.Stdout)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	verb, rest, err := cmdutil.Sub("user", args, "show", "create", "update", "delete", "suspend", "unsuspend", "reset-password")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("user "+verb, flag.ContinueOnError)
	var common cmdutil.Common
	common.Register(fs)
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	reason := fs.String("reason", "", "suspension reason (suspend)")
	var f accountFlags
	if verb == "create" || verb == "update" {
		f.register(fs, verb == "create")
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}

	if verb == "create" {
		if fs.NArg() > 0 {
			return fmt.Errorf("user create: unexpected argument %q", fs.Arg(0))
		}
		return create(ctx, common, stdout, f, *yes)
	}
	id, err := cmdutil.ParseID(fs)
	if err != nil {
		return err
	}
	env, err := cmdutil.Open(ctx, common, cmdutil.OpenOptions{})
	if err != nil {
		return err
	}
	defer env.Close()
	c := env.Client

	if verb == "show" {
		u, err := c.GetUser(ctx, id)
		if err != nil {
			return errors.New(adminapi.Message(err, "Failed to load user"))
		}
		return printUser(stdout, u)
	}

	// Confirmation prompts name the account, so resolve it first.
	label := fmt.Sprintf("#%d", id)
	if u, err := c.GetUser(ctx, id); err == nil && u.Username != "" {
		label = u.Username
	}
	a := cmdutil.Action{ID: id, Label: label, Yes: *yes}
	switch verb {
	case "update":
		upd, err := f.update(cmdutil.Visited(fs))
		if err != nil {
			return err
		}
		a.Name = actions.UpdateUser
		a.Run = func(ctx context.Context) error { return c.UpdateUser(ctx, id, upd) }
	case "delete":
		a.Name = actions.DeleteUser
		a.Run = func(ctx context.Context) error { return c.DeleteUser(ctx, id) }
	case "suspend":
		a.Name = actions.SuspendUser
		a.Run = func(ctx context.Context) error { return c.SuspendUser(ctx, id, strings.TrimSpace(*reason)) }
	case "unsuspend":
		a.Name = actions.UnsuspendUser
		a.Run = func(ctx context.Context) error { return c.UnsuspendUser(ctx, id) }
	case "reset-password":
		a.Name = actions.ResetPassword
		a.Run = func(ctx context.Context) error { return c.ResetUserPassword(ctx, id) }
	}
	return env.RunAction(ctx, stdout, a)
}

// accountFlags are the editable account fields shared by create and update.
type accountFlags struct {
	email, username, first, last, phone *string
	admin, moderator                    *bool
	active, verified, banned            *bool
	perms                               cmdutil.List
}

func (f *accountFlags) register(fs *flag.FlagSet, create bool) {
	f.email = fs.String("email", "", "email address")
	f.username = fs.String("username", "", "username")
	f.first = fs.String("first-name", "", "first name")
	f.last = fs.String("last-name", "", "last name")
	f.phone = fs.String("phone", "", "phone number")
	f.admin = fs.Bool("admin", false, "administrator")
	f.moderator = fs.Bool("moderator", false, "moderator")
	fs.Var(&f.perms, "perms", "moderator capabilities, comma separated (e.g. see_users,manage_users)")
	if !create {
		f.active = fs.Bool("active", false, "account active")
		f.verified = fs.Bool("verified", false, "account verified")
		f.banned = fs.Bool("banned", false, "account banned")
	}
}

// permSet builds a set from capability names, enabling read capabilities
// before their dependents.
func permSet(names []string) (permissions.Set, error) {
	var caps []permissions.Capability
	for _, n := range names {
		c, err := permissions.Parse(n)
		if err != nil {
			return permissions.Set{}, err
		}
		caps = append(caps, c)
	}
	var s permissions.Set
	for _, c := range caps {
		if _, ok := permissions.Requires(c); !ok {
			s = s.With(c, true)
		}
	}
	for _, c := range caps {
		next, err := s.Enable(c)
		if err != nil {
			r, _ := permissions.Requires(c)
			return permissions.Set{}, fmt.Errorf("%s needs %s", c.Label(), r.Label())
		}
		s = next
	}
	return s, nil
}

func (f *accountFlags) update(set map[string]bool) (adminapi.UserUpdate, error) {
	var u adminapi.UserUpdate
	str := func(name string, v *string) *string {
		if !set[name] {
			return nil
		}
		s := strings.TrimSpace(*v)
		return &s
	}
	bl := func(name string, v *bool) *bool {
		if !set[name] {
			return nil
		}
		return v
	}
	u.Email = str("email", f.email)
	u.Username = str("username", f.username)
	u.FirstName = str("first-name", f.first)
	u.LastName = str("last-name", f.last)
	u.Phone = str("phone", f.phone)
	u.IsAdmin = bl("admin", f.admin)
	u.IsModerator = bl("moderator", f.moderator)
	u.IsActive = bl("active", f.active)
	u.IsVerified = bl("verified", f.verified)
	u.IsBanned = bl("banned", f.banned)
	if set["perms"] {
		p, err := permSet(f.perms)
		if err != nil {
			return u, err
		}
		u.Permissions = &p
	}
	if u == (adminapi.UserUpdate{}) {
		return u, errors.New("user update: nothing to change")
	}
	if err := validate.Struct(u); err != nil {
		return u, errors.New(adminapi.Message(err, "Invalid user"))
	}
	return u, nil
}

func create(ctx context.Context, common cmdutil.Common, stdout io.Writer, f accountFlags, yes bool) error {
	u := adminapi.UserCreate{
		Email:       strings.TrimSpace(*f.email),
		Username:    strings.TrimSpace(*f.username),
		FirstName:   strings.TrimSpace(*f.first),
		LastName:    strings.TrimSpace(*f.last),
		Phone:       strings.TrimSpace(*f.phone),
		IsAdmin:     *f.admin,
		IsModerator: *f.moderator,
	}
	if len(f.perms) > 0 {
		if !u.IsModerator || u.IsAdmin {
			return errors.New("-perms only applies to moderators")
		}
		p, err := permSet(f.perms)
		if err != nil {
			return err
		}
		u.Permissions = &p
	}
	env, err := cmdutil.Open(ctx, common, cmdutil.OpenOptions{})
	if err != nil {
		return err
	}
	defer env.Close()

	if u.Password, err = promptPassword("Password for "+u.Username, true); err != nil {
		return err
	}
	if err := validate.Struct(u); err != nil {
		return errors.New(adminapi.Message(err, "Invalid user"))
	}
	return env.RunAction(ctx, stdout, cmdutil.Action{
		Name: actions.CreateUser, Label: u.Username, Yes: yes,
		Run: func(ctx context.Context) error {
			_, err := env.Client.CreateUser(ctx, u)
			return err
		},
	})
}

func printUser(w io.Writer, u adminapi.User) error {
	pairs := [][2]string{
		{"ID", fmt.Sprint(u.ID)},
		{"Username", u.Username},
		{"Email", u.Email},
		{"Name", strings.TrimSpace(u.FirstName + " " + u.LastName)},
		{"Phone", u.Phone},
		{"Role", u.Role()},
		{"Status", u.Status()},
		{"Verified", cmdutil.YesNo(u.IsVerified)},
		{"Listings", fmt.Sprint(u.ListingCount)},
		{"Joined", cmdutil.When(u.CreatedAt)},
		{"Last login", cmdutil.When(u.LastLogin)},
	}
	if u.IsModerator && !u.IsAdmin && u.Permissions != nil {
		var names []string
		for _, c := range u.Permissions.Enabled() {
			names = append(names, c.Label())
		}
		pairs = append(pairs, [2]string{"Permissions", strings.Join(names, ", ")})
	}
	return cmdutil.Fields(w, pairs...)
}
