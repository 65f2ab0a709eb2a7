package user

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"dtadmin/internal/actions"
	"dtadmin/internal/adminapi"
	"dtadmin/internal/cmd/cmdutil"
	"dtadmin/internal/permissions"
)

// RunPermissions handles "permissions show <id>" and "permissions set <id>".
func RunPermissions(args []string) error {
	ctx, cancel := cmdutil.Context()
	defer cancel()
	return perms(ctx, args, os.Stdout)
}

func perms(ctx context.Context, args []string, stdout io.Writer) error {
	verb, rest, err := cmdutil.Sub("permissions", args, "show", "set")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("permissions "+verb, flag.ContinueOnError)
	var common cmdutil.Common
	common.Register(fs)
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	var grant, revoke, only cmdutil.List
	fs.Var(&grant, "grant", "capabilities to enable, comma separated")
	fs.Var(&revoke, "revoke", "capabilities to disable, comma separated")
	fs.Var(&only, "only", "replace the whole set with these capabilities")
	if err := fs.Parse(rest); err != nil {
		return err
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

	u, err := c.GetUser(ctx, id)
	if err != nil {
		return errors.New(adminapi.Message(err, "Failed to load user"))
	}
	if !u.IsModerator || u.IsAdmin {
		return fmt.Errorf("%s is not a moderator; only moderators have editable permissions", u.Username)
	}
	cur, err := c.ModeratorPermissions(ctx, id)
	if err != nil {
		return errors.New(adminapi.Message(err, "Failed to load permissions"))
	}

	if verb == "show" {
		return printPerms(stdout, cur)
	}

	var next permissions.Set
	switch {
	case len(only) > 0 && (len(grant) > 0 || len(revoke) > 0):
		return errors.New("permissions set: -only cannot be combined with -grant or -revoke")
	case len(only) > 0:
		if next, err = permSet(only); err != nil {
			return err
		}
	case len(grant) > 0 || len(revoke) > 0:
		if next, err = applyChanges(cur, grant, revoke); err != nil {
			return err
		}
	default:
		return errors.New("permissions set: give -grant, -revoke or -only")
	}
	if next == cur {
		_, err := fmt.Fprintln(stdout, "No changes")
		return err
	}
	err = env.RunAction(ctx, stdout, cmdutil.Action{
		Name: actions.SavePermissions, ID: id, Label: u.Username, Yes: *yes,
		Run: func(ctx context.Context) error {
			saved, err := c.UpdateModeratorPermissions(ctx, id, next)
			next = saved
			return err
		},
	})
	if err != nil {
		return err
	}
	return printPerms(stdout, next)
}

// applyChanges revokes first, then grants read capabilities ahead of the
// capabilities they gate.
func applyChanges(cur permissions.Set, grant, revoke []string) (permissions.Set, error) {
	s := cur
	for _, n := range revoke {
		c, err := permissions.Parse(n)
		if err != nil {
			return cur, err
		}
		s = s.With(c, false)
	}
	var later []permissions.Capability
	for _, n := range grant {
		c, err := permissions.Parse(n)
		if err != nil {
			return cur, err
		}
		if _, ok := permissions.Requires(c); ok {
			later = append(later, c)
			continue
		}
		s = s.With(c, true)
	}
	for _, c := range later {
		next, err := s.Enable(c)
		if err != nil {
			r, _ := permissions.Requires(c)
			return cur, fmt.Errorf("%s needs %s", c.Label(), r.Label())
		}
		s = next
	}
	return s, nil
}

func printPerms(w io.Writer, s permissions.Set) error {
	rows := make([][]string, 0, len(permissions.All))
	for _, c := range permissions.All {
		name := string(c)
		if _, ok := permissions.Requires(c); ok {
			name = "  " + name
		}
		rows = append(rows, []string{name, c.Label(), cmdutil.YesNo(s.Has(c))})
	}
	return cmdutil.Table(w, []string{"CAPABILITY", "DESCRIPTION", "ENABLED"}, rows)
}
