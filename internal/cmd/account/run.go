// Package account implements the session subcommands: login, logout,
// whoami and password-reset.
package account

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"dtadmin/internal/adminapi"
	"dtadmin/internal/cmd/cmdutil"
	"dtadmin/internal/permissions"
	"dtadmin/internal/session"
	isetup "dtadmin/internal/setup"
)

// Prompts are swapped out by tests.
var (
	promptLine     = isetup.PromptLine
	promptPassword = isetup.PromptPassword
)

// RunLogin signs in and stores the session.
func RunLogin(args []string) error {
	ctx, cancel := cmdutil.Context()
	defer cancel()
	return login(ctx, args, os.Stdout)
}

func login(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	var common cmdutil.Common
	common.Register(fs)
	email := fs.String("email", "", "account email (prompted when empty)")
	passEnv := fs.Bool("password-env", false, "read the password from DTADMIN_PASSWORD")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := cmdutil.Open(ctx, common, cmdutil.OpenOptions{})
	if err != nil {
		return err
	}
	defer env.Close()

	cr := adminapi.Credentials{Email: strings.TrimSpace(*email)}
	if cr.Email == "" {
		if cr.Email, err = promptLine("Email"); err != nil {
			return err
		}
	}
	if *passEnv {
		cr.Password = os.Getenv("DTADMIN_PASSWORD")
		if cr.Password == "" {
			return errors.New("DTADMIN_PASSWORD is empty")
		}
	} else if cr.Password, err = promptPassword("Password", false); err != nil {
		return err
	}

	s, err := env.Client.Login(ctx, cr)
	if err != nil {
		env.Log.Debug("login failed", "err", err)
		return errors.New(adminapi.LoginMessage(err))
	}
	_, err = fmt.Fprintf(stdout, "Signed in as %s (%s)\n", s.User.Username, s.User.Role())
	return err
}

// RunLogout ends the session. Local tokens are cleared even when the
// backend cannot be reached.
func RunLogout(args []string) error {
	ctx, cancel := cmdutil.Context()
	defer cancel()
	return logout(ctx, args, os.Stdout)
}

func logout(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	var common cmdutil.Common
	common.Register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := cmdutil.Open(ctx, common, cmdutil.OpenOptions{})
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.Client.Logout(ctx); err != nil {
		env.Log.Warn("logout request failed; local session cleared", "err", err)
	}
	_, err = fmt.Fprintln(stdout, "Signed out")
	return err
}

// RunWhoami prints the stored identity and its capabilities.
func RunWhoami(args []string) error {
	ctx, cancel := cmdutil.Context()
	defer cancel()
	return whoami(ctx, args, os.Stdout)
}

func whoami(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	var common cmdutil.Common
	common.Register(fs)
	remote := fs.Bool("remote", false, "ask the backend instead of the stored session")
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := cmdutil.Open(ctx, common, cmdutil.OpenOptions{})
	if err != nil {
		return err
	}
	defer env.Close()

	s, err := env.Client.Session(ctx)
	if err != nil {
		return err
	}
	if !s.Authenticated() {
		return errors.New("not signed in; run dtadmin login")
	}
	u, perms := s.User, s.Permissions
	if *remote {
		me, err := env.Client.Me(ctx)
		if err != nil {
			return errors.New(adminapi.Message(err, "Failed to load identity"))
		}
		u = &me.User
		if me.Permissions != nil {
			perms = me.Permissions
		}
	}
	if u == nil {
		return errors.New("stored session has no user; run dtadmin login")
	}

	expires := "unknown"
	if exp, ok := session.TokenExpiry(s.AccessToken); ok {
		expires = cmdutil.When(exp)
		if time.Now().After(exp) {
			expires += " (expired)"
		}
	}
	pairs := [][2]string{
		{"User", fmt.Sprintf("%s (#%d)", u.Username, u.ID)},
		{"Email", u.Email},
		{"Role", u.Role()},
		{"Server", env.Client.Addr()},
		{"Token expires", expires},
	}
	if !u.IsAdmin {
		pairs = append(pairs, [2]string{"Permissions", capabilityList(perms)})
	}
	return cmdutil.Fields(stdout, pairs...)
}

func capabilityList(p *permissions.Set) string {
	if p == nil {
		return "none"
	}
	var names []string
	for _, c := range p.Enabled() {
		names = append(names, c.Label())
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

// RunPasswordReset handles "password-reset request" and "password-reset verify".
func RunPasswordReset(args []string) error {
	ctx, cancel := cmdutil.Context()
	defer cancel()
	return passwordReset(ctx, args, os.Stdout)
}

func passwordReset(ctx context.Context, args []string, stdout io.Writer) error {
	verb, rest, err := cmdutil.Sub("password-reset", args, "request", "verify")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("password-reset "+verb, flag.ContinueOnError)
	var common cmdutil.Common
	common.Register(fs)
	email := fs.String("email", "", "account email")
	code := fs.String("code", "", "reset code from the email (verify)")
	current := fs.Bool("current", false, "change the signed-in account's password using the current one (verify)")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	env, err := cmdutil.Open(ctx, common, cmdutil.OpenOptions{})
	if err != nil {
		return err
	}
	defer env.Close()

	if verb == "request" {
		if err := env.Client.RequestPasswordReset(ctx, *email); err != nil {
			return errors.New(adminapi.Message(err, "Failed to request a reset"))
		}
		_, err = fmt.Fprintln(stdout, "If the account exists, a reset code has been sent")
		return err
	}

	r := adminapi.PasswordReset{Email: strings.TrimSpace(*email), Token: strings.TrimSpace(*code)}
	if *current {
		if r.CurrentPassword, err = promptPassword("Current password", false); err != nil {
			return err
		}
	}
	if r.NewPassword, err = promptPassword("New password", true); err != nil {
		return err
	}
	if err := env.Client.VerifyPasswordReset(ctx, r); err != nil {
		return errors.New(adminapi.Message(err, "Failed to reset password"))
	}
	_, err = fmt.Fprintln(stdout, "Password updated")
	return err
}
