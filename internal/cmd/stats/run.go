// Package stats implements "dtadmin stats", the dashboard counters.
package stats

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"dtadmin/internal/adminapi"
	"dtadmin/internal/cmd/cmdutil"
	"dtadmin/internal/permissions"
)

func Run(args []string) error {
	ctx, cancel := cmdutil.Context()
	defer cancel()
	return run(ctx, args, os.Stdout)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
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

	s, err := env.Client.Session(ctx)
	if err != nil {
		return err
	}
	if !s.Authenticated() {
		return errors.New("not signed in; run dtadmin login")
	}
	if !s.Can(permissions.SeeDashboard) {
		return errors.New("the dashboard is not enabled for your account")
	}
	o, err := env.Client.Overview(ctx)
	if err != nil {
		return errors.New(adminapi.Message(err, "Failed to load statistics"))
	}
	row := func(label string, c adminapi.Counter) []string {
		return []string{label, fmt.Sprint(c.Value), c.FormatChange()}
	}
	return cmdutil.Table(stdout, []string{"COUNTER", "VALUE", "CHANGE"}, [][]string{
		row("Users", o.TotalUsers),
		row("Listings", o.TotalProducts),
		row("Pending verifications", o.PendingVerifications),
		row("Flagged content", o.FlaggedContent),
	})
}
