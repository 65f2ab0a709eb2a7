// Package resetsession implements the "dtadmin reset-session" CLI subcommand.
// It drops the stored tokens directly from the local token store.
package resetsession

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"dtadmin/internal/config"
	isetup "dtadmin/internal/setup"
)

// Options captures CLI flags for the session reset.
type Options struct {
	ConfigPath string
}

// Run parses reset-session flags and clears the local session.
// The reset is local-only and does not require the backend to be reachable.
func Run(args []string) error {
	return run(context.Background(), args, os.Stdout)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("reset-session", flag.ContinueOnError)
	var opt Options
	fs.StringVar(&opt.ConfigPath, "config", config.DefaultPath(), "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := isetup.ResetSession(ctx, isetup.ResetSessionOptions{ConfigPath: opt.ConfigPath})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "Cleared the %s session store\n", c.Store.Kind)
	return err
}
