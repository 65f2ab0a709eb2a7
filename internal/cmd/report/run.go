// Package report implements "dtadmin report approve|reject|review <id>"
// for flagged content.
package report

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"dtadmin/internal/actions"
	"dtadmin/internal/cmd/cmdutil"
)

func Run(args []string) error {
	ctx, cancel := cmdutil.Context()
	defer cancel()
	return run(ctx, args, os.Stdout)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	verb, rest, err := cmdutil.Sub("report", args, "approve", "reject", "review")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("report "+verb, flag.ContinueOnError)
	var common cmdutil.Common
	common.Register(fs)
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	note := fs.String("note", "", "moderator note sent with the decision")
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
	do, name := c.ReviewReport, actions.ReviewReport
	switch verb {
	case "approve":
		do, name = c.ApproveReport, actions.ApproveReport
	case "reject":
		do, name = c.RejectReport, actions.RejectReport
	}
	text := strings.TrimSpace(*note)
	return env.RunAction(ctx, stdout, cmdutil.Action{
		Name: name, ID: id, Label: fmt.Sprintf("#%d", id), Yes: *yes,
		Run: func(ctx context.Context) error { return do(ctx, id, text) },
	})
}
