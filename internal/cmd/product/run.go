// Package product implements the listing subcommands: "product" for
// moderation edits and "spotlight" for promotional placement.
package product

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"dtadmin/internal/actions"
	"dtadmin/internal/adminapi"
	"dtadmin/internal/cmd/cmdutil"
)

// Run handles "product update <id>" and "product delete <id>".
func Run(args []string) error {
	ctx, cancel := cmdutil.Context()
	defer cancel()
	return run(ctx, args, os.Stdout)
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	verb, rest, err := cmdutil.Sub("product", args, "update", "delete")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("product "+verb, flag.ContinueOnError)
	var common cmdutil.Common
	common.Register(fs)
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	title := fs.String("title", "", "new title")
	desc := fs.String("description", "", "new description")
	price := fs.Float64("price", 0, "new price")
	cond := fs.String("condition", "", "new condition")
	active := fs.Bool("active", false, "set active")
	verified := fs.Bool("verified", false, "set verified")
	flagged := fs.Bool("flagged", false, "set flagged")
	sold := fs.Bool("sold", false, "set sold")
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
	label := fmt.Sprintf("#%d", id)

	if verb == "delete" {
		return env.RunAction(ctx, stdout, cmdutil.Action{
			Name: actions.DeleteProduct, ID: id, Label: label, Yes: *yes,
			Run: func(ctx context.Context) error { return env.Client.DeleteProduct(ctx, id) },
		})
	}

	set := cmdutil.Visited(fs)
	var u adminapi.ProductUpdate
	if set["title"] {
		u.Title = title
	}
	if set["description"] {
		u.Description = desc
	}
	if set["price"] {
		if *price < 0 {
			return errors.New("price must not be negative")
		}
		u.Price = price
	}
	if set["condition"] {
		u.Condition = cond
	}
	if set["active"] {
		u.IsActive = active
	}
	if set["verified"] {
		u.IsVerified = verified
	}
	if set["flagged"] {
		u.IsFlagged = flagged
	}
	if set["sold"] {
		u.IsSold = sold
	}
	if u == (adminapi.ProductUpdate{}) {
		return errors.New("product update: nothing to change")
	}
	return env.RunAction(ctx, stdout, cmdutil.Action{
		Name: actions.UpdateProduct, ID: id, Label: label, Yes: *yes,
		Run: func(ctx context.Context) error { return env.Client.UpdateProduct(ctx, id, u) },
	})
}

// RunSpotlight handles "spotlight apply|show|remove <id>".
func RunSpotlight(args []string) error {
	ctx, cancel := cmdutil.Context()
	defer cancel()
	return spotlight(ctx, args, os.Stdout)
}

func spotlight(ctx context.Context, args []string, stdout io.Writer) error {
	verb, rest, err := cmdutil.Sub("spotlight", args, "apply", "show", "remove")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("spotlight "+verb, flag.ContinueOnError)
	var common cmdutil.Common
	common.Register(fs)
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	hours := fs.Int("hours", 0, "spotlight duration in hours (apply)")
	until := fs.String("until", "", "spotlight end time as \""+cmdutil.Stamp+"\" local time (apply)")
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
	label := fmt.Sprintf("#%d", id)

	switch verb {
	case "show":
		st, err := env.Client.GetSpotlight(ctx, id)
		if err != nil {
			return errors.New(adminapi.Message(err, "Failed to load spotlight"))
		}
		return printSpotlight(stdout, st)
	case "remove":
		return env.RunAction(ctx, stdout, cmdutil.Action{
			Name: actions.RemoveSpotlight, ID: id, Label: label, Yes: *yes,
			Run: func(ctx context.Context) error { return env.Client.RemoveSpotlight(ctx, id) },
		})
	}

	req, err := spotlightRequest(*hours, *until, time.Now())
	if err != nil {
		return err
	}
	return env.RunAction(ctx, stdout, cmdutil.Action{
		Name: actions.ApplySpotlight, ID: id, Label: label, Yes: *yes,
		Run: func(ctx context.Context) error { return env.Client.ApplySpotlight(ctx, id, req) },
	})
}

func spotlightRequest(hours int, until string, now time.Time) (adminapi.SpotlightRequest, error) {
	r := adminapi.SpotlightRequest{DurationHours: hours}
	if until = strings.TrimSpace(until); until != "" {
		t, err := time.ParseInLocation(cmdutil.Stamp, until, time.Local)
		if err != nil {
			return r, fmt.Errorf("-until: use the format %q", cmdutil.Stamp)
		}
		r.CustomEndTime = &t
	}
	if err := r.Validate(now); err != nil {
		return r, errors.New(adminapi.Message(err, "Invalid spotlight"))
	}
	return r, nil
}

func printSpotlight(w io.Writer, st adminapi.SpotlightStatus) error {
	if !st.Spotlighted {
		_, err := fmt.Fprintln(w, "Not spotlighted")
		return err
	}
	if st.Spotlight == nil {
		_, err := fmt.Fprintln(w, "Spotlighted")
		return err
	}
	sp := st.Spotlight
	return cmdutil.Fields(w,
		[2]string{"Started", cmdutil.When(sp.StartTime)},
		[2]string{"Until", cmdutil.When(sp.EndTime)},
		[2]string{"Applied by", sp.AppliedBy},
		[2]string{"State", sp.Status},
	)
}
