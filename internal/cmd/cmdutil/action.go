package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"io"

	"dtadmin/internal/actions"
	isetup "dtadmin/internal/setup"
)

// ErrAborted is returned when a confirmation is declined.
var ErrAborted = errors.New("aborted")

// Action describes one mutating CLI call.
type Action struct {
	Name  actions.Name
	ID    int64
	Label string
	// Yes skips the confirmation prompt.
	Yes bool
	Run func(ctx context.Context) error
}

// Confirmer answers a confirmation question. Tests replace it.
var Confirmer = isetup.Confirm

// RunAction applies the action's permission gate and confirmation, runs
// it, and prints the outcome message to w. A failed action returns the
// message the console would show.
func (e *Env) RunAction(ctx context.Context, w io.Writer, a Action) error {
	spec := actions.MustLookup(a.Name)
	sess, err := e.Client.Session(ctx)
	if err != nil {
		return err
	}
	if !sess.Authenticated() {
		return errors.New("not signed in; run dtadmin login")
	}
	if !spec.Allowed(sess) {
		return fmt.Errorf("not permitted: requires %s", spec.Requires.Label())
	}
	if spec.Confirm && !a.Yes {
		ok, err := Confirmer(actions.NewConfirm(spec, a.ID, a.Label).Prompt())
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
	}
	out := actions.Run(ctx, actions.NewTracker(), spec, a.ID, a.Run)
	if out.Err != nil {
		e.Log.Debug("action failed", "action", a.Name, "id", a.ID, "err", out.Err)
		return errors.New(out.Toast.Text)
	}
	_, err = fmt.Fprintln(w, out.Toast.Text)
	return err
}
