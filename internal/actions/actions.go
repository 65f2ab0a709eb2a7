// Package actions runs state-changing admin operations behind a
// confirmation step, one in-flight indicator per action and entity.
package actions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dtadmin/internal/adminapi"
	"dtadmin/internal/permissions"
	"dtadmin/internal/session"
)

// Name identifies an action kind.
type Name string

const (
	DeleteProduct   Name = "delete-product"
	UpdateProduct   Name = "update-product"
	ApplySpotlight  Name = "spotlight"
	RemoveSpotlight Name = "remove-spotlight"
	CreateUser      Name = "create-user"
	UpdateUser      Name = "update-user"
	DeleteUser      Name = "delete-user"
	SuspendUser     Name = "suspend"
	UnsuspendUser   Name = "unsuspend"
	ResetPassword   Name = "reset-password"
	ApproveReport   Name = "approve"
	RejectReport    Name = "reject"
	ReviewReport    Name = "review"
	SavePermissions Name = "save-permissions"
)

// Key is the in-flight key "{action}-{id}".
func Key(action Name, id int64) string {
	return fmt.Sprintf("%s-%d", action, id)
}

// Spec describes how an action is confirmed and reported.
type Spec struct {
	Name Name
	// Prompt is a format string taking the entity label.
	Prompt  string
	Success string
	// Failure is shown when the server gives no message.
	Failure string
	// Confirm is false for actions submitted from a form.
	Confirm bool
	// CloseOnError closes the dialog on failure too.
	CloseOnError bool
	// Requires is the capability a moderator needs. Admins need none.
	Requires permissions.Capability
}

var catalog = map[Name]Spec{
	DeleteProduct: {
		Name: DeleteProduct, Prompt: "Delete listing %q? This cannot be undone.",
		Success: "Listing deleted", Failure: "Failed to delete listing",
		Confirm: true, CloseOnError: true, Requires: permissions.ManageListings,
	},
	UpdateProduct: {
		Name: UpdateProduct, Success: "Listing updated", Failure: "Failed to update listing",
		Requires: permissions.ManageListings,
	},
	ApplySpotlight: {
		Name: ApplySpotlight, Success: "Spotlight applied", Failure: "Failed to apply spotlight",
		Requires: permissions.Spotlight,
	},
	RemoveSpotlight: {
		Name: RemoveSpotlight, Prompt: "Remove the spotlight from %q?",
		Success: "Spotlight removed", Failure: "Failed to remove spotlight",
		Confirm: true, Requires: permissions.RemoveSpotlight,
	},
	CreateUser: {
		Name: CreateUser, Success: "User created", Failure: "Failed to create user",
		Requires: permissions.ManageUsers,
	},
	UpdateUser: {
		Name: UpdateUser, Success: "User updated", Failure: "Failed to update user",
		Requires: permissions.ManageUsers,
	},
	DeleteUser: {
		Name: DeleteUser, Prompt: "Delete user %q? Their listings are removed too.",
		Success: "User deleted", Failure: "Failed to delete user",
		Confirm: true, CloseOnError: true, Requires: permissions.ManageUsers,
	},
	SuspendUser: {
		Name: SuspendUser, Prompt: "Suspend %q? They will not be able to sign in.",
		Success: "User suspended", Failure: "Failed to suspend user",
		Confirm: true, Requires: permissions.ManageUsers,
	},
	UnsuspendUser: {
		Name: UnsuspendUser, Prompt: "Reactivate %q?",
		Success: "User reactivated", Failure: "Failed to reactivate user",
		Confirm: true, Requires: permissions.ManageUsers,
	},
	ResetPassword: {
		Name: ResetPassword, Prompt: "Send a password reset email to %q?",
		Success: "Password reset email sent", Failure: "Failed to reset password",
		Confirm: true, CloseOnError: true, Requires: permissions.ManageUsers,
	},
	ApproveReport: {
		Name: ApproveReport, Prompt: "Approve the report on %q? The listing will be taken down.",
		Success: "Report approved", Failure: "Failed to approve report",
		Confirm: true, Requires: permissions.ManageFlaggedContent,
	},
	RejectReport: {
		Name: RejectReport, Prompt: "Reject the report on %q? The listing stays up.",
		Success: "Report rejected", Failure: "Failed to reject report",
		Confirm: true, Requires: permissions.ManageFlaggedContent,
	},
	ReviewReport: {
		Name: ReviewReport, Prompt: "Mark the report on %q as under review?",
		Success: "Report marked as under review", Failure: "Failed to update report",
		Confirm: true, Requires: permissions.ManageFlaggedContent,
	},
	SavePermissions: {
		Name: SavePermissions, Prompt: "Save permissions for %q?",
		Success: "Permissions saved", Failure: "Failed to save permissions",
		Confirm: true, Requires: permissions.ManageUsers,
	},
}

// Allowed reports whether sess may run s.
func (s Spec) Allowed(sess session.Session) bool {
	return s.Requires == "" || sess.Can(s.Requires)
}

// Lookup returns the catalog entry for n.
func Lookup(n Name) (Spec, bool) {
	s, ok := catalog[n]
	return s, ok
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(n Name) Spec {
	s, ok := catalog[n]
	if !ok {
		panic("actions: unknown action " + string(n))
	}
	return s
}

// Tracker holds the set of in-flight action keys.
type Tracker struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{inflight: map[string]struct{}{}}
}

// Begin claims the key for action and id. ok is false when the same key is
// already running; done releases the key and is safe to call twice.
func (t *Tracker) Begin(action Name, id int64) (done func(), ok bool) {
	key := Key(action, id)
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.inflight[key]; busy {
		return func() {}, false
	}
	t.inflight[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.inflight, key)
			t.mu.Unlock()
		})
	}, true
}

// Busy reports whether the key for action and id is in flight.
func (t *Tracker) Busy(action Name, id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inflight[Key(action, id)]
	return ok
}

// InFlight lists the running keys in sorted order.
func (t *Tracker) InFlight() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.inflight))
	for k := range t.inflight {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Confirm is a pending confirmation dialog.
type Confirm struct {
	Spec  Spec
	ID    int64
	Label string
	// Err is the last failure, shown inside a dialog that stays open.
	Err string
}

func NewConfirm(s Spec, id int64, label string) *Confirm {
	return &Confirm{Spec: s, ID: id, Label: label}
}

// Prompt renders the question for the dialog.
func (c *Confirm) Prompt() string {
	if c.Spec.Prompt == "" {
		return fmt.Sprintf("Proceed with %s on %q?", c.Spec.Name, c.Label)
	}
	return fmt.Sprintf(c.Spec.Prompt, c.Label)
}

// Level is a toast severity.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

// Toast is a transient status message.
type Toast struct {
	Level Level
	Text  string
}

// Outcome tells the caller what to do after an action finished.
type Outcome struct {
	Key         string
	Err         error
	Toast       Toast
	CloseDialog bool
	// Refetch asks the owning list to reload; entities are never patched locally.
	Refetch bool
	// Skipped means the same key was already in flight and fn did not run.
	Skipped bool
}

// Run executes fn under the tracker key for s and id.
func Run(ctx context.Context, t *Tracker, s Spec, id int64, fn func(context.Context) error) Outcome {
	key := Key(s.Name, id)
	done, ok := t.Begin(s.Name, id)
	if !ok {
		return Outcome{Key: key, Skipped: true, Toast: Toast{Level: LevelInfo, Text: "Already in progress"}}
	}
	defer done()

	if err := fn(ctx); err != nil {
		return Outcome{
			Key:         key,
			Err:         err,
			Toast:       Toast{Level: LevelError, Text: adminapi.Message(err, s.Failure)},
			CloseDialog: s.CloseOnError,
		}
	}
	return Outcome{
		Key:         key,
		Toast:       Toast{Level: LevelSuccess, Text: s.Success},
		CloseDialog: true,
		Refetch:     true,
	}
}
