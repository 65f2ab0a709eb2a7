// Package permissions models the moderator capability set and the
// read/manage cascade the console applies while editing it.
//
// The server is the authority on permissions. The cascade here only keeps
// the editor from offering combinations the backend would reject.
package permissions

import (
	"errors"
	"fmt"
)

// Capability names one of the ten moderator flags. Values match the
// backend's JSON field names.
type Capability string

const (
	SeeDashboard         Capability = "can_see_dashboard"
	SeeUsers             Capability = "can_see_users"
	ManageUsers          Capability = "can_manage_users"
	SeeListings          Capability = "can_see_listings"
	ManageListings       Capability = "can_manage_listings"
	SeeSpotlightHistory  Capability = "can_see_spotlight_history"
	Spotlight            Capability = "can_spotlight"
	RemoveSpotlight      Capability = "can_remove_spotlight"
	SeeFlaggedContent    Capability = "can_see_flagged_content"
	ManageFlaggedContent Capability = "can_manage_flagged_content"
)

// All lists capabilities in editor display order.
var All = []Capability{
	SeeDashboard,
	SeeUsers,
	ManageUsers,
	SeeListings,
	ManageListings,
	SeeSpotlightHistory,
	Spotlight,
	RemoveSpotlight,
	SeeFlaggedContent,
	ManageFlaggedContent,
}

// requires maps a dependent capability to the read capability gating it.
var requires = map[Capability]Capability{
	ManageUsers:          SeeUsers,
	ManageListings:       SeeListings,
	Spotlight:            SeeListings,
	RemoveSpotlight:      SeeListings,
	ManageFlaggedContent: SeeFlaggedContent,
}

var labels = map[Capability]string{
	SeeDashboard:         "See dashboard",
	SeeUsers:             "See users",
	ManageUsers:          "Manage users",
	SeeListings:          "See listings",
	ManageListings:       "Manage listings",
	SeeSpotlightHistory:  "See spotlight history",
	Spotlight:            "Apply spotlight",
	RemoveSpotlight:      "Remove spotlight",
	SeeFlaggedContent:    "See flagged content",
	ManageFlaggedContent: "Manage flagged content",
}

// Label returns a human readable name for c.
func (c Capability) Label() string {
	if l, ok := labels[c]; ok {
		return l
	}
	return string(c)
}

// Valid reports whether c is one of the known capabilities.
func (c Capability) Valid() bool {
	_, ok := labels[c]
	return ok
}

// Parse accepts either the wire name ("can_see_users") or the short form ("see_users").
func Parse(s string) (Capability, error) {
	c := Capability(s)
	if c.Valid() {
		return c, nil
	}
	c = Capability("can_" + s)
	if c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

// Requires returns the read capability that must be enabled before c can be.
func Requires(c Capability) (Capability, bool) {
	r, ok := requires[c]
	return r, ok
}

// Dependents returns the capabilities gated by c, in display order.
func Dependents(c Capability) []Capability {
	var out []Capability
	for _, d := range All {
		if requires[d] == c {
			out = append(out, d)
		}
	}
	return out
}

// Set is the moderator permission set as exchanged with
// GET/PUT /moderators/{id}/permissions.
type Set struct {
	CanSeeDashboard         bool `json:"can_see_dashboard"`
	CanSeeUsers             bool `json:"can_see_users"`
	CanManageUsers          bool `json:"can_manage_users"`
	CanSeeListings          bool `json:"can_see_listings"`
	CanManageListings       bool `json:"can_manage_listings"`
	CanSeeSpotlightHistory  bool `json:"can_see_spotlight_history"`
	CanSpotlight            bool `json:"can_spotlight"`
	CanRemoveSpotlight      bool `json:"can_remove_spotlight"`
	CanSeeFlaggedContent    bool `json:"can_see_flagged_content"`
	CanManageFlaggedContent bool `json:"can_manage_flagged_content"`
}

// Full returns a set with every capability enabled, which is how admins are treated.
func Full() Set {
	var s Set
	for _, c := range All {
		*s.field(c) = true
	}
	return s
}

func (s *Set) field(c Capability) *bool {
	switch c {
	case SeeDashboard:
		return &s.CanSeeDashboard
	case SeeUsers:
		return &s.CanSeeUsers
	case ManageUsers:
		return &s.CanManageUsers
	case SeeListings:
		return &s.CanSeeListings
	case ManageListings:
		return &s.CanManageListings
	case SeeSpotlightHistory:
		return &s.CanSeeSpotlightHistory
	case Spotlight:
		return &s.CanSpotlight
	case RemoveSpotlight:
		return &s.CanRemoveSpotlight
	case SeeFlaggedContent:
		return &s.CanSeeFlaggedContent
	case ManageFlaggedContent:
		return &s.CanManageFlaggedContent
	default:
		return nil
	}
}

// Has reports whether c is enabled. Unknown capabilities are never enabled.
func (s Set) Has(c Capability) bool {
	p := s.field(c)
	return p != nil && *p
}

// ErrRequiresRead is returned by Enable when the gating read capability is off.
var ErrRequiresRead = errors.New("read capability must be enabled first")

// With returns a copy of s with c set to v and the cascade applied.
// Enabling a dependent whose read capability is off leaves it disabled.
// Disabling a read capability clears its dependents; enabling it again
// does not restore them.
func (s Set) With(c Capability, v bool) Set {
	out, _ := s.set(c, v)
	return out
}

// Enable is like With(c, true) but reports a refused enable.
func (s Set) Enable(c Capability) (Set, error) {
	return s.set(c, true)
}

func (s Set) set(c Capability, v bool) (Set, error) {
	p := s.field(c)
	if p == nil {
		return s, fmt.Errorf("unknown capability %q", c)
	}
	if v {
		if r, ok := requires[c]; ok && !s.Has(r) {
			return s, fmt.Errorf("%s: %w (%s)", c, ErrRequiresRead, r)
		}
		*p = true
		return s, nil
	}
	*p = false
	for _, d := range Dependents(c) {
		*s.field(d) = false
	}
	return s, nil
}

// Normalize clears any dependent whose read capability is off.
func (s Set) Normalize() Set {
	for d, r := range requires {
		if !s.Has(r) {
			*s.field(d) = false
		}
	}
	return s
}

// Enabled lists the enabled capabilities in display order.
func (s Set) Enabled() []Capability {
	var out []Capability
	for _, c := range All {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}
