// Package session holds the console's credentials: the access/refresh
// token pair, the signed-in user and the cached permission set.
//
// The API gateway is the only writer. Everything else reads through it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"dtadmin/internal/permissions"
	"github.com/golang-jwt/jwt/v5"
)

// Key names a stored session value.
type Key string

const (
	KeyAccessToken  Key = "access_token"
	KeyRefreshToken Key = "refresh_token"
	KeyPermissions  Key = "permissions"
	KeyUser         Key = "user"
)

// Keys lists every key a store may hold.
var Keys = []Key{KeyAccessToken, KeyRefreshToken, KeyPermissions, KeyUser}

// TokenStore persists session values. Get returns "" for absent keys.
// Set writes all given keys in one step and removes keys given as "";
// Clear removes every key in one step.
type TokenStore interface {
	Get(ctx context.Context, key Key) (string, error)
	Set(ctx context.Context, values map[Key]string) error
	Clear(ctx context.Context) error
}

// User is the identity cached at login.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	IsAdmin     bool   `json:"is_admin"`
	IsModerator bool   `json:"is_moderator"`
}

// CanAdminister reports whether the user may use the console at all.
func (u User) CanAdminister() bool {
	return u.IsAdmin || u.IsModerator
}

// Role returns "admin", "moderator" or "user".
func (u User) Role() string {
	switch {
	case u.IsAdmin:
		return "admin"
	case u.IsModerator:
		return "moderator"
	default:
		return "user"
	}
}

// Session is a read-only snapshot of the store.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *User
	Permissions  *permissions.Set
}

// Authenticated reports whether an access token is present.
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

// Can reports whether the session grants c. Admins hold every capability.
func (s Session) Can(c permissions.Capability) bool {
	if s.User != nil && s.User.IsAdmin {
		return true
	}
	if s.Permissions == nil {
		return false
	}
	return s.Permissions.Has(c)
}

// Load reads a snapshot. Corrupt user or permission documents are ignored
// rather than failing the whole session.
func Load(ctx context.Context, store TokenStore) (Session, error) {
	var s Session
	var err error
	if s.AccessToken, err = store.Get(ctx, KeyAccessToken); err != nil {
		return Session{}, err
	}
	if s.RefreshToken, err = store.Get(ctx, KeyRefreshToken); err != nil {
		return Session{}, err
	}
	raw, err := store.Get(ctx, KeyUser)
	if err != nil {
		return Session{}, err
	}
	if raw != "" {
		var u User
		if json.Unmarshal([]byte(raw), &u) == nil {
			s.User = &u
		}
	}
	raw, err = store.Get(ctx, KeyPermissions)
	if err != nil {
		return Session{}, err
	}
	if raw != "" {
		var p permissions.Set
		if json.Unmarshal([]byte(raw), &p) == nil {
			s.Permissions = &p
		}
	}
	return s, nil
}

// Values encodes a fresh login into store values. Every key is present,
// absent parts as "", so one Set replaces the whole previous session.
func Values(access, refresh string, u *User, p *permissions.Set) (map[Key]string, error) {
	if access == "" {
		return nil, errors.New("access token is required")
	}
	v := map[Key]string{KeyAccessToken: access, KeyRefreshToken: refresh, KeyUser: "", KeyPermissions: ""}
	if u != nil {
		b, err := json.Marshal(u)
		if err != nil {
			return nil, err
		}
		v[KeyUser] = string(b)
	}
	if p != nil {
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		v[KeyPermissions] = string(b)
	}
	return v, nil
}

// TokenExpiry decodes the exp claim of a JWT access token without verifying
// its signature. ok is false for opaque or malformed tokens.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
