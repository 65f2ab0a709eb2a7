package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"dtadmin/internal/permissions"
	"dtadmin/internal/session"
	"dtadmin/internal/validate"
)

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	User         json.RawMessage  `json:"user"`
	Permissions  *permissions.Set `json:"permissions"`
}

// Login authenticates an admin or moderator and persists the session.
// Accounts without either role get ErrAccessDenied and nothing is stored.
func (c *Client) Login(ctx context.Context, cr Credentials) (session.Session, error) {
	cr.Email = strings.TrimSpace(cr.Email)
	if err := validate.Struct(cr); err != nil {
		return session.Session{}, err
	}

	var lr loginResponse
	cl := &call{method: http.MethodPost, path: PathLogin, opt: RequestOptions{Body: cr}, anonymous: true}
	if err := c.do(ctx, cl, &lr); err != nil {
		return session.Session{}, err
	}
	if lr.AccessToken == "" {
		return session.Session{}, errors.New("login response has no access_token")
	}

	var me Me
	if len(lr.User) > 0 && string(lr.User) != "null" {
		if err := json.Unmarshal(lr.User, &me); err != nil {
			return session.Session{}, err
		}
	} else {
		// Older backends only return tokens.
		if err := c.do(ctx, &call{method: http.MethodGet, path: PathMe, token: lr.AccessToken}, &me); err != nil {
			return session.Session{}, err
		}
	}
	if !me.User.CanAdminister() {
		c.lg.Info("login refused", "user", me.User.Email, "reason", "role")
		return session.Session{}, ErrAccessDenied
	}

	perms := lr.Permissions
	if perms == nil {
		perms = me.Permissions
	}
	switch {
	case me.User.IsAdmin:
		full := permissions.Full()
		perms = &full
	case perms != nil:
		n := perms.Normalize()
		perms = &n
	default:
		perms = &permissions.Set{}
	}

	u := me.User
	vals, err := session.Values(lr.AccessToken, lr.RefreshToken, &u, perms)
	if err != nil {
		return session.Session{}, err
	}
	if err := c.store.Set(ctx, vals); err != nil {
		return session.Session{}, err
	}
	c.lg.Info("signed in", "user", u.Email, "role", u.Role())
	return session.Session{AccessToken: lr.AccessToken, RefreshToken: lr.RefreshToken, User: &u, Permissions: perms}, nil
}

// Logout invalidates the server session. The local session is cleared and
// the sign-out hook runs however the server call ends. 401 and 403 mean the
// token was already invalid and are not errors.
func (c *Client) Logout(ctx context.Context) (err error) {
	defer func() {
		if cerr := c.store.Clear(context.WithoutCancel(ctx)); cerr != nil {
			c.lg.Error("clear session", "err", cerr)
			if err == nil {
				err = cerr
			}
		}
		c.signOut(ReasonLogout)
	}()

	err = c.do(ctx, &call{method: http.MethodPost, path: PathLogout}, nil)
	switch StatusOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		c.lg.Debug("logout with invalid token", "status", StatusOf(err))
		return nil
	}
	return err
}

// RequestPasswordReset asks the backend to email a reset code.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validate.Email(email); err != nil {
		return validate.FieldErrors{"email": err.Error()}
	}
	body := map[string]string{"email": email}
	return c.do(ctx, &call{method: http.MethodPost, path: PathResetRequest, opt: RequestOptions{Body: body}, anonymous: true}, nil)
}

// PasswordReset completes a reset. CurrentPassword is set by a signed-in
// admin resetting their own password; the bearer token is attached then.
type PasswordReset struct {
	Email           string `json:"email,omitempty" validate:"omitempty,email"`
	Token           string `json:"token,omitempty"`
	CurrentPassword string `json:"current_password,omitempty"`
	NewPassword     string `json:"new_password" validate:"required,password"`
}

func (c *Client) VerifyPasswordReset(ctx context.Context, r PasswordReset) error {
	if r.Token == "" && r.CurrentPassword == "" {
		return validate.FieldErrors{"token": "reset code or current password is required"}
	}
	if err := validate.Struct(r); err != nil {
		return err
	}
	cl := &call{method: http.MethodPost, path: PathResetVerify, opt: RequestOptions{Body: r}, anonymous: r.CurrentPassword == ""}
	return c.do(ctx, cl, nil)
}

// Me resolves the identity of the stored access token.
func (c *Client) Me(ctx context.Context) (Me, error) {
	var me Me
	err := c.Do(ctx, http.MethodGet, PathMe, RequestOptions{}, &me)
	return me, err
}
