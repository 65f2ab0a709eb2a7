package adminapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"dtadmin/internal/listquery"
	"dtadmin/internal/validate"
)

const pathUsers = "/admin/users"

func userPath(id int64) string { return fmt.Sprintf("%s/%d", pathUsers, id) }

// ListUsers fetches one page of accounts. Filters: role, status.
func (c *Client) ListUsers(ctx context.Context, q listquery.Query) (listquery.Result[User], error) {
	return listPage[User](ctx, c, pathUsers, resUsers, q)
}

func (c *Client) GetUser(ctx context.Context, id int64) (User, error) {
	if err := checkID(id); err != nil {
		return User{}, err
	}
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, userPath(id), RequestOptions{}, &raw); err != nil {
		return User{}, err
	}
	var u User
	err := json.Unmarshal(unwrap(raw, "user"), &u)
	return u, err
}

// CreateUser validates u locally, then creates the account. Field errors
// from either side come back as validate.FieldErrors or APIError.Fields.
func (c *Client) CreateUser(ctx context.Context, u UserCreate) (User, error) {
	u.Email = strings.TrimSpace(u.Email)
	u.Username = strings.TrimSpace(u.Username)
	if err := validate.Struct(u); err != nil {
		return User{}, err
	}
	if u.Permissions != nil {
		p := u.Permissions.Normalize()
		u.Permissions = &p
	}
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodPost, pathUsers, RequestOptions{Body: u}, &raw); err != nil {
		return User{}, err
	}
	var out User
	if len(raw) == 0 {
		return out, nil
	}
	err := json.Unmarshal(unwrap(raw, "user"), &out)
	return out, err
}

func (c *Client) UpdateUser(ctx context.Context, id int64, u UserUpdate) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := validate.Struct(u); err != nil {
		return err
	}
	if u.Permissions != nil {
		p := u.Permissions.Normalize()
		u.Permissions = &p
	}
	return c.Do(ctx, http.MethodPut, userPath(id), RequestOptions{Body: u}, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	if err := checkID(id); err != nil {
		return err
	}
	return c.Do(ctx, http.MethodDelete, userPath(id), RequestOptions{}, nil)
}

// SuspendUser suspends an account. reason is optional.
func (c *Client) SuspendUser(ctx context.Context, id int64, reason string) error {
	var body any
	if reason = strings.TrimSpace(reason); reason != "" {
		body = map[string]string{"reason": reason}
	}
	return c.userAction(ctx, id, "suspend", body)
}

func (c *Client) UnsuspendUser(ctx context.Context, id int64) error {
	return c.userAction(ctx, id, "unsuspend", nil)
}

// ResetUserPassword asks the backend to send the user a reset email.
func (c *Client) ResetUserPassword(ctx context.Context, id int64) error {
	return c.userAction(ctx, id, "reset-password", nil)
}

func (c *Client) userAction(ctx context.Context, id int64, action string, body any) error {
	if err := checkID(id); err != nil {
		return err
	}
	return c.Do(ctx, http.MethodPost, userPath(id)+"/"+action, RequestOptions{Body: body}, nil)
}
