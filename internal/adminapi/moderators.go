package adminapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"dtadmin/internal/permissions"
)

func moderatorPermissionsPath(id int64) string {
	return fmt.Sprintf("/moderators/%d/permissions", id)
}

// ModeratorPermissions reads a moderator's capability set.
func (c *Client) ModeratorPermissions(ctx context.Context, id int64) (permissions.Set, error) {
	if err := checkID(id); err != nil {
		return permissions.Set{}, err
	}
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, moderatorPermissionsPath(id), RequestOptions{}, &raw); err != nil {
		return permissions.Set{}, err
	}
	var p permissions.Set
	if err := json.Unmarshal(unwrap(raw, "permissions"), &p); err != nil {
		return permissions.Set{}, err
	}
	return p, nil
}

// UpdateModeratorPermissions saves p after enforcing the read/manage
// dependency. The server stays the authority; the set it returns wins.
func (c *Client) UpdateModeratorPermissions(ctx context.Context, id int64, p permissions.Set) (permissions.Set, error) {
	if err := checkID(id); err != nil {
		return permissions.Set{}, err
	}
	p = p.Normalize()
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodPut, moderatorPermissionsPath(id), RequestOptions{Body: p}, &raw); err != nil {
		return permissions.Set{}, err
	}
	body := unwrap(raw, "permissions")
	var f fields
	if json.Unmarshal(body, &f) != nil || !hasAnyCapability(f) {
		return p, nil
	}
	var saved permissions.Set
	if err := json.Unmarshal(body, &saved); err != nil {
		return p, nil
	}
	return saved, nil
}

func hasAnyCapability(f fields) bool {
	for _, c := range permissions.All {
		if _, ok := f[string(c)]; ok {
			return true
		}
	}
	return false
}
