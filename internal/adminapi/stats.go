package adminapi

import (
	"context"
	"net/http"
)

const pathOverview = "/admin/stats/overview"

// Overview fetches the dashboard counters.
func (c *Client) Overview(ctx context.Context) (Overview, error) {
	var o Overview
	err := c.Do(ctx, http.MethodGet, pathOverview, RequestOptions{}, &o)
	return o, err
}
