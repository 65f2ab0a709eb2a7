package adminapi

import (
	"context"

	"dtadmin/internal/listquery"
)

const pathLogs = "/admin/logs"

// FacetAction names the facet holding the distinct log actions.
const FacetAction = "action"

// ListLogs fetches one page of the audit trail. Filters: action,
// start_date, end_date. The page's Facets[FacetAction] lists every action
// the backend knows, for the filter picker.
func (c *Client) ListLogs(ctx context.Context, q listquery.Query) (listquery.Result[LogEntry], error) {
	return listPage[LogEntry](ctx, c, pathLogs, resLogs, q)
}
