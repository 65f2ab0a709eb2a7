package adminapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"dtadmin/internal/listquery"
)

const pathReports = "/admin/reports"

// ReportAction is a state transition on a flagged-content report.
type ReportAction string

const (
	ReportApprove ReportAction = "approve"
	ReportReject  ReportAction = "reject"
	ReportReview  ReportAction = "review"
)

// ListReports fetches one page of the flagged-content queue. Filters: status.
func (c *Client) ListReports(ctx context.Context, q listquery.Query) (listquery.Result[Report], error) {
	return listPage[Report](ctx, c, pathReports, resReports, q)
}

func (c *Client) ApproveReport(ctx context.Context, id int64, note string) error {
	return c.reportAction(ctx, id, ReportApprove, note)
}

func (c *Client) RejectReport(ctx context.Context, id int64, note string) error {
	return c.reportAction(ctx, id, ReportReject, note)
}

func (c *Client) ReviewReport(ctx context.Context, id int64, note string) error {
	return c.reportAction(ctx, id, ReportReview, note)
}

func (c *Client) reportAction(ctx context.Context, id int64, a ReportAction, note string) error {
	if err := checkID(id); err != nil {
		return err
	}
	var body any
	if note = strings.TrimSpace(note); note != "" {
		body = map[string]string{"admin_notes": note}
	}
	path := fmt.Sprintf("%s/%d/%s", pathReports, id, a)
	return c.Do(ctx, http.MethodPost, path, RequestOptions{Body: body}, nil)
}
