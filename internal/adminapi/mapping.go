package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dtadmin/internal/listquery"
)

// MappingVersion identifies the field alias tables below. Bump it when a
// backend rename is absorbed here.
const MappingVersion = 1

type resource string

const (
	resProducts         resource = "products"
	resUsers            resource = "users"
	resReports          resource = "reports"
	resLogs             resource = "logs"
	resSpotlightHistory resource = "spotlight_history"
)

// listKeys lists, per resource, the wire keys that may hold the page's
// items, in priority order.
var listKeys = map[resource][]string{
	resProducts:         {"products", "items", "results", "data"},
	resUsers:            {"users", "items", "results", "data"},
	resReports:          {"reports", "flagged_products", "items", "results", "data"},
	resLogs:             {"logs", "items", "results", "data"},
	resSpotlightHistory: {"history", "spotlights", "items", "results", "data"},
}

// Pagination totals, in priority order.
var (
	totalKeys      = []string{"total", "total_count", "count"}
	totalPagesKeys = []string{"total_pages", "pages", "page_count"}
	pageSizeKeys   = []string{"page_size", "per_page", "limit"}
)

// facetKeys maps a facet name to the wire keys carrying its vocabulary.
var facetKeys = map[resource]map[string][]string{
	resLogs: {"action": {"available_actions", "actions"}},
}

// Per-entity field aliases, in priority order.
var (
	aliasLogActor     = []string{"admin", "admin_name", "user", "actor", "username"}
	aliasLogActorRole = []string{"actor_role", "role", "admin_role"}
	aliasLogTarget    = []string{"target", "target_name", "object", "resource"}
	aliasLogTime      = []string{"timestamp", "created_at", "time"}
	aliasLogDetails   = []string{"details", "description", "message"}

	aliasProductOwner   = []string{"owner_username", "owner", "seller_username", "seller", "user"}
	aliasProductOwnerID = []string{"owner_id", "seller_id", "user_id", "owner", "seller"}
	aliasProductImages  = []string{"images", "image_urls", "photos"}

	aliasReportID       = []string{"latest_report_id", "report_id", "id"}
	aliasReportReason   = []string{"latest_reason", "latest_report_reason", "reason"}
	aliasReportStatus   = []string{"latest_status", "latest_report_status", "status"}
	aliasReportAt       = []string{"latest_reported_at", "latest_report_at", "reported_at", "created_at"}
	aliasReportCount    = []string{"report_count", "reports_count", "total_reports", "count"}
	aliasReportProduct  = []string{"product_id", "listing_id"}
	aliasReportTitle    = []string{"product_title", "title", "listing_title"}
	aliasReportReporter = []string{"reporter_username", "reported_by", "reporter"}

	aliasUserID       = []string{"id", "user_id"}
	aliasUserListings = []string{"listing_count", "listings_count", "products_count", "product_count"}

	aliasHistoryProduct   = []string{"product_id", "listing_id"}
	aliasHistoryTitle     = []string{"product_title", "title"}
	aliasHistoryApplied   = []string{"applied_by_username", "applied_by", "admin"}
	aliasHistoryRemovedBy = []string{"removed_by_username", "removed_by"}
)

// decodePage maps a list response onto a listquery.Result. It never fails:
// unknown shapes degrade to an empty page and the problem is returned for
// logging.
func decodePage[T any](body []byte, r resource, pageSize int) (listquery.Result[T], error) {
	res := listquery.Result[T]{Items: []T{}, TotalPages: 1, PageSize: pageSize}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return res, nil
	}

	var raw fields
	if err := json.Unmarshal(body, &raw); err != nil {
		// Some endpoints return a bare array.
		var arr []json.RawMessage
		if json.Unmarshal(body, &arr) != nil {
			return res, fmt.Errorf("%s: unrecognised payload: %w", r, err)
		}
		items, bad := decodeItems[T](arr)
		res.Items, res.Total = items, len(items)
		return res, skipped(r, bad)
	}

	var bad int
	if v, ok := raw.pick(listKeys[r]...); ok {
		var arr []json.RawMessage
		if json.Unmarshal(v, &arr) == nil {
			res.Items, bad = decodeItems[T](arr)
		}
	}
	res.Total = len(res.Items)
	if n, ok := raw.int(totalKeys...); ok && n >= 0 {
		res.Total = int(n)
	}
	if n, ok := raw.int(totalPagesKeys...); ok && n > 0 {
		res.TotalPages = int(n)
	}
	if n, ok := raw.int(pageSizeKeys...); ok && n > 0 {
		res.PageSize = int(n)
	}
	for name, keys := range facetKeys[r] {
		if vals := raw.strings(keys...); len(vals) > 0 {
			if res.Facets == nil {
				res.Facets = map[string][]string{}
			}
			res.Facets[name] = vals
		}
	}
	return res, skipped(r, bad)
}

func decodeItems[T any](arr []json.RawMessage) ([]T, int) {
	items := make([]T, 0, len(arr))
	bad := 0
	for _, a := range arr {
		var it T
		if err := json.Unmarshal(a, &it); err != nil {
			bad++
			continue
		}
		items = append(items, it)
	}
	return items, bad
}

func skipped(r resource, n int) error {
	if n == 0 {
		return nil
	}
	return fmt.Errorf("%s: skipped %d malformed item(s)", r, n)
}

// fields is a decoded JSON object with alias-aware accessors.
type fields map[string]json.RawMessage

func (f fields) pick(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := f[k]
		if ok && len(v) > 0 && !bytes.Equal(v, []byte("null")) {
			return v, true
		}
	}
	return nil, false
}

// str returns the first alias that holds a string or a scalar. Objects
// contribute their username, name or email.
func (f fields) str(keys ...string) string {
	for _, k := range keys {
		v, ok := f.pick(k)
		if !ok {
			continue
		}
		if s, ok := scalarString(v); ok {
			return s
		}
		var obj fields
		if json.Unmarshal(v, &obj) == nil {
			if s := obj.str("username", "name", "email"); s != "" {
				return s
			}
		}
	}
	return ""
}

func (f fields) int(keys ...string) (int64, bool) {
	for _, k := range keys {
		v, ok := f.pick(k)
		if !ok {
			continue
		}
		if n, ok := scalarInt(v); ok {
			return n, true
		}
		var obj fields
		if json.Unmarshal(v, &obj) == nil {
			if n, ok := obj.int("id"); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func (f fields) bool(keys ...string) bool {
	for _, k := range keys {
		v, ok := f.pick(k)
		if !ok {
			continue
		}
		var b bool
		if json.Unmarshal(v, &b) == nil {
			return b
		}
		if s, ok := scalarString(v); ok {
			if b, err := strconv.ParseBool(s); err == nil {
				return b
			}
		}
	}
	return false
}

func (f fields) float(keys ...string) float64 {
	for _, k := range keys {
		v, ok := f.pick(k)
		if !ok {
			continue
		}
		var n float64
		if json.Unmarshal(v, &n) == nil {
			return n
		}
		if s, ok := scalarString(v); ok {
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

func (f fields) time(keys ...string) time.Time {
	for _, k := range keys {
		v, ok := f.pick(k)
		if !ok {
			continue
		}
		if s, ok := scalarString(v); ok {
			if t, ok := parseTime(s); ok {
				return t
			}
		}
	}
	return time.Time{}
}

func (f fields) strings(keys ...string) []string {
	for _, k := range keys {
		v, ok := f.pick(k)
		if !ok {
			continue
		}
		var out []string
		if json.Unmarshal(v, &out) == nil {
			return out
		}
		// Arrays of objects, e.g. images: [{"url": "..."}].
		var objs []fields
		if json.Unmarshal(v, &objs) == nil {
			for _, o := range objs {
				if s := o.str("url", "image_url", "name", "value"); s != "" {
					out = append(out, s)
				}
			}
			return out
		}
	}
	return nil
}

func scalarString(v json.RawMessage) (string, bool) {
	var s string
	if json.Unmarshal(v, &s) == nil {
		return strings.TrimSpace(s), true
	}
	var n json.Number
	if json.Unmarshal(v, &n) == nil {
		return n.String(), true
	}
	return "", false
}

func scalarInt(v json.RawMessage) (int64, bool) {
	var n json.Number
	if json.Unmarshal(v, &n) != nil {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	if f, err := n.Float64(); err == nil {
		return int64(f), true
	}
	return 0, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime accepts RFC 3339, naive ISO timestamps (taken as UTC) and unix seconds.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

// listPage fetches one page of r and maps it. A payload that cannot be
// mapped is logged and yields an empty page rather than an error.
func listPage[T any](ctx context.Context, c *Client, path string, r resource, q listquery.Query) (listquery.Result[T], error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, path, RequestOptions{Params: q.Values()}, &raw); err != nil {
		return listquery.Result[T]{}, err
	}
	res, err := decodePage[T](raw, r, q.PageSize)
	if err != nil {
		c.lg.Warn("list response", "path", path, "mapping_version", MappingVersion, "err", err)
	}
	return res, nil
}

// unwrap returns body[key] when body is an object wrapping another object
// under key, e.g. {"user": {...}}. Otherwise body is returned as is.
func unwrap(body json.RawMessage, key string) json.RawMessage {
	var f fields
	if json.Unmarshal(body, &f) != nil {
		return body
	}
	if v, ok := f.pick(key); ok && bytes.HasPrefix(bytes.TrimSpace(v), []byte("{")) {
		return v
	}
	return body
}
