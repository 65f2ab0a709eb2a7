package adminapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// loggingTransport records every exchange with the backend, including
// token refreshes. Authorization headers are never logged.
type loggingTransport struct {
	next    http.RoundTripper
	lg      *slog.Logger
	metrics *Metrics
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	dur := time.Since(start)

	route := routeOf(req.URL.Path)
	attrs := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"request_id", req.Header.Get(HeaderRequestID),
		"duration_ms", dur.Milliseconds(),
	}
	if err != nil {
		t.metrics.observe(req.Method, route, "error", dur)
		t.lg.Log(req.Context(), slog.LevelWarn, "api request failed", append(attrs, "err", err)...)
		return nil, err
	}
	t.metrics.observe(req.Method, route, strconv.Itoa(resp.StatusCode), dur)
	t.lg.Log(req.Context(), levelForStatus(resp.StatusCode), "api request", append(attrs, "status", resp.StatusCode)...)
	return resp, nil
}

func levelForStatus(code int) slog.Level {
	if code >= 500 {
		return slog.LevelError
	}
	if code >= 400 {
		return slog.LevelWarn
	}
	return slog.LevelDebug
}

// routeOf replaces numeric path segments with ":id" to keep metric and
// span names low-cardinality.
func routeOf(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		if s == "" {
			continue
		}
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			segs[i] = ":id"
		}
	}
	return strings.Join(segs, "/")
}
