// Package adminapi is the console's only way to reach the marketplace
// backend. It attaches the bearer token to each request and refreshes an
// expired token once per failing request. When the session cannot be
// recovered it clears the token store and signs the console out.
package adminapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"dtadmin/internal/session"
	"dtadmin/internal/version"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
)

// Auth endpoints. A 401 from any of these never triggers a refresh.
const (
	PathLogin         = "/auth/login"
	PathRefresh       = "/auth/refresh"
	PathLogout        = "/auth/logout"
	PathResetRequest  = "/auth/password-reset/request"
	PathResetVerify   = "/auth/password-reset/verify"
	PathMe            = "/users/me"
	HeaderRequestID   = "X-Request-ID"
	maxResponseBytes  = 8 << 20
	defaultClientTime = 20 * time.Second
)

var refreshExempt = map[string]bool{
	PathRefresh:     true,
	PathLogout:      true,
	PathLogin:       true,
	PathResetVerify: true,
}

// SignOutReason tells the sign-out hook why the session ended.
type SignOutReason int

const (
	ReasonLogout SignOutReason = iota + 1
	ReasonExpired
)

func (r SignOutReason) String() string {
	switch r {
	case ReasonLogout:
		return "logout"
	case ReasonExpired:
		return "expired"
	default:
		return "unknown"
	}
}

type ClientOptions struct {
	Addr      string
	Insecure  bool
	Timeout   time.Duration
	UserAgent string

	Store   session.TokenStore
	Logger  *slog.Logger
	Metrics *Metrics

	// OnSignOut runs after the token store was cleared.
	OnSignOut func(SignOutReason)

	// Transport replaces the default HTTP transport.
	Transport http.RoundTripper
}

type Client struct {
	baseURL   *url.URL
	hc        *http.Client
	refreshHC *http.Client
	store     session.TokenStore
	lg        *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	userAgent string

	mu        sync.Mutex
	onSignOut func(SignOutReason)

	refreshes singleflight.Group
}

func NewClient(opt ClientOptions) (*Client, error) {
	if opt.Addr == "" {
		return nil, errors.New("api address is required")
	}
	if opt.Store == nil {
		return nil, errors.New("token store is required")
	}
	addr := opt.Addr
	if !strings.Contains(addr, "://") {
		addr = "https://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, errors.New("invalid api address")
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""

	lg := opt.Logger
	if lg == nil {
		lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	base := opt.Transport
	if base == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if strings.EqualFold(u.Scheme, "https") {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: opt.Insecure} //nolint:gosec
		}
		base = t
	}
	rt := &loggingTransport{next: base, lg: lg, metrics: opt.Metrics}

	timeout := opt.Timeout
	if timeout == 0 {
		timeout = defaultClientTime
	}
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	ua := opt.UserAgent
	if ua == "" {
		ua = "dtadmin/" + version.Version
	}

	return &Client{
		baseURL:   u,
		hc:        &http.Client{Transport: rt, Jar: jar, Timeout: timeout},
		refreshHC: &http.Client{Transport: rt, Timeout: timeout},
		store:     opt.Store,
		lg:        lg,
		metrics:   opt.Metrics,
		tracer:    otel.Tracer("dtadmin/adminapi"),
		userAgent: ua,
		onSignOut: opt.OnSignOut,
	}, nil
}

// Addr returns the scheme and host the client talks to.
func (c *Client) Addr() string {
	return c.baseURL.Scheme + "://" + c.baseURL.Host
}

// Store exposes the token store for read-only callers such as whoami.
func (c *Client) Store() session.TokenStore {
	return c.store
}

// SetSignOutHandler replaces the sign-out hook.
func (c *Client) SetSignOutHandler(fn func(SignOutReason)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSignOut = fn
}

// Session returns the current session snapshot.
func (c *Client) Session(ctx context.Context) (session.Session, error) {
	return session.Load(ctx, c.store)
}

// RequestOptions carries query parameters and a JSON body.
type RequestOptions struct {
	Params url.Values
	Body   any
}

// call is one logical request. retried is the single-retry guard.
type call struct {
	method string
	path   string
	opt    RequestOptions

	retried bool
	// token overrides the stored access token.
	token string
	// anonymous suppresses the Authorization header.
	anonymous bool
}

type response struct {
	status    int
	body      []byte
	requestID string
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// Do sends a request and decodes a JSON response into out (which may be nil).
// A 401 triggers at most one token refresh and one retry.
func (c *Client) Do(ctx context.Context, method, path string, opt RequestOptions, out any) error {
	return c.do(ctx, &call{method: method, path: path, opt: opt}, out)
}

func (c *Client) do(ctx context.Context, cl *call, out any) error {
	r, err := c.send(ctx, c.hc, cl)
	if err != nil {
		return err
	}
	if r.status == http.StatusUnauthorized && c.refreshable(cl) {
		apiErr := newAPIError(cl.method, cl.path, r)
		if cl.retried {
			c.lg.Warn("request rejected after token refresh", "path", cl.path, "request_id", r.requestID)
			c.expire(ctx)
			return apiErr
		}
		cl.retried = true
		if rerr := c.refresh(ctx); rerr != nil {
			c.lg.Info("token refresh failed", "path", cl.path, "err", rerr)
			c.expire(ctx)
			return apiErr
		}
		return c.do(ctx, cl, out)
	}
	if !r.ok() {
		return newAPIError(cl.method, cl.path, r)
	}
	return decode(r.body, out)
}

func (c *Client) refreshable(cl *call) bool {
	return !refreshExempt[cl.path] && cl.token == "" && !cl.anonymous
}

func decode(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if rm, ok := out.(*json.RawMessage); ok {
		*rm = append((*rm)[:0], body...)
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (c *Client) send(ctx context.Context, hc *http.Client, cl *call) (*response, error) {
	reqID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, cl.method+" "+routeOf(cl.path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", cl.method),
			attribute.String("url.path", cl.path),
			attribute.String("dtadmin.request_id", reqID),
			attribute.Bool("dtadmin.retry", cl.retried),
		))
	defer span.End()

	var buf io.Reader
	if cl.opt.Body != nil {
		b, err := json.Marshal(cl.opt.Body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, c.endpoint(cl.path, cl.opt.Params), buf)
	if err != nil {
		return nil, err
	}
	if cl.opt.Body != nil {
		req.Header.Set("content-type", "application/json")
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("user-agent", c.userAgent)
	req.Header.Set(HeaderRequestID, reqID)

	if !cl.anonymous {
		token := cl.token
		if token == "" {
			token, err = c.store.Get(ctx, session.KeyAccessToken)
			if err != nil {
				return nil, err
			}
		}
		if token != "" {
			req.Header.Set("authorization", "Bearer "+token)
		}
	}

	resp, err := hc.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, &TransportError{Method: cl.method, Path: cl.path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.RecordError(err)
		return nil, &TransportError{Method: cl.method, Path: cl.path, Err: err}
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, resp.Status)
	}
	return &response{status: resp.StatusCode, body: body, requestID: reqID}, nil
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// refresh exchanges the stored refresh token for a new access token and
// persists it. Concurrent callers holding the same refresh token share one
// backend call.
func (c *Client) refresh(ctx context.Context) error {
	rt, err := c.store.Get(ctx, session.KeyRefreshToken)
	if err != nil {
		return err
	}
	if rt == "" {
		c.metrics.refreshed("missing_token")
		return ErrNoRefreshToken
	}
	_, err, _ = c.refreshes.Do(rt, func() (any, error) {
		cl := &call{
			method:    http.MethodPost,
			path:      PathRefresh,
			opt:       RequestOptions{Body: map[string]string{"refresh_token": rt}},
			anonymous: true,
		}
		r, err := c.send(context.WithoutCancel(ctx), c.refreshHC, cl)
		if err != nil {
			return nil, err
		}
		if !r.ok() {
			return nil, newAPIError(cl.method, cl.path, r)
		}
		var out refreshResponse
		if err := json.Unmarshal(r.body, &out); err != nil {
			return nil, err
		}
		if out.AccessToken == "" {
			return nil, errors.New("refresh response has no access_token")
		}
		vals := map[session.Key]string{session.KeyAccessToken: out.AccessToken}
		if out.RefreshToken != "" {
			vals[session.KeyRefreshToken] = out.RefreshToken
		}
		return nil, c.store.Set(context.WithoutCancel(ctx), vals)
	})
	if err != nil {
		c.metrics.refreshed("failure")
		return err
	}
	c.metrics.refreshed("success")
	return nil
}

// expire tears the session down after an unrecoverable 401.
func (c *Client) expire(ctx context.Context) {
	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.lg.Error("clear session", "err", err)
	}
	c.signOut(ReasonExpired)
}

func (c *Client) signOut(reason SignOutReason) {
	c.metrics.signedOut(reason)
	c.mu.Lock()
	fn := c.onSignOut
	c.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}
