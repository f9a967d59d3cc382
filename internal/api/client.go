// Package api is the HTTP client for the LOS REST backend.
//
// Every call goes through Client.Do, which attaches the bearer token, encodes
// JSON, classifies failures into errors.Kind values, and performs at most one
// refresh-and-retry when the backend answers 401.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/log"
	"github.com/felixgeelhaar/losctl/internal/metrics"
)

// Backend endpoints consumed by the auth flow.
const (
	PathLogin   = "/auth/login"
	PathLogout  = "/auth/logout"
	PathRefresh = "/auth/refresh"
	PathMe      = "/auth/me"
	PathHealth  = "/health"
)

const (
	headerRequestID = "X-Request-ID"
	maxBodyBytes    = 10 << 20
	refreshKey      = "refresh"
)

// TokenSource supplies the current bearer token. session.Store implements it.
type TokenSource interface {
	Token() string
}

// RefreshFunc obtains a new bearer token from the backend.
type RefreshFunc func(ctx context.Context) (string, error)

// Request describes one backend call.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers http.Header

	// SkipAuth suppresses the Authorization header.
	SkipAuth bool
	// NoRefresh disables the 401 refresh-and-retry for this call.
	NoRefresh bool
}

// Client is the LOS backend API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration

	logger  *log.Logger
	metrics *metrics.Metrics

	mu           sync.RWMutex
	tokens       TokenSource
	refresher    RefreshFunc
	onInvalidate func()

	refreshGroup singleflight.Group
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger used for request diagnostics
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l.WithComponent("api")
	}
}

// WithMetrics enables Prometheus instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTokenSource sets where bearer tokens come from
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a new API client
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		hc, err := newHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
		c.httpClient = hc
	}

	return c, nil
}

// BaseURL returns the configured backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenSource sets where bearer tokens come from
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// SetRefresher installs the function used to obtain a new token after a 401
func (c *Client) SetRefresher(fn RefreshFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresher = fn
}

// SetInvalidator installs the callback run when the session can no longer be
// recovered (refresh failed, or the retried request was rejected again).
func (c *Client) SetInvalidator(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInvalidate = fn
}

// Do performs req and decodes a 2xx JSON body into out (when out is non-nil).
//
// A 401 triggers one shared refresh and a single retry. When ctx ends while
// the refresh is in flight the transport error is returned and the session
// is left alone; the shared refresh still completes for other callers.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	err := c.do(ctx, req, c.tokenFor(req), out)
	if err == nil || !stderrors.Is(err, errors.KindUnauthorized) || !c.canRefresh(req) {
		return err
	}

	c.logger.DebugContext(ctx, "received 401, refreshing token", "path", req.Path)
	token, refreshErr := c.Refresh(ctx)
	if refreshErr != nil {
		if ctx.Err() != nil || errors.IsAborted(refreshErr) {
			return refreshErr
		}
		c.invalidate()
		if stderrors.Is(refreshErr, errors.KindUnauthorized) {
			return refreshErr
		}
		return errors.NewUnauthorizedError("session expired", refreshErr)
	}

	err = c.do(ctx, req, token, out)
	c.metrics.ObserveRetry(err == nil)
	if err != nil && stderrors.Is(err, errors.KindUnauthorized) {
		c.invalidate()
	}
	return err
}

// Refresh obtains a new token through the installed RefreshFunc.
// Concurrent callers share a single in-flight refresh. The shared call is not
// cancelled when one caller gives up; each caller stops waiting on its own ctx.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	c.mu.RLock()
	fn := c.refresher
	c.mu.RUnlock()
	if fn == nil {
		return "", errors.NewNoSessionError()
	}

	ch := c.refreshGroup.DoChan(refreshKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		token, err := fn(rctx)
		c.metrics.ObserveRefresh(err == nil)
		return token, err
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.ObserveSharedRefresh()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", classifyTransport(ctx, ctx.Err())
	}
}

// Get is shorthand for a GET request
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post is shorthand for a POST request with a JSON body
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put is shorthand for a PUT request with a JSON body
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Delete is shorthand for a DELETE request
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path}, nil)
}

func (c *Client) tokenFor(req *Request) string {
	if req.SkipAuth || isCredentialEndpoint(req.Path) {
		return ""
	}
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return ""
	}
	return ts.Token()
}

func (c *Client) canRefresh(req *Request) bool {
	if req.NoRefresh || isCredentialEndpoint(req.Path) || req.Path == PathLogout {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refresher != nil
}

func (c *Client) invalidate() {
	c.mu.RLock()
	fn := c.onInvalidate
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// isCredentialEndpoint reports whether path exchanges credentials itself and
// must never carry the bearer token.
func isCredentialEndpoint(path string) bool {
	return path == PathLogin || path == PathRefresh
}

func (c *Client) do(ctx context.Context, req *Request, token string, out any) error {
	httpReq, err := c.newRequest(ctx, req, token)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveRequest(req.Method, 0, time.Since(start))
		classified := classifyTransport(ctx, err)
		c.metrics.ObserveError(string(classified.Kind))
		c.logger.LogError(ctx, "request failed", classified)
		return classified
	}
	defer resp.Body.Close()

	c.metrics.ObserveRequest(req.Method, resp.StatusCode, time.Since(start))
	c.logger.DebugContext(ctx, "request completed",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"request_id", httpReq.Header.Get(headerRequestID),
		"duration", time.Since(start),
	)

	if err := parseResponse(resp, out); err != nil {
		var losErr *errors.LOSError
		if stderrors.As(err, &losErr) {
			c.metrics.ObserveError(string(losErr.Kind))
		}
		return err
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req *Request, token string) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(errors.KindValidation, errors.ErrCodeInvalidPayload, "failed to encode request body", err)
		}
		body = bytes.NewReader(data)
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, errors.ErrCodeConfig, "failed to create request", err)
	}

	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if method != http.MethodGet {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get(headerRequestID) == "" {
		httpReq.Header.Set(headerRequestID, uuid.NewString())
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	return httpReq, nil
}

// errorResponse is the JSON error body shape returned by the backend
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// parseResponse classifies non-2xx responses and decodes 2xx bodies into out
func parseResponse(resp *http.Response, out any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return errors.NewNetworkError(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		msg := ""
		if json.Unmarshal(data, &errResp) == nil {
			msg = errResp.Message
			if msg == "" {
				msg = errResp.Error
			}
		}
		return errors.FromStatus(resp.StatusCode, msg)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.NewBadResponseError(err)
	}
	return nil
}

// classifyTransport maps a failed round trip to Aborted, Timeout or Network.
func classifyTransport(ctx context.Context, err error) *errors.LOSError {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(ctx.Err(), context.Canceled) {
		return errors.NewAbortedError(err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTimeoutError(err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.NewTimeoutError(err)
	}
	return errors.NewNetworkError(err)
}
