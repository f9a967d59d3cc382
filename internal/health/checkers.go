package health

import (
	"context"
	"strings"
	"time"

	"github.com/felixgeelhaar/losctl/internal/api"
	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/session"
	"github.com/felixgeelhaar/losctl/internal/storage"
)

// BackendProbe is satisfied by *api.Client.
type BackendProbe interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
	BaseURL() string
}

// BackendChecker calls the backend's /health endpoint.
type BackendChecker struct {
	client BackendProbe
}

func NewBackendChecker(client BackendProbe) *BackendChecker {
	return &BackendChecker{client: client}
}

func (c *BackendChecker) Name() string { return "los-backend" }

// Check maps the backend status: UP is healthy, DOWN is unhealthy, anything
// else (OUT_OF_SERVICE, DEGRADED, UNKNOWN) is degraded.
func (c *BackendChecker) Check(ctx context.Context) *Result {
	start := time.Now()
	resp, err := c.client.Health(ctx)
	latency := time.Since(start)

	if err != nil {
		return Unhealthy(errors.Message(err)).
			WithDetail("url", c.client.BaseURL()).
			WithDetail("error_kind", string(errors.KindOf(err))).
			WithLatency(latency)
	}

	var r *Result
	switch strings.ToUpper(resp.Status) {
	case "UP", "OK", "HEALTHY":
		r = Healthy("backend is up")
	case "DOWN", "UNHEALTHY":
		r = Unhealthy("backend reports " + resp.Status)
	default:
		r = Degraded("backend reports " + resp.Status)
	}

	r.WithDetail("url", c.client.BaseURL()).WithLatency(latency)
	if resp.Service != "" {
		r.WithDetail("service", resp.Service)
	}
	if resp.Version != "" {
		r.WithDetail("version", resp.Version)
	}
	if len(resp.Components) > 0 {
		r.WithDetail("components", resp.Components)
	}
	return r
}

// StorageChecker verifies the credential store is reachable. Stores that
// implement storage.Pinger are pinged; others get a read of the token key.
type StorageChecker struct {
	backend string
	store   storage.Store
}

func NewStorageChecker(backend string, store storage.Store) *StorageChecker {
	if backend == "" {
		backend = storage.BackendFile
	}
	return &StorageChecker{backend: backend, store: store}
}

func (c *StorageChecker) Name() string { return "credential-store" }

func (c *StorageChecker) Check(ctx context.Context) *Result {
	var err error
	if p, ok := c.store.(storage.Pinger); ok {
		err = p.Ping(ctx)
	} else {
		_, _, err = c.store.Get(ctx, storage.KeyToken)
	}
	if err != nil {
		return Unhealthy(errors.Message(err)).WithDetail("backend", c.backend)
	}
	return Healthy("credential store is readable").WithDetail("backend", c.backend)
}

// SessionSource is satisfied by *auth.Service.
type SessionSource interface {
	Snapshot() session.Snapshot
	TokenExpiry() (time.Time, bool)
}

// SessionChecker reports on the local session. Not being logged in, or a
// token about to expire, is degraded rather than unhealthy.
type SessionChecker struct {
	source SessionSource
	window time.Duration
	now    func() time.Time
}

// NewSessionChecker warns when the token expires within window.
func NewSessionChecker(source SessionSource, window time.Duration) *SessionChecker {
	return &SessionChecker{source: source, window: window, now: time.Now}
}

func (c *SessionChecker) Name() string { return "session" }

func (c *SessionChecker) Check(_ context.Context) *Result {
	snap := c.source.Snapshot()
	if !snap.IsAuthenticated {
		r := Degraded("not logged in")
		if snap.Error != "" {
			r.WithDetail("last_error", snap.Error)
		}
		return r
	}

	r := Healthy("logged in as " + snap.User.Username).WithDetail("username", snap.User.Username)
	exp, ok := c.source.TokenExpiry()
	if !ok {
		return r
	}
	r.WithDetail("expires_at", exp.UTC().Format(time.RFC3339))

	remaining := exp.Sub(c.now())
	switch {
	case remaining <= 0:
		r.Status = StatusDegraded
		r.Message = "access token has expired; it will be refreshed on the next call"
	case remaining < c.window:
		r.Status = StatusDegraded
		r.Message = "access token expires in " + remaining.Round(time.Second).String()
	}
	return r
}
