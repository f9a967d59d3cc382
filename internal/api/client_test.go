package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/losctl/internal/errors"
	"github.com/felixgeelhaar/losctl/internal/metrics"
)

type tokenHolder struct {
	mu    sync.Mutex
	token string
}

func (h *tokenHolder) Token() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token
}

func (h *tokenHolder) set(t string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = t
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: srv.URL, UserAgent: "losctl/test"}, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_ValidatesBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"valid https", "https://los.example.com/api", false},
		{"valid http", "http://localhost:8080", false},
		{"empty", "", true},
		{"no scheme", "los.example.com", true},
		{"unsupported scheme", "ftp://los.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(Config{BaseURL: tt.baseURL})
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultTimeout, c.timeout)
		})
	}
}

func TestDo_AttachesHeadersAndDecodes(t *testing.T) {
	var got *http.Request
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 7, "fullName": "Nguyen Van A"}`))
	}))
	defer srv.Close()

	tokens := &tokenHolder{token: "t1"}
	c := newTestClient(t, srv, WithTokenSource(tokens))

	var out struct {
		ID       int    `json:"id"`
		FullName string `json:"fullName"`
	}
	err := c.Post(context.Background(), "/customers", map[string]string{"fullName": "Nguyen Van A"}, &out)
	require.NoError(t, err)

	assert.Equal(t, 7, out.ID)
	assert.Equal(t, "Bearer t1", got.Header.Get("Authorization"))
	assert.Equal(t, "application/json", got.Header.Get("Accept"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "losctl/test", got.Header.Get("User-Agent"))
	assert.NotEmpty(t, got.Header.Get("X-Request-ID"))
	assert.Equal(t, "Nguyen Van A", gotBody["fullName"])
}

func TestDo_NoBearerOnCredentialEndpoints(t *testing.T) {
	var authHeaders []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithTokenSource(&tokenHolder{token: "t1"}))

	require.NoError(t, c.Post(context.Background(), PathLogin, map[string]string{}, nil))
	require.NoError(t, c.Post(context.Background(), PathRefresh, map[string]string{}, nil))
	require.NoError(t, c.Post(context.Background(), PathLogout, nil, nil))

	assert.Equal(t, []string{"", "", "Bearer t1"}, authHeaders)
}

func TestDo_ContentTypeOnWrites(t *testing.T) {
	var mu sync.Mutex
	contentTypes := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		contentTypes[r.Method] = r.Header.Get("Content-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx := context.Background()

	require.NoError(t, c.Get(ctx, "/customers", nil, nil))
	require.NoError(t, c.Post(ctx, PathLogout, nil, nil))
	require.NoError(t, c.Delete(ctx, "/customers/7"))

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, contentTypes[http.MethodGet])
	assert.Equal(t, "application/json", contentTypes[http.MethodPost], "bodyless POST")
	assert.Equal(t, "application/json", contentTypes[http.MethodDelete])
}

func TestDo_ClassifiesHTTPErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind errors.Kind
		wantMsg  string
	}{
		{"validation with message", 400, `{"message":"Amount must be positive"}`, errors.KindValidation, "Amount must be positive"},
		{"forbidden with error field", 403, `{"error":"Access denied"}`, errors.KindForbidden, "Access denied"},
		{"not found falls back to status text", 404, ``, errors.KindNotFound, "Not Found"},
		{"server error with html body", 502, `<html>bad gateway</html>`, errors.KindServer, "Bad Gateway"},
		{"conflict is a server error", 409, `{"message":"Duplicate"}`, errors.KindServer, "Duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := newTestClient(t, srv).Get(context.Background(), "/customers/1", nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.Equal(t, tt.wantMsg, errors.Message(err))
		})
	}
}

func TestDo_BadJSONIsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	var out map[string]any
	err := newTestClient(t, srv).Get(context.Background(), "/customers", nil, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.KindServer)
}

func TestDo_RefreshAndRetryOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tokens := &tokenHolder{token: "stale"}
	_, m := metrics.NewRegistry()
	c := newTestClient(t, srv, WithTokenSource(tokens), WithMetrics(m))

	var refreshes atomic.Int32
	c.SetRefresher(func(ctx context.Context) (string, error) {
		refreshes.Add(1)
		tokens.set("fresh")
		return "fresh", nil
	})
	invalidated := false
	c.SetInvalidator(func() { invalidated = true })

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.Get(context.Background(), "/customers", nil, &out)

	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, int32(2), calls.Load())
	assert.False(t, invalidated)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RetriedCalls.WithLabelValues("true")))
}

func TestDo_SecondUnauthorizedDoesNotLoop(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithTokenSource(&tokenHolder{token: "stale"}))

	var refreshes atomic.Int32
	c.SetRefresher(func(ctx context.Context) (string, error) {
		refreshes.Add(1)
		return "fresh", nil
	})
	var invalidations atomic.Int32
	c.SetInvalidator(func() { invalidations.Add(1) })

	err := c.Get(context.Background(), "/customers", nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.KindUnauthorized)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, int32(2), calls.Load(), "original request plus exactly one retry")
	assert.Equal(t, int32(1), invalidations.Load())
}

func TestDo_RefreshFailureInvalidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.SetRefresher(func(ctx context.Context) (string, error) {
		return "", errors.NewNetworkError(nil)
	})
	invalidated := false
	c.SetInvalidator(func() { invalidated = true })

	err := c.Get(context.Background(), "/customers", nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.KindUnauthorized)
	assert.True(t, invalidated)
}

func TestDo_CallerDeadlineDuringRefreshKeepsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithTokenSource(&tokenHolder{token: "stale"}))
	release := make(chan struct{})
	finished := make(chan struct{})
	c.SetRefresher(func(ctx context.Context) (string, error) {
		defer close(finished)
		<-release
		return "fresh", nil
	})
	var invalidations atomic.Int32
	c.SetInvalidator(func() { invalidations.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Get(ctx, "/customers", nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.KindTimeout)
	assert.NotErrorIs(t, err, errors.KindUnauthorized)

	close(release)
	<-finished
	assert.Zero(t, invalidations.Load())
}

func TestDo_NoRefreshForLoginOrOptOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	var refreshes atomic.Int32
	c.SetRefresher(func(ctx context.Context) (string, error) {
		refreshes.Add(1)
		return "fresh", nil
	})

	err := c.Post(context.Background(), PathLogin, map[string]string{"username": "admin"}, nil)
	assert.ErrorIs(t, err, errors.KindUnauthorized)
	assert.Equal(t, "Invalid credentials", errors.Message(err))

	err = c.Do(context.Background(), &Request{Method: http.MethodGet, Path: PathMe, NoRefresh: true}, nil)
	assert.ErrorIs(t, err, errors.KindUnauthorized)

	err = c.Post(context.Background(), PathLogout, nil, nil)
	assert.ErrorIs(t, err, errors.KindUnauthorized)

	assert.Equal(t, int32(0), refreshes.Load())
}

func TestRefresh_CollapsesConcurrentCalls(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, m := metrics.NewRegistry()
	c := newTestClient(t, srv, WithMetrics(m))

	release := make(chan struct{})
	var refreshes atomic.Int32
	c.SetRefresher(func(ctx context.Context) (string, error) {
		refreshes.Add(1)
		<-release
		return "fresh", nil
	})

	const callers = 5
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := c.Refresh(context.Background())
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), refreshes.Load())
	for _, tok := range results {
		assert.Equal(t, "fresh", tok)
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Refreshes.WithLabelValues("true")))
}

func TestRefresh_CallerCancellationDoesNotCancelSharedCall(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := newTestClient(t, srv)

	release := make(chan struct{})
	sharedCtxErr := make(chan error, 1)
	c.SetRefresher(func(ctx context.Context) (string, error) {
		<-release
		sharedCtxErr <- ctx.Err()
		return "fresh", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Refresh(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	patient := make(chan string, 1)
	go func() {
		tok, _ := c.Refresh(context.Background())
		patient <- tok
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, errors.KindAborted)

	close(release)
	assert.Equal(t, "fresh", <-patient)
	assert.NoError(t, <-sharedCtxErr)
}

func TestRefresh_WithoutRefresher(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestClient(t, srv).Refresh(context.Background())
	assert.ErrorIs(t, err, errors.KindUnauthorized)
}

func TestDo_TransportErrors(t *testing.T) {
	t.Run("aborted", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		err := newTestClient(t, srv).Get(ctx, "/customers", nil, nil)
		assert.ErrorIs(t, err, errors.KindAborted)
		assert.True(t, errors.IsAborted(err))
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()

		c, err := New(Config{BaseURL: srv.URL, Timeout: 30 * time.Millisecond})
		require.NoError(t, err)

		err = c.Get(context.Background(), "/customers", nil, nil)
		assert.ErrorIs(t, err, errors.KindTimeout)
	})

	t.Run("network", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c, err := New(Config{BaseURL: url})
		require.NoError(t, err)

		err = c.Get(context.Background(), "/customers", nil, nil)
		assert.ErrorIs(t, err, errors.KindNetwork)
	})
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathHealth, r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"UP","service":"los-backend","version":"1.4.0","timestamp":"2026-10-15T08:00:00Z","components":{"db":{"status":"UP"}}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithTokenSource(&tokenHolder{token: "t1"}))
	h, err := c.Health(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "UP", h.Status)
	assert.Equal(t, "los-backend", h.Service)
	assert.Contains(t, h.Components, "db")
}
