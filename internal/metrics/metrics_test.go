package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRequestMetrics(t *testing.T) {
	_, m := NewRegistry()

	m.ObserveRequest("GET", 200, 120*time.Millisecond)
	m.ObserveRequest("GET", 204, 10*time.Millisecond)
	m.ObserveRequest("POST", 401, 5*time.Millisecond)
	m.ObserveRequest("POST", 0, time.Second)
	m.ObserveError("UnauthorizedError")

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("GET", "2xx")); got != 2 {
		t.Errorf("Requests GET/2xx = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("POST", "4xx")); got != 1 {
		t.Errorf("Requests POST/4xx = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("POST", "none")); got != 1 {
		t.Errorf("Requests POST/none = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RequestErrors.WithLabelValues("UnauthorizedError")); got != 1 {
		t.Errorf("RequestErrors = %v, want 1", got)
	}
}

func TestRefreshMetrics(t *testing.T) {
	_, m := NewRegistry()

	m.ObserveRefresh(true)
	m.ObserveSharedRefresh()
	m.ObserveSharedRefresh()
	m.ObserveRetry(false)

	if got := testutil.ToFloat64(m.Refreshes.WithLabelValues("true")); got != 1 {
		t.Errorf("Refreshes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RefreshWaiters); got != 2 {
		t.Errorf("RefreshWaiters = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RetriedCalls.WithLabelValues("false")); got != 1 {
		t.Errorf("RetriedCalls = %v, want 1", got)
	}
}

func TestAuthAndCommandMetrics(t *testing.T) {
	_, m := NewRegistry()

	m.ObserveAuthEvent("login", true)
	m.ObserveAuthEvent("login", false)
	m.ObserveCommand("auth login", true, 2*time.Second)

	if got := testutil.ToFloat64(m.AuthEvents.WithLabelValues("login", "false")); got != 1 {
		t.Errorf("AuthEvents login/false = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CommandExecutions.WithLabelValues("auth login", "true")); got != 1 {
		t.Errorf("CommandExecutions = %v, want 1", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", 200, time.Millisecond)
	m.ObserveError("NetworkError")
	m.ObserveRefresh(true)
	m.ObserveSharedRefresh()
	m.ObserveRetry(true)
	m.ObserveAuthEvent("logout", true)
	m.ObserveCommand("health", true, time.Millisecond)
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{0: "none", 200: "2xx", 302: "3xx", 404: "4xx", 503: "5xx", 700: "none"}
	for status, want := range tests {
		if got := StatusClass(status); got != want {
			t.Errorf("StatusClass(%d) = %q, want %q", status, got, want)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	reg, m := NewRegistry()
	m.ObserveRequest("GET", 200, time.Millisecond)

	path := filepath.Join(t.TempDir(), "losctl.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "losctl_http_requests_total") {
		t.Errorf("textfile missing request counter:\n%s", data)
	}

	if err := WriteTextfile("", reg); err != nil {
		t.Errorf("empty path should be a no-op, got %v", err)
	}
}
