package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the LOS client
type Metrics struct {
	// HTTP request metrics
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	// Token refresh metrics
	Refreshes      *prometheus.CounterVec
	RefreshWaiters prometheus.Counter
	RetriedCalls   *prometheus.CounterVec

	// Session lifecycle metrics
	AuthEvents *prometheus.CounterVec

	// Command metrics
	CommandExecutions *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "losctl_http_requests_total",
				Help: "Total number of requests sent to the LOS backend",
			},
			[]string{"method", "status_class"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "losctl_http_request_duration_seconds",
				Help:    "LOS backend request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		RequestErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "losctl_http_request_errors_total",
				Help: "Total number of classified request failures",
			},
			[]string{"kind"},
		),

		Refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "losctl_token_refreshes_total",
				Help: "Token refresh calls actually sent to the backend",
			},
			[]string{"success"},
		),
		RefreshWaiters: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "losctl_token_refresh_shared_total",
				Help: "Refresh requests that joined an in-flight refresh instead of issuing their own",
			},
		),
		RetriedCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "losctl_http_retries_total",
				Help: "Requests retried after a 401 and token refresh",
			},
			[]string{"success"},
		),

		AuthEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "losctl_auth_events_total",
				Help: "Session lifecycle events",
			},
			[]string{"event", "success"},
		),

		CommandExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "losctl_command_executions_total",
				Help: "Total number of command executions",
			},
			[]string{"command", "success"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "losctl_command_duration_seconds",
				Help:    "Command execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
	}
}

// ObserveRequest records one completed HTTP exchange.
// status 0 means no response was received.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, StatusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveError records a classified failure.
func (m *Metrics) ObserveError(kind string) {
	if m == nil {
		return
	}
	m.RequestErrors.WithLabelValues(kind).Inc()
}

// ObserveRefresh records a refresh sent to the backend.
func (m *Metrics) ObserveRefresh(success bool) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// ObserveSharedRefresh records a caller that piggybacked on an in-flight refresh.
func (m *Metrics) ObserveSharedRefresh() {
	if m == nil {
		return
	}
	m.RefreshWaiters.Inc()
}

// ObserveRetry records the outcome of a post-refresh retry.
func (m *Metrics) ObserveRetry(success bool) {
	if m == nil {
		return
	}
	m.RetriedCalls.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// ObserveAuthEvent records login, logout, refresh or restore outcomes.
func (m *Metrics) ObserveAuthEvent(event string, success bool) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event, strconv.FormatBool(success)).Inc()
}

// ObserveCommand records a CLI command execution.
func (m *Metrics) ObserveCommand(command string, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CommandExecutions.WithLabelValues(command, strconv.FormatBool(success)).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// StatusClass buckets an HTTP status into 2xx/3xx/4xx/5xx, or "none".
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "none"
	}
	return strconv.Itoa(status/100) + "xx"
}
