// Package metrics exposes Prometheus instrumentation for the mission
// backend: the HTTP surface, the per-session runners and the tutoring
// upstream.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satops_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "satops_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "satops_active_sessions",
			Help: "Number of session runners currently live.",
		},
	)

	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satops_commands_total",
			Help: "Commands processed, by name and outcome.",
		},
		[]string{"name", "status"},
	)

	telemetryFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satops_telemetry_frames_total",
			Help: "Telemetry frames emitted across all sessions.",
		},
	)

	sessionsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satops_sessions_finished_total",
			Help: "Sessions that reached a terminal state, by status and cause.",
		},
		[]string{"status", "cause"},
	)

	tutorRequestSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "satops_tutor_request_seconds",
			Help:    "Latency of tutoring requests, fallback included.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		activeSessions,
		commandsTotal,
		telemetryFramesTotal,
		sessionsFinishedTotal,
		tutorRequestSeconds,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and duration for each request. Routed
// paths use the route template so path cardinality stays bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(path, c.Request.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// SetActiveSessions updates the live-runner gauge. Wire it to the manager's
// count callback.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

// ObserveCommand counts one processed command.
func ObserveCommand(name, status string) {
	commandsTotal.WithLabelValues(name, status).Inc()
}

// ObserveTelemetryFrame counts one emitted frame.
func ObserveTelemetryFrame() {
	telemetryFramesTotal.Inc()
}

// ObserveSessionFinished counts one terminal transition.
func ObserveSessionFinished(status, cause string) {
	if cause == "" {
		cause = "none"
	}
	sessionsFinishedTotal.WithLabelValues(status, cause).Inc()
}

// ObserveTutorRequest records one tutoring round trip.
func ObserveTutorRequest(d time.Duration) {
	tutorRequestSeconds.Observe(d.Seconds())
}
