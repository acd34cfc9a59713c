package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Confirmation outcomes.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeRace      = "race_lost"
	OutcomePending   = "pending"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civicpulse",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "civicpulse",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	paymentConfirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civicpulse",
			Subsystem: "payments",
			Name:      "confirmations_total",
			Help:      "Payment confirmations by outcome.",
		},
		[]string{"outcome"},
	)

	reconciliationGaps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civicpulse",
			Subsystem: "payments",
			Name:      "reconciliation_gaps_total",
			Help:      "Recorded payments whose side effect could not be applied.",
		},
		[]string{"payment_type"},
	)

	upvotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civicpulse",
			Subsystem: "issues",
			Name:      "upvotes_total",
			Help:      "Upvote attempts by whether they changed the issue.",
		},
		[]string{"applied"},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civicpulse",
			Subsystem: "issues",
			Name:      "status_transitions_total",
			Help:      "Issue status changes by target status.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		paymentConfirmations,
		reconciliationGaps,
		upvotes,
		statusTransitions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		if path == "/metrics" {
			return
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func RecordConfirmation(outcome string) {
	paymentConfirmations.WithLabelValues(outcome).Inc()
}

func RecordReconciliationGap(paymentType string) {
	reconciliationGaps.WithLabelValues(paymentType).Inc()
}

func RecordUpvote(applied bool) {
	upvotes.WithLabelValues(strconv.FormatBool(applied)).Inc()
}

func RecordTransition(status string) {
	statusTransitions.WithLabelValues(status).Inc()
}
