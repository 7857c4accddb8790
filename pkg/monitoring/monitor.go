package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// DomainEvents counts state machine transitions, e.g. friend_request_sent.
	DomainEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_domain_events_total",
			Help: "Relationship and challenge transitions",
		},
		[]string{"event"},
	)

	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_notifications_total",
			Help: "Push notifications handed to the push driver",
		},
		[]string{"driver", "kind", "result"},
	)

	StorageOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_storage_operations_total",
			Help: "Object storage calls",
		},
		[]string{"op", "result"},
	)

	ReminderRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "challenge_reminder_runs_total",
			Help: "Ending-soon reminder job executions",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			DomainEvents,
			NotificationsSent,
			StorageOperations,
			ReminderRuns,
		)
	})
}

// Event bumps the domain event counter.
func Event(name string) {
	DomainEvents.WithLabelValues(name).Inc()
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
