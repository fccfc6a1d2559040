package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_count_transitions_total",
			Help: "Stock count status transitions by outcome",
		},
		[]string{"from", "to", "outcome"},
	)

	ItemWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_count_item_writes_total",
			Help: "Item quantity tuples by channel and result",
		},
		[]string{"channel", "result"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_count_notifications_total",
			Help: "Public link notifications by result",
		},
		[]string{"result"},
	)

	CountsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stock_counts",
			Help: "Stock counts per status",
		},
		[]string{"status"},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HttpRequestsTotal,
		HttpRequestDuration,
		TransitionsTotal,
		ItemWritesTotal,
		NotificationsTotal,
		CountsByStatus,
	)
}

// Middleware records request counts and latency by route pattern, so public
// tokens never end up as label values.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		path := "undefined"
		if r := c.Route(); r != nil && r.Path != "" {
			path = r.Path
		}

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		HttpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		HttpRequestDuration.WithLabelValues(path).Observe(duration.Seconds())
		return err
	}
}
