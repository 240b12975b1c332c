package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catering",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catering",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catering",
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Orders committed by checkout.",
		},
	)

	checkoutRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catering",
			Subsystem: "orders",
			Name:      "checkout_rejected_total",
			Help:      "Checkouts that did not produce an order, by error kind.",
		},
		[]string{"reason"},
	)

	statusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catering",
			Subsystem: "orders",
			Name:      "status_changes_total",
			Help:      "Order status updates, by target status.",
		},
		[]string{"status"},
	)

	ordersDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "catering",
			Subsystem: "orders",
			Name:      "deleted_total",
			Help:      "Orders removed by administrators.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		ordersCreated,
		checkoutRejected,
		statusChanges,
		ordersDeleted,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordOrderCreated() { ordersCreated.Inc() }

func RecordCheckoutRejected(reason string) { checkoutRejected.WithLabelValues(reason).Inc() }

func RecordStatusChange(status string) { statusChanges.WithLabelValues(status).Inc() }

func RecordOrderDeleted() { ordersDeleted.Inc() }
