package observability

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Aggregation metrics
	AggregationCyclesTotal *prometheus.CounterVec
	AggregationDuration    prometheus.Histogram
	VisitorsCount          prometheus.Gauge
	CountriesCount         prometheus.Gauge

	// Actor metrics
	UpdatesTotal         *prometheus.CounterVec
	StatsReadsTotal      *prometheus.CounterVec
	SubscriptionsActive  prometheus.Gauge
	SubscriptionsDropped *prometheus.CounterVec
	BroadcastsTotal      prometheus.Counter
	BroadcastRecipients  prometheus.Histogram

	// Contact relay metrics
	ContactMessagesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "joonify_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "joonify_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "joonify_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "joonify_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		// Aggregation metrics
		AggregationCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "joonify_aggregation_cycles_total",
				Help: "Total number of aggregation cycles by result",
			},
			[]string{"result"},
		),
		AggregationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "joonify_aggregation_duration_seconds",
				Help:    "Aggregation cycle duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		VisitorsCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "joonify_visitors_count",
				Help: "Unique visitors over the last 30 days as of the last successful cycle",
			},
		),
		CountriesCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "joonify_countries_count",
				Help: "Distinct visitor countries over the last 23 hours as of the last successful cycle",
			},
		),

		// Actor metrics
		UpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "joonify_stats_updates_total",
				Help: "Total number of stats update requests by result",
			},
			[]string{"result"},
		),
		StatsReadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "joonify_stats_reads_total",
				Help: "Total number of privileged stats reads by result",
			},
			[]string{"result"},
		),
		SubscriptionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "joonify_subscriptions_active",
				Help: "Number of open live-stats subscriptions",
			},
		),
		SubscriptionsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "joonify_subscriptions_dropped_total",
				Help: "Total number of subscriptions closed, by reason",
			},
			[]string{"reason"},
		),
		BroadcastsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "joonify_broadcasts_total",
				Help: "Total number of snapshot broadcasts",
			},
		),
		BroadcastRecipients: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "joonify_broadcast_recipients",
				Help:    "Number of subscriptions a broadcast was queued to",
				Buckets: prometheus.ExponentialBuckets(1, 4, 6),
			},
		),

		// Contact relay metrics
		ContactMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "joonify_contact_messages_total",
				Help: "Total number of contact form submissions by result",
			},
			[]string{"result"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.AggregationCyclesTotal,
		m.AggregationDuration,
		m.VisitorsCount,
		m.CountriesCount,
		m.UpdatesTotal,
		m.StatsReadsTotal,
		m.SubscriptionsActive,
		m.SubscriptionsDropped,
		m.BroadcastsTotal,
		m.BroadcastRecipients,
		m.ContactMessagesTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// Hijack lets websocket upgrades pass through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Flush implements http.Flusher when the wrapped writer does.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// routeLabel bounds label cardinality: the actor accepts websocket upgrades
// on any path, so unknown paths collapse into one label.
func routeLabel(path string) string {
	switch path {
	case "/api/contact", "/api/force-update", "/api/get-stats", "/api/update":
		return path
	default:
		return "other"
	}
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeLabel(r.URL.Path)

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, route).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
