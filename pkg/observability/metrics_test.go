package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersEverything(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	// Touch the vectors so they show up in Gather.
	m.HTTPRequestsTotal.WithLabelValues("GET", "other", "200").Inc()
	m.HTTPRequestDuration.WithLabelValues("GET", "other").Observe(0.1)
	m.HTTPRequestSize.WithLabelValues("GET", "other").Observe(1)
	m.HTTPResponseSize.WithLabelValues("GET", "other").Observe(1)
	m.AggregationCyclesTotal.WithLabelValues("success").Inc()
	m.UpdatesTotal.WithLabelValues("ok").Inc()
	m.StatsReadsTotal.WithLabelValues("ok").Inc()
	m.SubscriptionsDropped.WithLabelValues("slow_consumer").Inc()
	m.ContactMessagesTotal.WithLabelValues("ok").Inc()

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"joonify_http_requests_total",
		"joonify_http_request_duration_seconds",
		"joonify_http_request_size_bytes",
		"joonify_http_response_size_bytes",
		"joonify_aggregation_cycles_total",
		"joonify_aggregation_duration_seconds",
		"joonify_visitors_count",
		"joonify_countries_count",
		"joonify_stats_updates_total",
		"joonify_stats_reads_total",
		"joonify_subscriptions_active",
		"joonify_subscriptions_dropped_total",
		"joonify_broadcasts_total",
		"joonify_broadcast_recipients",
		"joonify_contact_messages_total",
	} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestNewMetrics_DoubleRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	assert.Panics(t, func() { NewMetrics(registry) })
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/api/get-stats", routeLabel("/api/get-stats"))
	assert.Equal(t, "/api/contact", routeLabel("/api/contact"))
	assert.Equal(t, "other", routeLabel("/"))
	assert.Equal(t, "other", routeLabel("/random/ws/path"))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/update" {
			w.WriteHeader(http.StatusForbidden)
		}
		io.WriteString(w, "hello")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/get-stats", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/update", strings.NewReader("{}")))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/some/viewer", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/get-stats", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/update", "403")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "other", "200")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.HTTPRequestDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestSize))
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusAccepted)
	n, err := rw.Write([]byte("abc"))
	require.NoError(t, err)
	rw.Flush()

	assert.Equal(t, 3, n)
	assert.Equal(t, 3, rw.bytesWritten)
	assert.Equal(t, http.StatusAccepted, rw.statusCode)
	assert.True(t, rec.Flushed)

	_, _, err = rw.Hijack()
	assert.Error(t, err, "recorder cannot be hijacked")
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.VisitorsCount.Set(120)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "joonify_visitors_count 120")
}
