package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groundtrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	recordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_records_total",
			Help: "Total number of ground track records produced.",
		},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_runs_total",
			Help: "Total number of propagation runs by result (ok, partial).",
		},
		[]string{"result"},
	)

	propagationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundtrack_propagation_errors_total",
			Help: "Total number of runs stopped by an error, by kind.",
		},
		[]string{"kind"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "groundtrack_streams_active",
			Help: "Number of open ground track event streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_stream_messages_total",
			Help: "Total number of SSE messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundtrack_stream_bytes_total",
			Help: "Total bytes sent over SSE streams.",
		},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "groundtrack_run_duration_seconds",
			Help:    "Wall-clock duration of propagation runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(recordsTotal)
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(propagationErrorsTotal)
	prometheus.MustRegister(runDurationSeconds)
	prometheus.MustRegister(streamsActive)
	prometheus.MustRegister(streamMessagesTotal)
	prometheus.MustRegister(streamBytesTotal)
}

// RecordRun records the outcome of one propagation run. errKind is empty for
// runs that completed.
func RecordRun(duration time.Duration, records int, errKind string) {
	recordsTotal.Add(float64(records))
	runDurationSeconds.Observe(duration.Seconds())
	if errKind == "" {
		runsTotal.WithLabelValues("ok").Inc()
		return
	}
	runsTotal.WithLabelValues("partial").Inc()
	propagationErrorsTotal.WithLabelValues(errKind).Inc()
}

// StreamOpened increments the open stream gauge.
func StreamOpened() { streamsActive.Inc() }

// StreamClosed decrements the open stream gauge.
func StreamClosed() { streamsActive.Dec() }

// AddStreamMessage counts one SSE message of n bytes.
func AddStreamMessage(n int) {
	streamMessagesTotal.Inc()
	streamBytesTotal.Add(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are recorded verbatim; anything else collapses to "other" so
// scanners cannot inflate label cardinality.
var knownRoutes = map[string]bool{
	"/":                          true,
	"/healthz":                   true,
	"/readyz":                    true,
	"/metrics":                   true,
	"/api/v1/groundtrack":        true,
	"/api/v1/groundtrack/stream": true,
}

func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	http.NewResponseController(rw.ResponseWriter).Flush()
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
