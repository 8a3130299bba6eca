package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "porta_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "porta_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "porta_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	loginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "porta_login_attempts_total",
			Help: "Login attempts by flow and outcome.",
		},
		[]string{"flow", "outcome"},
	)

	idpRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "porta_idp_request_duration_seconds",
		Help:    "Identity provider round-trip latencies in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	healthStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "porta_health_status",
		Help: "Gateway health classification: 0 healthy, 1 degraded, 2 emergency.",
	})

	secretRotations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "porta_secret_rotations_total",
		Help: "Completed application secret rotations.",
	})
)

var initOnce sync.Once

// Init registers gateway metrics with the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight,
			httpRequestsTotal,
			httpRequestDuration,
			loginAttempts,
			idpRequestDuration,
			healthStatus,
			secretRotations,
		)
	})
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin counts one login attempt for the given flow.
func ObserveLogin(flow string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	loginAttempts.WithLabelValues(flow, outcome).Inc()
}

// ObserveIdentityProvider records one identity-provider round trip.
func ObserveIdentityProvider(d time.Duration) {
	idpRequestDuration.Observe(d.Seconds())
}

// SetHealthStatus publishes the current health classification.
func SetHealthStatus(level int) {
	healthStatus.Set(float64(level))
}

// IncSecretRotation counts one completed secret rotation.
func IncSecretRotation() {
	secretRotations.Inc()
}

// Instrument wraps a handler with request counters, latency histograms and
// the in-flight gauge.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
