package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	loginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"result"},
	)

	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Access token refresh attempts by outcome.",
		},
		[]string{"result"},
	)

	gateDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_gate_denied_total",
			Help: "Requests rejected by the authentication or access gates.",
		},
		[]string{"gate", "reason"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the credential store is reachable.",
	})

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Asset management API build information.",
		},
		[]string{"version"},
	)
)

// Init registers all collectors in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			loginTotal, refreshTotal, gateDenied, ready, buildInfo)
	})
}

// InitBuildInfo sets build_info{version} to 1.
func InitBuildInfo(version string) {
	Init()
	buildInfo.WithLabelValues(version).Set(1)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin counts a login attempt; result is a short outcome label.
func ObserveLogin(result string) { loginTotal.WithLabelValues(result).Inc() }

// ObserveRefresh counts a refresh attempt.
func ObserveRefresh(result string) { refreshTotal.WithLabelValues(result).Inc() }

// ObserveDenied counts a gate rejection.
func ObserveDenied(gate, reason string) { gateDenied.WithLabelValues(gate, reason).Inc() }

// SetReady reflects store readiness.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// Instrument records RPS, latency and in-flight requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// otherPath labels requests that match no registered route.
const otherPath = "other"

var knownPaths = map[string]struct{}{
	"/healthz":                          {},
	"/readyz":                           {},
	"/metrics":                          {},
	"/v1/auth/login":                    {},
	"/v1/auth/logout":                   {},
	"/v1/auth/refresh":                  {},
	"/v1/auth/password/forgot":          {},
	"/v1/auth/password/reset":           {},
	"/v1/auth/password/change":          {},
	"/v1/auth/me":                       {},
	"/v1/permissions/catalog":           {},
	"/v1/users":                         {},
	"/v1/users/:id/permissions":         {},
	"/v1/users/:id/permissions/reapply": {},
	"/v1/users/:id/status":              {},
	"/v1/dashboard":                     {},
}

// CanonicalPath maps a request path onto its route label. Account ids
// collapse to :id and anything outside the route table becomes "other",
// so label cardinality stays bounded whatever clients send.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	if len(parts) >= 4 && parts[1] == "v1" && parts[2] == "users" && parts[3] != "" {
		parts[3] = ":id"
	}
	path = strings.Join(parts, "/")
	if _, ok := knownPaths[path]; !ok {
		return otherPath
	}
	return path
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
