package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for the auth counters.
const (
	ResultSuccess   = "success"
	ResultInvalid   = "invalid"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
)

var (
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_auth_registrations_total",
			Help: "Registration attempts by result",
		},
		[]string{"result"},
	)

	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_auth_logins_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	Logouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blog_auth_logouts_total",
			Help: "Total number of logouts",
		},
	)

	SessionsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blog_sessions_swept_total",
			Help: "Expired sessions deleted by the sweeper",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blog_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Middleware records request durations labelled by the matched chi route
// pattern, keeping label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestDuration.
			WithLabelValues(r.Method, route, fmt.Sprintf("%dxx", status/100)).
			Observe(time.Since(start).Seconds())
	})
}
