package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const unmatchedRoute = "unmatched"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "customer_service_http_requests_total",
		Help: "Total number of HTTP requests served by the customer API.",
	}, []string{"method", "route", "status_code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "customer_service_http_request_duration_seconds",
		Help:    "Duration of customer API requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status_code"})
)

// MetricsMiddleware labels requests by chi route pattern so path parameters
// such as customer IDs never become label values.
func MetricsMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				route := unmatchedRoute
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}
				code := strconv.Itoa(status)

				httpRequestsTotal.WithLabelValues(r.Method, route, code).Inc()
				httpRequestDuration.WithLabelValues(r.Method, route, code).Observe(time.Since(start).Seconds())
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
