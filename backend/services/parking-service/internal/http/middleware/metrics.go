package middleware

import (
	"net/http"
	"time"

	"parkledger/backend/libs/metrics"
)

// Metrics records request counts and latency per route pattern.
func Metrics(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := wrap(w)
			next.ServeHTTP(rw, r)

			// ServeMux fills Pattern on the way through; unmatched paths share a label.
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordHTTPMetrics(serviceName, r.Method, route, rw.statusCode(), time.Since(start))
		})
	}
}
