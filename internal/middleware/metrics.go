package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pkordes/triplog/internal/metrics"
)

// NewMetrics returns a middleware that records request count, latency and
// in-flight gauge on c, labelled by the chi route template rather than the
// raw path so IDs do not explode label cardinality.
func NewMetrics(c *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			done := c.RequestStarted()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			done(r.Method, routePattern(r), status, time.Since(start))
		})
	}
}
