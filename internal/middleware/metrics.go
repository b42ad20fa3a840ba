package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/serroba/turl/internal/metrics"
)

const unmatchedRoute = "unmatched"

// Metrics records request count, latency and in-flight gauge per chi route pattern.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPInFlight.Inc()
			defer m.HTTPInFlight.Dec()

			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			labels := []string{r.Method, routePattern(r), strconv.Itoa(status)}
			m.HTTPRequests.WithLabelValues(labels...).Inc()
			m.HTTPDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern keeps label cardinality bounded by using the matched pattern, never the raw path.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}

	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}

	return unmatchedRoute
}
