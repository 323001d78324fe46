package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/arnaud-morvan/v6-api/internal/httputil"
	"github.com/arnaud-morvan/v6-api/internal/observability"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Metrics records request counts and durations and logs each request.
//
// It must wrap the mux directly: the mux fills in r.Pattern on the request
// it receives, and the pattern is used as the path label to keep label
// cardinality bounded.
func Metrics(metrics *observability.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			pattern := r.Pattern
			if pattern == "" {
				pattern = "unmatched"
			}
			elapsed := time.Since(start)
			metrics.RecordHTTPRequest(r.Method, pattern, rec.status, elapsed)
			logger.Debug("request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", httputil.GetRequestID(r.Context()),
			)
		})
	}
}
