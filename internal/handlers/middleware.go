package handlers

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"solar-power-predictor/pkg/logging"
	"solar-power-predictor/pkg/metrics"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// statusRecorder captures the status code written by downstream handlers
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// RequestID stamps each request with an ID, reusing a client-supplied one when present
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := logging.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Instrument logs each request and records its count and latency by route template
func Instrument(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			endpoint := routeTemplate(r)
			status := strconv.Itoa(rec.statusCode)

			metricsCollector.RecordAPIRequest(endpoint, r.Method, status)
			metricsCollector.APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())

			fields := logging.Fields{
				"method":      r.Method,
				"endpoint":    endpoint,
				"status":      rec.statusCode,
				"duration_ms": duration.Milliseconds(),
			}
			if rec.statusCode >= http.StatusInternalServerError {
				logger.Warn(r.Context(), "[HTTP_REQUEST] Request failed", fields)
			} else {
				logger.Debug(r.Context(), "[HTTP_REQUEST] Request completed", fields)
			}
		})
	}
}

// Recoverer turns a handler panic into a 500 response
func Recoverer(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error(r.Context(), "[HTTP_PANIC] Handler panicked", logging.Fields{
						"panic": rvr,
						"stack": string(debug.Stack()),
					}, nil)
					metricsCollector.RecordAPIError("panic", routeTemplate(r))
					writeJSON(w, ErrorResponse{
						Error:   http.StatusText(http.StatusInternalServerError),
						Message: "an unexpected error occurred",
						Code:    http.StatusInternalServerError,
					}, http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// routeTemplate keeps metric label cardinality bounded to registered routes
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
