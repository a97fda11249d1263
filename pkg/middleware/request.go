package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ringforge/callgate/pkg/observability"
)

// RequestIDHeader carries the request ID on both requests and responses
const RequestIDHeader = "X-Request-ID"

// RequestMiddleware assigns each request an ID, carries it on the context
// and the response header, and logs request completion.
type RequestMiddleware struct {
	logger *observability.Logger
}

// NewRequestMiddleware creates a new request middleware
func NewRequestMiddleware(logger *observability.Logger) *RequestMiddleware {
	return &RequestMiddleware{logger: logger}
}

// statusRecorder captures the status code written by the handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Handler wraps an HTTP handler with request identification and logging
func (m *RequestMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := observability.WithRequestID(r.Context(), requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r.WithContext(ctx))

		m.logger.WithFields(map[string]interface{}{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     recorder.status,
			"duration":   time.Since(start).String(),
		}).Info("request completed")
	})
}
