package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ringforge/callgate/pkg/observability"
)

func TestRequestMiddleware_AssignsRequestID(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	mw := NewRequestMiddleware(logger)

	var seenID string
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = observability.GetRequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/plans", nil))

	assert.NotEmpty(t, seenID)
	assert.Equal(t, seenID, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestMiddleware_PreservesCallerRequestID(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	mw := NewRequestMiddleware(logger)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req_upstream", observability.GetRequestID(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
	req.Header.Set(RequestIDHeader, "req_upstream")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req_upstream", rec.Header().Get(RequestIDHeader))
}
