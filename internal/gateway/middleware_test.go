package gateway

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/soyeahso/sprout/internal/logging"
	"github.com/soyeahso/sprout/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

func TestObserveMiddlewareLogsStatusAndCaller(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "debug")

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderCallerID, "parent-1")
	rr := httptest.NewRecorder()
	observeMiddleware(inner, log, nil).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Contains(t, buf.String(), "418")
	assert.Contains(t, buf.String(), "parent-1")
	assert.Contains(t, buf.String(), "unmatched")
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := requestIDMiddleware(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "custom-id-123")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "custom-id-123", rr.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Len(t, rr.Header().Get("X-Request-ID"), 36, "oversized IDs are replaced")
}

func TestRequestIDInContext(t *testing.T) {
	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "abc", seen)
	assert.Empty(t, logging.RequestID(context.Background()))
}

func TestObserveMiddlewareRecordsRoutePattern(t *testing.T) {
	m := metrics.MustNewMetrics(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Get("/api/chat/sessions/{threadId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := withMiddleware(r, logging.New(nil, "silent"), nil, m)

	for _, id := range []string{"a", "b", "c"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/chat/sessions/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	}

	reg := prometheus.NewRegistry()
	m2 := metrics.MustNewMetrics(reg)
	withMiddleware(r, logging.New(nil, "silent"), nil, m2).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/chat/sessions/x", nil))
	count, err := testutil.GatherAndCount(reg, "sprout_gateway_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "one series per route pattern, not per thread ID")
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"unconfigured denies", nil, "http://localhost:3000", ""},
		{"wildcard echoes origin", []string{"*"}, "http://anything.com", "http://anything.com"},
		{"specific match", []string{"http://allowed.com"}, "http://allowed.com", "http://allowed.com"},
		{"specific mismatch", []string{"http://allowed.com"}, "http://evil.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			corsMiddleware(okHandler(), tt.allowed).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
			if tt.want != "" {
				assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "DELETE")
				assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), HeaderCallerRole)
			}
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	corsMiddleware(okHandler(), nil).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestWithMiddleware(t *testing.T) {
	log := logging.New(nil, "silent")
	handler := withMiddleware(okHandler(), log, []string{"http://test.com"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "http://test.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "http://test.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusWriterHijackWithoutSupport(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	_, _, err := sw.Hijack()
	require.Error(t, err)
	assert.Equal(t, http.StatusOK, sw.status)
	assert.NotNil(t, sw.Unwrap())
}
