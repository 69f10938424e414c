package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "tellcocli/internal/errors"
	"tellcocli/internal/infrastructure"
	"tellcocli/internal/shared/testutil"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func TestRequestID(t *testing.T) {
	var gotReqID, gotTraceID string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = middleware.GetReqID(r.Context())
		gotTraceID = infrastructure.GetTraceID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Len(t, gotReqID, 36)
		assert.Equal(t, gotReqID, w.Header().Get(RequestIDHeader))
		assert.Equal(t, gotReqID, gotTraceID)
	})

	t.Run("from client", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "client-id")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "client-id", gotReqID)
		assert.Equal(t, "client-id", w.Header().Get(RequestIDHeader))
	})
}

func TestGetRequestID_FallsBackToTraceID(t *testing.T) {
	ctx := infrastructure.WithTraceID(context.Background(), "trace-1")
	assert.Equal(t, "trace-1", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestStructuredLogger(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := RequestID(StructuredLogger(logger)(http.HandlerFunc(okHandler)))

	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	testutil.AssertLogContains(t, handler, slog.LevelInfo, "request completed")
	assert.True(t, handler.ContainsAttr("path", "/api/datasets"))
	assert.True(t, handler.ContainsAttr("request_id", "req-42"))
}

func TestStructuredLogger_ServerErrorLoggedAsError(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, handler.GetRecordsByLevel(slog.LevelError))
}

func TestRateLimiter(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	rl := NewRateLimiter(0.0001, 2, logger, apierrors.NewErrorHandler(logger, false))
	h := rl.Handler(http.HandlerFunc(okHandler))

	codes := make([]int, 3)
	var last *httptest.ResponseRecorder
	for i := range codes {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/api/datasets", nil))
		codes[i] = last.Code
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, "application/problem+json", last.Header().Get("Content-Type"))
	assert.Equal(t, "1", last.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(last.Body.Bytes(), &body))
	assert.Equal(t, apierrors.TypeRateLimit, body["type"])
	assert.True(t, handler.ContainsMessage("rate limit exceeded"))
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := NewRateLimiter(0.0001, 1, nil, nil)
	h := rl.Handler(http.HandlerFunc(okHandler))

	call := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:5000"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:5001"), "same host, new port")
	assert.Equal(t, http.StatusOK, call("10.0.0.2:5000"), "other client keeps its own burst")
	assert.Equal(t, http.StatusOK, call("203.0.113.7"), "address without port")
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.2:6000"))
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(0.0001, 1, nil, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.limiterFor("10.0.0.1").Allow())
	assert.False(t, rl.limiterFor("10.0.0.1").Allow())

	now = now.Add(limiterIdleTTL + time.Second)
	assert.True(t, rl.limiterFor("10.0.0.2").Allow())

	rl.mu.Lock()
	_, kept := rl.clients["10.0.0.1"]
	count := len(rl.clients)
	rl.mu.Unlock()
	assert.False(t, kept)
	assert.Equal(t, 1, count)

	assert.True(t, rl.limiterFor("10.0.0.1").Allow(), "evicted client starts with a fresh bucket")
}

func TestTimeout(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	var deadline time.Time
	var hasDeadline bool

	h := Timeout(20*time.Millisecond, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, hasDeadline = r.Context().Deadline()
		<-r.Context().Done()
		apierrors.NewErrorHandler(logger, false).HandleError(w, r, r.Context().Err())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.True(t, hasDeadline)
	assert.False(t, deadline.IsZero())
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.True(t, handler.ContainsMessage("request timeout"))
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		cfg        CORSConfig
		origin     string
		wantOrigin string
	}{
		{name: "listed origin", cfg: CORSConfig{AllowedOrigins: []string{"http://a.test"}}, origin: "http://a.test", wantOrigin: "http://a.test"},
		{name: "unlisted origin", cfg: CORSConfig{AllowedOrigins: []string{"http://a.test"}}, origin: "http://b.test"},
		{name: "wildcard", cfg: CORSConfig{AllowedOrigins: []string{"*"}}, origin: "http://b.test", wantOrigin: "*"},
		{name: "wildcard with credentials", cfg: CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}, origin: "http://b.test", wantOrigin: "http://b.test"},
		{name: "no origin", cfg: CORSConfig{AllowedOrigins: []string{"*"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(tt.cfg)(http.HandlerFunc(okHandler))
			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS(CORSConfig{AllowedOrigins: []string{"http://a.test"}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/datasets", nil)
	req.Header.Set("Origin", "http://a.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), RequestIDHeader)
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(okHandler)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}
