package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mrpayong/terual-accounting/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func browserRequest(remote string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4)")
	req.RemoteAddr = remote
	return req
}

func TestBotProtection_UserAgents(t *testing.T) {
	metrics := observability.NewMetrics()
	bp := NewBotProtection([]string{"curl", " Scrapy "}, 0, 0, metrics, zap.NewNop())
	h := bp.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		agent  string
		status int
	}{
		{"browser", "Mozilla/5.0 (X11; Linux x86_64)", http.StatusOK},
		{"curl", "curl/8.4.0", http.StatusForbidden},
		{"case insensitive", "Mozilla/5.0 (compatible; SCRAPY/2.11)", http.StatusForbidden},
		{"empty agent", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("User-Agent", tt.agent)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.Registry, "bot_protection_rejections_total"))
}

func TestBotProtection_RateLimitPerIP(t *testing.T) {
	bp := NewBotProtection(nil, 1, 2, nil, zap.NewNop())
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	bp.clock = func() time.Time { return now }
	h := bp.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(remote string) int {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, browserRequest(remote))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, serve("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, serve("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, serve("10.0.0.1:5002"))
	assert.Equal(t, http.StatusOK, serve("10.0.0.2:5000"), "other clients have their own bucket")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, serve("10.0.0.1:5003"), "bucket refills over time")
}

func TestBotProtection_Sweep(t *testing.T) {
	bp := NewBotProtection(nil, 5, 5, nil, zap.NewNop())
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	bp.clock = func() time.Time { return now }

	assert.True(t, bp.allow("10.0.0.1"))
	now = now.Add(5 * time.Minute)
	assert.True(t, bp.allow("10.0.0.2"))
	now = now.Add(6 * time.Minute)

	assert.Equal(t, 1, bp.Sweep())
	assert.Len(t, bp.clients, 1)
}

func TestPrometheus(t *testing.T) {
	metrics := observability.NewMetrics()

	r := chi.NewRouter()
	r.Use(Prometheus(metrics))
	r.Get("/api/v1/accounts/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, path := range []string{"/api/v1/accounts/abc", "/api/v1/accounts/def", "/metrics"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	expected := `
# HELP http_requests_total Total number of HTTP requests
# TYPE http_requests_total counter
http_requests_total{method="GET",path="/api/v1/accounts/{id}",status="404"} 2
`
	require.NoError(t, testutil.GatherAndCompare(metrics.Registry, strings.NewReader(expected), "http_requests_total"))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/transactions", nil)
	h.ServeHTTP(httptest.NewRecorder(), requestWithID(req, "req-9"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "/transactions", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.EqualValues(t, 5, fields["size"])
}

func requestWithID(r *http.Request, id string) *http.Request {
	return r.WithContext(WithRequestID(r.Context(), id))
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(true)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))

	w = httptest.NewRecorder()
	SecurityHeaders(false)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}
