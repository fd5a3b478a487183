package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sprayline/foamops-api/internal/auth"
	"github.com/sprayline/foamops-api/internal/config"
	"github.com/sprayline/foamops-api/internal/http/middleware"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSecurityHeaders_DefaultConfig(t *testing.T) {
	cfg := &config.SecurityConfig{
		ContentTypeNosniff:    true,
		FrameOptions:          "DENY",
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}

	w := serve(middleware.SecurityHeaders(cfg)(ok), httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "HSTS should not be set when disabled")
}

func TestSecurityHeaders_HSTSEnabled(t *testing.T) {
	cfg := &config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: 31536000}

	w := serve(middleware.SecurityHeaders(cfg)(ok), httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, "max-age=31536000; includeSubDomains", w.Header().Get("Strict-Transport-Security"))
	assert.Empty(t, w.Header().Get("X-Frame-Options"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{Enabled: false, RequestsPerMinute: 5}, zap.NewNop())
	h := rl.LimitByIP(ok)

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		assert.Equal(t, http.StatusOK, serve(h, req).Code)
	}
}

func TestRateLimiter_LimitsByIP(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 3, RequestsPerMinuteAuth: 3}, zap.NewNop())
	h := rl.LimitByIP(ok)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/estimates", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		assert.Equal(t, http.StatusOK, serve(h, req).Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/estimates", nil)
	req.RemoteAddr = "10.0.0.1:1000"
	w := serve(h, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limited")

	// another client is unaffected, including one behind a proxy
	req = httptest.NewRequest(http.MethodGet, "/api/v1/estimates", nil)
	req.RemoteAddr = "10.0.0.1:1000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
}

func TestRateLimiter_WhitelistedPath(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 1,
		WhitelistPaths:    []string{"/health", "/public/*"},
	}, zap.NewNop())
	h := rl.LimitByIP(ok)

	for _, path := range []string{"/health", "/health", "/public/a", "/public/b"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "10.0.0.2:1000"
		assert.Equal(t, http.StatusOK, serve(h, req).Code, path)
	}
}

func TestRateLimiter_LimitsEachUserSeparately(t *testing.T) {
	rl := middleware.NewRateLimiter(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, RequestsPerMinuteAuth: 1}, zap.NewNop())
	h := rl.LimitByUser(ok)

	request := func(userID string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/warehouse", nil)
		req.RemoteAddr = "10.0.0.3:1000"
		return req.WithContext(auth.WithUserContext(req.Context(), &auth.UserContext{UserID: userID, CompanyID: "acme-foam"}))
	}

	assert.Equal(t, http.StatusOK, serve(h, request("u-1")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, request("u-1")).Code)
	assert.Equal(t, http.StatusOK, serve(h, request("u-2")).Code)
}

func TestCORS_AllowedOrigin(t *testing.T) {
	cfg := &config.CORSConfig{
		AllowedOrigins: []string{"https://office.example.com"},
		AllowedMethods: []string{"GET", "PUT"},
	}
	h := middleware.CORS(cfg, "production", zap.NewNop())(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/estimates", nil)
	req.Header.Set("Origin", "https://office.example.com")
	w := serve(h, req)
	assert.Equal(t, "https://office.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/estimates", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(h, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_ProductionWithoutOriginsDeniesAll(t *testing.T) {
	h := middleware.CORS(&config.CORSConfig{AllowedMethods: []string{"GET"}}, "production", zap.NewNop())(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/estimates", nil)
	req.Header.Set("Origin", "https://office.example.com")
	assert.Empty(t, serve(h, req).Header().Get("Access-Control-Allow-Origin"))

	dev := middleware.CORS(&config.CORSConfig{AllowedMethods: []string{"GET"}}, "development", zap.NewNop())(ok)
	assert.Equal(t, "https://office.example.com", serve(dev, req).Header().Get("Access-Control-Allow-Origin"))
}

func TestLogging_EchoesRequestID(t *testing.T) {
	h := middleware.Logging(zap.NewNop(), nil)(ok)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	assert.Equal(t, "req-123", serve(h, req).Header().Get(middleware.RequestIDHeader))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	h := middleware.Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/estimates", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}
