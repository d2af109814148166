package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ErlanBelekov/agentgate/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

func TestRateLimit_PerIP(t *testing.T) {
	r := gin.New()
	r.POST("/login", middleware.RateLimit(2), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(ip string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":4000"
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, code)
		}
	}
	if code := do("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", code)
	}
	if code := do("10.0.0.2"); code != http.StatusOK {
		t.Errorf("other client: status = %d, want 200", code)
	}
}

func TestSecurity_Headers(t *testing.T) {
	r := gin.New()
	r.Use(middleware.Security(false))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Get("Permissions-Policy"); got != "camera=(), microphone=(self), geolocation=()" {
		t.Errorf("Permissions-Policy = %q", got)
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("Cache-Control not set")
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must be off when disabled")
	}
}
