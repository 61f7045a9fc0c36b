package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func secRouter(opt SecurityOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(SecurityHeaders(opt))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := secRouter(SecurityOptions{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff")
	}
	if h.Get("X-Frame-Options") != "DENY" {
		t.Error("missing frame deny")
	}
	if h.Get("Referrer-Policy") != "no-referrer" {
		t.Error("missing referrer policy")
	}
	// Request ID exposed for browser clients.
	if !strings.Contains(h.Get("Access-Control-Expose-Headers"), "X-Request-ID") {
		t.Errorf("expose headers = %q", h.Get("Access-Control-Expose-Headers"))
	}
	// HSTS never on plain HTTP.
	if h.Get("Strict-Transport-Security") != "" {
		t.Error("unexpected HSTS on plain HTTP")
	}
}

func TestSecurityHeaders_Optional(t *testing.T) {
	r := secRouter(SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour,
		NoStore:      true,
		EnablePolicy: true,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	r.ServeHTTP(w, req)

	h := w.Header()
	if got := h.Get("Strict-Transport-Security"); !strings.Contains(got, "max-age=86400") {
		t.Errorf("HSTS = %q", got)
	}
	if h.Get("Cache-Control") != "no-store" {
		t.Error("missing no-store")
	}
	if h.Get("Permissions-Policy") == "" {
		t.Error("missing permissions policy")
	}
}

func Test_isHTTPS(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTTPS(r) {
		t.Error("plain request reported as HTTPS")
	}
	r.Header.Set("X-Forwarded-Proto", "HTTPS")
	if !isHTTPS(r) {
		t.Error("forwarded proto not honored")
	}
}
