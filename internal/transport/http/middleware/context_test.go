package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arklim/social-login-auth/internal/infra/logger"
)

func TestEnrichContextPropagatesIncomingTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(EnrichContext())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetTraceID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceIDHeader, "trace-abc")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Body.String() != "trace-abc" || rr.Header().Get(TraceIDHeader) != "trace-abc" {
		t.Fatalf("expected incoming trace id to be kept, body=%q header=%q", rr.Body.String(), rr.Header().Get(TraceIDHeader))
	}
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestIDFromContext(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "bad id\twith spaces")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	got := rr.Header().Get(requestIDHeader)
	if got == "" || strings.ContainsAny(got, " \t") {
		t.Fatalf("expected a generated request id, got %q", got)
	}
	if rr.Body.String() != got {
		t.Fatalf("expected request id on the request context, got %q", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Header().Get(requestIDHeader) != "req-42" {
		t.Fatalf("expected valid client request id to be kept")
	}
}

func TestLoggerMasksClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(&buf), zapcore.DebugLevel)

	router := gin.New()
	router.Use(EnrichContext(), RequestID(), Logger(zap.New(core)))
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.77:5555"
	router.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	if strings.Contains(line, "203.0.113.77") {
		t.Fatalf("expected client ip to be masked, got %s", line)
	}
	if !strings.Contains(line, `"route":"/healthz"`) || !strings.Contains(line, "request completed") {
		t.Fatalf("unexpected access log line: %s", line)
	}
}

func TestCORSAllowsListedOriginOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CORS([]string{"http://localhost:3000/"}))
	router.POST("/api/auth/refresh", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/refresh", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("expected listed origin to be echoed")
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials to be allowed for a listed origin")
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/refresh", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected preflight from unknown origin to be refused, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("expected no allow-origin header for unknown origin")
	}
}

func TestCORSWildcardNeverAllowsCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CORS([]string{"*", " https://app.example "}))
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		origin      string
		allow       string
		credentials string
	}{
		{"https://anywhere.example", "*", ""},
		{"https://app.example", "https://app.example", "true"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", tc.origin)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", tc.origin, rr.Code)
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tc.allow {
			t.Fatalf("%s: allow-origin = %q, want %q", tc.origin, got, tc.allow)
		}
		if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != tc.credentials {
			t.Fatalf("%s: allow-credentials = %q, want %q", tc.origin, got, tc.credentials)
		}
		if !strings.Contains(rr.Header().Get("Access-Control-Expose-Headers"), "Retry-After") {
			t.Fatalf("%s: expected rate limit headers to be exposed", tc.origin)
		}
	}
}
