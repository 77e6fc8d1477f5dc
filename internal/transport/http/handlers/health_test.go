package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestReadinessReportsEachDependency(t *testing.T) {
	redisErr := errors.New("redis down")
	var redisHealthy bool

	handler := NewHealthHandler(
		WithReadinessCheck("database", func(context.Context) error { return nil }),
		WithReadinessCheck("redis", func(context.Context) error {
			if redisHealthy {
				return nil
			}
			return redisErr
		}),
	)

	router := gin.New()
	router.GET("/healthz", handler.Status)
	router.GET("/readyz", handler.Readiness)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	body := decodeBody[ReadyResponse](t, rr)
	if body.Status != "not_ready" || body.Checks["database"] != "ok" || body.Checks["redis"] != "unavailable" {
		t.Fatalf("unexpected readiness body %+v", body)
	}

	redisHealthy = true
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || decodeBody[HealthResponse](t, rr).Status != "ok" {
		t.Fatalf("unexpected liveness response %d %s", rr.Code, rr.Body.String())
	}
}
