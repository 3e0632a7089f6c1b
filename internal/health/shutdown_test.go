package health_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/threadworks/printshop-api/internal/health"
)

type healthyChecker struct{}

func (healthyChecker) PingDB(context.Context, time.Duration) error    { return nil }
func (healthyChecker) PingRedis(context.Context, time.Duration) error { return nil }

// Readiness must flip to 503 the moment shutdown begins, before in-flight
// materializations finish draining.
func TestReadinessGateDuringShutdown(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })

	h := health.Handler{Checker: healthyChecker{}}
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	health.SetReady(true)
	rr := httptest.NewRecorder()
	h.Ready(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	health.SetReady(false)
	rr = httptest.NewRecorder()
	h.Ready(rr, req)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "shutting down")
}
