package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/threadworks/printshop-api/internal/health"
)

type stubChecker struct {
	dbErr    error
	redisErr error
}

func (s stubChecker) PingDB(context.Context, time.Duration) error    { return s.dbErr }
func (s stubChecker) PingRedis(context.Context, time.Duration) error { return s.redisErr }

func TestLiveAlwaysOK(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReadyReportsPerDependency(t *testing.T) {
	cases := []struct {
		name       string
		checker    stubChecker
		wantStatus int
		wantDB     string
	}{
		{name: "all healthy", checker: stubChecker{}, wantStatus: http.StatusOK, wantDB: "ok"},
		{name: "db down", checker: stubChecker{dbErr: errors.New("dial refused")}, wantStatus: http.StatusServiceUnavailable, wantDB: "dial refused"},
		{name: "redis down", checker: stubChecker{redisErr: errors.New("timeout")}, wantStatus: http.StatusServiceUnavailable, wantDB: "ok"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := health.Handler{Checker: tc.checker, DBTimeout: 50 * time.Millisecond, RedisTimeout: 50 * time.Millisecond}
			rr := httptest.NewRecorder()
			h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			require.Equal(t, tc.wantStatus, rr.Code)
			var status map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
			require.Equal(t, tc.wantDB, status["db"])
		})
	}
}

func TestReadyWithoutChecker(t *testing.T) {
	rr := httptest.NewRecorder()
	health.Handler{}.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
