package opsapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/sentinel/pkg/fabric"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

func TestHealthzAlwaysOK(t *testing.T) {
	s := NewServer(nil, fakePinger{err: errors.New("store unreachable")})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestReadyzNoPingerIsReady(t *testing.T) {
	s := NewServer(nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReportsPingFailure(t *testing.T) {
	s := NewServer(nil, fakePinger{err: errors.New("store unreachable")})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "store unreachable")
}

func TestReadyzReportsPingSuccess(t *testing.T) {
	s := NewServer(nil, fakePinger{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBreakersWithNilFabric(t *testing.T) {
	s := NewServer(nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/breakers", nil)
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"channels":{}}`, rec.Body.String())
}

func TestBreakersReportsChannelState(t *testing.T) {
	limiter := fabric.NewLimiter(10, 1, 0)
	fab := fabric.New(limiter, fabric.DefaultRetryConfig)

	// Exercise a channel once so the registry has an entry for it; the
	// breaker starts closed and stays that way after one success.
	_, err := fab.Invoke(context.Background(), "test-channel", func(context.Context, any) (any, error) {
		return "ok", nil
	}, nil, fabric.PriorityNormal, 5*time.Second)
	require.NoError(t, err)

	s := NewServer(fab, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/breakers", nil)
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test-channel")
	assert.Contains(t, rec.Body.String(), "closed")
}
