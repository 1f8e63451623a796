package server

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klistr-labs/fedgatewayd/internal/engine"
	"github.com/klistr-labs/fedgatewayd/internal/health"
)

// fakeEngine embeds the Engine interface (nil) so only Health needs
// overriding for these handler tests; any other method call would panic,
// which is acceptable since handleHealthz never reaches them.
type fakeEngine struct {
	engine.Engine
	report health.Report
}

func (f *fakeEngine) Health(ctx context.Context) health.Report {
	return f.report
}

func TestHandleHealthz_HealthyMapsTo200(t *testing.T) {
	s := New(":0", &fakeEngine{report: health.Report{Overall: health.StatusHealthy}}, nil)
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
}

func TestHandleHealthz_DegradedStillMapsTo200(t *testing.T) {
	s := New(":0", &fakeEngine{report: health.Report{Overall: health.StatusDegraded}}, nil)
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
}

func TestHandleHealthz_UnhealthyMapsTo503(t *testing.T) {
	s := New(":0", &fakeEngine{report: health.Report{Overall: health.StatusUnhealthy}}, nil)
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, 503, rec.Code)
}

func TestBuildRouter_RootReturnsServiceStatus(t *testing.T) {
	s := New(":0", &fakeEngine{report: health.Report{Overall: health.StatusHealthy}}, nil)
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "fedgatewayd")
}
