package cli

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/branchflow/branchflow/internal/observability"
)

func TestMetricsCommandDocumentsProcessLocalCounters(t *testing.T) {
	// The standalone server only sees engine runs in its own process;
	// the help text must say so.
	assert.Contains(t, metricsCmd.Long, "process-local")
	assert.Contains(t, metricsCmd.Long, "same process")
}

func TestMetricsHandlerServesFreshRegistry(t *testing.T) {
	metrics := observability.NewMetrics()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	// A registry nothing has fed yet still serves the family headers,
	// just with no series.
	body := rec.Body.String()
	assert.Contains(t, body, "# TYPE branchflow_triggers_total counter")
	assert.NotContains(t, body, "branchflow_triggers_total{")
}
