package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryServesPipelineMetrics(t *testing.T) {
	Inc("classifier_allow")
	Timer("classifier")()
	EscalationTotal.WithLabelValues("recheck").Inc()

	assert.GreaterOrEqual(t, testutil.ToFloat64(StageTotal.WithLabelValues("classifier_allow")), 1.0)

	n, err := testutil.GatherAndCount(registry,
		"safety_moderation_stage_total",
		"safety_moderation_duration_seconds",
		"safety_escalation_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 3)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `safety_moderation_stage_total{stage="classifier_allow"}`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
