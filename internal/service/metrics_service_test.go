package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCounters(t *testing.T) {
	metrics := NewMetricsService()

	metrics.RecordTransition("assignment", "submitted", "applied")
	metrics.RecordTransition("assignment", "submitted", "applied")
	metrics.RecordTransition("assignment", "approved", "FORBIDDEN")
	metrics.RecordVersionSaved("topic_registration")
	metrics.RecordSessionResolution("teacher")
	metrics.RecordAccessDecision("commission", "allow")
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/documents", http.StatusOK, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.transitions.WithLabelValues("assignment", "submitted", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues("assignment", "approved", "FORBIDDEN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.versionsSaved.WithLabelValues("topic_registration")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.sessionResolution.WithLabelValues("teacher")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.accessDecisions.WithLabelValues("commission", "allow")))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "document_transitions_total")
	assert.Contains(t, rec.Body.String(), "access_decisions_total")
}

func TestMetricsServiceCacheRatio(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheMisses))
	assert.InDelta(t, 0.75, testutil.ToFloat64(metrics.cacheHitRatio), 0.0001)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	assert.NotPanics(t, func() {
		metrics.RecordTransition("assignment", "submitted", "applied")
		metrics.RecordVersionSaved("assignment")
		metrics.RecordSessionResolution("student")
		metrics.RecordAccessDecision("teacher", "deny_login")
		metrics.RecordCacheOperation(true, time.Millisecond)
		metrics.ObserveCacheWrite(time.Millisecond)
		metrics.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
}
