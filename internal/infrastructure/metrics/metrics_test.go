package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveHTTP(t *testing.T) {
	m := New()

	m.ObserveHTTP("GET", "/api/recipes", 200, 10*time.Millisecond)
	m.ObserveHTTP("GET", "/api/recipes", 200, 20*time.Millisecond)
	m.ObserveHTTP("GET", "", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/recipes", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
}

func TestObserveGeneration(t *testing.T) {
	m := New()

	done := m.GenerationStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generationsRunning))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.generationsRunning))

	m.ObserveGeneration(OutcomeSuccess, time.Second)
	m.ObserveGeneration("TIMEOUT", 60*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("TIMEOUT")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.generationDuration))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveGeneration(OutcomeSuccess, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pantry_recipes_generation_requests_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
