package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RecordIngested(3)
	m.RecordIngested(0)
	m.RecordEvicted(ReasonWindow, 2)
	m.RecordEvicted(ReasonCapacity, 5)
	m.RecordEvicted(ReasonCapacity, -1)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.eventsIngested))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsEvicted.WithLabelValues(ReasonWindow)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.eventsEvicted.WithLabelValues(ReasonCapacity)))
}

func TestMetrics_Evaluation(t *testing.T) {
	m := New()
	m.RecordEvaluation("2d", 12*time.Millisecond, 0.25)
	m.RecordEvaluation("2d", 8*time.Millisecond, 0.5)
	m.RecordEvaluation("3d", time.Millisecond, 0.1)
	m.SetBufferSize(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.evaluations.WithLabelValues("2d")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues("3d")))
	assert.Equal(t, 0.5, testutil.ToFloat64(m.maxDensity.WithLabelValues("2d")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.bufferSize))
	assert.Equal(t, 2, testutil.CollectAndCount(m.evaluationDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordIngested(1)
		m.RecordEvicted(ReasonWindow, 1)
		m.RecordEvaluation("2d", time.Second, 1)
		m.SetBufferSize(1)
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordIngested(7)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "riskmap_events_ingested_total 7")
	assert.Contains(t, string(body), "go_goroutines")
}
