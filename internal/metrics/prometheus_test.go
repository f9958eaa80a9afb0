package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecording(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSubmission("submit", "ok")
	m.RecordSubmission("submit", "ok")
	m.RecordSubmission("submit", "conflict")
	m.RecordReplicaPush(nil)
	m.RecordReplicaPush(errors.New("boom"))
	m.RecordSyncSkipped()
	m.SetLedgerRows(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissionsTotal.WithLabelValues("submit", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissionsTotal.WithLabelValues("submit", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replicaPushTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replicaSyncSkipped))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ledgerRows))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSubmission("submit", "ok")
		m.RecordHTTPRequest(http.MethodGet, "/", 200, time.Millisecond)
		m.RecordLedgerRecovery("corrupt")
		m.RecordWriteRetry()
		m.RecordSyncSkipped()
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordHTTPRequest(http.MethodPost, "/submit", 200, 10*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "spinwin_http_requests_total")
}
