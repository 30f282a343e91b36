package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordMessage("task", "create")
	m.RecordMessage("conversation", "")
	m.RecordExtraction("structured", OutcomeOK, 150*time.Millisecond)
	m.RecordExtraction("deterministic", OutcomeFallback, time.Millisecond)
	m.RecordMutation(MutationCreated, 3)
	m.RecordMutation(MutationLinked, 0)
	m.RecordError("intake", "persist")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesTotal.WithLabelValues("task", "create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesTotal.WithLabelValues("conversation", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionsTotal.WithLabelValues("deterministic", OutcomeFallback)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TaskMutationsTotal.WithLabelValues(MutationCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("intake", "persist")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordMessage("task", "create")
		m.RecordExtraction("structured", OutcomeOK, time.Second)
		m.RecordMutation(MutationUpdated, 1)
		m.RecordError("x", "y")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordMutation(MutationUpdated, 1)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `tally_task_mutations_total{kind="updated"} 1`)
}
