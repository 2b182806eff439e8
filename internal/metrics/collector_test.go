package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordsCounters(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.RecordTask("SUCCESS", 2)
	c.RecordTask("SUCCESS", 0)
	c.RecordTask("FAILED", 5)
	c.RecordReasoning(OutcomeOK)
	c.RecordReasoning(OutcomeMalformed)
	c.RecordDispatch("get_pricing", true, 3*time.Millisecond)
	c.RecordDispatch("get_pricing", false, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.tasks.WithLabelValues("SUCCESS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tasks.WithLabelValues("FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reasoning.WithLabelValues(OutcomeMalformed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dispatches.WithLabelValues("get_pricing", "false")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.latency))
}

func TestCollector_IterationsHistogram(t *testing.T) {
	c := New(prometheus.NewRegistry())
	c.RecordTask("SUCCESS", 1)
	c.RecordTask("FAILED", 5)

	want := `
# HELP taskagent_task_iterations Number of tool iterations used per task
# TYPE taskagent_task_iterations histogram
taskagent_task_iterations_bucket{le="0"} 0
taskagent_task_iterations_bucket{le="1"} 1
taskagent_task_iterations_bucket{le="2"} 1
taskagent_task_iterations_bucket{le="3"} 1
taskagent_task_iterations_bucket{le="5"} 2
taskagent_task_iterations_bucket{le="8"} 2
taskagent_task_iterations_bucket{le="13"} 2
taskagent_task_iterations_bucket{le="21"} 2
taskagent_task_iterations_bucket{le="50"} 2
taskagent_task_iterations_bucket{le="+Inf"} 2
taskagent_task_iterations_sum 6
taskagent_task_iterations_count 2
`
	require.NoError(t, testutil.CollectAndCompare(c.iterations, strings.NewReader(want)))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.RecordTask("SUCCESS", 1)
	c.RecordReasoning(OutcomeEngineErr)
	c.RecordDispatch("x", true, time.Second)
	assert.Zero(t, c.Uptime())
	assert.Nil(t, c.Registry())

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollector_HandlerExposesMetrics(t *testing.T) {
	c := New(nil)
	c.RecordTask("NEEDS_INPUT", 0)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `taskagent_tasks_total{status="NEEDS_INPUT"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
