// Package metrics exposes Prometheus collectors for the task agent.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reasoning call outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeMalformed = "malformed"
	OutcomeEngineErr = "engine_error"
)

// Collector aggregates the agent's counters and histograms. A nil *Collector
// is valid and records nothing.
type Collector struct {
	registry   *prometheus.Registry
	tasks      *prometheus.CounterVec
	reasoning  *prometheus.CounterVec
	dispatches *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	iterations prometheus.Histogram
	startTime  time.Time
}

// New registers the agent collectors on registry. A nil registry gets a fresh one
// that also carries the Go and process collectors.
func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,
		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskagent_tasks_total",
				Help: "Total number of processed tasks by final status",
			},
			[]string{"status"},
		),
		reasoning: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskagent_reasoning_calls_total",
				Help: "Total number of reasoning engine calls by outcome",
			},
			[]string{"outcome"},
		),
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskagent_tool_dispatches_total",
				Help: "Total number of tool dispatches by tool and success",
			},
			[]string{"tool", "success"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskagent_tool_latency_seconds",
				Help:    "Tool execution latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		iterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "taskagent_task_iterations",
				Help:    "Number of tool iterations used per task",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 50},
			},
		),
		startTime: time.Now(),
	}

	registry.MustRegister(c.tasks, c.reasoning, c.dispatches, c.latency, c.iterations)
	return c
}

func (c *Collector) RecordTask(status string, iterations int) {
	if c == nil {
		return
	}
	c.tasks.WithLabelValues(status).Inc()
	c.iterations.Observe(float64(iterations))
}

func (c *Collector) RecordReasoning(outcome string) {
	if c == nil {
		return
	}
	c.reasoning.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordDispatch(tool string, success bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.dispatches.WithLabelValues(tool, strconv.FormatBool(success)).Inc()
	c.latency.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// Uptime returns how long the collector has been running.
func (c *Collector) Uptime() time.Duration {
	if c == nil {
		return 0
	}
	return time.Since(c.startTime)
}

// Registry exposes the underlying registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
