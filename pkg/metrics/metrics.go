// Package metrics provides Prometheus instrumentation for task runs.
// The collectors are exposed on the status endpoint while `start` is running
// and rendered as text by the `stats` command.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the task-run metrics on a dedicated registry so tests
// and the status server never share state with the default registry.
type Collector struct {
	registry     *prometheus.Registry
	taskRuns     *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	taskRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentdev_task_runs_total",
		Help: "Total task runs by task name and status.",
	}, []string{"task", "status", "exit_code"})

	taskDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentdev_task_duration_seconds",
		Help:    "Task run duration in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"task"})

	registry.MustRegister(taskRuns, taskDuration)

	return &Collector{
		registry:     registry,
		taskRuns:     taskRuns,
		taskDuration: taskDuration,
	}
}

// RecordTaskRun records one completed task execution.
func (c *Collector) RecordTaskRun(task string, exitCode int, duration time.Duration) {
	status := "success"
	if exitCode != 0 {
		status = "failure"
	}

	c.taskRuns.WithLabelValues(task, status, strconv.Itoa(exitCode)).Inc()
	c.taskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// Registry returns the underlying registry for gatherers.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
