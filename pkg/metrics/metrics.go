// Package metrics provides Prometheus metrics for the executor.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts finished runs by final status.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quantnest",
			Subsystem: "executor",
			Name:      "runs_total",
			Help:      "Total number of workflow runs by final status",
		},
		[]string{"status"}, // "Success", "Failed"
	)

	// RunsActive tracks runs currently in flight.
	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "quantnest",
			Subsystem: "executor",
			Name:      "runs_active",
			Help:      "Number of workflow runs currently executing",
		},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quantnest",
			Subsystem: "executor",
			Name:      "run_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	// StepsTotal counts execution steps by node type and status.
	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quantnest",
			Subsystem: "executor",
			Name:      "steps_total",
			Help:      "Total number of execution steps by node type and status",
		},
		[]string{"node_type", "status"}, // status: "Success", "Failed", "Skipped"
	)

	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quantnest",
			Subsystem: "executor",
			Name:      "node_duration_seconds",
			Help:      "Action node execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node_type"},
	)

	// TriggerEvaluations counts trigger checks by trigger type and outcome.
	TriggerEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quantnest",
			Subsystem: "poller",
			Name:      "trigger_evaluations_total",
			Help:      "Total number of trigger evaluations by type and result",
		},
		[]string{"trigger_type", "result"}, // result: "fired", "idle", "error", "cooldown"
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "quantnest",
			Subsystem: "poller",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one polling tick in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// PersistenceOperations counts run-record operations.
	PersistenceOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quantnest",
			Subsystem: "executor",
			Name:      "persistence_operations_total",
			Help:      "Total number of run persistence operations",
		},
		[]string{"operation", "result"}, // operation: create, save, last; result: success, error
	)
)

const (
	ResultFired    = "fired"
	ResultIdle     = "idle"
	ResultError    = "error"
	ResultCooldown = "cooldown"
	ResultSuccess  = "success"
	StatusSkipped  = "Skipped"
)

// OperationResult maps an error to the "result" label.
func OperationResult(err error) string {
	if err != nil {
		return ResultError
	}

	return ResultSuccess
}
