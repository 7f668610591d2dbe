// internal/app/system/metrics/metrics.go
package metrics

import (
	"errors"
	"time"

	"github.com/dalemusser/invitetree/internal/app/system/apperr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TraversalDuration tracks tree query latency by operation.
	TraversalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invitetree_traversal_duration_seconds",
		Help:    "Tree traversal duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"operation"})

	// TraversalSize tracks how many users a descendant walk returned.
	TraversalSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invitetree_traversal_nodes",
		Help:    "Users returned per descendant traversal",
		Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
	})

	// PruneOperations counts prune executions and rollbacks by result.
	PruneOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invitetree_prune_operations_total",
		Help: "Total prune operations by operation and result",
	}, []string{"operation", "result"})

	// PruneAffectedUsers tracks branch size per executed prune.
	PruneAffectedUsers = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invitetree_prune_affected_users",
		Help:    "Users soft-deleted per prune operation",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
	})

	// HealthSnapshots counts stored health snapshots.
	HealthSnapshots = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invitetree_health_snapshots_total",
		Help: "Total health score snapshots stored",
	})

	// HealthBatchErrors counts per-user failures in the health batch.
	HealthBatchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invitetree_health_batch_errors_total",
		Help: "Total per-user failures during batch health scoring",
	})

	// HealthBatchDuration tracks a full population pass.
	HealthBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invitetree_health_batch_duration_seconds",
		Help:    "Batch health scoring duration in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
	})

	// UsersFlagged counts automatic active to flagged transitions.
	UsersFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invitetree_users_flagged_total",
		Help: "Total users flagged for low health",
	})

	// JobRuns counts background job runs by job and result.
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invitetree_job_runs_total",
		Help: "Total background job runs by job and result",
	}, []string{"job", "result"})
)

// Result labels an outcome for the counters above.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrBadRequest):
		return "rejected"
	case errors.Is(err, apperr.ErrCorruptTree):
		return "corrupt"
	default:
		return "error"
	}
}

// ObserveSince records the time elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
