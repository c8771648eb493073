package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "volunteerhub_operations_total", Help: "Core operations by name and result"},
		[]string{"op", "result"},
	)
	StoreCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "volunteerhub_store_commits_total", Help: "Store commits by result"},
		[]string{"result"},
	)
	StoreCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "volunteerhub_store_commit_seconds",
			Help:    "Time spent committing collections to the backend",
			Buckets: prometheus.DefBuckets,
		},
	)
	WorkerJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "volunteerhub_worker_jobs_total", Help: "Queue jobs handled by kind and result"},
		[]string{"kind", "result"},
	)
)

// Register adds all collectors to the default registry. Call once per process.
func Register() {
	prometheus.MustRegister(Operations, StoreCommits, StoreCommitDuration, WorkerJobs)
}

// Observe counts one run of op.
func Observe(op string, err error) {
	Operations.WithLabelValues(op, result(err)).Inc()
}

// ObserveCommit records a backend commit.
func ObserveCommit(start time.Time, err error) {
	StoreCommitDuration.Observe(time.Since(start).Seconds())
	StoreCommits.WithLabelValues(result(err)).Inc()
}

// ObserveJob counts one handled queue job.
func ObserveJob(kind string, err error) {
	WorkerJobs.WithLabelValues(kind, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
