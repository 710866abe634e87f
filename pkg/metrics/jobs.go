package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records scheduled maintenance job runs.
type JobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	deleted  *prometheus.CounterVec
}

// NewJobMetrics registers the job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_runs_total",
		Help: "Scheduled job executions by job and result.",
	}, []string{"job", "result"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of scheduled jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	deleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_rows_deleted_total",
		Help: "Rows removed by retention jobs.",
	}, []string{"job"})
	reg.MustRegister(runs, duration, deleted)
	return &JobMetrics{runs: runs, duration: duration, deleted: deleted}
}

// ObserveRun records one execution of job.
func (m *JobMetrics) ObserveRun(job string, ok bool, elapsed time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	label := normalizeLabel(job)
	m.runs.WithLabelValues(label, result(ok)).Inc()
	m.duration.WithLabelValues(label).Observe(elapsed.Seconds())
}

// AddRowsDeleted counts rows purged by job.
func (m *JobMetrics) AddRowsDeleted(job string, rows int64) {
	if m == nil || m.deleted == nil || rows <= 0 {
		return
	}
	m.deleted.WithLabelValues(normalizeLabel(job)).Add(float64(rows))
}
