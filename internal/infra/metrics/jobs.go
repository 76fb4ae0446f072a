package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		jobsEnqueuedTotal,
		jobClaimsTotal,
		jobTransitionsTotal,
		jobRetriesTotal,
		jobCancellationsTotal,
		jobDurationSeconds,
	)
}

var jobsEnqueuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_jobs_enqueued_total",
		Help: "Total number of AI jobs enqueued, labeled by job type.",
	},
	[]string{"job_type"},
)

var jobClaimsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_job_claims_total",
		Help: "Claim attempts by result.",
	},
	[]string{"result"}, // 'granted', 'conflict', 'empty'
)

var jobTransitionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_job_transitions_total",
		Help: "Successful status transitions by edge.",
	},
	[]string{"from", "to"},
)

var jobRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_job_retries_total",
		Help: "Retry jobs created, labeled by job type.",
	},
	[]string{"job_type"},
)

var jobCancellationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_job_cancellations_total",
		Help: "Cancellations by the status the job was in when cancelled.",
	},
	[]string{"was"},
)

var jobDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ai_job_duration_seconds",
		Help:    "Time from claim to terminal report.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
	[]string{"job_type", "status"},
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncJobEnqueued(jobType string) {
	jobsEnqueuedTotal.WithLabelValues(norm(jobType)).Inc()
}

func IncJobClaim(result string) {
	jobClaimsTotal.WithLabelValues(norm(result)).Inc()
}

func IncJobTransition(from, to string) {
	jobTransitionsTotal.WithLabelValues(norm(from), norm(to)).Inc()
}

func IncJobRetry(jobType string) {
	jobRetriesTotal.WithLabelValues(norm(jobType)).Inc()
}

func IncJobCancel(was string) {
	jobCancellationsTotal.WithLabelValues(norm(was)).Inc()
}

func ObserveJobDuration(jobType, status string, d time.Duration) {
	jobDurationSeconds.WithLabelValues(norm(jobType), norm(status)).Observe(d.Seconds())
}
