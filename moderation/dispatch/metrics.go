package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var jobsQueued = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "aguard_jobs_queued",
	Help: "Jobs waiting for the control thread",
})

var jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "aguard_job_duration_sec",
	Help:    "Time spent running a job on the control thread",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
}, []string{"kind"})

var jobPanics = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "aguard_job_panics",
	Help: "Jobs that panicked and were recovered",
}, []string{"kind"})
