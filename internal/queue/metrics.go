package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	waitingJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sparql_proxy",
		Subsystem: "queue",
		Name:      "waiting_jobs",
		Help:      "Number of jobs waiting for a run slot.",
	})

	runningJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sparql_proxy",
		Subsystem: "queue",
		Name:      "running_jobs",
		Help:      "Number of jobs currently running.",
	})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sparql_proxy",
		Subsystem: "queue",
		Name:      "jobs_total",
		Help:      "Finished jobs by terminal state.",
	}, []string{"state"})
)
