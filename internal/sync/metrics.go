package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Day syncs that reached the final upsert.",
	})
	sourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_source_failures_total",
		Help: "Source calls that failed and were degraded to zero values.",
	}, []string{"source"})
)
