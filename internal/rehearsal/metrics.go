package rehearsal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "troupe",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Synchronizer steps by operation and outcome.",
	}, []string{"op", "result"})

	slotsBooked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "troupe",
		Subsystem: "sync",
		Name:      "slots_booked_total",
		Help:      "Rehearsal slots inserted.",
	})

	slotsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "troupe",
		Subsystem: "sync",
		Name:      "slots_removed_total",
		Help:      "Rehearsal slots deleted.",
	})

	syncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "troupe",
		Subsystem: "sync",
		Name:      "duration_seconds",
		Help:      "Wall time of synchronizer steps, including lock wait.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
)
