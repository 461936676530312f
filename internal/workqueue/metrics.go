package workqueue

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "troupe",
		Subsystem: "workqueue",
		Name:      "submissions_total",
		Help:      "Jobs accepted per shard.",
	}, []string{"shard"})

	queueFullTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "troupe",
		Subsystem: "workqueue",
		Name:      "queue_full_total",
		Help:      "Submissions rejected because the shard stayed full.",
	}, []string{"shard"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "troupe",
		Subsystem: "workqueue",
		Name:      "retries_total",
		Help:      "Job attempts repeated after a retryable error.",
	}, []string{"shard"})

	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "troupe",
		Subsystem: "workqueue",
		Name:      "failures_total",
		Help:      "Jobs that finished with an error.",
	}, []string{"shard"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "troupe",
		Subsystem: "workqueue",
		Name:      "run_duration_seconds",
		Help:      "Duration of single job attempts.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"shard"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "troupe",
		Subsystem: "workqueue",
		Name:      "queue_depth",
		Help:      "Jobs waiting in each shard.",
	}, []string{"shard"})
)

func labelFor(shard int) string { return strconv.Itoa(shard) }
