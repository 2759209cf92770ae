package backup

import "github.com/prometheus/client_golang/prometheus"

var (
	snapshotCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_store",
		Subsystem: "backup",
		Name:      "snapshots_total",
		Help:      "Number of snapshot attempts grouped by category and result.",
	}, []string{"category", "result"})

	compressCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_store",
		Subsystem: "backup",
		Name:      "archives_total",
		Help:      "Number of snapshot compressions grouped by result.",
	}, []string{"result"})

	snapshotDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "activity_store",
		Subsystem: "backup",
		Name:      "snapshot_duration_seconds",
		Help:      "Time spent copying the users tree and writing the manifest.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	snapshotSizeGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_store",
		Subsystem: "backup",
		Name:      "last_snapshot_size_bytes",
		Help:      "Size recorded in the manifest of the most recent snapshot.",
	})
)

func init() {
	prometheus.MustRegister(snapshotCounter, compressCounter, snapshotDuration, snapshotSizeGauge)
}
