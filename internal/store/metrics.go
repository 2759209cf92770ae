package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	saveCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_store",
		Subsystem: "writer",
		Name:      "saves_total",
		Help:      "Number of partition merge-writes grouped by result.",
	}, []string{"result"})

	recordsWrittenCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_store",
		Subsystem: "writer",
		Name:      "records_submitted_total",
		Help:      "Number of incoming records merged into partitions.",
	})

	saveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "activity_store",
		Subsystem: "writer",
		Name:      "save_duration_seconds",
		Help:      "Time spent reading, merging and replacing a partition.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	partitionRowsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_store",
		Subsystem: "writer",
		Name:      "last_partition_rows",
		Help:      "Row count of the most recently written partition.",
	})
)

func init() {
	prometheus.MustRegister(saveCounter, recordsWrittenCounter, saveDuration, partitionRowsGauge)
}

func recordSave(start time.Time, incoming, rows int, err error) {
	saveDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		saveCounter.WithLabelValues("failure").Inc()
		return
	}
	saveCounter.WithLabelValues("success").Inc()
	recordsWrittenCounter.Add(float64(incoming))
	partitionRowsGauge.Set(float64(rows))
}
