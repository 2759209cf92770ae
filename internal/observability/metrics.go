// Package observability holds watermark gauges shared across store components.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	partitionWrittenGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_store",
		Subsystem: "watermark",
		Name:      "last_partition_written_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful partition merge-write.",
	})
	backupCompletedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_store",
		Subsystem: "watermark",
		Name:      "last_backup_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent complete backup snapshot.",
	})
	sweepCompletedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_store",
		Subsystem: "watermark",
		Name:      "last_sweep_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent retention sweep that finished without errors.",
	})
)

func init() {
	prometheus.MustRegister(partitionWrittenGauge, backupCompletedGauge, sweepCompletedGauge)
}

// RecordPartitionWritten updates the write watermark gauge.
func RecordPartitionWritten(ts time.Time) {
	if ts.IsZero() {
		return
	}
	partitionWrittenGauge.Set(float64(ts.Unix()))
}

// RecordBackupCompleted updates the backup watermark gauge.
func RecordBackupCompleted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	backupCompletedGauge.Set(float64(ts.Unix()))
}

// RecordSweepCompleted updates the retention watermark gauge.
func RecordSweepCompleted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	sweepCompletedGauge.Set(float64(ts.Unix()))
}
