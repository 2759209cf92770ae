package retention

import "github.com/prometheus/client_golang/prometheus"

const (
	kindBackup = "backup"
	kindTemp   = "temp"
)

var (
	sweepDeletedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_store",
		Subsystem: "retention",
		Name:      "deleted_total",
		Help:      "Number of entries deleted by retention sweeps, labeled by kind.",
	}, []string{"kind"})

	sweepSkippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_store",
		Subsystem: "retention",
		Name:      "skipped_total",
		Help:      "Number of backup entries left in place because they could not be classified.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(sweepDeletedCounter, sweepSkippedCounter)
}
