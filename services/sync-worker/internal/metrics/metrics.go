package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SyncProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_operations_processed_total",
		Help: "Offline sync operations processed, by outcome",
	}, []string{"outcome"})
	SyncPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_operations_pending",
		Help: "Number of queued sync operations waiting to be applied",
	})
)

func init() {
	prometheus.MustRegister(SyncProcessedTotal, SyncPending)
}
