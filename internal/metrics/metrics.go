// Package metrics exposes the process's Prometheus instrumentation:
// per-operation current/total gauges and counters, registered once at
// package init via promauto and updated through the small
// ObserveStorageOp/ObserveHasherJob timer helpers rather than a full
// decorator type, since the storage and
// hasher surfaces here are concrete structs, not interfaces.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storageOpsCurrent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "syncspirit",
		Subsystem: "storage",
		Name:      "operations_current",
		Help:      "Number of storage operations currently ongoing, by operation.",
	}, []string{"operation"})
	storageOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncspirit",
		Subsystem: "storage",
		Name:      "operations_total",
		Help:      "Total number of completed storage operations, by operation.",
	}, []string{"operation"})
	storageOpSeconds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncspirit",
		Subsystem: "storage",
		Name:      "operation_seconds_total",
		Help:      "Total time spent in storage operations, by operation.",
	}, []string{"operation"})

	hasherJobsCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncspirit",
		Subsystem: "hasher",
		Name:      "jobs_current",
		Help:      "Number of hasher jobs currently in flight across the pool.",
	})
	hasherJobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncspirit",
		Subsystem: "hasher",
		Name:      "jobs_total",
		Help:      "Total number of hasher jobs completed.",
	})

	netctrlRequestsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "syncspirit",
		Subsystem: "netctrl",
		Name:      "requests_in_flight",
		Help:      "Number of block requests currently outstanding, by peer device.",
	}, []string{"device"})
	netctrlBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncspirit",
		Subsystem: "netctrl",
		Name:      "blocks_total",
		Help:      "Total number of blocks pulled from a peer, by device and result.",
	}, []string{"device", "result"})
)

// ObserveStorageOp starts timing a storage operation; call the returned
// func when it completes.
func ObserveStorageOp(op string) func() {
	t0 := time.Now()
	storageOpsCurrent.WithLabelValues(op).Inc()
	return func() {
		storageOpSeconds.WithLabelValues(op).Add(time.Since(t0).Seconds())
		storageOpsTotal.WithLabelValues(op).Inc()
		storageOpsCurrent.WithLabelValues(op).Dec()
	}
}

// ObserveHasherJob brackets one hasher job's lifetime.
func ObserveHasherJob() func() {
	hasherJobsCurrent.Inc()
	return func() {
		hasherJobsCurrent.Dec()
		hasherJobsTotal.Inc()
	}
}

// SetNetctrlInFlight records the current pipelining depth for one peer.
func SetNetctrlInFlight(device string, n int) {
	netctrlRequestsInFlight.WithLabelValues(device).Set(float64(n))
}

// IncNetctrlBlock counts one pulled block, by outcome ("ok" or
// "digest_mismatch").
func IncNetctrlBlock(device, result string) {
	netctrlBlocksTotal.WithLabelValues(device, result).Inc()
}
