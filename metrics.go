package objgraph

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultApplied  = "applied"
	resultNoop     = "noop"
	resultBuffered = "buffered"
	resultRejected = "rejected"
	resultEvicted  = "evicted"

	// kind label of ops that failed validation
	kindInvalid = "invalid"
)

var OpsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "objgraph",
	Subsystem: "engine",
	Name:      "ops",
}, []string{"kind", "result"})

var OpsWaiting = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "objgraph",
	Subsystem: "engine",
	Name:      "waiting",
}, []string{"host"})

var ProcessDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "objgraph",
	Subsystem: "engine",
	Name:      "process_duration_us",
	Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
}, []string{"kind"})

var SweepRounds = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "objgraph",
	Subsystem: "engine",
	Name:      "sweep_rounds",
}, []string{"host"})

// Collectors lists the engine metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{OpsProcessed, OpsWaiting, ProcessDuration, SweepRounds}
}

func (g *Graph) waitingGauge() prometheus.Gauge {
	return OpsWaiting.WithLabelValues(g.host)
}
