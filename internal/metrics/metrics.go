package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CycleDuration measures one refresh cycle per instance
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tidesensors_refresh_cycle_seconds",
			Help:    "Duration of a refresh cycle in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"identifier"},
	)

	// CycleOutcomes counts cycles by result: ok, partial, failed, skipped
	CycleOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidesensors_refresh_cycles_total",
			Help: "Total number of refresh cycles by outcome",
		},
		[]string{"identifier", "outcome"},
	)

	// StaleReadings is the number of readings currently served from a previous cycle
	StaleReadings = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tidesensors_stale_readings",
			Help: "Number of readings carrying stale data",
		},
		[]string{"identifier"},
	)

	// FetchErrors counts upstream failures by provider, product and error kind
	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidesensors_upstream_fetch_errors_total",
			Help: "Total number of failed upstream fetches",
		},
		[]string{"provider", "product", "kind"},
	)

	// ProbeOutcomes counts capability probes during setup
	ProbeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidesensors_capability_probes_total",
			Help: "Total number of capability probes by outcome",
		},
		[]string{"provider", "product", "outcome"},
	)

	// PublishErrors counts failed sink deliveries
	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidesensors_publish_errors_total",
			Help: "Total number of readings that could not be delivered to a sink",
		},
		[]string{"sink"},
	)
)

// ErrorKind labels an error for FetchErrors; unknown errors become "other".
func ErrorKind(kind string) string {
	if kind == "" {
		return "other"
	}
	return kind
}
