package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route pattern and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Recomputes counts scoring, rebalancing and analytics passes
	Recomputes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "recompute_total", Help: "Recomputation passes by kind and outcome."},
		[]string{"kind", "outcome"},
	)
	// RecomputeDuration tracks pass latency in seconds
	RecomputeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "recompute_duration_seconds", Help: "Recomputation latency in seconds.", Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1}},
		[]string{"kind"},
	)
	// EmissionTiers counts which CO2 rate tier each enriched record used
	EmissionTiers = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "emission_tier_total", Help: "Emission estimates by CO2 rate tier."},
		[]string{"tier"},
	)
	// DroppedRecords is the number of orders without route or cost rows in the last pass
	DroppedRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "dropped_records", Help: "Records excluded from metrics in the last enrichment pass."},
	)
	// TableRows reports row counts of the loaded snapshot
	TableRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "dataset_table_rows", Help: "Rows per table in the loaded snapshot."},
		[]string{"table"},
	)
	// DatasetNotices reports ingestion notices of the loaded snapshot
	DatasetNotices = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "dataset_notices", Help: "Ingestion notices in the loaded snapshot by kind."},
		[]string{"kind"},
	)
	// CacheLookups counts result cache lookups by outcome
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "result_cache_lookups_total", Help: "Result cache lookups by outcome."},
		[]string{"outcome"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Recomputes)
		Registry.MustRegister(RecomputeDuration)
		Registry.MustRegister(EmissionTiers)
		Registry.MustRegister(DroppedRecords)
		Registry.MustRegister(TableRows)
		Registry.MustRegister(DatasetNotices)
		Registry.MustRegister(CacheLookups)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
