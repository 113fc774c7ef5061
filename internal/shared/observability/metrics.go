// # internal/shared/observability/metrics.go
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chisel_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chisel_graph_nodes_total",
		Help: "Total number of symbol nodes in the graph store.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chisel_graph_edges_total",
		Help: "Total number of import and reference edges in the graph store.",
	})

	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chisel_resolutions_total",
		Help: "Symbol resolutions by outcome.",
	}, []string{"outcome"})

	ReferenceScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chisel_reference_scan_seconds",
		Help:    "Time spent collecting references for one symbol.",
		Buckets: prometheus.DefBuckets,
	})

	PatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chisel_patches_total",
		Help: "Patch attempts by outcome (applied, rolled_back, failed).",
	}, []string{"outcome"})

	ValidationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chisel_validation_seconds",
		Help:    "Time spent in one validation gate.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gate"})

	ValidationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chisel_validation_failures_total",
		Help: "Validation gate failures by gate.",
	}, []string{"gate"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chisel_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
