package metrics

import "github.com/prometheus/client_golang/prometheus"

// Mapping Prometheus metrics.
var (
	MappingUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dynamap",
			Name:      "mapping_updates_total",
			Help:      "Total number of persisted mapping updates",
		},
		[]string{"index"},
	)

	DynamicFieldsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dynamap",
			Name:      "dynamic_fields_total",
			Help:      "Total number of dynamically created field mappers",
		},
		[]string{"index"},
	)

	MergeConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dynamap",
			Name:      "merge_conflicts_total",
			Help:      "Total number of mapping merge conflicts",
		},
		[]string{"index"},
	)

	DocumentParseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dynamap",
			Name:      "document_parse_duration_seconds",
			Help:      "Document parse duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"index"},
	)
)

// RegisterMappingMetrics registers the mapping metrics explicitly (no init()).
func RegisterMappingMetrics() {
	prometheus.MustRegister(MappingUpdatesTotal)
	prometheus.MustRegister(DynamicFieldsTotal)
	prometheus.MustRegister(MergeConflictsTotal)
	prometheus.MustRegister(DocumentParseDuration)
}
