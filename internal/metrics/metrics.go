package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Export Metrics
// =============================================================================

var (
	// ExportsTotal counts export runs by outcome: ok, empty or error
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfmexport_exports_total",
			Help: "Total number of export runs by outcome",
		},
		[]string{"status"},
	)

	// ExportDurationSeconds measures building and writing one document
	ExportDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sfmexport_export_duration_seconds",
			Help:    "Time taken to build and write an export",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// CamerasExportedTotal counts camera lines written
	CamerasExportedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sfmexport_cameras_exported_total",
			Help: "Total number of cameras written",
		},
	)

	// PointsExportedTotal counts point lines written
	PointsExportedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sfmexport_points_exported_total",
			Help: "Total number of points written",
		},
	)

	// ObservationsWrittenTotal counts fragment groups written
	ObservationsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sfmexport_observations_written_total",
			Help: "Total number of point observations written",
		},
	)

	// ObservationsDroppedTotal counts observations whose shot was not exported
	ObservationsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sfmexport_observations_dropped_total",
			Help: "Total number of observations referencing shots outside the export",
		},
	)

	// OutputBytesTotal counts bytes handed to output sinks
	OutputBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sfmexport_output_bytes_total",
			Help: "Total bytes written to export outputs",
		},
	)
)
