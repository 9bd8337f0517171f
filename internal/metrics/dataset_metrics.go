package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Dataset Metrics
// =============================================================================

var (
	// TracksLoadedTotal counts observation edges loaded, by source format
	TracksLoadedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfmexport_tracks_loaded_total",
			Help: "Total number of track edges loaded by source",
		},
		[]string{"source"},
	)

	// ReconstructionsLoadedTotal counts reconstructions decoded from disk
	ReconstructionsLoadedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sfmexport_reconstructions_loaded_total",
			Help: "Total number of reconstructions decoded",
		},
	)

	// ExifLookupsTotal counts image dimension lookups by result: hit, miss or error
	ExifLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfmexport_exif_lookups_total",
			Help: "Total number of image metadata lookups by cache result",
		},
		[]string{"result"},
	)

	// DatasetLoadDurationSeconds measures file loads by kind
	DatasetLoadDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sfmexport_dataset_load_duration_seconds",
			Help:    "Time taken to load dataset files",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"kind"},
	)

	// ParquetRowsTotal counts rows moved through the Parquet track cache
	ParquetRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfmexport_parquet_rows_total",
			Help: "Total number of Parquet track rows read or written",
		},
		[]string{"direction"},
	)
)

var (
	// CacheSize tracks the number of entries held by each in-memory cache
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sfmexport_cache_size",
			Help: "Current number of entries in an in-memory cache",
		},
		[]string{"cache"},
	)

	// CacheEvictionsTotal counts least-recently-used evictions per cache
	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sfmexport_cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"cache"},
	)
)
