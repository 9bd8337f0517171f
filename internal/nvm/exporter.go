// Package nvm writes reconstructions in the NVM_V3 text format read by
// VisualSfM and compatible viewers.
package nvm

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	sfmerrors "github.com/23skdu/sfmexport/internal/errors"
	"github.com/23skdu/sfmexport/internal/geometry"
	"github.com/23skdu/sfmexport/internal/metrics"
	"github.com/23skdu/sfmexport/internal/reconstruction"
	"github.com/23skdu/sfmexport/internal/tracks"
)

// orthonormalTolerance bounds |RᵀR - I| before a rotation is reported as
// suspicious in the debug log.
const orthonormalTolerance = 1e-6

// TrackCountPolicy decides the K written in front of a point's fragments.
type TrackCountPolicy string

const (
	// CountNominal writes the full track length, including observations from
	// shots that are not part of the export. Existing consumers expect this.
	CountNominal TrackCountPolicy = "nominal"
	// CountEmitted writes the number of fragment groups actually printed.
	CountEmitted TrackCountPolicy = "emitted"
)

// ParseTrackCountPolicy accepts "nominal" or "emitted".
func ParseTrackCountPolicy(s string) (TrackCountPolicy, error) {
	switch TrackCountPolicy(s) {
	case CountNominal, CountEmitted:
		return TrackCountPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown track count policy %q", s)
	}
}

// DimensionLookup returns the pixel size of the original image of a shot.
type DimensionLookup interface {
	ImageDimensions(shotID string) (width, height int, err error)
}

// DimensionFunc adapts a function to DimensionLookup.
type DimensionFunc func(shotID string) (int, int, error)

func (f DimensionFunc) ImageDimensions(shotID string) (int, int, error) {
	return f(shotID)
}

// PathResolver returns the image path of a shot relative to the dataset root.
type PathResolver interface {
	ImagePath(shotID string) (string, error)
}

// PathFunc adapts a function to PathResolver.
type PathFunc func(shotID string) (string, error)

func (f PathFunc) ImagePath(shotID string) (string, error) {
	return f(shotID)
}

// Sink receives the serialized document. Implementations own the underlying
// handle and must release it whether or not write succeeds.
type Sink interface {
	WriteWith(write func(io.Writer) error) error
}

// ViewIndex maps shot IDs to their position in the camera block.
type ViewIndex map[string]int

// Lookup reports the view index of shotID, if the shot was exported.
func (v ViewIndex) Lookup(shotID string) (int, bool) {
	i, ok := v[shotID]
	return i, ok
}

// Stats summarises one export.
type Stats struct {
	Cameras      int
	Points       int
	Observations int
	// Dropped counts observations whose shot is not in the exported set.
	Dropped int
	Bytes   int64
}

// Config controls an Exporter.
type Config struct {
	TrackCount TrackCountPolicy
	Logger     zerolog.Logger
}

// DefaultConfig returns the settings that reproduce existing NVM files.
func DefaultConfig() Config {
	return Config{
		TrackCount: CountNominal,
		Logger:     zerolog.Nop(),
	}
}

// Exporter turns a reconstruction and its observation graph into an NVM_V3
// document.
type Exporter struct {
	paths PathResolver
	dims  DimensionLookup
	cfg   Config
}

func NewExporter(paths PathResolver, dims DimensionLookup, cfg Config) *Exporter {
	if cfg.TrackCount == "" {
		cfg.TrackCount = CountNominal
	}
	return &Exporter{paths: paths, dims: dims, cfg: cfg}
}

// Build assembles the document for rec. Shots are indexed and emitted in the
// reconstruction's iteration order; points reuse those indices. Observations
// from shots outside rec are skipped without error.
func (e *Exporter) Build(rec *reconstruction.Reconstruction, graph *tracks.Graph) (*Document, Stats, error) {
	if graph == nil {
		graph = tracks.NewGraph(nil)
	}
	log := e.cfg.Logger

	shots := rec.Shots()
	doc := &Document{
		Cameras: make([]CameraRecord, 0, len(shots)),
	}
	index := make(ViewIndex, len(shots))
	for i, shot := range shots {
		path, err := e.paths.ImagePath(shot.ID)
		if err != nil {
			return nil, Stats{}, sfmerrors.WrapStorageError(err, "nvm.build", "resolve image path").
				WithContext("shot", shot.ID)
		}
		if !geometry.IsOrthonormal(shot.Pose.RotationMatrix(), orthonormalTolerance) {
			log.Debug().Str("shot", shot.ID).Msg("rotation is not orthonormal")
		}
		doc.Cameras = append(doc.Cameras, EncodeShot(shot, path))
		index[shot.ID] = i
	}

	stats := Stats{Cameras: len(doc.Cameras)}
	points := rec.Points()
	doc.Points = make([]PointRecord, 0, len(points))
	for _, point := range points {
		observers := graph.ShotsObserving(point.ID)
		pr := PointRecord{
			Coordinates: point.Coordinates,
			Color:       point.IntColor(),
			TrackLength: len(observers),
		}
		for _, shotID := range observers {
			view, ok := index.Lookup(shotID)
			if !ok {
				stats.Dropped++
				continue
			}
			obs, ok := graph.Observation(shotID, point.ID)
			if !ok {
				stats.Dropped++
				continue
			}
			width, height, err := e.dims.ImageDimensions(shotID)
			if err != nil {
				return nil, Stats{}, sfmerrors.WrapStorageError(err, "nvm.build", "image dimensions").
					WithContext("shot", shotID)
			}
			pr.Fragments = append(pr.Fragments, Fragment{
				View:      view,
				FeatureID: obs.FeatureID,
				X:         denormalize(width, obs.Feature.X),
				Y:         denormalize(height, obs.Feature.Y),
			})
		}
		if e.cfg.TrackCount == CountEmitted {
			pr.TrackLength = len(pr.Fragments)
		}
		stats.Observations += len(pr.Fragments)
		doc.Points = append(doc.Points, pr)
	}
	stats.Points = len(doc.Points)

	return doc, stats, nil
}

// Export writes the first reconstruction of recs to sink. An empty list is a
// no-op and the sink is never opened.
func (e *Exporter) Export(recs []*reconstruction.Reconstruction, graph *tracks.Graph, sink Sink) (Stats, error) {
	log := e.cfg.Logger
	if len(recs) == 0 || recs[0] == nil {
		metrics.ExportsTotal.WithLabelValues("empty").Inc()
		log.Info().Msg("no reconstruction to export")
		return Stats{}, nil
	}
	if len(recs) > 1 {
		log.Info().Int("reconstructions", len(recs)).Msg("exporting the first reconstruction only")
	}

	start := time.Now()
	doc, stats, err := e.Build(recs[0], graph)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("error").Inc()
		return Stats{}, err
	}

	err = sink.WriteWith(func(w io.Writer) error {
		n, err := doc.WriteTo(w)
		stats.Bytes = n
		return err
	})
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("error").Inc()
		return Stats{}, sfmerrors.WrapStorageError(err, "nvm.export", "write document")
	}

	metrics.ExportsTotal.WithLabelValues("ok").Inc()
	metrics.ExportDurationSeconds.Observe(time.Since(start).Seconds())
	metrics.CamerasExportedTotal.Add(float64(stats.Cameras))
	metrics.PointsExportedTotal.Add(float64(stats.Points))
	metrics.ObservationsWrittenTotal.Add(float64(stats.Observations))
	metrics.ObservationsDroppedTotal.Add(float64(stats.Dropped))
	metrics.OutputBytesTotal.Add(float64(stats.Bytes))

	log.Debug().
		Int("cameras", stats.Cameras).
		Int("points", stats.Points).
		Int("observations", stats.Observations).
		Int("dropped", stats.Dropped).
		Int64("bytes", stats.Bytes).
		Dur("elapsed", time.Since(start)).
		Msg("nvm export complete")
	return stats, nil
}
