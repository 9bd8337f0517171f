// Package dataset reads the files of an OpenSfM dataset directory.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/23skdu/sfmexport/internal/cache"
	"github.com/23skdu/sfmexport/internal/core"
	sfmerrors "github.com/23skdu/sfmexport/internal/errors"
	"github.com/23skdu/sfmexport/internal/metrics"
	"github.com/23skdu/sfmexport/internal/reconstruction"
	"github.com/23skdu/sfmexport/internal/storage"
	"github.com/23skdu/sfmexport/internal/tracks"
)

const (
	// DefaultOutputName is the NVM file written at the dataset root.
	DefaultOutputName = "reconstruction.nvm"
	// DefaultExifCacheSize bounds the number of cached image dimensions.
	DefaultExifCacheSize = 4096
)

var (
	// ErrNotDataset is returned by Open when the path is not a directory.
	ErrNotDataset = errors.New("not a dataset directory")
	// ErrMissingExif is returned when an image has no usable metadata.
	ErrMissingExif = errors.New("missing image metadata")
)

type layout struct {
	reconstruction string
	tracksCSV      string
	tracksParquet  string
	images         string
}

var layouts = map[core.Mode]layout{
	core.ModeDistorted: {
		reconstruction: "reconstruction.json",
		tracksCSV:      "tracks.csv",
		tracksParquet:  "tracks.parquet",
		images:         "images",
	},
	core.ModeUndistorted: {
		reconstruction: "undistorted_reconstruction.json",
		tracksCSV:      "undistorted_tracks.csv",
		tracksParquet:  "undistorted_tracks.parquet",
		images:         "undistorted",
	},
}

type dimensions struct {
	width, height int
}

// Dataset is an OpenSfM dataset rooted at a directory. It is safe for
// concurrent use.
type Dataset struct {
	root          string
	logger        zerolog.Logger
	exifCacheSize int
	exif          *cache.LRU[string, dimensions]
}

// Option configures a Dataset.
type Option func(*Dataset)

// WithLogger sets the logger used for load progress.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dataset) { d.logger = l }
}

// WithExifCacheSize bounds the image dimension cache.
func WithExifCacheSize(n int) Option {
	return func(d *Dataset) { d.exifCacheSize = n }
}

// Open checks that root is a directory and returns a Dataset for it.
func Open(root string, opts ...Option) (*Dataset, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, sfmerrors.WrapStorageError(err, "dataset.open", "stat dataset").WithContext("path", root)
	}
	if !info.IsDir() {
		return nil, sfmerrors.WrapValidationError(ErrNotDataset, "dataset.open", "open dataset").WithContext("path", root)
	}
	d := &Dataset{
		root:          root,
		logger:        zerolog.Nop(),
		exifCacheSize: DefaultExifCacheSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.exif = cache.NewLRU[string, dimensions](d.exifCacheSize, "exif")
	return d, nil
}

func (d *Dataset) Root() string {
	return d.root
}

func (d *Dataset) layout(mode core.Mode) layout {
	if l, ok := layouts[mode]; ok {
		return l
	}
	return layouts[core.ModeDistorted]
}

// ReconstructionPath is the reconstruction JSON file for mode.
func (d *Dataset) ReconstructionPath(mode core.Mode) string {
	return filepath.Join(d.root, d.layout(mode).reconstruction)
}

// TracksCSVPath is the tab separated tracks file for mode.
func (d *Dataset) TracksCSVPath(mode core.Mode) string {
	return filepath.Join(d.root, d.layout(mode).tracksCSV)
}

// TracksParquetPath is the columnar track cache for mode.
func (d *Dataset) TracksParquetPath(mode core.Mode) string {
	return filepath.Join(d.root, d.layout(mode).tracksParquet)
}

// OutputPath places name at the dataset root. An empty name selects
// DefaultOutputName.
func (d *Dataset) OutputPath(name string) string {
	if name == "" {
		name = DefaultOutputName
	}
	return filepath.Join(d.root, name)
}

// ImagePath returns the slash separated path of an image relative to the
// dataset root.
func (d *Dataset) ImagePath(mode core.Mode, image string) string {
	return path.Join(d.layout(mode).images, image)
}

func (d *Dataset) exifPath(image string) string {
	return filepath.Join(d.root, "exif", image+".exif")
}

// LoadReconstructions decodes every reconstruction stored for mode.
func (d *Dataset) LoadReconstructions(mode core.Mode) ([]*reconstruction.Reconstruction, error) {
	start := time.Now()
	p := d.ReconstructionPath(mode)
	f, err := os.Open(p)
	if err != nil {
		return nil, sfmerrors.WrapStorageError(err, "dataset.load_reconstruction", "open reconstruction").
			WithContext("path", p)
	}
	defer f.Close()

	recs, err := decodeReconstructions(f)
	if err != nil {
		return nil, sfmerrors.WrapDecodeError(err, "dataset.load_reconstruction", "decode reconstruction").
			WithContext("path", p)
	}

	metrics.ReconstructionsLoadedTotal.Add(float64(len(recs)))
	metrics.DatasetLoadDurationSeconds.WithLabelValues("reconstruction").Observe(time.Since(start).Seconds())
	d.logger.Debug().Str("path", p).Int("reconstructions", len(recs)).Msg("loaded reconstructions")
	return recs, nil
}

// LoadTracks builds the observation graph for mode, preferring the Parquet
// cache when one exists.
func (d *Dataset) LoadTracks(mode core.Mode) (*tracks.Graph, error) {
	pq := d.TracksParquetPath(mode)
	if _, err := os.Stat(pq); err == nil {
		edges, err := storage.LoadTracksParquet(pq)
		if err != nil {
			return nil, sfmerrors.WrapStorageError(err, "dataset.load_tracks", "read track cache").
				WithContext("path", pq)
		}
		metrics.TracksLoadedTotal.WithLabelValues("parquet").Add(float64(len(edges)))
		d.logger.Debug().Str("path", pq).Int("edges", len(edges)).Msg("loaded tracks")
		return tracks.NewGraph(edges), nil
	}

	edges, err := d.ReadTracksCSV(mode)
	if err != nil {
		return nil, err
	}
	return tracks.NewGraph(edges), nil
}

// ReadTracksCSV parses the tab separated tracks file for mode.
func (d *Dataset) ReadTracksCSV(mode core.Mode) ([]tracks.Edge, error) {
	start := time.Now()
	p := d.TracksCSVPath(mode)
	f, err := os.Open(p)
	if err != nil {
		return nil, sfmerrors.WrapStorageError(err, "dataset.load_tracks", "open tracks").
			WithContext("path", p)
	}
	defer f.Close()

	edges, err := tracks.ReadEdges(f)
	if err != nil {
		return nil, sfmerrors.WrapDecodeError(err, "dataset.load_tracks", "parse tracks").
			WithContext("path", p)
	}
	metrics.TracksLoadedTotal.WithLabelValues("csv").Add(float64(len(edges)))
	metrics.DatasetLoadDurationSeconds.WithLabelValues("tracks_csv").Observe(time.Since(start).Seconds())
	d.logger.Debug().Str("path", p).Int("edges", len(edges)).Msg("loaded tracks")
	return edges, nil
}

// ImageDimensions returns the pixel size recorded in the image's exif file.
// Results are kept in a bounded LRU cache.
func (d *Dataset) ImageDimensions(image string) (int, int, error) {
	if dims, ok := d.exif.Get(image); ok {
		metrics.ExifLookupsTotal.WithLabelValues("hit").Inc()
		return dims.width, dims.height, nil
	}

	dims, err := d.readExif(image)
	if err != nil {
		metrics.ExifLookupsTotal.WithLabelValues("error").Inc()
		return 0, 0, err
	}
	metrics.ExifLookupsTotal.WithLabelValues("miss").Inc()
	d.exif.Put(image, dims)
	return dims.width, dims.height, nil
}

func (d *Dataset) readExif(image string) (dimensions, error) {
	p := d.exifPath(image)
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %v", ErrMissingExif, err)
		}
		return dimensions{}, sfmerrors.WrapStorageError(err, "dataset.exif", "read exif").
			WithContext("path", p)
	}

	var meta struct {
		Width  *float64 `json:"width"`
		Height *float64 `json:"height"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return dimensions{}, sfmerrors.WrapDecodeError(err, "dataset.exif", "decode exif").
			WithContext("path", p)
	}
	if meta.Width == nil || meta.Height == nil {
		return dimensions{}, sfmerrors.WrapDecodeError(ErrMissingExif, "dataset.exif", "width and height are required").
			WithContext("path", p)
	}
	return dimensions{width: int(*meta.Width), height: int(*meta.Height)}, nil
}

// Images adapts a Dataset to the lookups the NVM exporter needs for one mode.
type Images struct {
	d    *Dataset
	mode core.Mode
}

// Images returns the per-shot image resolver for mode.
func (d *Dataset) Images(mode core.Mode) Images {
	return Images{d: d, mode: mode}
}

func (i Images) ImagePath(shotID string) (string, error) {
	return i.d.ImagePath(i.mode, shotID), nil
}

func (i Images) ImageDimensions(shotID string) (int, int, error) {
	return i.d.ImageDimensions(shotID)
}
