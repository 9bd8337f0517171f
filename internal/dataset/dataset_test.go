package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/sfmexport/internal/core"
	sfmerrors "github.com/23skdu/sfmexport/internal/errors"
	"github.com/23skdu/sfmexport/internal/metrics"
	"github.com/23skdu/sfmexport/internal/storage"
	"github.com/23skdu/sfmexport/internal/tracks"
)

const reconstructionJSON = `[
  {
    "shots": {
      "b.jpg": {"camera": "v2 sony", "rotation": [0, 0, 0], "translation": [1, 2, 3], "capture_time": 0},
      "a.jpg": {"camera": "v2 sony", "rotation": [0, 0, 1.5707963267948966], "translation": [0, 0, 0]}
    },
    "cameras": {
      "v2 sony": {"projection_type": "perspective", "width": 4000, "height": 3000, "focal": 0.85, "k1": -0.01, "k2": 0.002}
    },
    "points": {
      "17": {"coordinates": [1.5, -2, 3.25], "color": [255.9, 0.4, 128]},
      "3": {"coordinates": [0, 0, 1], "color": [1, 2, 3]}
    },
    "reference_lla": {"latitude": 0}
  },
  {"cameras": {}, "shots": {}, "points": {}}
]`

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	p := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func openDataset(t *testing.T) (*Dataset, string) {
	t.Helper()
	root := t.TempDir()
	d, err := Open(root)
	require.NoError(t, err)
	return d, root
}

func TestOpen(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, sfmerrors.IsType(err, sfmerrors.ErrorTypeStorage))

	root := t.TempDir()
	writeFile(t, root, "file", "x")
	_, err = Open(filepath.Join(root, "file"))
	assert.ErrorIs(t, err, ErrNotDataset)
}

func TestPaths(t *testing.T) {
	d, root := openDataset(t)

	assert.Equal(t, filepath.Join(root, "reconstruction.json"), d.ReconstructionPath(core.ModeDistorted))
	assert.Equal(t, filepath.Join(root, "undistorted_reconstruction.json"), d.ReconstructionPath(core.ModeUndistorted))
	assert.Equal(t, filepath.Join(root, "tracks.csv"), d.TracksCSVPath(core.ModeDistorted))
	assert.Equal(t, filepath.Join(root, "undistorted_tracks.parquet"), d.TracksParquetPath(core.ModeUndistorted))
	assert.Equal(t, filepath.Join(root, "reconstruction.nvm"), d.OutputPath(""))
	assert.Equal(t, filepath.Join(root, "other.nvm"), d.OutputPath("other.nvm"))

	assert.Equal(t, "images/a.jpg", d.ImagePath(core.ModeDistorted, "a.jpg"))
	assert.Equal(t, "undistorted/a.jpg", d.ImagePath(core.ModeUndistorted, "a.jpg"))
}

func TestLoadReconstructions_PreservesDocumentOrder(t *testing.T) {
	d, root := openDataset(t)
	writeFile(t, root, "reconstruction.json", reconstructionJSON)

	recs, err := d.LoadReconstructions(core.ModeDistorted)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	rec := recs[0]
	shots := rec.Shots()
	require.Len(t, shots, 2)
	assert.Equal(t, "b.jpg", shots[0].ID)
	assert.Equal(t, "a.jpg", shots[1].ID)

	cam := shots[0].Camera
	assert.Equal(t, "v2 sony", cam.ID)
	assert.Equal(t, 4000, cam.Width)
	assert.Equal(t, 3000, cam.Height)
	assert.InDelta(t, 3400.0, cam.FocalPixels(), 1e-9)

	origin := shots[0].Pose.Origin()
	assert.InDelta(t, -1, origin.X, 1e-12)
	assert.InDelta(t, -2, origin.Y, 1e-12)
	assert.InDelta(t, -3, origin.Z, 1e-12)

	r := shots[1].Pose.RotationMatrix()
	assert.InDelta(t, 0, r.At(0, 0), 1e-12)
	assert.InDelta(t, -1, r.At(0, 1), 1e-12)

	points := rec.Points()
	require.Len(t, points, 2)
	assert.Equal(t, "17", points[0].ID)
	assert.Equal(t, r3.Vector{X: 1.5, Y: -2, Z: 3.25}, points[0].Coordinates)
	assert.Equal(t, [3]int{255, 0, 128}, points[0].IntColor())

	assert.Equal(t, 0, recs[1].NumShots())
}

func TestLoadReconstructions_Errors(t *testing.T) {
	d, root := openDataset(t)

	_, err := d.LoadReconstructions(core.ModeUndistorted)
	require.Error(t, err)
	assert.True(t, sfmerrors.IsType(err, sfmerrors.ErrorTypeStorage))

	tests := []struct {
		name    string
		content string
	}{
		{"not a list", `{"cameras": {}}`},
		{"truncated", `[{"cameras": {`},
		{"unknown camera", `[{"cameras": {}, "shots": {"a": {"camera": "x"}}}]`},
		{"bad point", `[{"points": {"p": {"coordinates": "here"}}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeFile(t, root, "reconstruction.json", tt.content)
			_, err := d.LoadReconstructions(core.ModeDistorted)
			require.Error(t, err)
			assert.True(t, sfmerrors.IsType(err, sfmerrors.ErrorTypeDecode), err.Error())
		})
	}
}

func TestLoadReconstructions_NullMappings(t *testing.T) {
	d, root := openDataset(t)
	writeFile(t, root, "reconstruction.json", `[{"cameras": null, "shots": null, "points": null}]`)

	recs, err := d.LoadReconstructions(core.ModeDistorted)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 0, recs[0].NumPoints())
}

func TestLoadTracks_CSV(t *testing.T) {
	d, root := openDataset(t)
	writeFile(t, root, "undistorted_tracks.csv", strings.Join([]string{
		"OPENSFM_TRACKS_VERSION_v1",
		"a.jpg\t1\t4\t0.1\t-0.2\t0.004\t10\t20\t30",
		"b.jpg\t1\t9\t0.3\t0.4\t0.004\t10\t20\t30",
	}, "\n"))

	before := testutil.ToFloat64(metrics.TracksLoadedTotal.WithLabelValues("csv"))
	g, err := d.LoadTracks(core.ModeUndistorted)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, g.ShotsObserving("1"))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.TracksLoadedTotal.WithLabelValues("csv"))-before)
}

func TestLoadTracks_PrefersParquet(t *testing.T) {
	d, root := openDataset(t)
	writeFile(t, root, "tracks.csv", "this is not a tracks file")

	edges := []tracks.Edge{
		{ShotID: "a.jpg", PointID: "7", Observation: tracks.Observation{FeatureID: 3}},
	}
	require.NoError(t, storage.SaveTracksParquet(d.TracksParquetPath(core.ModeDistorted), edges))

	g, err := d.LoadTracks(core.ModeDistorted)
	require.NoError(t, err)
	obs, ok := g.Observation("a.jpg", "7")
	require.True(t, ok)
	assert.Equal(t, 3, obs.FeatureID)
}

func TestLoadTracks_Malformed(t *testing.T) {
	d, root := openDataset(t)
	writeFile(t, root, "tracks.csv", "a.jpg\t1\t4\n")

	_, err := d.LoadTracks(core.ModeDistorted)
	assert.ErrorIs(t, err, tracks.ErrMalformedRow)
}

func TestImageDimensions(t *testing.T) {
	d, root := openDataset(t)
	writeFile(t, root, "exif/a.jpg.exif", `{"width": 1000, "height": 500, "make": "sony"}`)
	writeFile(t, root, "exif/partial.jpg.exif", `{"width": 1000}`)
	writeFile(t, root, "exif/broken.jpg.exif", `{`)

	w, h, err := d.ImageDimensions("a.jpg")
	require.NoError(t, err)
	assert.Equal(t, 1000, w)
	assert.Equal(t, 500, h)

	// Served from the cache once the file is gone.
	require.NoError(t, os.Remove(filepath.Join(root, "exif", "a.jpg.exif")))
	hits := testutil.ToFloat64(metrics.ExifLookupsTotal.WithLabelValues("hit"))
	w, h, err = d.ImageDimensions("a.jpg")
	require.NoError(t, err)
	assert.Equal(t, [2]int{1000, 500}, [2]int{w, h})
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ExifLookupsTotal.WithLabelValues("hit"))-hits)

	_, _, err = d.ImageDimensions("missing.jpg")
	assert.ErrorIs(t, err, ErrMissingExif)

	_, _, err = d.ImageDimensions("partial.jpg")
	assert.ErrorIs(t, err, ErrMissingExif)

	_, _, err = d.ImageDimensions("broken.jpg")
	assert.True(t, sfmerrors.IsType(err, sfmerrors.ErrorTypeDecode))
}

func TestImages(t *testing.T) {
	d, root := openDataset(t)
	writeFile(t, root, "exif/a.jpg.exif", `{"width": 640, "height": 480}`)

	images := d.Images(core.ModeUndistorted)
	p, err := images.ImagePath("a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "undistorted/a.jpg", p)

	w, h, err := images.ImageDimensions("a.jpg")
	require.NoError(t, err)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func TestImageDimensions_BoundedCache(t *testing.T) {
	root := t.TempDir()
	d, err := Open(root, WithExifCacheSize(1))
	require.NoError(t, err)
	writeFile(t, root, "exif/a.jpg.exif", `{"width": 1, "height": 2}`)
	writeFile(t, root, "exif/b.jpg.exif", `{"width": 3, "height": 4}`)

	_, _, err = d.ImageDimensions("a.jpg")
	require.NoError(t, err)
	_, _, err = d.ImageDimensions("b.jpg")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "exif", "a.jpg.exif")))
	_, _, err = d.ImageDimensions("a.jpg")
	assert.ErrorIs(t, err, ErrMissingExif, "a.jpg should have been evicted")
}
