package tracks

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edge(shot, point string, feature int, x, y float64) Edge {
	return Edge{
		ShotID:  shot,
		PointID: point,
		Observation: Observation{
			FeatureID: feature,
			Feature:   r2.Point{X: x, Y: y},
		},
	}
}

func TestGraph_SymmetricLookups(t *testing.T) {
	g := NewGraph([]Edge{
		edge("a.jpg", "1", 10, 0.1, 0.2),
		edge("b.jpg", "1", 11, -0.1, 0.3),
		edge("a.jpg", "2", 12, 0, 0),
	})

	assert.Equal(t, []string{"a.jpg", "b.jpg"}, g.ShotsObserving("1"))
	assert.Equal(t, []string{"a.jpg"}, g.ShotsObserving("2"))
	assert.Empty(t, g.ShotsObserving("3"))
	assert.Equal(t, 2, g.TrackLength("1"))
	assert.Equal(t, 0, g.TrackLength("3"))

	obs, ok := g.Observation("b.jpg", "1")
	require.True(t, ok)
	assert.Equal(t, 11, obs.FeatureID)
	assert.Equal(t, r2.Point{X: -0.1, Y: 0.3}, obs.Feature)

	_, ok = g.Observation("b.jpg", "2")
	assert.False(t, ok)
	_, ok = g.Observation("zzz.jpg", "1")
	assert.False(t, ok)

	assert.Equal(t, 2, g.PointsSeenBy("a.jpg"))
	assert.Equal(t, 3, g.NumEdges())
	assert.Equal(t, 2, g.NumPoints())
	assert.Equal(t, 2, g.NumShots())
}

func TestGraph_EveryListedShotHasEdgeData(t *testing.T) {
	g := NewGraph([]Edge{
		edge("a", "p", 1, 0, 0),
		edge("b", "p", 2, 0, 0),
		edge("b", "q", 3, 0, 0),
	})
	for _, pointID := range []string{"p", "q"} {
		for _, shotID := range g.ShotsObserving(pointID) {
			_, ok := g.Observation(shotID, pointID)
			assert.True(t, ok, "%s/%s", shotID, pointID)
		}
	}
}

func TestGraph_DuplicateEdgeReplacesData(t *testing.T) {
	g := NewGraph([]Edge{
		edge("a", "p", 1, 0, 0),
		edge("b", "p", 2, 0, 0),
		edge("a", "p", 9, 0.25, 0.25),
	})

	assert.Equal(t, []string{"a", "b"}, g.ShotsObserving("p"))
	assert.Equal(t, 2, g.NumEdges())
	obs, _ := g.Observation("a", "p")
	assert.Equal(t, 9, obs.FeatureID)
}

func TestGraph_ZeroValueAdd(t *testing.T) {
	var g Graph
	g.Add(edge("a", "p", 1, 0, 0))
	assert.Equal(t, 1, g.TrackLength("p"))
}

func TestGraph_EdgesGroupedByPoint(t *testing.T) {
	g := NewGraph([]Edge{
		edge("a", "p", 1, 0, 0),
		edge("a", "q", 2, 0, 0),
		edge("b", "p", 3, 0, 0),
	})
	got := g.Edges()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"p", "p", "q"}, []string{got[0].PointID, got[1].PointID, got[2].PointID})
	assert.Equal(t, []string{"a", "b", "a"}, []string{got[0].ShotID, got[1].ShotID, got[2].ShotID})
}

func TestReadCSV_Version0(t *testing.T) {
	input := "01.jpg\t0\t5\t0.1\t-0.2\t255\t128\t0\n" +
		"02.jpg\t0\t7\t-0.05\t0.3\t250\t120\t3\n"

	g, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"01.jpg", "02.jpg"}, g.ShotsObserving("0"))

	obs, ok := g.Observation("02.jpg", "0")
	require.True(t, ok)
	assert.Equal(t, 7, obs.FeatureID)
	assert.InDelta(t, -0.05, obs.Feature.X, 1e-12)
	assert.Equal(t, [3]int{250, 120, 3}, obs.Color)
	assert.Zero(t, obs.Scale)
}

func TestReadCSV_Version1(t *testing.T) {
	input := "OPENSFM_TRACKS_VERSION_v1\n" +
		"01.jpg\t4\t5\t0.1\t-0.2\t0.004\t255\t128\t0\n"

	g, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	obs, ok := g.Observation("01.jpg", "4")
	require.True(t, ok)
	assert.InDelta(t, 0.004, obs.Scale, 1e-12)
	assert.Equal(t, [3]int{255, 128, 0}, obs.Color)
}

func TestReadCSV_Version2(t *testing.T) {
	input := "OPENSFM_TRACKS_VERSION_v2\n" +
		"01.jpg\t4\t5\t0.1\t-0.2\t0.004\t255\t128\t0\t-1\t-1\n"

	g, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, g.NumEdges())
}

func TestReadCSV_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"too few columns", "01.jpg\t0\t5\n", 1},
		{"bad feature id", "01.jpg\t0\tfive\t0.1\t0.2\t1\t2\t3\n", 1},
		{"bad x", "01.jpg\t0\t5\tx\t0.2\t1\t2\t3\n", 1},
		{"fractional color", "OPENSFM_TRACKS_VERSION_v1\n01.jpg\t0\t5\t0.1\t0.2\t1\t2.5\t2\t3\n", 2},
		{"unknown version", "OPENSFM_TRACKS_VERSION_v9\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRow))

			var rowErr *RowError
			require.True(t, errors.As(err, &rowErr))
			assert.Equal(t, tt.line, rowErr.Line)
		})
	}
}

func TestParseInt(t *testing.T) {
	v, err := parseInt("12.0")
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	_, err = parseInt("1.5")
	assert.Error(t, err)
}

func TestWriteCSV_ReadBack(t *testing.T) {
	g := NewGraph([]Edge{
		{ShotID: "a.jpg", PointID: "1", Observation: Observation{FeatureID: 3, Feature: r2.Point{X: 0.125, Y: -0.25}, Scale: 0.002, Color: [3]int{1, 2, 3}}},
		{ShotID: "b.jpg", PointID: "1", Observation: Observation{FeatureID: 4, Feature: r2.Point{X: -0.5, Y: 0.5}, Scale: 0.003, Color: [3]int{4, 5, 6}}},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, g))
	assert.True(t, strings.HasPrefix(buf.String(), "OPENSFM_TRACKS_VERSION_v1\n"))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, g.Edges(), back.Edges())
}
