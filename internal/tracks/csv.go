package tracks

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
)

const versionPrefix = "OPENSFM_TRACKS_VERSION_"

// Tracks file versions. Version 0 files carry no header line.
const (
	Version0 = 0
	Version1 = 1
	Version2 = 2
)

// ErrMalformedRow is wrapped by every RowError.
var ErrMalformedRow = errors.New("malformed tracks row")

// RowError reports the offending line of a tracks file.
type RowError struct {
	Line   int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("tracks line %d: %s", e.Line, e.Reason)
}

func (e *RowError) Unwrap() error {
	return ErrMalformedRow
}

// columns per version: image, track, feature, x, y, [scale], r, g, b, [segmentation, instance]
var columnCount = map[int]int{
	Version0: 8,
	Version1: 9,
	Version2: 11,
}

// ReadCSV parses an OpenSfM tab separated tracks file into a Graph.
func ReadCSV(r io.Reader) (*Graph, error) {
	edges, err := ReadEdges(r)
	if err != nil {
		return nil, err
	}
	return NewGraph(edges), nil
}

// ReadEdges parses an OpenSfM tracks file into its rows.
func ReadEdges(r io.Reader) ([]Edge, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	version := Version0
	var edges []Edge
	first := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return edges, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read tracks: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if len(record) == 1 && strings.HasPrefix(record[0], versionPrefix) {
				v, err := parseVersion(record[0])
				if err != nil {
					return nil, &RowError{Line: line, Reason: err.Error()}
				}
				version = v
				continue
			}
		}

		edge, err := parseRow(record, version)
		if err != nil {
			return nil, &RowError{Line: line, Reason: err.Error()}
		}
		edges = append(edges, edge)
	}
}

func parseVersion(header string) (int, error) {
	v, err := strconv.Atoi(strings.TrimPrefix(header[len(versionPrefix):], "v"))
	if err != nil {
		return 0, fmt.Errorf("bad version header %q", header)
	}
	if _, ok := columnCount[v]; !ok {
		return 0, fmt.Errorf("unsupported tracks version %d", v)
	}
	return v, nil
}

func parseRow(record []string, version int) (Edge, error) {
	if want := columnCount[version]; len(record) != want {
		return Edge{}, fmt.Errorf("expected %d columns, got %d", want, len(record))
	}

	featureID, err := parseInt(record[2])
	if err != nil {
		return Edge{}, fmt.Errorf("feature_id: %w", err)
	}
	x, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return Edge{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(record[4], 64)
	if err != nil {
		return Edge{}, fmt.Errorf("y: %w", err)
	}

	colorAt := 5
	var scale float64
	if version >= Version1 {
		scale, err = strconv.ParseFloat(record[5], 64)
		if err != nil {
			return Edge{}, fmt.Errorf("scale: %w", err)
		}
		colorAt = 6
	}

	var color [3]int
	for i := range color {
		c, err := parseInt(record[colorAt+i])
		if err != nil {
			return Edge{}, fmt.Errorf("color: %w", err)
		}
		color[i] = c
	}

	return Edge{
		ShotID:  record[0],
		PointID: record[1],
		Observation: Observation{
			FeatureID: featureID,
			Feature:   r2.Point{X: x, Y: y},
			Scale:     scale,
			Color:     color,
		},
	}, nil
}

// parseInt accepts plain integers and integral floats such as "12.0".
func parseInt(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}

// WriteCSV writes g in the version 1 tracks format.
func WriteCSV(w io.Writer, g *Graph) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write([]string{versionPrefix + "v1"}); err != nil {
		return err
	}
	for _, e := range g.Edges() {
		row := []string{
			e.ShotID,
			e.PointID,
			strconv.Itoa(e.FeatureID),
			strconv.FormatFloat(e.Feature.X, 'g', -1, 64),
			strconv.FormatFloat(e.Feature.Y, 'g', -1, 64),
			strconv.FormatFloat(e.Scale, 'g', -1, 64),
			strconv.Itoa(e.Color[0]),
			strconv.Itoa(e.Color[1]),
			strconv.Itoa(e.Color[2]),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
