package storage

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/golang/geo/r2"
	"github.com/parquet-go/parquet-go"

	"github.com/23skdu/sfmexport/internal/metrics"
	"github.com/23skdu/sfmexport/internal/tracks"
)

const parquetReadBatch = 4096

// TrackRecord is one observation edge in the columnar track cache.
type TrackRecord struct {
	Image   string  `parquet:"image,dict"`
	Track   string  `parquet:"track,dict"`
	Feature int32   `parquet:"feature"`
	X       float64 `parquet:"x"`
	Y       float64 `parquet:"y"`
	Scale   float64 `parquet:"scale"`
	R       int32   `parquet:"r"`
	G       int32   `parquet:"g"`
	B       int32   `parquet:"b"`
}

func recordFromEdge(e tracks.Edge) TrackRecord {
	return TrackRecord{
		Image:   e.ShotID,
		Track:   e.PointID,
		Feature: int32(e.FeatureID),
		X:       e.Feature.X,
		Y:       e.Feature.Y,
		Scale:   e.Scale,
		R:       int32(e.Color[0]),
		G:       int32(e.Color[1]),
		B:       int32(e.Color[2]),
	}
}

func (r TrackRecord) edge() tracks.Edge {
	return tracks.Edge{
		ShotID:  r.Image,
		PointID: r.Track,
		Observation: tracks.Observation{
			FeatureID: int(r.Feature),
			Feature:   r2.Point{X: r.X, Y: r.Y},
			Scale:     r.Scale,
			Color:     [3]int{int(r.R), int(r.G), int(r.B)},
		},
	}
}

// WriteTracksParquet writes edges to w as a zstd-compressed parquet file.
func WriteTracksParquet(w io.Writer, edges []tracks.Edge) error {
	pw := parquet.NewGenericWriter[TrackRecord](w, parquet.Compression(&parquet.Zstd))

	records := make([]TrackRecord, len(edges))
	for i, e := range edges {
		records[i] = recordFromEdge(e)
	}
	if _, err := pw.Write(records); err != nil {
		_ = pw.Close()
		return err
	}
	if err := pw.Close(); err != nil {
		return err
	}
	metrics.ParquetRowsTotal.WithLabelValues("write").Add(float64(len(records)))
	return nil
}

// SaveTracksParquet atomically replaces path with the parquet encoding of
// edges.
func SaveTracksParquet(path string, edges []tracks.Edge) error {
	err := NewAtomicFile(path).WriteWith(func(w io.Writer) error {
		return WriteTracksParquet(w, edges)
	})
	if err != nil {
		return NewParquetError("write", path, -1, err)
	}
	return nil
}

// LoadTracksParquet reads every edge stored at path, in file order.
func LoadTracksParquet(path string) ([]tracks.Edge, error) {
	start := time.Now()
	f, err := os.Open(path)
	if err != nil {
		return nil, NewParquetError("open", path, -1, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, NewParquetError("open", path, -1, err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, NewParquetError("open", path, -1, err)
	}

	pr := parquet.NewGenericReader[TrackRecord](pf)
	defer pr.Close()

	edges := make([]tracks.Edge, 0, pr.NumRows())
	batch := make([]TrackRecord, parquetReadBatch)
	for {
		n, err := pr.Read(batch)
		for _, r := range batch[:n] {
			edges = append(edges, r.edge())
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, NewParquetError("read", path, int64(len(edges)), err)
		}
		if n == 0 {
			break
		}
	}

	metrics.ParquetRowsTotal.WithLabelValues("read").Add(float64(len(edges)))
	metrics.DatasetLoadDurationSeconds.WithLabelValues("tracks_parquet").Observe(time.Since(start).Seconds())
	return edges, nil
}
