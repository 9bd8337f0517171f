package nvm

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
)

const (
	header = "NVM_V3"
	// terminator says no extra camera-model sections follow.
	terminator = "0"
)

// Fragment is one observation of a point: view index, feature id and pixel
// position.
type Fragment struct {
	View      int
	FeatureID int
	X         int
	Y         int
}

// PointRecord is one line of the point block. TrackLength is written as is
// and need not equal len(Fragments).
type PointRecord struct {
	Coordinates r3.Vector
	Color       [3]int
	TrackLength int
	Fragments   []Fragment
}

func (p PointRecord) fields() []string {
	out := make([]string, 0, 7+4*len(p.Fragments))
	out = append(out,
		formatFloat(p.Coordinates.X),
		formatFloat(p.Coordinates.Y),
		formatFloat(p.Coordinates.Z),
		strconv.Itoa(p.Color[0]),
		strconv.Itoa(p.Color[1]),
		strconv.Itoa(p.Color[2]),
		strconv.Itoa(p.TrackLength),
	)
	for _, f := range p.Fragments {
		out = append(out,
			strconv.Itoa(f.View),
			strconv.Itoa(f.FeatureID),
			strconv.Itoa(f.X),
			strconv.Itoa(f.Y),
		)
	}
	return out
}

// Document is a complete NVM_V3 model. Camera i has view index i.
type Document struct {
	Cameras []CameraRecord
	Points  []PointRecord
}

// Lines returns the document one line per element, without separators.
func (d *Document) Lines() []string {
	lines := make([]string, 0, 5+len(d.Cameras)+len(d.Points))
	lines = append(lines, header, "", strconv.Itoa(len(d.Cameras)))
	for _, c := range d.Cameras {
		lines = append(lines, strings.Join(c.fields(), " "))
	}
	lines = append(lines, strconv.Itoa(len(d.Points)))
	for _, p := range d.Points {
		lines = append(lines, strings.Join(p.fields(), " "))
	}
	return append(lines, terminator)
}

// String joins the lines with "\n". There is no trailing newline.
func (d *Document) String() string {
	return strings.Join(d.Lines(), "\n")
}

// WriteTo streams the document to w in the same layout as String.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriterSize(cw, 64*1024)

	first := true
	writeLine := func(fields ...string) error {
		if !first {
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		first = false
		for i, f := range fields {
			if i > 0 {
				if err := bw.WriteByte(' '); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(f); err != nil {
				return err
			}
		}
		return nil
	}

	if err := writeLine(header); err != nil {
		return cw.n, err
	}
	if err := writeLine(""); err != nil {
		return cw.n, err
	}
	if err := writeLine(strconv.Itoa(len(d.Cameras))); err != nil {
		return cw.n, err
	}
	for _, c := range d.Cameras {
		if err := writeLine(c.fields()...); err != nil {
			return cw.n, err
		}
	}
	if err := writeLine(strconv.Itoa(len(d.Points))); err != nil {
		return cw.n, err
	}
	for _, p := range d.Points {
		if err := writeLine(p.fields()...); err != nil {
			return cw.n, err
		}
	}
	if err := writeLine(terminator); err != nil {
		return cw.n, err
	}
	err := bw.Flush()
	return cw.n, err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
