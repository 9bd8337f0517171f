package dataset

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/golang/geo/r3"

	"github.com/23skdu/sfmexport/internal/reconstruction"
)

type cameraJSON struct {
	ProjectionType string  `json:"projection_type"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	Focal          float64 `json:"focal"`
	K1             float64 `json:"k1"`
	K2             float64 `json:"k2"`
}

func (c cameraJSON) camera(id string) *reconstruction.Camera {
	return &reconstruction.Camera{
		ID:             id,
		ProjectionType: c.ProjectionType,
		Width:          int(c.Width),
		Height:         int(c.Height),
		Focal:          c.Focal,
		K1:             c.K1,
		K2:             c.K2,
	}
}

type shotJSON struct {
	Camera      string     `json:"camera"`
	Rotation    [3]float64 `json:"rotation"`
	Translation [3]float64 `json:"translation"`
}

type pointJSON struct {
	Coordinates [3]float64 `json:"coordinates"`
	Color       [3]float64 `json:"color"`
}

type pendingShot struct {
	id string
	shotJSON
}

// decodeReconstructions reads an OpenSfM reconstruction list. Mappings are
// walked token by token so that shots and points keep their document order.
func decodeReconstructions(r io.Reader) ([]*reconstruction.Reconstruction, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	var out []*reconstruction.Reconstruction
	for dec.More() {
		rec, err := decodeReconstruction(dec)
		if err != nil {
			return nil, fmt.Errorf("reconstruction %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeReconstruction(dec *json.Decoder) (*reconstruction.Reconstruction, error) {
	rec := reconstruction.New()
	// Shots may precede the cameras they reference.
	var shots []pendingShot

	err := decodeObject(dec, func(key string) error {
		switch key {
		case "cameras":
			return decodeObject(dec, func(id string) error {
				var c cameraJSON
				if err := dec.Decode(&c); err != nil {
					return fmt.Errorf("camera %q: %w", id, err)
				}
				rec.AddCamera(c.camera(id))
				return nil
			})
		case "shots":
			return decodeObject(dec, func(id string) error {
				s := pendingShot{id: id}
				if err := dec.Decode(&s.shotJSON); err != nil {
					return fmt.Errorf("shot %q: %w", id, err)
				}
				shots = append(shots, s)
				return nil
			})
		case "points":
			return decodeObject(dec, func(id string) error {
				var p pointJSON
				if err := dec.Decode(&p); err != nil {
					return fmt.Errorf("point %q: %w", id, err)
				}
				return rec.AddPoint(&reconstruction.Point{
					ID:          id,
					Coordinates: vector(p.Coordinates),
					Color:       p.Color,
				})
			})
		default:
			var skip json.RawMessage
			return dec.Decode(&skip)
		}
	})
	if err != nil {
		return nil, err
	}

	for _, s := range shots {
		cam, ok := rec.Cameras.Get(s.Camera)
		if !ok {
			return nil, fmt.Errorf("shot %q references unknown camera %q", s.id, s.Camera)
		}
		err := rec.AddShot(&reconstruction.Shot{
			ID:     s.id,
			Camera: cam,
			Pose:   reconstruction.PoseFromAxisAngle(vector(s.Rotation), vector(s.Translation)),
		})
		if err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// decodeObject calls field once per key of the next JSON object. field must
// consume exactly the value that follows the key. A null object is empty.
func decodeObject(dec *json.Decoder, field func(key string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		if err := field(key); err != nil {
			return err
		}
	}
	return expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func vector(v [3]float64) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}
