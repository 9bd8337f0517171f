package reconstruction

import (
	"github.com/23skdu/sfmexport/internal/core"
)

// Reconstruction is one connected component of a structure-from-motion
// solution. Shots and points iterate in insertion order.
type Reconstruction struct {
	Cameras *OrderedMap[string, *Camera]
	shots   *OrderedMap[string, *Shot]
	points  *OrderedMap[string, *Point]
}

func New() *Reconstruction {
	return &Reconstruction{
		Cameras: NewOrderedMap[string, *Camera](0),
		shots:   NewOrderedMap[string, *Shot](0),
		points:  NewOrderedMap[string, *Point](0),
	}
}

// AddCamera registers c under its ID, replacing any previous camera.
func (r *Reconstruction) AddCamera(c *Camera) {
	r.Cameras.Set(c.ID, c)
}

// AddShot registers s. The shot's camera must already be part of the
// reconstruction when it carries a camera ID.
func (r *Reconstruction) AddShot(s *Shot) error {
	if s.ID == "" {
		return core.NewInvalidArgumentError("shot.id", "must not be empty")
	}
	if s.Camera == nil {
		return core.NewInvalidArgumentError("shot.camera", "shot "+s.ID+" has no camera")
	}
	if _, ok := r.Cameras.Get(s.Camera.ID); !ok {
		return core.NewNotFoundError("camera", s.Camera.ID)
	}
	r.shots.Set(s.ID, s)
	return nil
}

func (r *Reconstruction) AddPoint(p *Point) error {
	if p.ID == "" {
		return core.NewInvalidArgumentError("point.id", "must not be empty")
	}
	r.points.Set(p.ID, p)
	return nil
}

func (r *Reconstruction) Shot(id string) (*Shot, bool) {
	return r.shots.Get(id)
}

func (r *Reconstruction) Point(id string) (*Point, bool) {
	return r.points.Get(id)
}

// Shots returns the shots in iteration order.
func (r *Reconstruction) Shots() []*Shot {
	return r.shots.Values()
}

// Points returns the points in iteration order.
func (r *Reconstruction) Points() []*Point {
	return r.points.Values()
}

func (r *Reconstruction) NumShots() int {
	return r.shots.Len()
}

func (r *Reconstruction) NumPoints() int {
	return r.points.Len()
}
