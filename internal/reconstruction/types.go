package reconstruction

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/23skdu/sfmexport/internal/geometry"
)

// Camera holds the intrinsics shared by the shots taken with it. Focal is
// normalised by the larger image dimension.
type Camera struct {
	ID             string
	ProjectionType string
	Width          int
	Height         int
	Focal          float64
	K1             float64
	K2             float64
}

// FocalPixels denormalises the focal length: Focal * max(Width, Height).
func (c *Camera) FocalPixels() float64 {
	return c.Focal * float64(max(c.Width, c.Height))
}

// Pose is a world-to-camera transform x_cam = R*x_world + t.
type Pose struct {
	Rotation    *mat.Dense
	Translation r3.Vector
}

// NewPose returns the identity pose.
func NewPose() Pose {
	return Pose{Rotation: geometry.Identity()}
}

// PoseFromAxisAngle builds a pose from an axis-angle rotation vector and a
// translation, the encoding used by reconstruction files.
func PoseFromAxisAngle(rotation, translation r3.Vector) Pose {
	return Pose{
		Rotation:    geometry.RotationFromAxisAngle(rotation),
		Translation: translation,
	}
}

// PoseFromOrigin builds a pose whose camera centre is origin.
func PoseFromOrigin(rotation *mat.Dense, origin r3.Vector) Pose {
	return Pose{
		Rotation:    rotation,
		Translation: geometry.Apply(rotation, origin).Mul(-1),
	}
}

// RotationMatrix returns R, or the identity when the pose has none.
func (p Pose) RotationMatrix() *mat.Dense {
	if p.Rotation == nil {
		return geometry.Identity()
	}
	return p.Rotation
}

// Origin is the camera centre in world coordinates, -Rᵀt.
func (p Pose) Origin() r3.Vector {
	return geometry.Apply(p.RotationMatrix().T(), p.Translation).Mul(-1)
}

// Shot is one image with its camera and estimated pose.
type Shot struct {
	ID     string
	Camera *Camera
	Pose   Pose
}

// Point is a triangulated 3D point. Color channels are 0-255 and may carry a
// fractional part.
type Point struct {
	ID          string
	Coordinates r3.Vector
	Color       [3]float64
}

// IntColor truncates each channel toward zero.
func (p *Point) IntColor() [3]int {
	return [3]int{
		int(math.Trunc(p.Color[0])),
		int(math.Trunc(p.Color[1])),
		int(math.Trunc(p.Color[2])),
	}
}
