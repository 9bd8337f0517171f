package nvm

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/23skdu/sfmexport/internal/geometry"
	"github.com/23skdu/sfmexport/internal/reconstruction"
)

// CameraRecord is one line of the camera block.
type CameraRecord struct {
	ImagePath string
	FocalPx   float64
	Rotation  quat.Number
	Center    r3.Vector
}

// EncodeShot converts a shot into its camera record. imagePath must already
// be relative to the dataset root.
func EncodeShot(shot *reconstruction.Shot, imagePath string) CameraRecord {
	var focal float64
	if shot.Camera != nil {
		focal = shot.Camera.FocalPixels()
	}
	return CameraRecord{
		ImagePath: imagePath,
		FocalPx:   focal,
		Rotation:  geometry.Canonical(geometry.QuaternionFromMatrix(shot.Pose.RotationMatrix())),
		Center:    shot.Pose.Origin(),
	}
}

// fields renders the record in NVM column order; the two trailing zeros are
// the radial distortion placeholders.
func (c CameraRecord) fields() []string {
	return []string{
		c.ImagePath,
		formatFloat(c.FocalPx),
		formatFloat(c.Rotation.Real),
		formatFloat(c.Rotation.Imag),
		formatFloat(c.Rotation.Jmag),
		formatFloat(c.Rotation.Kmag),
		formatFloat(c.Center.X),
		formatFloat(c.Center.Y),
		formatFloat(c.Center.Z),
		"0",
		"0",
	}
}
