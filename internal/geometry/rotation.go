package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// axisAngleEpsilon is the rotation angle below which an axis-angle vector is
// treated as the identity rotation.
const axisAngleEpsilon = 1e-12

// Identity returns a fresh 3x3 identity matrix.
func Identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// QuaternionFromMatrix converts a 3x3 rotation matrix to a unit quaternion.
//
// The branch is chosen on the largest of the trace and the three diagonal
// entries, so the square root is always taken of a value >= 1 and the divisor
// never approaches zero. The result is normalised to unit length, which keeps
// the output usable when the input is not exactly orthonormal. The sign is
// whatever the selected branch yields; see Canonical.
func QuaternionFromMatrix(r mat.Matrix) quat.Number {
	m00, m01, m02 := r.At(0, 0), r.At(0, 1), r.At(0, 2)
	m10, m11, m12 := r.At(1, 0), r.At(1, 1), r.At(1, 2)
	m20, m21, m22 := r.At(2, 0), r.At(2, 1), r.At(2, 2)

	trace := m00 + m11 + m22

	var q quat.Number
	switch {
	case trace >= m00 && trace >= m11 && trace >= m22:
		s := math.Sqrt(trace+1) * 2
		q = quat.Number{
			Real: s / 4,
			Imag: (m21 - m12) / s,
			Jmag: (m02 - m20) / s,
			Kmag: (m10 - m01) / s,
		}
	case m00 >= m11 && m00 >= m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = quat.Number{
			Real: (m21 - m12) / s,
			Imag: s / 4,
			Jmag: (m01 + m10) / s,
			Kmag: (m02 + m20) / s,
		}
	case m11 >= m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = quat.Number{
			Real: (m02 - m20) / s,
			Imag: (m01 + m10) / s,
			Jmag: s / 4,
			Kmag: (m12 + m21) / s,
		}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = quat.Number{
			Real: (m10 - m01) / s,
			Imag: (m02 + m20) / s,
			Jmag: (m12 + m21) / s,
			Kmag: s / 4,
		}
	}
	return Normalize(q)
}

// Normalize scales q to unit length. Zero and non-finite quaternions are
// returned unchanged.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return q
	}
	return quat.Scale(1/n, q)
}

// Canonical returns the representative of q with a non-negative scalar part.
// q and -q encode the same rotation.
func Canonical(q quat.Number) quat.Number {
	if q.Real < 0 {
		return quat.Scale(-1, q)
	}
	return q
}

// MatrixFromQuaternion builds the rotation matrix of a unit quaternion.
func MatrixFromQuaternion(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	})
}

// RotationFromAxisAngle applies Rodrigues' formula to an axis-angle vector
// whose norm is the rotation angle in radians.
func RotationFromAxisAngle(v r3.Vector) *mat.Dense {
	theta := v.Norm()
	if theta < axisAngleEpsilon {
		return Identity()
	}
	k := v.Mul(1 / theta)
	skew := mat.NewDense(3, 3, []float64{
		0, -k.Z, k.Y,
		k.Z, 0, -k.X,
		-k.Y, k.X, 0,
	})

	var skew2 mat.Dense
	skew2.Mul(skew, skew)

	r := Identity()
	var term mat.Dense
	term.Scale(math.Sin(theta), skew)
	r.Add(r, &term)
	term.Scale(1-math.Cos(theta), &skew2)
	r.Add(r, &term)
	return r
}

// AxisAngleFromMatrix is the inverse of RotationFromAxisAngle.
func AxisAngleFromMatrix(r mat.Matrix) r3.Vector {
	q := Canonical(QuaternionFromMatrix(r))
	axis := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	s := axis.Norm()
	if s < axisAngleEpsilon {
		return r3.Vector{}
	}
	theta := 2 * math.Atan2(s, q.Real)
	return axis.Mul(theta / s)
}

// IsOrthonormal reports whether RᵀR is the identity within tol.
func IsOrthonormal(r mat.Matrix, tol float64) bool {
	rows, cols := r.Dims()
	if rows != 3 || cols != 3 {
		return false
	}
	var rtr mat.Dense
	rtr.Mul(r.T(), r)
	return mat.EqualApprox(&rtr, Identity(), tol)
}

// Apply multiplies r by the column vector v.
func Apply(r mat.Matrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r.At(0, 0)*v.X + r.At(0, 1)*v.Y + r.At(0, 2)*v.Z,
		Y: r.At(1, 0)*v.X + r.At(1, 1)*v.Y + r.At(1, 2)*v.Z,
		Z: r.At(2, 0)*v.X + r.At(2, 1)*v.Y + r.At(2, 2)*v.Z,
	}
}
