package cloud

import (
	"math"

	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"gonum.org/v1/gonum/mat"
)

// Transform is a 4x4 homogeneous rigid-body transform: an orthonormal 3x3
// rotation (det = +1) plus a translation. Composition is matrix
// multiplication; Inverse exploits the rigid structure (R^T, -R^T t) rather
// than a general 4x4 inversion.
type Transform struct {
	R *mat.Dense // 3x3
	T [3]float64
}

// Identity returns the identity transform.
func Identity() Transform {
	r := mat.NewDense(3, 3, nil)
	r.Set(0, 0, 1)
	r.Set(1, 1, 1)
	r.Set(2, 2, 1)
	return Transform{R: r}
}

// NewTransform builds a transform from a row-major 3x3 rotation and a
// translation vector.
func NewTransform(rot [9]float64, t [3]float64) Transform {
	return Transform{R: mat.NewDense(3, 3, rot[:]), T: t}
}

// Compose returns the transform equivalent to first applying b, then a
// (a.Compose(b) applied to x == a.Apply(b.Apply(x))).
func (a Transform) Compose(b Transform) Transform {
	var r mat.Dense
	r.Mul(a.R, b.R)
	var tv mat.VecDense
	tv.MulVec(a.R, mat.NewVecDense(3, b.T[:]))
	return Transform{
		R: &r,
		T: [3]float64{
			tv.AtVec(0) + a.T[0],
			tv.AtVec(1) + a.T[1],
			tv.AtVec(2) + a.T[2],
		},
	}
}

// Inverse returns the inverse rigid transform: R^T and -R^T*t.
func (a Transform) Inverse() Transform {
	var rt mat.Dense
	rt.CloneFrom(a.R.T())
	var tv mat.VecDense
	tv.MulVec(&rt, mat.NewVecDense(3, a.T[:]))
	return Transform{
		R: &rt,
		T: [3]float64{-tv.AtVec(0), -tv.AtVec(1), -tv.AtVec(2)},
	}
}

// Apply transforms p by a, returning R*p + t in the same scalar precision
// as p; the rotation/translation are carried internally in float64.
func Apply[T geom.Scalar](a Transform, p geom.Point3[T]) geom.Point3[T] {
	x, y, z := geom.AsFloat64(p)
	rx := a.R.At(0, 0)*x + a.R.At(0, 1)*y + a.R.At(0, 2)*z + a.T[0]
	ry := a.R.At(1, 0)*x + a.R.At(1, 1)*y + a.R.At(1, 2)*z + a.T[1]
	rz := a.R.At(2, 0)*x + a.R.At(2, 1)*y + a.R.At(2, 2)*z + a.T[2]
	return geom.Point3[T]{X: T(rx), Y: T(ry), Z: T(rz)}
}

// ApplyCloud applies a to every point of c, returning a new cloud. Normals
// are rotated (not translated) if present.
func ApplyCloud[T geom.Scalar](a Transform, c *Cloud[T]) *Cloud[T] {
	out := c.Clone()
	for i, p := range c.Points {
		out.Points[i] = Apply(a, p)
	}
	for i, n := range c.Normals {
		x, y, z := geom.AsFloat64(n)
		rx := a.R.At(0, 0)*x + a.R.At(0, 1)*y + a.R.At(0, 2)*z
		ry := a.R.At(1, 0)*x + a.R.At(1, 1)*y + a.R.At(1, 2)*z
		rz := a.R.At(2, 0)*x + a.R.At(2, 1)*y + a.R.At(2, 2)*z
		out.Normals[i] = geom.Point3[T]{X: T(rx), Y: T(ry), Z: T(rz)}
	}
	return out
}

// DeviationFromIdentity returns ||R^T R - I||_F for the rotation block and
// the translation norm, the two quantities the convergence tests in §8 and
// the fine-registration loop's transformation_epsilon check are phrased in.
func (a Transform) DeviationFromIdentity() (rotFrobenius, translationNorm float64) {
	var rtr mat.Dense
	rtr.Mul(a.R.T(), a.R)
	var diff mat.Dense
	diff.Sub(&rtr, identity3())
	rotFrobenius = mat.Norm(&diff, 2)
	translationNorm = math.Sqrt(a.T[0]*a.T[0] + a.T[1]*a.T[1] + a.T[2]*a.T[2])
	return
}

// Determinant returns det(R), expected to be +1 for a valid rigid rotation.
func (a Transform) Determinant() float64 {
	return mat.Det(a.R)
}

func identity3() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	m.Set(0, 0, 1)
	m.Set(1, 1, 1)
	m.Set(2, 2, 1)
	return m
}
