// Package cloud holds the point-cloud data model: PointCloud, Correspondence,
// Signature, Transform and VoxelKey, and the invariants that bind them.
//
// Grounded on therealutkarshpriyadarshi-vector's node/index value types
// (pkg/hnsw/node.go) for the "plain data + explicit accessors, no hidden
// mutation" style, generalised from a single flat vector to the point cloud's
// several parallel arrays.
package cloud

import (
	"fmt"

	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
)

// Cloud is an ordered sequence of points with optional per-point normals,
// colours and intensity. Index i names the same physical point in every
// parallel array that is present.
type Cloud[T geom.Scalar] struct {
	Points    []geom.Point3[T]
	Normals   []geom.Point3[T] // optional; len 0 or len(Points)
	Colours   []RGB            // optional; len 0 or len(Points)
	Intensity []T              // optional; len 0 or len(Points)
}

// RGB is an 8-bit-per-channel colour sample.
type RGB struct {
	R, G, B uint8
}

// New returns an empty cloud ready to be appended to.
func New[T geom.Scalar]() *Cloud[T] {
	return &Cloud[T]{}
}

// FromPoints wraps an existing point slice with no auxiliary arrays.
func FromPoints[T geom.Scalar](points []geom.Point3[T]) *Cloud[T] {
	return &Cloud[T]{Points: points}
}

// Len returns the number of points in the cloud.
func (c *Cloud[T]) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Points)
}

// HasNormals reports whether per-point normals are present.
func (c *Cloud[T]) HasNormals() bool { return len(c.Normals) == len(c.Points) && len(c.Points) > 0 }

// HasColours reports whether per-point colours are present.
func (c *Cloud[T]) HasColours() bool { return len(c.Colours) == len(c.Points) && len(c.Points) > 0 }

// HasIntensity reports whether per-point intensity is present.
func (c *Cloud[T]) HasIntensity() bool {
	return len(c.Intensity) == len(c.Points) && len(c.Points) > 0
}

// Validate checks the parallel-array length invariant from the data model:
// any present auxiliary array's length must equal len(Points).
func (c *Cloud[T]) Validate() error {
	n := len(c.Points)
	if len(c.Normals) != 0 && len(c.Normals) != n {
		return fmt.Errorf("cloud: normals length %d != points length %d", len(c.Normals), n)
	}
	if len(c.Colours) != 0 && len(c.Colours) != n {
		return fmt.Errorf("cloud: colours length %d != points length %d", len(c.Colours), n)
	}
	if len(c.Intensity) != 0 && len(c.Intensity) != n {
		return fmt.Errorf("cloud: intensity length %d != points length %d", len(c.Intensity), n)
	}
	return nil
}

// Subset returns a new cloud containing only the points named by indices, in
// the order given. Used to materialise a keypoint subset from a detector's
// output indices. Auxiliary arrays are carried along where present.
func (c *Cloud[T]) Subset(indices []int) *Cloud[T] {
	out := &Cloud[T]{Points: make([]geom.Point3[T], len(indices))}
	if c.HasNormals() {
		out.Normals = make([]geom.Point3[T], len(indices))
	}
	if c.HasColours() {
		out.Colours = make([]RGB, len(indices))
	}
	if c.HasIntensity() {
		out.Intensity = make([]T, len(indices))
	}
	for i, idx := range indices {
		out.Points[i] = c.Points[idx]
		if out.Normals != nil {
			out.Normals[i] = c.Normals[idx]
		}
		if out.Colours != nil {
			out.Colours[i] = c.Colours[idx]
		}
		if out.Intensity != nil {
			out.Intensity[i] = c.Intensity[idx]
		}
	}
	return out
}

// Clone returns a deep copy of c.
func (c *Cloud[T]) Clone() *Cloud[T] {
	out := &Cloud[T]{Points: append([]geom.Point3[T]{}, c.Points...)}
	if c.Normals != nil {
		out.Normals = append([]geom.Point3[T]{}, c.Normals...)
	}
	if c.Colours != nil {
		out.Colours = append([]RGB{}, c.Colours...)
	}
	if c.Intensity != nil {
		out.Intensity = append([]T{}, c.Intensity...)
	}
	return out
}

// PointSource exposes a cloud's points as float64 regardless of its stored
// precision, the common accessor consumers that are generic over T (e.g.
// correspondence sorters) use instead of taking a Cloud[T] type parameter
// themselves.
type PointSource interface {
	Len() int
	PointAt(i int) geom.Point3[float64]
}

// pointSourceAdapter wraps a Cloud[T] as a PointSource.
type pointSourceAdapter[T geom.Scalar] struct {
	cloud *Cloud[T]
}

func (a pointSourceAdapter[T]) Len() int { return a.cloud.Len() }

func (a pointSourceAdapter[T]) PointAt(i int) geom.Point3[float64] {
	x, y, z := geom.AsFloat64(a.cloud.Points[i])
	return geom.Point3[float64]{X: x, Y: y, Z: z}
}

// AsPointSource adapts c to PointSource.
func AsPointSource[T geom.Scalar](c *Cloud[T]) PointSource {
	return pointSourceAdapter[T]{cloud: c}
}
