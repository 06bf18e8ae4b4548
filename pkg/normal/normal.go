// Package normal estimates per-point surface normals via PCA over a local
// k-nearest-neighbour patch.
package normal

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

// Degenerate is the normal assigned when a neighbourhood can't support a PCA
// fit: fewer than 3 neighbours or an eigensolver failure (spec.md 4.3). A
// rank-deficient covariance, such as that of a planar patch, still yields a
// fitted normal.
var Degenerate = geom.Point3[float64]{X: 0, Y: 0, Z: 1}

// Config parameters an Estimator run.
type Config struct {
	// NumNeighbors is K in the K-nearest-neighbour patch used to fit a
	// local plane. Must be >= 1; fewer than 3 returned neighbours always
	// degenerates.
	NumNeighbors int
	// Viewpoint, if non-nil, triggers the orientation step: normals are
	// flipped so dot(normal, *Viewpoint - p) >= 0.
	Viewpoint *geom.Point3[float64]
	// Parallel spreads point-by-point estimation across workers. The
	// search index must tolerate concurrent readers, which both
	// search.BruteForce and search.KDTree do.
	Parallel bool
	// Workers bounds the goroutine count when Parallel is set; <= 0
	// defaults to runtime.GOMAXPROCS(0).
	Workers int
}

// Estimate computes one normal per point in c, querying idx for each
// point's K nearest neighbours. idx must have been built over the same
// points as c (typically via search.FromCloud(c)).
func Estimate[T geom.Scalar](c *cloud.Cloud[T], idx search.Index, cfg Config) []geom.Point3[float64] {
	n := c.Len()
	out := make([]geom.Point3[float64], n)
	if cfg.NumNeighbors < 1 {
		for i := range out {
			out[i] = Degenerate
		}
		return out
	}

	compute := func(i int) geom.Point3[float64] {
		q := search.QueryPoint(c.Points[i])
		neighbors := idx.KNearest(q, cfg.NumNeighbors)
		normal := pcaNormal(c, neighbors)
		if cfg.Viewpoint != nil {
			normal = orient(normal, c.Points[i], *cfg.Viewpoint)
		}
		return normal
	}

	if !cfg.Parallel || n == 0 {
		for i := 0; i < n; i++ {
			out[i] = compute(i)
		}
		return out
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				out[i] = compute(i)
			}
		}(start, end)
	}
	wg.Wait()
	return out
}

// pcaNormal fits a plane through the neighbourhood (in double precision
// regardless of T, per spec.md 4.3) and returns the eigenvector of the
// smallest eigenvalue of the covariance matrix.
func pcaNormal[T geom.Scalar](c *cloud.Cloud[T], neighbors []search.Neighbor) geom.Point3[float64] {
	if len(neighbors) < 3 {
		return Degenerate
	}
	pts := make([][3]float64, len(neighbors))
	for i, nb := range neighbors {
		x, y, z := geom.AsFloat64(c.Points[nb.Index])
		pts[i] = [3]float64{x, y, z}
	}
	values, vectors, ok := PCA3(pts)
	if !ok {
		return Degenerate
	}
	nx := vectors.At(0, 0)
	ny := vectors.At(1, 0)
	nz := vectors.At(2, 0)
	_ = values
	norm := geom.Point3[float64]{X: nx, Y: ny, Z: nz}
	if sqn := norm.SquaredNorm(); sqn < 1e-18 {
		return Degenerate
	}
	return norm.Normalize()
}

// PCA3 fits the covariance of a 3-D point set and returns its eigenvalues
// (ascending) with a 3x3 matrix whose columns are the matching eigenvectors.
// Shared by normal estimation and every PCA-based keypoint detector
// (curvature, Harris3D, ISS) so they compute the exact same decomposition.
// ok is false when fewer than 3 points are given or the eigensolver fails to
// converge — callers apply their own documented degenerate-case fallback.
func PCA3(pts [][3]float64) (values [3]float64, vectors *mat.Dense, ok bool) {
	if len(pts) < 3 {
		return values, nil, false
	}
	var cx, cy, cz float64
	for _, p := range pts {
		cx += p[0]
		cy += p[1]
		cz += p[2]
	}
	count := float64(len(pts))
	cx /= count
	cy /= count
	cz /= count

	data := make([]float64, 9)
	for _, p := range pts {
		dx, dy, dz := p[0]-cx, p[1]-cy, p[2]-cz
		data[0] += dx * dx
		data[1] += dx * dy
		data[2] += dx * dz
		data[4] += dy * dy
		data[5] += dy * dz
		data[8] += dz * dz
	}
	denom := count - 1
	if denom <= 0 {
		denom = 1
	}
	sym := mat.NewSymDense(3, []float64{
		data[0] / denom, data[1] / denom, data[2] / denom,
		0, data[4] / denom, data[5] / denom,
		0, 0, data[8] / denom,
	})

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return values, nil, false
	}
	raw := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	order := []int{0, 1, 2}
	for i := 1; i < 3; i++ {
		for j := i; j > 0 && raw[order[j]] < raw[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	sortedVecs := mat.NewDense(3, 3, nil)
	for col, src := range order {
		values[col] = raw[src]
		for row := 0; row < 3; row++ {
			sortedVecs.Set(row, col, vecs.At(row, src))
		}
	}
	return values, sortedVecs, true
}

// orient flips normal so it points away from p toward viewpoint.
func orient[T geom.Scalar](normal geom.Point3[float64], p geom.Point3[T], viewpoint geom.Point3[float64]) geom.Point3[float64] {
	px, py, pz := geom.AsFloat64(p)
	toView := geom.Point3[float64]{X: viewpoint.X - px, Y: viewpoint.Y - py, Z: viewpoint.Z - pz}
	if normal.Dot(toView) < 0 {
		return normal.Scale(-1)
	}
	return normal
}
