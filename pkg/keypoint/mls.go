package keypoint

import (
	"gonum.org/v1/gonum/mat"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/normal"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

// PolynomialOrder selects the local surface model MLS fits to each
// neighbourhood's tangent-plane height field.
type PolynomialOrder int

const (
	PolynomialNone PolynomialOrder = iota
	PolynomialLinear
	PolynomialQuadratic
)

// MLSConfig parameters the moving-least-squares detector.
type MLSConfig struct {
	NumNeighbors       int
	Order              PolynomialOrder
	VariationThreshold float64
	CurvatureThreshold float64
	NonMaximaRadius    float64
	MinNeighbors       int
}

// MLS fits a local polynomial surface (order configurable) to each
// candidate's neighbourhood, expressed in the tangent-plane basis from PCA,
// and scores response as the fit's surface variation (mean squared residual
// height) and/or curvature of the fit, accepting points above both
// configured thresholds, then non-maximum-suppressing (spec.md 4.4).
func MLS[T geom.Scalar](c *cloud.Cloud[T], idx search.Index, cfg MLSConfig) []int {
	n := c.Len()
	if n == 0 || cfg.NumNeighbors < 3 {
		return nil
	}

	var candidates []responsePoint
	for i := 0; i < n; i++ {
		pts := neighborPoints(c, idx, i, cfg.NumNeighbors)
		if len(pts) < cfg.MinNeighbors || len(pts) < 3 {
			continue
		}
		values, vectors, ok := normal.PCA3(pts)
		if !ok {
			continue
		}
		variation, curvature := mlsFit(pts, vectors, values, cfg.Order)
		if variation > cfg.VariationThreshold && curvature > cfg.CurvatureThreshold {
			candidates = append(candidates, responsePoint{index: i, response: variation + curvature})
		}
	}
	return nonMaxSuppress(c, idx, candidates, cfg.NonMaximaRadius)
}

// mlsFit projects pts onto the tangent basis (PCA columns 1,2) with height
// along the normal (column 0), fits the requested polynomial order by
// least squares, and returns (variation, curvature): variation is the mean
// squared residual after the fit, curvature is derived from the quadratic
// term coefficients when order is quadratic, or from the PCA eigenvalue
// ratio otherwise.
func mlsFit(pts [][3]float64, vectors *mat.Dense, values [3]float64, order PolynomialOrder) (variation, curvature float64) {
	n := len(pts)
	var cx, cy, cz float64
	for _, p := range pts {
		cx += p[0]
		cy += p[1]
		cz += p[2]
	}
	cx /= float64(n)
	cy /= float64(n)
	cz /= float64(n)

	nx, ny, nz := vectors.At(0, 0), vectors.At(1, 0), vectors.At(2, 0)
	ux, uy, uz := vectors.At(0, 1), vectors.At(1, 1), vectors.At(2, 1)
	vx, vy, vz := vectors.At(0, 2), vectors.At(1, 2), vectors.At(2, 2)

	u := make([]float64, n)
	v := make([]float64, n)
	w := make([]float64, n)
	for i, p := range pts {
		dx, dy, dz := p[0]-cx, p[1]-cy, p[2]-cz
		u[i] = dx*ux + dy*uy + dz*uz
		v[i] = dx*vx + dy*vy + dz*vz
		w[i] = dx*nx + dy*ny + dz*nz
	}

	sum := values[0] + values[1] + values[2]
	if sum <= 0 {
		sum = 1
	}
	baseCurvature := values[0] / sum

	if order == PolynomialNone {
		var ssq float64
		for _, h := range w {
			ssq += h * h
		}
		return ssq / float64(n), baseCurvature
	}

	cols := 3 // 1, u, v
	if order == PolynomialQuadratic {
		cols = 6 // 1, u, v, u^2, uv, v^2
	}
	A := mat.NewDense(n, cols, nil)
	b := mat.NewVecDense(n, w)
	for i := 0; i < n; i++ {
		A.Set(i, 0, 1)
		A.Set(i, 1, u[i])
		A.Set(i, 2, v[i])
		if cols == 6 {
			A.Set(i, 3, u[i]*u[i])
			A.Set(i, 4, u[i]*v[i])
			A.Set(i, 5, v[i]*v[i])
		}
	}

	var coeffs mat.VecDense
	if err := coeffs.SolveVec(A, b); err != nil {
		var ssq float64
		for _, h := range w {
			ssq += h * h
		}
		return ssq / float64(n), baseCurvature
	}

	var residSq float64
	for i := 0; i < n; i++ {
		pred := coeffs.AtVec(0) + coeffs.AtVec(1)*u[i] + coeffs.AtVec(2)*v[i]
		if cols == 6 {
			pred += coeffs.AtVec(3)*u[i]*u[i] + coeffs.AtVec(4)*u[i]*v[i] + coeffs.AtVec(5)*v[i]*v[i]
		}
		resid := w[i] - pred
		residSq += resid * resid
	}
	variation = residSq / float64(n)

	curvature = baseCurvature
	if cols == 6 {
		// Mean curvature of a quadratic z=f(u,v) at the origin, small-slope
		// approximation: H ~ (fuu + fvv) / 2.
		curvature = (2*coeffs.AtVec(3) + 2*coeffs.AtVec(5)) / 2
		if curvature < 0 {
			curvature = -curvature
		}
	}
	return variation, curvature
}
