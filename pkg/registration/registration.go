// Package registration estimates the rigid transform aligning a source
// cloud onto a target cloud, in two stages (spec.md 4.8-4.9): coarse
// registration consumes ranked correspondences to produce an initial guess
// (RANSAC, 4PCS, Super4PCS); fine registration iteratively refines that
// guess against the raw clouds (point-to-point/point-to-plane/generalised/
// AA-accelerated ICP, NDT).
//
// Grounded on original_source/src/include/cpp-toolbox/pcl/registration/
// {ransac_registration,point_to_point_icp,point_to_plane_icp,
// generalized_icp,aa_icp,ndt,super_four_pcs_registration}.hpp (declarations
// and, where retrieved, full bodies) and registration_result.hpp's result
// shape; no impl/ subdirectory was retrieved for this module's headers, so
// the numerical cores below follow spec.md 4.8/4.9's formulas directly,
// generalised from the toolbox's CRTP base classes
// (base_coarse_registration_t, base_fine_registration_t) to plain functions
// over this module's Transform/Cloud/search.Index types.
package registration

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
)

// CorrespondenceType names which geometric quantity a fine-registration
// method's objective minimises (spec.md 4.9).
type CorrespondenceType int

const (
	PointToPoint CorrespondenceType = iota
	PointToPlane
	PlaneToPlane
	PointToDistribution
)

// TerminationReason explains why a fine-registration loop stopped.
type TerminationReason int

const (
	ConvergedTransform TerminationReason = iota
	ConvergedError
	MaxIterations
	TooFewCorrespondences
	NumericalFailure
)

func (r TerminationReason) String() string {
	switch r {
	case ConvergedTransform:
		return "converged_transform"
	case ConvergedError:
		return "converged_error"
	case MaxIterations:
		return "max_iterations"
	case TooFewCorrespondences:
		return "too_few_correspondences"
	case NumericalFailure:
		return "numerical_failure"
	default:
		return "unknown"
	}
}

// IterationRecord is one entry of a fine-registration run's optional
// per-iteration history (spec.md "Registration result").
type IterationRecord struct {
	Iteration             int
	CorrespondenceCount    int
	Error                  float64
	Transform              cloud.Transform
}

// Result is the outcome shape every coarse and fine registration method
// returns (spec.md "Registration result", registration_result_t).
type Result struct {
	Transform         cloud.Transform
	FitnessScore      float64 // lower is better
	Inliers           []int   // indices into the correspondence set (coarse) or source cloud (fine)
	NumIterations     int
	Converged         bool
	TerminationReason TerminationReason
	History           []IterationRecord // populated only when RecordHistory is set
}

// EstimateRigidTransform solves the orthogonal Procrustes problem mapping
// src onto dst by Umeyama-style SVD (spec.md 4.8.1): centroid subtraction,
// H = sum w_i (s_i - s_mean)(t_i - t_mean)^T, SVD of H, R = V
// diag(1,1,det(V U^T)) U^T, t = t_mean - R s_mean. weights may be nil for a
// uniform-weight fit (ordinary Umeyama); len(weights) must equal
// len(src) otherwise.
func EstimateRigidTransform(src, dst []geom.Point3[float64], weights []float64) (cloud.Transform, bool) {
	n := len(src)
	if n == 0 || n != len(dst) {
		return cloud.Identity(), false
	}

	var wSum float64
	var sMean, tMean geom.Point3[float64]
	for i := range src {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		wSum += w
		sMean = sMean.Add(src[i].Scale(w))
		tMean = tMean.Add(dst[i].Scale(w))
	}
	if wSum <= 0 {
		return cloud.Identity(), false
	}
	sMean = sMean.Scale(1 / wSum)
	tMean = tMean.Scale(1 / wSum)

	h := mat.NewDense(3, 3, nil)
	for i := range src {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		ds := src[i].Sub(sMean)
		dt := dst[i].Sub(tMean)
		h.Set(0, 0, h.At(0, 0)+w*ds.X*dt.X)
		h.Set(0, 1, h.At(0, 1)+w*ds.X*dt.Y)
		h.Set(0, 2, h.At(0, 2)+w*ds.X*dt.Z)
		h.Set(1, 0, h.At(1, 0)+w*ds.Y*dt.X)
		h.Set(1, 1, h.At(1, 1)+w*ds.Y*dt.Y)
		h.Set(1, 2, h.At(1, 2)+w*ds.Y*dt.Z)
		h.Set(2, 0, h.At(2, 0)+w*ds.Z*dt.X)
		h.Set(2, 1, h.At(2, 1)+w*ds.Z*dt.Y)
		h.Set(2, 2, h.At(2, 2)+w*ds.Z*dt.Z)
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return cloud.Identity(), false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var vut mat.Dense
	vut.Mul(&v, u.T())
	d := 1.0
	if mat.Det(&vut) < 0 {
		d = -1
	}

	diag := mat.NewDense(3, 3, nil)
	diag.Set(0, 0, 1)
	diag.Set(1, 1, 1)
	diag.Set(2, 2, d)

	var r mat.Dense
	r.Mul(&v, diag)
	r.Mul(&r, u.T())

	var rSMean mat.VecDense
	rSMean.MulVec(&r, mat.NewVecDense(3, []float64{sMean.X, sMean.Y, sMean.Z}))

	t := [3]float64{
		tMean.X - rSMean.AtVec(0),
		tMean.Y - rSMean.AtVec(1),
		tMean.Z - rSMean.AtVec(2),
	}
	return cloud.Transform{R: &r, T: t}, true
}

// se3Exp maps a 6-vector Lie-algebra increment xi = (wx,wy,wz,tx,ty,tz) to a
// Transform via the exact Rodrigues rotation formula, the closed-form
// exponential map ICP's Gauss-Newton and L-BFGS increments are expressed in
// (spec.md 4.9, "6-vector Lie-algebra increment").
func se3Exp(xi [6]float64) cloud.Transform {
	wx, wy, wz := xi[0], xi[1], xi[2]
	theta := math.Sqrt(wx*wx + wy*wy + wz*wz)

	r := mat.NewDense(3, 3, nil)
	if theta < 1e-12 {
		r.Set(0, 0, 1)
		r.Set(1, 1, 1)
		r.Set(2, 2, 1)
	} else {
		kx, ky, kz := wx/theta, wy/theta, wz/theta
		k := mat.NewDense(3, 3, []float64{
			0, -kz, ky,
			kz, 0, -kx,
			-ky, kx, 0,
		})
		var k2 mat.Dense
		k2.Mul(k, k)
		sin, cos := math.Sin(theta), math.Cos(theta)
		r.Set(0, 0, 1)
		r.Set(1, 1, 1)
		r.Set(2, 2, 1)
		var sinK, cosK2 mat.Dense
		sinK.Scale(sin, k)
		cosK2.Scale(1-cos, &k2)
		r.Add(r, &sinK)
		r.Add(r, &cosK2)
	}
	return cloud.Transform{R: r, T: [3]float64{xi[3], xi[4], xi[5]}}
}

// rejectOutliers drops the worst ratio-fraction of (index, distance) pairs
// by distance, the shared outlier_rejection_ratio step every fine method's
// loop applies before compute_transformation (spec.md 4.9's pseudocode).
func rejectOutliers(srcIdx, dstIdx []int, distances []float64, ratio float64) ([]int, []int, []float64) {
	n := len(distances)
	if ratio <= 0 || n == 0 {
		return srcIdx, dstIdx, distances
	}
	keep := n - int(float64(n)*ratio)
	if keep >= n {
		return srcIdx, dstIdx, distances
	}
	if keep < 1 {
		keep = 1
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	// Partial selection sort on ascending distance is adequate: n is the
	// per-iteration correspondence count, not the whole cloud.
	for i := 0; i < keep; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if distances[order[j]] < distances[order[best]] {
				best = j
			}
		}
		order[i], order[best] = order[best], order[i]
	}
	kept := order[:keep]
	outSrc := make([]int, keep)
	outDst := make([]int, keep)
	outDist := make([]float64, keep)
	for i, o := range kept {
		outSrc[i] = srcIdx[o]
		outDst[i] = dstIdx[o]
		outDist[i] = distances[o]
	}
	return outSrc, outDst, outDist
}

func meanDistance(distances []float64) float64 {
	if len(distances) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, d := range distances {
		sum += d
	}
	return sum / float64(len(distances))
}
