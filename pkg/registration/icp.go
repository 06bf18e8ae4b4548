package registration

import (
	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
	"gonum.org/v1/gonum/mat"
)

// PointToPointICP runs the classic Besl & McKay loop (spec.md 4.9): per
// iteration, nearest-target-point correspondences are matched via
// targetIndex (a KD-tree built over target, the common case) and the
// incremental transform is the closed-form Umeyama SVD fit of the matched
// pairs. CorrespondenceType is reported as PointToPoint.
//
// Grounded on original_source/pcl/registration/point_to_point_icp.hpp's
// documented contract (set_source/set_target/set_max_correspondence_distance,
// align_impl loop); the header has no retrievable impl body, so the loop
// body follows spec.md 4.9's pseudocode and base_fine_registration.hpp's
// shared field names directly.
func PointToPointICP(sourcePts []geom.Point3[float64], targetPts []geom.Point3[float64], targetIndex search.Index, cfg FineConfig) Result {
	step := func(srcIdx, dstIdx []int, transformed []geom.Point3[float64]) (cloud.Transform, bool) {
		s := make([]geom.Point3[float64], len(srcIdx))
		t := make([]geom.Point3[float64], len(srcIdx))
		for i := range srcIdx {
			s[i] = transformed[srcIdx[i]]
			t[i] = targetPts[dstIdx[i]]
		}
		return EstimateRigidTransform(s, t, nil)
	}
	return runFineLoop(sourcePts, targetIndex, cfg, PointToPoint, step, rmsError)
}

// PointToPlaneICP minimises sum((R*s+t-t_i).n_i)^2 via one Gauss-Newton
// step per iteration over the 6-vector Lie-algebra increment, regularised
// with a small Levenberg diagonal term for conditioning (spec.md 4.9).
// Requires target normals; callers estimate them with pkg/normal first.
//
// Grounded on original_source/pcl/registration/point_to_plane_icp.hpp's
// declared contract (no retrievable impl body) plus the standard
// point-to-plane linearisation used throughout the registration
// literature, expressed here over registration.go's se3Exp helper.
func PointToPlaneICP(sourcePts, targetPts, targetNormals []geom.Point3[float64], targetIndex search.Index, cfg FineConfig) Result {
	const lambda = 1e-8
	step := func(srcIdx, dstIdx []int, transformed []geom.Point3[float64]) (cloud.Transform, bool) {
		n := len(srcIdx)
		if n < 3 {
			return cloud.Transform{}, false
		}
		jtj := mat.NewSymDense(6, nil)
		jtr := mat.NewVecDense(6, nil)
		for k := 0; k < n; k++ {
			p := transformed[srcIdx[k]]
			t := targetPts[dstIdx[k]]
			nrm := targetNormals[dstIdx[k]]
			r := p.Sub(t).Dot(nrm)
			cross := p.Cross(nrm)
			j := [6]float64{cross.X, cross.Y, cross.Z, nrm.X, nrm.Y, nrm.Z}
			for a := 0; a < 6; a++ {
				jtr.SetVec(a, jtr.AtVec(a)+j[a]*r)
				for b := a; b < 6; b++ {
					jtj.SetSym(a, b, jtj.At(a, b)+j[a]*j[b])
				}
			}
		}
		for a := 0; a < 6; a++ {
			jtj.SetSym(a, a, jtj.At(a, a)+lambda)
		}
		var chol mat.Cholesky
		if !chol.Factorize(jtj) {
			return cloud.Transform{}, false
		}
		var xi mat.VecDense
		var negJtr mat.VecDense
		negJtr.ScaleVec(-1, jtr)
		if err := chol.SolveVecTo(&xi, &negJtr); err != nil {
			return cloud.Transform{}, false
		}
		return se3Exp([6]float64{xi.AtVec(0), xi.AtVec(1), xi.AtVec(2), xi.AtVec(3), xi.AtVec(4), xi.AtVec(5)}), true
	}
	return runFineLoop(sourcePts, targetIndex, cfg, PointToPlane, step, rmsError)
}
