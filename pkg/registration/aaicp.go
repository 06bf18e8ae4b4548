package registration

import (
	"math"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
	"gonum.org/v1/gonum/mat"
)

// AAICPConfig adds Anderson acceleration's own knobs to FineConfig: the
// damping factor Beta in [0,1], the sliding history length M, a Tikhonov
// regulariser for the small least-squares solve, and the safeguard growth
// factor beyond which the accelerated step is rejected in favour of the
// unaccelerated base step (spec.md 9's open question: "specific constants
// ... left to the implementer, with the requirement that ... the algorithm
// never diverges past the base ICP's behaviour").
type AAICPConfig struct {
	FineConfig
	Beta            float64
	History         int
	Tikhonov        float64
	SafeguardGrowth float64
}

// DefaultAAICPConfig returns reasonable starting values.
func DefaultAAICPConfig() AAICPConfig {
	return AAICPConfig{
		FineConfig:      DefaultFineConfig(),
		Beta:            0.7,
		History:         4,
		Tikhonov:        1e-8,
		SafeguardGrowth: 2.0,
	}
}

// flattenTransform flattens a Transform into a 12-vector (rotation row-major, then
// translation), the parameter space Anderson acceleration's fixed-point map
// operates over.
func flattenTransform(t cloud.Transform) [12]float64 {
	var v [12]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			v[r*3+c] = t.R.At(r, c)
		}
	}
	v[9], v[10], v[11] = t.T[0], t.T[1], t.T[2]
	return v
}

// unflattenTransform rebuilds a Transform from a 12-vector and re-projects
// its rotation block onto the nearest orthonormal matrix via SVD (R = U
// V^T), since the vector mixing Anderson acceleration performs does not
// stay on the rotation manifold.
func unflattenTransform(v [12]float64) cloud.Transform {
	raw := mat.NewDense(3, 3, v[0:9])
	var svd mat.SVD
	r := raw
	if svd.Factorize(raw, mat.SVDFull) {
		var u, vv mat.Dense
		svd.UTo(&u)
		svd.VTo(&vv)
		var proj mat.Dense
		proj.Mul(&u, vv.T())
		if mat.Det(&proj) < 0 {
			// flip the last column of U to keep det = +1
			for i := 0; i < 3; i++ {
				u.Set(i, 2, -u.At(i, 2))
			}
			proj.Mul(&u, vv.T())
		}
		r = &proj
	}
	return cloud.Transform{R: r, T: [3]float64{v[9], v[10], v[11]}}
}

func vecSub12(a, b [12]float64) [12]float64 {
	var out [12]float64
	for i := range out {
		out[i] = a[i] - b[i]
	}
	return out
}

func vecNorm12(a [12]float64) float64 {
	var sum float64
	for _, x := range a {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// AAICP runs Anderson-accelerated point-to-point ICP (spec.md 4.9): each
// unaccelerated base step G is the plain point-to-point Umeyama update;
// a sliding window of the last History iterates and their fixed-point
// residuals g_i = G(x_i) - x_i feeds a small least-squares solve for
// mixing weights alpha (sum alpha_i = 1, minimising ||sum alpha_i g_i||),
// and the accelerated proposal is beta * sum(alpha_i G(x_i)) + (1-beta) *
// sum(alpha_i x_i). A safeguard rejects the accelerated proposal in favour
// of the plain base step whenever it would increase the residual norm
// beyond SafeguardGrowth times the previous one.
//
// Grounded on original_source/pcl/registration/aa_icp.hpp's declared
// parameter set (m_beta, m_history_size) — the header names Anderson
// acceleration's standard knobs without a retrievable impl body, so the
// mixing/safeguard body follows spec.md 4.9's textual description of the
// algorithm directly.
func AAICP(sourcePts, targetPts []geom.Point3[float64], targetIndex search.Index, cfg AAICPConfig) Result {
	if len(sourcePts) == 0 || targetIndex == nil || targetIndex.Len() == 0 {
		return Result{Transform: cloud.Identity(), TerminationReason: TooFewCorrespondences, FitnessScore: math.Inf(1)}
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 50
	}
	minCorr := cfg.MinCorrespondences
	if minCorr < 3 {
		minCorr = 3
	}
	maxDist := cfg.MaxCorrespondenceDistance
	if maxDist <= 0 {
		maxDist = math.Inf(1)
	}
	beta := cfg.Beta
	if beta <= 0 || beta > 1 {
		beta = 0.7
	}
	m := cfg.History
	if m < 1 {
		m = 4
	}
	growth := cfg.SafeguardGrowth
	if growth <= 0 {
		growth = 2.0
	}

	T := cfg.InitialGuess
	if T.R == nil {
		T = cloud.Identity()
	}

	// baseStep evaluates the fixed-point map G at a transform: one
	// unaccelerated point-to-point ICP correspondence+Umeyama update.
	baseStep := func(t cloud.Transform) (cloud.Transform, []float64, bool) {
		transformed := make([]geom.Point3[float64], len(sourcePts))
		for i, p := range sourcePts {
			transformed[i] = cloud.Apply(t, p)
		}
		srcIdx, dstIdx, dists := findNearestCorrespondences(transformed, targetIndex, maxDist)
		if len(srcIdx) < minCorr {
			return t, dists, false
		}
		srcIdx, dstIdx, dists = rejectOutliers(srcIdx, dstIdx, dists, cfg.OutlierRejectionRatio)
		s := make([]geom.Point3[float64], len(srcIdx))
		d := make([]geom.Point3[float64], len(srcIdx))
		for i := range srcIdx {
			s[i] = transformed[srcIdx[i]]
			d[i] = targetPts[dstIdx[i]]
		}
		delta, ok := EstimateRigidTransform(s, d, nil)
		if !ok {
			return t, dists, false
		}
		return delta.Compose(t), dists, true
	}

	type histEntry struct {
		x [12]float64
		g [12]float64
	}
	var history []histEntry
	var hist []IterationRecord
	prevResidual := math.Inf(1)
	reason := MaxIterations
	iterations := 0
	var lastDists []float64

	for iter := 1; iter <= maxIter; iter++ {
		iterations = iter
		x := flattenTransform(T)
		gx, dists, ok := baseStep(T)
		if !ok {
			reason = TooFewCorrespondences
			break
		}
		lastDists = dists
		gxv := flattenTransform(gx)
		residual := vecSub12(gxv, x)
		residualNorm := vecNorm12(residual)

		history = append(history, histEntry{x: x, g: residual})
		if len(history) > m {
			history = history[len(history)-m:]
		}

		var proposed cloud.Transform
		accelerated := false
		if len(history) >= 2 {
			k := len(history)
			gmat := mat.NewDense(12, k, nil)
			for col, h := range history {
				for row := 0; row < 12; row++ {
					gmat.Set(row, col, h.g[row])
				}
			}
			var gtg mat.Dense
			gtg.Mul(gmat.T(), gmat)
			for i := 0; i < k; i++ {
				gtg.Set(i, i, gtg.At(i, i)+cfg.Tikhonov)
			}
			ones := mat.NewVecDense(k, nil)
			for i := 0; i < k; i++ {
				ones.SetVec(i, 1)
			}
			var inv mat.Dense
			if err := inv.Inverse(&gtg); err == nil {
				var z mat.VecDense
				z.MulVec(&inv, ones)
				sumZ := mat.Sum(&z)
				if math.Abs(sumZ) > 1e-12 {
					alpha := make([]float64, k)
					for i := range alpha {
						alpha[i] = z.AtVec(i) / sumZ
					}
					var mixX, mixG [12]float64
					for i, h := range history {
						for d := 0; d < 12; d++ {
							mixX[d] += alpha[i] * h.x[d]
							mixG[d] += alpha[i] * h.g[d]
						}
					}
					var candidate [12]float64
					for d := 0; d < 12; d++ {
						candidate[d] = mixX[d] + beta*mixG[d]
					}
					proposed = unflattenTransform(candidate)
					accelerated = true
				}
			}
		}

		var nextT cloud.Transform
		var nextResidualNorm float64
		if accelerated {
			_, accDists, accOK := baseStep(proposed)
			accResidual := math.Inf(1)
			if accOK {
				accTransformed := flattenTransform(proposed)
				accG, _, _ := baseStep(proposed)
				accResidual = vecNorm12(vecSub12(flattenTransform(accG), accTransformed))
			}
			if accOK && accResidual <= growth*residualNorm {
				nextT = proposed
				nextResidualNorm = accResidual
				lastDists = accDists
			} else {
				nextT = gx
				nextResidualNorm = residualNorm
			}
		} else {
			nextT = gx
			nextResidualNorm = residualNorm
		}

		rotDev, transDev := nextT.Compose(T.Inverse()).DeviationFromIdentity()
		if cfg.RecordHistory {
			hist = append(hist, IterationRecord{Iteration: iter, CorrespondenceCount: len(lastDists), Error: rmsError(lastDists), Transform: nextT})
		}
		T = nextT

		if rotDev < cfg.TransformationEpsilon && transDev < cfg.TransformationEpsilon {
			reason = ConvergedTransform
			break
		}
		if math.Abs(nextResidualNorm-prevResidual) < cfg.EuclideanFitnessEpsilon {
			reason = ConvergedError
			break
		}
		prevResidual = nextResidualNorm
	}

	return Result{
		Transform:         T,
		FitnessScore:      rmsError(lastDists),
		NumIterations:     iterations,
		Converged:         reason == ConvergedTransform || reason == ConvergedError,
		TerminationReason: reason,
		History:           hist,
	}
}
