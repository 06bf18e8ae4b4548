package registration

import (
	"math"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/randutil"
)

// RANSACConfig holds the parameters spec.md 4.8.1 names: the minimal sample
// size (Horn's minimum is 3), the 3-space inlier threshold, the confidence
// level driving adaptive iteration shrinkage, and the optional all-inlier
// refinement and early-stop ratio.
//
// Grounded on original_source/pcl/registration/ransac_registration.hpp's
// parameter set (m_confidence, m_sample_size, m_refine_result,
// m_early_stop_ratio); that header declares align_impl/estimate_rigid_
// transform_svd/count_inliers/refine_transformation without a retrievable
// impl file, so the per-iteration body below follows spec.md 4.8.1's
// pseudocode directly.
// SortedIndices, when non-empty, ranks correspondences' indices best-quality
// first (e.g. via correspondence.SortedIndices) and switches RANSAC into
// PROSAC-style progressive sampling: early iterations draw only from the
// best-ranked prefix of the list and the sampled prefix grows toward the
// full set as iterations proceed, converging faster than uniform sampling
// when the ranking is informative (prosac_registration_simple.cpp). It is
// used only when its length equals len(correspondences) and is ignored
// otherwise; its entries are not checked to form a permutation.
type RANSACConfig struct {
	MaxIterations   int
	InlierThreshold float64
	Confidence      float64
	SampleSize      int
	RefineResult    bool
	EarlyStopRatio  float64
	Seed            int64
	RecordHistory   bool
	SortedIndices   []int
}

// DefaultRANSACConfig matches the toolbox header's field defaults.
func DefaultRANSACConfig() RANSACConfig {
	return RANSACConfig{
		MaxIterations:   1000,
		InlierThreshold: 0.05,
		Confidence:      0.99,
		SampleSize:      3,
		RefineResult:    true,
		EarlyStopRatio:  0.9,
	}
}

// RANSAC runs correspondence-based RANSAC coarse registration (spec.md
// 4.8.1): source and target are the clouds the correspondences' indices
// refer into (or their keypoint subsets, per the caller's convention).
func RANSAC(source, target cloud.PointSource, correspondences []cloud.Correspondence, cfg RANSACConfig) Result {
	if cfg.SampleSize < 3 {
		cfg.SampleSize = 3
	}
	n := len(correspondences)
	if source == nil || target == nil {
		return Result{Transform: cloud.Identity(), TerminationReason: NumericalFailure, FitnessScore: math.Inf(1)}
	}
	if n < cfg.SampleSize {
		return Result{Transform: cloud.Identity(), TerminationReason: TooFewCorrespondences, FitnessScore: math.Inf(1)}
	}

	rng := randutil.New(cfg.Seed)
	srcPts := make([]geom.Point3[float64], n)
	dstPts := make([]geom.Point3[float64], n)
	for i, c := range correspondences {
		srcPts[i] = source.PointAt(c.SrcIdx)
		dstPts[i] = target.PointAt(c.DstIdx)
	}

	best := cloud.Identity()
	bestInliers := []int{}
	bestRatio := 0.0
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 1000
	}
	totalIter := maxIter
	progressive := len(cfg.SortedIndices) == n
	var history []IterationRecord

	iter := 0
	for iter < maxIter {
		var sampleIdx []int
		if progressive {
			poolSize := prosacPoolSize(iter, totalIter, cfg.SampleSize, n)
			sampleIdx = randutil.Sample(rng, cfg.SortedIndices[:poolSize], cfg.SampleSize)
		} else {
			sampleIdx = randutil.Sample(rng, allIndices(n), cfg.SampleSize)
		}
		sampleSrc := make([]geom.Point3[float64], cfg.SampleSize)
		sampleDst := make([]geom.Point3[float64], cfg.SampleSize)
		for i, idx := range sampleIdx {
			sampleSrc[i] = srcPts[idx]
			sampleDst[i] = dstPts[idx]
		}
		candidate, ok := EstimateRigidTransform(sampleSrc, sampleDst, nil)
		iter++
		if !ok {
			continue
		}

		inliers, dists := ransacInliers(candidate, srcPts, dstPts, cfg.InlierThreshold)
		ratio := float64(len(inliers)) / float64(n)
		if cfg.RecordHistory {
			history = append(history, IterationRecord{
				Iteration:           iter,
				CorrespondenceCount: len(inliers),
				Error:               meanDistance(dists),
				Transform:           candidate,
			})
		}
		if ratio > bestRatio {
			bestRatio = ratio
			best = candidate
			bestInliers = inliers
		}

		if cfg.Confidence > 0 && cfg.Confidence < 1 && bestRatio > 0 {
			needed := calculateIterations(bestRatio, cfg.SampleSize, cfg.Confidence)
			if needed < maxIter {
				maxIter = needed
			}
		}
		if cfg.EarlyStopRatio > 0 && bestRatio >= cfg.EarlyStopRatio {
			break
		}
	}

	if len(bestInliers) < cfg.SampleSize {
		return Result{Transform: cloud.Identity(), TerminationReason: TooFewCorrespondences, NumIterations: iter, FitnessScore: math.Inf(1), History: history}
	}

	if cfg.RefineResult {
		inSrc := make([]geom.Point3[float64], len(bestInliers))
		inDst := make([]geom.Point3[float64], len(bestInliers))
		for i, idx := range bestInliers {
			inSrc[i] = srcPts[idx]
			inDst[i] = dstPts[idx]
		}
		if refined, ok := EstimateRigidTransform(inSrc, inDst, nil); ok {
			best = refined
			bestInliers, _ = ransacInliers(best, srcPts, dstPts, cfg.InlierThreshold)
		}
	}

	_, dists := ransacInliers(best, srcPts, dstPts, cfg.InlierThreshold)
	// compute_fitness_score per spec.md 9's open question: mean *actual*
	// inlier distance, not the inlier_threshold placeholder some toolbox
	// builds accumulate.
	fitness := meanDistance(dists)

	return Result{
		Transform:         best,
		FitnessScore:      fitness,
		Inliers:           bestInliers,
		NumIterations:     iter,
		Converged:         len(bestInliers) >= cfg.SampleSize,
		TerminationReason: ConvergedTransform,
		History:           history,
	}
}

// prosacPoolSize returns how many of the best-ranked correspondences a
// sample may be drawn from at iter out of a totalIter-iteration budget: it
// grows linearly from sampleSize at iter 0 to n once iter reaches
// totalIter, so the pool only covers the full correspondence set once
// RANSAC's uniform-sampling guarantees would otherwise be needed.
func prosacPoolSize(iter, totalIter, sampleSize, n int) int {
	if totalIter <= 0 {
		return n
	}
	pool := sampleSize + (n-sampleSize)*iter/totalIter
	if pool < sampleSize {
		pool = sampleSize
	}
	if pool > n {
		pool = n
	}
	return pool
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// ransacInliers transforms every source correspondence point by candidate
// and keeps those within threshold of their paired target point.
func ransacInliers(candidate cloud.Transform, srcPts, dstPts []geom.Point3[float64], threshold float64) ([]int, []float64) {
	var inliers []int
	var dists []float64
	for i := range srcPts {
		tp := cloud.Apply(candidate, srcPts[i])
		d := geom.Distance(tp, dstPts[i])
		if d <= threshold {
			inliers = append(inliers, i)
			dists = append(dists, d)
		}
	}
	return inliers, dists
}

// calculateIterations implements spec.md 4.8.1's adaptive shrinkage:
// log(1 - confidence) / log(1 - inlier_ratio^sample_size).
func calculateIterations(inlierRatio float64, sampleSize int, confidence float64) int {
	if inlierRatio <= 0 || inlierRatio >= 1 {
		return math.MaxInt32
	}
	denom := math.Log(1 - math.Pow(inlierRatio, float64(sampleSize)))
	if denom >= 0 {
		return math.MaxInt32
	}
	n := math.Log(1-confidence) / denom
	if n < 1 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 1
	}
	return int(math.Ceil(n))
}
