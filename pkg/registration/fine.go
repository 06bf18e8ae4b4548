package registration

import (
	"math"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

// FineConfig holds the parameters every fine-registration loop in spec.md
// 4.9's shared pseudocode reads: maximum iterations, the correspondence
// search radius, the two convergence epsilons, the per-iteration outlier
// rejection fraction, and the minimum correspondence count below which the
// loop terminates with too_few_correspondences.
type FineConfig struct {
	MaxIterations             int
	MaxCorrespondenceDistance float64
	TransformationEpsilon     float64
	EuclideanFitnessEpsilon   float64
	OutlierRejectionRatio     float64
	MinCorrespondences        int
	InitialGuess              cloud.Transform
	RecordHistory             bool
}

// DefaultFineConfig mirrors the toolbox headers' common field defaults.
func DefaultFineConfig() FineConfig {
	return FineConfig{
		MaxIterations:             50,
		MaxCorrespondenceDistance: 1.0,
		TransformationEpsilon:     1e-6,
		EuclideanFitnessEpsilon:   1e-6,
		MinCorrespondences:        3,
		InitialGuess:              cloud.Identity(),
	}
}

// stepFunc computes one method-specific compute_transformation step
// (spec.md 4.9): given the matched (transformed-source-index,
// target-index) pairs and the current transformed source points, it
// returns the incremental transform delta such that the next iterate is
// delta.Compose(currentT).
type stepFunc func(srcIdx, dstIdx []int, transformed []geom.Point3[float64]) (cloud.Transform, bool)

// errorFunc computes the scalar error the euclidean_fitness_epsilon
// convergence test tracks, given the current transform's matched distances.
type errorFunc func(distances []float64) float64

// runFineLoop implements spec.md 4.9's shared iteration:
//
//	T <- initial_guess
//	for i in 1..max_iterations:
//	    transformed <- apply(T, source)
//	    correspondences, distances <- find_correspondences(transformed, target)
//	    if too few: terminate too_few_correspondences
//	    reject worst outlier_rejection*N pairs
//	    delta <- compute_transformation(...)
//	    T <- delta . T
//	    err <- compute_error(T)
//	    check transformation_epsilon / euclidean_fitness_epsilon
//
// find_correspondences is always a nearest-target-point lookup here
// (point-to-point/plane/generalised/AA all share it); NDT replaces the
// whole loop with its own voxel-distribution objective (ndt.go).
func runFineLoop(
	source []geom.Point3[float64],
	targetIndex search.Index,
	cfg FineConfig,
	corrType CorrespondenceType,
	step stepFunc,
	computeErr errorFunc,
) Result {
	if len(source) == 0 || targetIndex == nil || targetIndex.Len() == 0 {
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

	T := cfg.InitialGuess
	if T.R == nil {
		T = cloud.Identity()
	}
	prevErr := math.Inf(1)
	var history []IterationRecord
	reason := MaxIterations
	iterations := 0
	lastDists := []float64{}

	for iter := 1; iter <= maxIter; iter++ {
		iterations = iter
		transformed := make([]geom.Point3[float64], len(source))
		for i, p := range source {
			transformed[i] = cloud.Apply(T, p)
		}

		srcIdx, dstIdx, dists := findNearestCorrespondences(transformed, targetIndex, maxDist)
		if len(srcIdx) < minCorr {
			reason = TooFewCorrespondences
			break
		}

		srcIdx, dstIdx, dists = rejectOutliers(srcIdx, dstIdx, dists, cfg.OutlierRejectionRatio)
		lastDists = dists

		delta, ok := step(srcIdx, dstIdx, transformed)
		if !ok {
			reason = NumericalFailure
			break
		}
		T = delta.Compose(T)

		rotDev, transDev := delta.DeviationFromIdentity()
		errNow := computeErr(dists)

		if cfg.RecordHistory {
			history = append(history, IterationRecord{Iteration: iter, CorrespondenceCount: len(srcIdx), Error: errNow, Transform: T})
		}

		if rotDev < cfg.TransformationEpsilon && transDev < cfg.TransformationEpsilon {
			reason = ConvergedTransform
			iterations = iter
			break
		}
		if math.Abs(errNow-prevErr) < cfg.EuclideanFitnessEpsilon {
			reason = ConvergedError
			iterations = iter
			break
		}
		prevErr = errNow
	}

	_ = corrType
	return Result{
		Transform:         T,
		FitnessScore:      meanDistance(lastDists),
		Inliers:           nil,
		NumIterations:     iterations,
		Converged:         reason == ConvergedTransform || reason == ConvergedError,
		TerminationReason: reason,
		History:           history,
	}
}

// findNearestCorrespondences looks up each transformed source point's
// nearest target point via targetIndex, keeping only matches within
// maxDist, and returns them in ascending source-index order (spec.md 5:
// "correspondence generation... always returns them in source-ascending
// order").
func findNearestCorrespondences(transformed []geom.Point3[float64], targetIndex search.Index, maxDist float64) (srcIdx, dstIdx []int, distances []float64) {
	for i, p := range transformed {
		q := search.QueryPoint(p)
		ns := targetIndex.KNearest(q, 1)
		if len(ns) == 0 {
			continue
		}
		if ns[0].Distance > maxDist {
			continue
		}
		srcIdx = append(srcIdx, i)
		dstIdx = append(dstIdx, ns[0].Index)
		distances = append(distances, ns[0].Distance)
	}
	return
}

func rmsError(distances []float64) float64 {
	if len(distances) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, d := range distances {
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(distances)))
}
