package correspondence

import (
	"math"
	"sort"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
)

// QualityScorer computes one quality score per correspondence, higher being
// better, the common interface every sorter below implements (spec.md 4.6).
type QualityScorer interface {
	Scores(correspondences []cloud.Correspondence) []float64
}

// SortedIndices scores correspondences with scorer and returns their
// indices ordered by descending quality, matching
// base_correspondence_sorter_t::compute_sorted_indices.
func SortedIndices(correspondences []cloud.Correspondence, scorer QualityScorer) []int {
	scores := scorer.Scores(correspondences)
	indices := make([]int, len(correspondences))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool { return scores[indices[a]] > scores[indices[b]] })
	return indices
}

// DescriptorDistanceSorter scores correspondences by their descriptor
// distance: smaller distance means higher quality when Invert is set
// (the default), optionally min-max normalised to [0,1] first
// (original_source descriptor_distance_sorter_t).
type DescriptorDistanceSorter struct {
	Invert    bool
	Normalize bool
}

// NewDescriptorDistanceSorter returns a sorter with original_source's
// defaults: invert and normalize both on.
func NewDescriptorDistanceSorter() DescriptorDistanceSorter {
	return DescriptorDistanceSorter{Invert: true, Normalize: true}
}

func (s DescriptorDistanceSorter) Scores(correspondences []cloud.Correspondence) []float64 {
	scores := make([]float64, len(correspondences))
	if len(correspondences) == 0 {
		return scores
	}
	if !s.Normalize {
		for i, c := range correspondences {
			if s.Invert {
				scores[i] = -c.Distance
			} else {
				scores[i] = c.Distance
			}
		}
		return scores
	}

	minD, maxD := math.Inf(1), 0.0
	for _, c := range correspondences {
		if c.Distance < minD {
			minD = c.Distance
		}
		if c.Distance > maxD {
			maxD = c.Distance
		}
	}
	rng := maxD - minD
	if rng < 1e-12 {
		rng = 1
	}
	for i, c := range correspondences {
		normalized := (c.Distance - minD) / rng
		if s.Invert {
			scores[i] = 1 - normalized
		} else {
			scores[i] = normalized
		}
	}
	return scores
}

// GeometricConsistencySorter scores each correspondence by how well the
// pairwise source-to-target distance it forms with every other
// correspondence is preserved (a rigid transform preserves inter-point
// distances), the simple reference consistency check
// original_source's knn_correspondence_generator_impl computes for
// diagnostics after filtering.
type GeometricConsistencySorter struct {
	SourceCloud, TargetCloud cloud.PointSource
}

func (s GeometricConsistencySorter) Scores(correspondences []cloud.Correspondence) []float64 {
	n := len(correspondences)
	scores := make([]float64, n)
	if n < 2 || s.SourceCloud == nil || s.TargetCloud == nil {
		return scores
	}
	for i := 0; i < n; i++ {
		var total float64
		pi := s.SourceCloud.PointAt(correspondences[i].SrcIdx)
		qi := s.TargetCloud.PointAt(correspondences[i].DstIdx)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			pj := s.SourceCloud.PointAt(correspondences[j].SrcIdx)
			qj := s.TargetCloud.PointAt(correspondences[j].DstIdx)
			srcDist := pi.Sub(pj).Norm()
			dstDist := qi.Sub(qj).Norm()
			total += math.Abs(srcDist - dstDist)
		}
		mean := total / float64(n-1)
		scores[i] = -mean // smaller discrepancy is higher quality
	}
	return scores
}

// CombinedSorter blends several scorers by weighted sum, matching
// original_source's combined_sorter_t.
type CombinedSorter struct {
	Scorers []QualityScorer
	Weights []float64
}

func (s CombinedSorter) Scores(correspondences []cloud.Correspondence) []float64 {
	out := make([]float64, len(correspondences))
	for si, scorer := range s.Scorers {
		weight := 1.0
		if si < len(s.Weights) {
			weight = s.Weights[si]
		}
		scores := scorer.Scores(correspondences)
		for i, v := range scores {
			out[i] += weight * v
		}
	}
	return out
}

// FuncSorter adapts a plain scoring function into a QualityScorer,
// matching original_source's custom_function_sorter_t.
type FuncSorter func(correspondences []cloud.Correspondence) []float64

func (f FuncSorter) Scores(correspondences []cloud.Correspondence) []float64 { return f(correspondences) }
