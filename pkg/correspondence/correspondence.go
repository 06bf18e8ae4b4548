// Package correspondence matches keypoint descriptors between a source and
// a target cloud into a filtered, deduplicated set of candidate
// Correspondences, tracking the funnel of how many survive each filter
// (spec.md 4.6).
//
// Grounded on original_source/src/include/cpp-toolbox/pcl/correspondence/
// {knn_correspondence_generator,base_correspondence_sorter}.hpp and
// impl/knn_correspondence_generator_impl.hpp's compute_impl pipeline
// (candidates -> ratio test -> mutual verification -> distance threshold),
// generalised to a plain function over a search.Index built by the caller
// rather than the toolbox's stateful generator object, matching this
// module's explicit-dependency style (pkg/normal, pkg/keypoint).
package correspondence

import (
	"sort"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/metric"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

// Config parameters correspondence generation.
type Config struct {
	// RatioThreshold rejects a source descriptor's best match unless it
	// beats the second-best by this factor (Lowe's ratio test); 0 disables
	// the test.
	RatioThreshold float64
	// MutualVerification keeps only correspondences whose target's nearest
	// source descriptor is the same source the forward pass matched.
	MutualVerification bool
	// DistanceThreshold drops any correspondence whose descriptor distance
	// exceeds it; 0 disables the test.
	DistanceThreshold float64
}

// Result is a generator's output: the filtered correspondences (sorted
// ascending by SrcIdx per spec.md's data-model invariant) plus the funnel
// counters spec.md 4.6 requires for diagnostics.
type Result struct {
	Correspondences []cloud.Correspondence
	Stats           cloud.CorrespondenceStats
}

// Side bundles one cloud's descriptors with the keypoint index each
// descriptor describes. It holds no search index: the target's index is
// passed to GenerateKNN separately, and mutual verification builds its
// reverse-pass index over the source histograms itself.
type Side struct {
	Signatures []cloud.Signature
	Keypoints  []int // Keypoints[i] is the cloud point index Signatures[i] describes
}

// GenerateKNN matches every descriptor in src against target's index (built
// over target.Signatures), applying the ratio test, optional mutual
// verification, and the distance threshold in that order (spec.md 4.6).
func GenerateKNN(src Side, target Side, targetIndex search.Index, cfg Config) Result {
	var stats cloud.CorrespondenceStats
	var forward []cloud.Correspondence

	for i, sig := range src.Signatures {
		neighbors := targetIndex.KNearest(sig.Histogram, 2)
		if len(neighbors) == 0 {
			continue
		}
		stats.TotalCandidates += len(neighbors)

		if cfg.RatioThreshold > 0 && len(neighbors) >= 2 {
			if neighbors[1].Distance == 0 || neighbors[0].Distance/neighbors[1].Distance >= cfg.RatioThreshold {
				continue
			}
		}
		stats.RatioTestPassed++
		forward = append(forward, cloud.Correspondence{
			SrcIdx:   src.Keypoints[i],
			DstIdx:   target.Keypoints[neighbors[0].Index],
			Distance: neighbors[0].Distance,
		})
	}

	verified := forward
	if cfg.MutualVerification {
		verified = mutualVerify(src, target, forward)
		stats.MutualTestPassed = len(verified)
	}

	final := verified
	if cfg.DistanceThreshold > 0 {
		final = make([]cloud.Correspondence, 0, len(verified))
		for _, c := range verified {
			if c.Distance <= cfg.DistanceThreshold {
				final = append(final, c)
			}
		}
	}
	stats.DistanceTestPassed = len(final)

	sort.Slice(final, func(i, j int) bool { return final[i].SrcIdx < final[j].SrcIdx })
	return Result{Correspondences: final, Stats: stats}
}

// GenerateBruteForce matches src against target by exhaustive nearest-
// descriptor search (no acceleration index), otherwise applying the same
// ratio/mutual/distance funnel as GenerateKNN — the baseline
// original_source's brute_force_correspondence_generator_t provides
// alongside the accelerated KNN path.
func GenerateBruteForce(src, target Side, cfg Config) Result {
	bf := search.NewBruteForce(search.FromSlice(histograms(target.Signatures)), l2())
	return GenerateKNN(src, target, bf, cfg)
}

func histograms(sigs []cloud.Signature) [][]float64 {
	out := make([][]float64, len(sigs))
	for i, s := range sigs {
		out[i] = s.Histogram
	}
	return out
}

func l2() metric.Metric {
	m, _ := metric.New("l2")
	return m
}

// mutualVerify keeps forward correspondences whose matched target
// descriptor's own nearest source descriptor (found by a fresh
// brute-force search built over src's histograms) is the same source
// keypoint the forward pass matched.
func mutualVerify(src, target Side, forward []cloud.Correspondence) []cloud.Correspondence {
	if len(forward) == 0 {
		return nil
	}
	dstHistogramByKeypoint := make(map[int][]float64, len(target.Keypoints))
	for i, kp := range target.Keypoints {
		dstHistogramByKeypoint[kp] = target.Signatures[i].Histogram
	}

	reverseSrc := search.NewBruteForce(search.FromSlice(histograms(src.Signatures)), l2())

	out := make([]cloud.Correspondence, 0, len(forward))
	for _, fc := range forward {
		histogram, ok := dstHistogramByKeypoint[fc.DstIdx]
		if !ok {
			continue
		}
		nearest := reverseSrc.KNearest(histogram, 1)
		if len(nearest) == 0 {
			continue
		}
		if src.Keypoints[nearest[0].Index] == fc.SrcIdx {
			out = append(out, fc)
		}
	}
	return out
}
