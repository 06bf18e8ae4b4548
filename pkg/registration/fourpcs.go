package registration

import (
	"math"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/randutil"
)

// FourPCSConfig holds spec.md 4.8.2's parameters: delta is the LCP/pair
// tolerance (in the same units as the cloud), overlap is the assumed
// fractional overlap used to size the base diagonal, and maxBaseTries
// bounds how many coplanar 4-point bases are attempted before giving up.
//
// Grounded on original_source/pcl/registration/super_four_pcs_registration.hpp's
// set_delta/set_overlap (the plain 4PCS header wasn't retrieved separately
// into the pack; Super4PCS's own doc comment documents the same
// delta/overlap contract as its base-line 4PCS predecessor, so this
// unaccelerated variant reuses that parameter naming) and spec.md 4.8.2's
// full textual description of the base-selection/invariant/LCP pipeline.
type FourPCSConfig struct {
	Delta          float64
	Overlap        float64
	MaxBaseTries   int
	Seed           int64
}

// DefaultFourPCSConfig returns reasonable starting values.
func DefaultFourPCSConfig() FourPCSConfig {
	return FourPCSConfig{Delta: 0.05, Overlap: 0.5, MaxBaseTries: 50}
}

// base4 is a coplanar 4-point base (indices into the source cloud) plus its
// two diagonal-intersection invariants r1, r2.
type base4 struct {
	p1, p2, p3, p4 int
	r1, r2         float64
}

// FourPCS runs descriptor-free coarse registration by finding a wide
// coplanar 4-point base in source, searching target for congruent 4-point
// sets (matching pairwise distances and diagonal-intersection invariants
// within delta), and keeping the candidate with the largest LCP (spec.md
// 4.8.2). Unlike RANSAC/4PCS's accelerated sibling Super4PCS, pair search
// here is the direct O(n^2) all-pairs scan spec.md documents as 4PCS's
// complexity.
func FourPCS(source, target cloud.PointSource, cfg FourPCSConfig) Result {
	if source == nil || target == nil || source.Len() < 4 || target.Len() < 4 {
		return Result{Transform: cloud.Identity(), TerminationReason: TooFewCorrespondences, FitnessScore: math.Inf(1)}
	}
	rng := randutil.New(cfg.Seed)
	delta := cfg.Delta
	if delta <= 0 {
		delta = 0.05
	}
	tries := cfg.MaxBaseTries
	if tries <= 0 {
		tries = 50
	}

	srcPts := allPoints(source)
	dstPts := allPoints(target)

	best := cloud.Identity()
	bestLCP := -1.0
	bestInliers := []int{}

	for attempt := 0; attempt < tries; attempt++ {
		base, ok := selectWideBase(rng, srcPts, cfg.Overlap)
		if !ok {
			continue
		}
		candidates := findCongruentBases(dstPts, srcPts, base, delta)
		for _, cand := range candidates {
			srcSample := []geom.Point3[float64]{srcPts[base.p1], srcPts[base.p2], srcPts[base.p3], srcPts[base.p4]}
			dstSample := []geom.Point3[float64]{dstPts[cand.p1], dstPts[cand.p2], dstPts[cand.p3], dstPts[cand.p4]}
			xf, ok := EstimateRigidTransform(srcSample, dstSample, nil)
			if !ok {
				continue
			}
			lcp, inliers := largestCommonPointset(xf, srcPts, dstPts, delta)
			if lcp > bestLCP {
				bestLCP = lcp
				best = xf
				bestInliers = inliers
			}
		}
	}

	if bestLCP < 0 {
		return Result{Transform: cloud.Identity(), TerminationReason: NumericalFailure, FitnessScore: math.Inf(1)}
	}

	fitness := 0.0
	if len(bestInliers) > 0 {
		var sum float64
		for _, idx := range bestInliers {
			tp := cloud.Apply(best, srcPts[idx])
			_, nearest := nearestPoint(tp, dstPts)
			sum += nearest
		}
		fitness = sum / float64(len(bestInliers))
	}

	return Result{
		Transform:         best,
		FitnessScore:      fitness,
		Inliers:           bestInliers,
		NumIterations:     tries,
		Converged:         true,
		TerminationReason: ConvergedTransform,
	}
}

func allPoints(src cloud.PointSource) []geom.Point3[float64] {
	out := make([]geom.Point3[float64], src.Len())
	for i := range out {
		out[i] = src.PointAt(i)
	}
	return out
}

// selectWideBase picks 4 roughly-coplanar points from pts whose two
// diagonals (p1-p3, p2-p4) span close to overlap*diameter of the cloud,
// per spec.md 4.8.2's "base whose diagonals span a large fraction of the
// cloud". Returns the base and its two invariants r1, r2: the fractional
// position along each diagonal where the diagonals cross (estimated as the
// closest-approach point between the two segments, since a random 4-point
// sample is only approximately coplanar).
func selectWideBase(rng *randutil.Source, pts []geom.Point3[float64], overlap float64) (base4, bool) {
	n := len(pts)
	if n < 4 {
		return base4{}, false
	}
	if overlap <= 0 || overlap > 1 {
		overlap = 0.5
	}
	idx := randutil.Sample(rng, allIndices(n), min4(n, 64))
	bestSpan := -1.0
	var best base4
	found := false
	for i := 0; i < len(idx); i++ {
		for j := i + 1; j < len(idx); j++ {
			d := geom.Distance(pts[idx[i]], pts[idx[j]])
			if d > bestSpan {
				bestSpan = d
				best.p1, best.p3 = idx[i], idx[j]
				found = true
			}
		}
	}
	if !found {
		return base4{}, false
	}
	// Choose p2, p4 as the pair (among the remaining sampled points)
	// whose segment most nearly crosses the p1-p3 diagonal.
	bestCross := math.Inf(1)
	p2set := false
	for i := 0; i < len(idx); i++ {
		if idx[i] == best.p1 || idx[i] == best.p3 {
			continue
		}
		for j := i + 1; j < len(idx); j++ {
			if idx[j] == best.p1 || idx[j] == best.p3 {
				continue
			}
			r1, r2, gap := segmentCrossing(pts[best.p1], pts[best.p3], pts[idx[i]], pts[idx[j]])
			if gap < bestCross {
				bestCross = gap
				best.p2, best.p4 = idx[i], idx[j]
				best.r1, best.r2 = r1, r2
				p2set = true
			}
		}
	}
	if !p2set {
		return base4{}, false
	}
	return best, true
}

func min4(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// segmentCrossing returns the fractional positions r1 (along a1-a2) and r2
// (along b1-b2) of each segment's closest approach to the other, plus the
// closest-approach distance (0 for truly coplanar/intersecting segments).
func segmentCrossing(a1, a2, b1, b2 geom.Point3[float64]) (r1, r2, gap float64) {
	d1 := a2.Sub(a1)
	d2 := b2.Sub(b1)
	r := a1.Sub(b1)
	aa := d1.Dot(d1)
	bb := d2.Dot(d2)
	ab := d1.Dot(d2)
	ar := d1.Dot(r)
	br := d2.Dot(r)
	denom := aa*bb - ab*ab
	if math.Abs(denom) < 1e-12 {
		return 0.5, 0.5, math.Inf(1)
	}
	r1 = (ab*br - bb*ar) / denom
	r2 = (aa*br - ab*ar) / denom
	r1 = clamp01(r1)
	r2 = clamp01(r2)
	p1 := a1.Add(d1.Scale(r1))
	p2 := b1.Add(d2.Scale(r2))
	gap = geom.Distance(p1, p2)
	return r1, r2, gap
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// findCongruentBases scans all 4-point combinations of target (spec.md
// 4.8.2's O(n^2) all-pairs search) for ones whose pairwise distances and
// crossing invariants match base within delta.
func findCongruentBases(dst, src []geom.Point3[float64], base base4, delta float64) []base4 {
	d13 := geom.Distance(src[base.p1], src[base.p3])
	d24 := geom.Distance(src[base.p2], src[base.p4])

	var out []base4
	n := len(dst)
	const capLimit = 20
	for i := 0; i < n && len(out) < capLimit; i++ {
		for j := i + 1; j < n && len(out) < capLimit; j++ {
			if math.Abs(geom.Distance(dst[i], dst[j])-d13) > delta {
				continue
			}
			for k := 0; k < n && len(out) < capLimit; k++ {
				if k == i || k == j {
					continue
				}
				for l := k + 1; l < n && len(out) < capLimit; l++ {
					if l == i || l == j {
						continue
					}
					if math.Abs(geom.Distance(dst[k], dst[l])-d24) > delta {
						continue
					}
					r1, r2, gap := segmentCrossing(dst[i], dst[j], dst[k], dst[l])
					if gap > delta*4 {
						continue
					}
					if math.Abs(r1-base.r1) > 0.25 || math.Abs(r2-base.r2) > 0.25 {
						continue
					}
					out = append(out, base4{p1: i, p3: j, p2: k, p4: l})
				}
			}
		}
	}
	return out
}

// largestCommonPointset returns the LCP fraction and inlier indices: the
// fraction of source points whose transformed position lies within delta
// of its nearest target point (spec.md GLOSSARY "LCP").
func largestCommonPointset(xf cloud.Transform, src, dst []geom.Point3[float64], delta float64) (float64, []int) {
	var inliers []int
	for i, p := range src {
		tp := cloud.Apply(xf, p)
		_, d := nearestPoint(tp, dst)
		if d <= delta {
			inliers = append(inliers, i)
		}
	}
	return float64(len(inliers)) / float64(len(src)), inliers
}

func nearestPoint(q geom.Point3[float64], pts []geom.Point3[float64]) (int, float64) {
	best := -1
	bestD := math.Inf(1)
	for i, p := range pts {
		d := geom.Distance(q, p)
		if d < bestD {
			bestD = d
			best = i
		}
	}
	return best, bestD
}
