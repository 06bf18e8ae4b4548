// Package keypoint implements salient-point detection: every detector
// consumes a cloud and a neighbour-search index and emits a set of indices
// into that cloud (spec.md 4.4). All but LOAM share a common
// non-maximum-suppression stage parameterised by a 3-space radius.
package keypoint

import (
	"sort"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

// parallelThreshold mirrors the module-wide convention (pkg/search,
// pkg/normal): detectors only fan out across goroutines above this many
// points (spec.md 4.4, "embarrassingly parallel above ~1000 points").
const parallelThreshold = 1000

// responsePoint pairs a candidate point's index with its detector-specific
// response magnitude, the common currency non-maximum suppression operates
// on regardless of which detector produced it.
type responsePoint struct {
	index    int
	response float64
}

// nonMaxSuppress keeps, for every candidate whose response exceeds its
// neighbours within radius, only the single highest-response point. idx must
// be built over the same cloud the candidates' indices refer into.
func nonMaxSuppress[T geom.Scalar](c *cloud.Cloud[T], idx search.Index, candidates []responsePoint, radius float64) []int {
	if len(candidates) == 0 {
		return nil
	}
	responseOf := make(map[int]float64, len(candidates))
	for _, cand := range candidates {
		responseOf[cand.index] = cand.response
	}

	sorted := append([]responsePoint(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].response > sorted[j].response })

	suppressed := make(map[int]bool, len(candidates))
	var out []int
	for _, cand := range sorted {
		if suppressed[cand.index] {
			continue
		}
		out = append(out, cand.index)
		q := search.QueryPoint(c.Points[cand.index])
		for _, nb := range idx.Radius(q, radius) {
			if nb.Index == cand.index {
				continue
			}
			if _, isCandidate := responseOf[nb.Index]; isCandidate {
				suppressed[nb.Index] = true
			}
		}
	}
	sort.Ints(out)
	return out
}

// neighborPoints gathers the double-precision coordinates of idx's k-nearest
// neighbours of c.Points[i], the common input PCA-based detectors need.
func neighborPoints[T geom.Scalar](c *cloud.Cloud[T], idx search.Index, i, k int) [][3]float64 {
	q := search.QueryPoint(c.Points[i])
	neighbors := idx.KNearest(q, k)
	pts := make([][3]float64, len(neighbors))
	for j, nb := range neighbors {
		x, y, z := geom.AsFloat64(c.Points[nb.Index])
		pts[j] = [3]float64{x, y, z}
	}
	return pts
}
