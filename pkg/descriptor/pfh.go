package descriptor

import (
	"math"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

// PFHConfig parameters the Point Feature Histogram extractor.
type PFHConfig struct {
	NumNeighbors    int
	SearchRadius    float64 // if > 0, radius search instead of k-nearest
	NumSubdivisions int     // bins per angular feature; defaults to 5 (5^3 = 125)
}

// PFH computes a 125-bin Point Feature Histogram at each keypoint index: for
// every pair of points in the keypoint's neighbourhood (an O(k^2) all-pairs
// sweep), the three Darboux-frame angular features (f1,f2,f3) are binned
// into a NumSubdivisions^3 joint histogram, normalised to sum to 1
// (spec.md 4.5).
func PFH[T geom.Scalar](c *cloud.Cloud[T], idx search.Index, keypointIndices []int, cfg PFHConfig) []cloud.Signature {
	subdivisions := cfg.NumSubdivisions
	if subdivisions <= 0 {
		subdivisions = 5
	}
	normals := ensureNormals(c, idx, cfg.NumNeighbors)

	out := make([]cloud.Signature, len(keypointIndices))
	for oi, i := range keypointIndices {
		sig := cloud.NewSignature(cloud.PFH)
		q := search.QueryPoint(c.Points[i])
		neighbors := neighbourhood(idx, q, cfg.SearchRadius, cfg.NumNeighbors)
		if len(neighbors) < 2 {
			out[oi] = sig
			continue
		}
		for a := 0; a < len(neighbors); a++ {
			for b := a + 1; b < len(neighbors); b++ {
				ia, ib := neighbors[a].Index, neighbors[b].Index
				f1, f2, f3, _ := pairFeatures(point64(c, ia), normals[ia], point64(c, ib), normals[ib])
				bin := pfhBinIndex(f1, f2, f3, subdivisions)
				sig.Histogram[bin]++
			}
		}
		normalizeSum(sig.Histogram)
		out[oi] = sig
	}
	return out
}

// pfhBinIndex discretises the three [-1,1]/[-pi,pi]-ranged angular features
// into a joint subdivisions^3 bin index.
func pfhBinIndex(f1, f2, f3 float64, subdivisions int) int {
	b1 := quantize((f1+1)*0.5, subdivisions)
	b2 := quantize((f2+1)*0.5, subdivisions)
	b3 := quantize((f3+math.Pi)/(2*math.Pi), subdivisions)
	return b1*subdivisions*subdivisions + b2*subdivisions + b3
}
