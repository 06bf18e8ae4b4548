package keypoint

import (
	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/normal"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

// ISSConfig parameters the Intrinsic Shape Signatures detector.
type ISSConfig struct {
	NumNeighbors int
	// Gamma21 rejects points whose lambda1/lambda0 exceeds this (response
	// isn't locally 2D-distinctive).
	Gamma21 float64
	// Gamma32 rejects points whose lambda2/lambda1 exceeds this (response
	// isn't locally 3D-distinctive) — the accepted response is
	// lambda2/lambda1, so smaller is more salient.
	Gamma32           float64
	NonMaximaRadius   float64
}

// ISS computes, per point, the ratio between the two smallest PCA
// eigenvalues of its local neighbourhood and accepts points whose ratios
// pass two cascaded thresholds (spec.md 4.4): first lambda1/lambda0 <
// Gamma21, then lambda2/lambda1 < Gamma32. Response for non-maximum
// suppression is 1/(lambda2/lambda1) so sharper (smaller-ratio) points win
// ties.
func ISS[T geom.Scalar](c *cloud.Cloud[T], idx search.Index, cfg ISSConfig) []int {
	n := c.Len()
	if n == 0 || cfg.NumNeighbors < 3 {
		return nil
	}

	var candidates []responsePoint
	for i := 0; i < n; i++ {
		pts := neighborPoints(c, idx, i, cfg.NumNeighbors)
		if len(pts) < 3 {
			continue
		}
		values, _, ok := normal.PCA3(pts)
		if !ok {
			continue
		}
		// PCA3 returns eigenvalues ascending: values[0] smallest. ISS
		// convention numbers eigenvalues descending (lambda0 largest), so
		// lambda0=values[2], lambda1=values[1], lambda2=values[0].
		lambda0, lambda1, lambda2 := values[2], values[1], values[0]
		if lambda0 <= 0 {
			continue
		}
		ratio21 := lambda1 / lambda0
		if ratio21 >= cfg.Gamma21 {
			continue
		}
		if lambda1 <= 0 {
			continue
		}
		ratio32 := lambda2 / lambda1
		if ratio32 >= cfg.Gamma32 {
			continue
		}
		candidates = append(candidates, responsePoint{index: i, response: 1 / (ratio32 + 1e-12)})
	}
	return nonMaxSuppress(c, idx, candidates, cfg.NonMaximaRadius)
}
