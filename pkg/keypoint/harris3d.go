package keypoint

import (
	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/normal"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

// Harris3DConfig parameters the Harris3D detector.
type Harris3DConfig struct {
	NumNeighbors      int
	Threshold         float64
	HarrisK           float64 // defaults to 0.04 if zero
	SuppressionRadius float64
}

// Harris3D builds a 2x2 structure tensor from neighbour position gradients
// (each neighbour's offset from the local normal-fitted plane's centroid,
// projected onto the tangent basis) and scores response = det(M) - k*trace(M)^2,
// the Harris corner measure generalised to 3-space (spec.md 4.4).
func Harris3D[T geom.Scalar](c *cloud.Cloud[T], idx search.Index, cfg Harris3DConfig) []int {
	n := c.Len()
	if n == 0 || cfg.NumNeighbors < 3 {
		return nil
	}
	k := cfg.HarrisK
	if k == 0 {
		k = 0.04
	}

	var candidates []responsePoint
	for i := 0; i < n; i++ {
		pts := neighborPoints(c, idx, i, cfg.NumNeighbors)
		if len(pts) < 3 {
			continue
		}
		_, vectors, ok := normal.PCA3(pts)
		if !ok {
			continue
		}
		// Tangent basis: the two eigenvectors of largest variance (columns 1,2
		// after PCA3's ascending sort); project each neighbour offset onto it.
		ux, uy, uz := vectors.At(0, 1), vectors.At(1, 1), vectors.At(2, 1)
		vx, vy, vz := vectors.At(0, 2), vectors.At(1, 2), vectors.At(2, 2)

		var cu, cv float64
		for _, p := range pts {
			cu += p[0]*ux + p[1]*uy + p[2]*uz
			cv += p[0]*vx + p[1]*vy + p[2]*vz
		}
		count := float64(len(pts))
		cu /= count
		cv /= count

		var ixx, ixy, iyy float64
		for _, p := range pts {
			du := p[0]*ux+p[1]*uy+p[2]*uz - cu
			dv := p[0]*vx+p[1]*vy+p[2]*vz - cv
			ixx += du * du
			ixy += du * dv
			iyy += dv * dv
		}
		det := ixx*iyy - ixy*ixy
		trace := ixx + iyy
		response := det - k*trace*trace
		if response > cfg.Threshold {
			candidates = append(candidates, responsePoint{index: i, response: response})
		}
	}
	return nonMaxSuppress(c, idx, candidates, cfg.SuppressionRadius)
}
