package keypoint

import (
	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
)

// FeatureLabel classifies a point's role in LIDAR-odometry-and-mapping-style
// scan-line feature extraction. Unique among detectors in producing labels
// alongside indices (spec.md 4.4).
type FeatureLabel uint8

const (
	FeatureNone FeatureLabel = iota
	FeatureEdge
	FeaturePlanar
)

// LOAMConfig parameters the LOAM scan-line classifier.
type LOAMConfig struct {
	// NumScanNeighbors bounds the local (scan-line-ordered) window each
	// point's curvature is computed over: NumScanNeighbors points on each
	// side of it, 2*NumScanNeighbors in all.
	NumScanNeighbors int
	EdgeThreshold    float64
	PlanarThreshold  float64
	CurvatureThreshold float64
}

// LOAMResult is the labelled-cloud output extract_labeled_cloud returns in
// the original toolbox: every input point gets a label, plus the edge/planar
// index subsets for convenience.
type LOAMResult struct {
	Labels        []FeatureLabel
	EdgeIndices   []int
	PlanarIndices []int
}

// LOAM classifies every point in a scan-line-ordered cloud (index order is
// the scan order, as produced by a rotating LIDAR) into edge, planar, or
// none, using the classic LOAM smoothness measure: the magnitude of the
// point's position minus the mean of its 2*NumScanNeighbors closest
// scan-order neighbours, normalised by neighbourhood size and range
// (spec.md 4.4).
func LOAM[T geom.Scalar](c *cloud.Cloud[T], cfg LOAMConfig) LOAMResult {
	n := c.Len()
	result := LOAMResult{Labels: make([]FeatureLabel, n)}
	half := cfg.NumScanNeighbors
	if half < 1 || n < 2*half+1 {
		return result
	}

	curvature := make([]float64, n)
	valid := make([]bool, n)
	for i := half; i < n-half; i++ {
		px, py, pz := geom.AsFloat64(c.Points[i])
		var sx, sy, sz float64
		count := 0
		for d := -half; d <= half; d++ {
			if d == 0 {
				continue
			}
			x, y, z := geom.AsFloat64(c.Points[i+d])
			sx += x
			sy += y
			sz += z
			count++
		}
		if count == 0 {
			continue
		}
		diffX := px*float64(count) - sx
		diffY := py*float64(count) - sy
		diffZ := pz*float64(count) - sz
		rng := geom.Point3[float64]{X: px, Y: py, Z: pz}.Norm()
		if rng < 1e-9 {
			continue
		}
		c2 := diffX*diffX + diffY*diffY + diffZ*diffZ
		curvature[i] = c2 / (float64(count*count) * rng)
		valid[i] = true
	}

	for i := 0; i < n; i++ {
		if !valid[i] || curvature[i] < cfg.CurvatureThreshold {
			continue
		}
		switch {
		case curvature[i] >= cfg.EdgeThreshold:
			result.Labels[i] = FeatureEdge
			result.EdgeIndices = append(result.EdgeIndices, i)
		case curvature[i] <= cfg.PlanarThreshold:
			result.Labels[i] = FeaturePlanar
			result.PlanarIndices = append(result.PlanarIndices, i)
		}
	}
	return result
}

// ExtractEdgePoints materialises the edge-labelled subset of c as a cloud.
func ExtractEdgePoints[T geom.Scalar](c *cloud.Cloud[T], r LOAMResult) *cloud.Cloud[T] {
	return c.Subset(r.EdgeIndices)
}

// ExtractPlanarPoints materialises the planar-labelled subset of c as a cloud.
func ExtractPlanarPoints[T geom.Scalar](c *cloud.Cloud[T], r LOAMResult) *cloud.Cloud[T] {
	return c.Subset(r.PlanarIndices)
}
