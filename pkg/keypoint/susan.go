package keypoint

import (
	"math"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/normal"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

// SUSANConfig parameters the SUSAN detector.
type SUSANConfig struct {
	NumNeighbors int
	// GeometricThreshold bounds how far (Euclidean) a neighbour may sit from
	// the nucleus and still count toward the USAN.
	GeometricThreshold float64
	// AngularThreshold bounds the normal-direction difference (radians) a
	// neighbour may have, when UseNormalSimilarity is set.
	AngularThreshold float64
	// USANThreshold: a point is a corner candidate when its USAN count is
	// below (fraction of neighbourhood size) this geometric threshold.
	USANThreshold       float64
	NonMaximaRadius     float64
	UseNormalSimilarity bool
}

// SUSAN counts, for each point, how many of its K neighbours have similar
// local geometry (within GeometricThreshold Euclidean distance and,
// optionally, within AngularThreshold of normal direction) — its univalue
// segment assimilating nucleus (USAN) — and accepts points whose count
// falls below USANThreshold * K, the corner criterion (spec.md 4.4). Response
// for non-maximum suppression is the corner-ness 1 - usan/K, so the smallest
// USAN wins ties.
func SUSAN[T geom.Scalar](c *cloud.Cloud[T], idx search.Index, cfg SUSANConfig) []int {
	n := c.Len()
	if n == 0 || cfg.NumNeighbors < 3 {
		return nil
	}

	var normals []geom.Point3[float64]
	if cfg.UseNormalSimilarity {
		normals = normal.Estimate(c, idx, normal.Config{NumNeighbors: cfg.NumNeighbors})
	}

	var candidates []responsePoint
	for i := 0; i < n; i++ {
		q := search.QueryPoint(c.Points[i])
		neighbors := idx.KNearest(q, cfg.NumNeighbors)
		if len(neighbors) < 3 {
			continue
		}

		usan := 0
		for _, nb := range neighbors {
			if nb.Index == i {
				continue
			}
			if nb.Distance > cfg.GeometricThreshold {
				continue
			}
			if cfg.UseNormalSimilarity {
				ni, nn := normals[i], normals[nb.Index]
				cosAngle := ni.Dot(nn)
				if cosAngle > 1 {
					cosAngle = 1
				} else if cosAngle < -1 {
					cosAngle = -1
				}
				if angle := math.Acos(cosAngle); angle > cfg.AngularThreshold {
					continue
				}
			}
			usan++
		}

		k := len(neighbors) - 1 // exclude self
		if k <= 0 {
			continue
		}
		fraction := float64(usan) / float64(k)
		if fraction < cfg.USANThreshold {
			candidates = append(candidates, responsePoint{index: i, response: 1 - fraction})
		}
	}
	return nonMaxSuppress(c, idx, candidates, cfg.NonMaximaRadius)
}
