package keypoint

import (
	"math"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/normal"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

// AGASTConfig parameters the AGAST detector.
type AGASTConfig struct {
	NumNeighbors    int // used to estimate the local normal/tangent plane
	Threshold       float64
	PatternRadius   float64
	NonMaximaRadius float64
	NumTestPoints   int // samples on the ring; defaults to 16 if <= 0
	MinArcLength    int // minimum consecutive run; defaults to NumTestPoints/2
}

// AGAST samples a ring of NumTestPoints positions at PatternRadius on the
// candidate's local tangent plane (the 3-space analogue of AGAST/FAST's
// image-plane circle) and evaluates a brightness analogue at each — distance
// to the nearest surface point, smaller meaning "brighter" (denser surface).
// A point is a corner when a consecutive arc of at least MinArcLength ring
// samples is uniformly brighter or uniformly darker than the candidate's own
// surface-proximity value by more than Threshold (spec.md 4.4).
func AGAST[T geom.Scalar](c *cloud.Cloud[T], idx search.Index, cfg AGASTConfig) []int {
	n := c.Len()
	if n == 0 || cfg.NumNeighbors < 3 {
		return nil
	}
	numTest := cfg.NumTestPoints
	if numTest <= 0 {
		numTest = 16
	}
	minArc := cfg.MinArcLength
	if minArc <= 0 {
		minArc = numTest / 2
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
		ux, uy, uz := vectors.At(0, 1), vectors.At(1, 1), vectors.At(2, 1)
		vx, vy, vz := vectors.At(0, 2), vectors.At(1, 2), vectors.At(2, 2)
		px, py, pz := geom.AsFloat64(c.Points[i])

		centerNearest := idx.KNearest([]float64{px, py, pz}, 1)
		if len(centerNearest) == 0 {
			continue
		}
		centerValue := centerNearest[0].Distance

		brighter := make([]bool, numTest)
		darker := make([]bool, numTest)
		for j := 0; j < numTest; j++ {
			theta := 2 * math.Pi * float64(j) / float64(numTest)
			cosT, sinT := math.Cos(theta), math.Sin(theta)
			qx := px + cfg.PatternRadius*(cosT*ux+sinT*vx)
			qy := py + cfg.PatternRadius*(cosT*uy+sinT*vy)
			qz := pz + cfg.PatternRadius*(cosT*uz+sinT*vz)
			nearest := idx.KNearest([]float64{qx, qy, qz}, 1)
			if len(nearest) == 0 {
				continue
			}
			diff := nearest[0].Distance - centerValue
			if diff > cfg.Threshold {
				darker[j] = true
			} else if diff < -cfg.Threshold {
				brighter[j] = true
			}
		}

		arc := longestConsecutiveArc(brighter)
		darkArc := longestConsecutiveArc(darker)
		if arc > darkArc {
			darkArc = 0
		} else {
			arc = 0
		}
		best := arc
		if darkArc > best {
			best = darkArc
		}
		if best >= minArc {
			candidates = append(candidates, responsePoint{index: i, response: float64(best)})
		}
	}
	return nonMaxSuppress(c, idx, candidates, cfg.NonMaximaRadius)
}

// longestConsecutiveArc returns the longest run of true values in a circular
// boolean ring.
func longestConsecutiveArc(ring []bool) int {
	n := len(ring)
	if n == 0 {
		return 0
	}
	allTrue := true
	for _, v := range ring {
		if !v {
			allTrue = false
			break
		}
	}
	if allTrue {
		return n
	}

	best, cur := 0, 0
	// double the scan to handle wraparound without special-casing the ends.
	for i := 0; i < 2*n; i++ {
		if ring[i%n] {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	if best > n {
		best = n
	}
	return best
}
