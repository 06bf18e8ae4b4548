package keypoint

import (
	"runtime"
	"sync"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/normal"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

// CurvatureConfig parameters the curvature detector.
type CurvatureConfig struct {
	NumNeighbors       int
	CurvatureThreshold float64
	NonMaximaRadius    float64
	MinNeighbors       int
	Parallel           bool
	Workers            int
}

// Curvature detects points whose surface-variation response — the PCA
// measure sigma = lambda_min / (lambda0+lambda1+lambda2), the standard
// "curvature magnitude" used as a corner/edge indicator — exceeds
// cfg.CurvatureThreshold, then keeps only local maxima within
// cfg.NonMaximaRadius (spec.md 4.4).
func Curvature[T geom.Scalar](c *cloud.Cloud[T], idx search.Index, cfg CurvatureConfig) []int {
	n := c.Len()
	if n == 0 || cfg.NumNeighbors < 3 {
		return nil
	}

	responses := make([]float64, n)
	valid := make([]bool, n)
	compute := func(i int) {
		pts := neighborPoints(c, idx, i, cfg.NumNeighbors)
		if len(pts) < cfg.MinNeighbors || len(pts) < 3 {
			return
		}
		values, _, ok := normal.PCA3(pts)
		if !ok {
			return
		}
		sum := values[0] + values[1] + values[2]
		if sum <= 0 {
			return
		}
		responses[i] = values[0] / sum
		valid[i] = true
	}

	if !cfg.Parallel || n < parallelThreshold {
		for i := 0; i < n; i++ {
			compute(i)
		}
	} else {
		workers := cfg.Workers
		if workers <= 0 {
			workers = runtime.GOMAXPROCS(0)
		}
		chunk := (n + workers - 1) / workers
		var wg sync.WaitGroup
		for start := 0; start < n; start += chunk {
			end := start + chunk
			if end > n {
				end = n
			}
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				for i := start; i < end; i++ {
					compute(i)
				}
			}(start, end)
		}
		wg.Wait()
	}

	var candidates []responsePoint
	for i := 0; i < n; i++ {
		if valid[i] && responses[i] > cfg.CurvatureThreshold {
			candidates = append(candidates, responsePoint{index: i, response: responses[i]})
		}
	}
	return nonMaxSuppress(c, idx, candidates, cfg.NonMaximaRadius)
}
