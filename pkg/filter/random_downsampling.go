package filter

import (
	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/randutil"
)

// RandomDownsample keeps a uniformly random fraction (ratio, clamped to
// [0,1]) of c's points, preserving any parallel arrays. src controls which
// points survive; pass a seeded randutil.Source for reproducible output.
func RandomDownsample[T geom.Scalar](c *cloud.Cloud[T], ratio float64, src *randutil.Source) *cloud.Cloud[T] {
	n := c.Len()
	if n == 0 {
		return cloud.New[T]()
	}
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	sampleCount := int(float64(n) * ratio)
	if sampleCount > n {
		sampleCount = n
	}
	if sampleCount == 0 {
		return cloud.New[T]()
	}

	indices := src.Perm(n)[:sampleCount]
	return c.Subset(indices)
}
