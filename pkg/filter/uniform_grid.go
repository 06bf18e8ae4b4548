package filter

import (
	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
)

// UniformGrid keeps exactly one point per cubic cell of side cellSize: the
// first point (in input order) that falls into each cell. Unlike VoxelGrid
// it never averages, so every output point is an original input point — used
// where callers need subsampling without perturbing geometry (e.g. seeding
// keypoint scans on a cheap, evenly-spread subset).
func UniformGrid[T geom.Scalar](c *cloud.Cloud[T], cellSize float64) *cloud.Cloud[T] {
	if cellSize <= 0 || c.Len() == 0 {
		return cloud.New[T]()
	}

	seen := make(map[[3]int64]struct{})
	var indices []int
	for i, p := range c.Points {
		x, y, z := geom.AsFloat64(p)
		key := [3]int64{voxelCell(x, cellSize), voxelCell(y, cellSize), voxelCell(z, cellSize)}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		indices = append(indices, i)
	}
	return c.Subset(indices)
}
