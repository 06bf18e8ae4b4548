// Package filter implements the cloud-reduction stage that precedes keypoint
// detection in the alignment pipeline: voxel-grid averaging, random
// downsampling, and uniform-grid subsampling.
package filter

import (
	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
)

type voxelAccumulator[T geom.Scalar] struct {
	sumX, sumY, sumZ    T
	sumNX, sumNY, sumNZ T
	sumR, sumG, sumB    float64
	count               int64
	firstIdx            int
}

// VoxelGrid downsamples c by averaging every point (and, if present, normal
// and colour) that falls within the same cubic cell of side cellSize. cellSize
// must be > 0; non-positive values return an empty cloud. The cell a point
// belongs to is derived from floor(coord/cellSize), matching
// cloud.VoxelGrid's linearisation so the same key scheme serves NDT's voxel
// lookup.
func VoxelGrid[T geom.Scalar](c *cloud.Cloud[T], cellSize float64) *cloud.Cloud[T] {
	if cellSize <= 0 || c.Len() == 0 {
		return cloud.New[T]()
	}

	minIX, minIY, minIZ := int64(1)<<62, int64(1)<<62, int64(1)<<62
	maxIX, maxIY, maxIZ := -(int64(1) << 62), -(int64(1) << 62), -(int64(1) << 62)
	cellIdx := make([][3]int64, c.Len())
	for i, p := range c.Points {
		x, y, z := geom.AsFloat64(p)
		ix, iy, iz := voxelCell(x, cellSize), voxelCell(y, cellSize), voxelCell(z, cellSize)
		cellIdx[i] = [3]int64{ix, iy, iz}
		if ix < minIX {
			minIX = ix
		}
		if iy < minIY {
			minIY = iy
		}
		if iz < minIZ {
			minIZ = iz
		}
		if ix > maxIX {
			maxIX = ix
		}
		if iy > maxIY {
			maxIY = iy
		}
		if iz > maxIZ {
			maxIZ = iz
		}
	}

	grid := cloud.VoxelGrid{
		MinIX: minIX, MinIY: minIY, MinIZ: minIZ,
		SpanX: maxIX - minIX + 1, SpanY: maxIY - minIY + 1,
	}

	voxels := make(map[cloud.VoxelKey]*voxelAccumulator[T])
	order := make([]cloud.VoxelKey, 0)
	hasNormals := c.HasNormals()
	hasColours := c.HasColours()

	for i, p := range c.Points {
		key := grid.Key(cellIdx[i][0], cellIdx[i][1], cellIdx[i][2])
		acc, ok := voxels[key]
		if !ok {
			acc = &voxelAccumulator[T]{firstIdx: i}
			voxels[key] = acc
			order = append(order, key)
		}
		acc.sumX += p.X
		acc.sumY += p.Y
		acc.sumZ += p.Z
		acc.count++
		if hasNormals {
			n := c.Normals[i]
			acc.sumNX += n.X
			acc.sumNY += n.Y
			acc.sumNZ += n.Z
		}
		if hasColours {
			col := c.Colours[i]
			acc.sumR += float64(col.R)
			acc.sumG += float64(col.G)
			acc.sumB += float64(col.B)
		}
	}

	out := cloud.New[T]()
	for _, key := range order {
		acc := voxels[key]
		n := T(acc.count)
		out.Points = append(out.Points, geom.Point3[T]{X: acc.sumX / n, Y: acc.sumY / n, Z: acc.sumZ / n})
		if hasNormals {
			normal := geom.Point3[T]{X: acc.sumNX / n, Y: acc.sumNY / n, Z: acc.sumNZ / n}.Normalize()
			out.Normals = append(out.Normals, normal)
		}
		if hasColours {
			out.Colours = append(out.Colours, cloud.RGB{
				R: uint8(acc.sumR / float64(acc.count)),
				G: uint8(acc.sumG / float64(acc.count)),
				B: uint8(acc.sumB / float64(acc.count)),
			})
		}
		if c.HasIntensity() {
			out.Intensity = append(out.Intensity, c.Intensity[acc.firstIdx])
		}
	}
	return out
}

func voxelCell(coord, cellSize float64) int64 {
	q := coord / cellSize
	f := int64(q)
	if q < float64(f) {
		f--
	}
	return f
}
