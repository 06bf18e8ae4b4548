package cloud

// VoxelKey packs (ix, iy, iz) cell indices into a single comparable int64,
// used by the voxel-grid filter and by NDT's target voxelisation (spec.md 6).
type VoxelKey int64

// VoxelGrid describes the linearisation span an index set of cell
// coordinates is packed against: key = (ix-minIX) + (iy-minIY)*spanX +
// (iz-minIZ)*spanX*spanY.
type VoxelGrid struct {
	MinIX, MinIY, MinIZ int64
	SpanX, SpanY         int64
}

// Key linearises (ix, iy, iz) into a VoxelKey under g.
func (g VoxelGrid) Key(ix, iy, iz int64) VoxelKey {
	return VoxelKey((ix - g.MinIX) + (iy-g.MinIY)*g.SpanX + (iz-g.MinIZ)*g.SpanX*g.SpanY)
}
