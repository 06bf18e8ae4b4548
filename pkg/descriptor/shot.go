package descriptor

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

const (
	shotAzimuthDivisions   = 8
	shotElevationDivisions = 2
	shotRadialDivisions    = 2
	shotSpatialBins        = shotAzimuthDivisions * shotElevationDivisions * shotRadialDivisions // 32
	shotAngularBins        = 11
)

// SHOTConfig parameters the Signature of Histograms of Orientations
// extractor.
type SHOTConfig struct {
	NumNeighbors int
	SearchRadius float64
}

// localReferenceFrame is the disambiguated, repeatable (x,y,z) basis SHOT
// expresses each neighbourhood in, so the descriptor stays invariant to the
// cloud's original orientation.
type localReferenceFrame struct {
	x, y, z geom.Point3[float64]
}

// SHOT computes a 352-bin descriptor (32 spatial x 11 angular) at each
// keypoint index: a local reference frame is built from the
// distance-weighted covariance of the neighbourhood (sign-disambiguated by
// a majority vote, as in Tombari et al. 2010), each neighbour's weight is
// spread quadrilinearly over adjacent bins of the 32 (azimuth x elevation x
// radial) spatial sectors around the keypoint in that frame and of each
// sector's cosine-similarity-to-the-z-axis angular histogram of neighbour
// normals, before the
// full histogram is L2-normalised (spec.md 4.5). original_source declares
// the extractor's shape (compute_local_reference_frame / compute_shot_
// feature / compute_weighted_covariance / compute_spatial_bin / compute_
// angular_bin) without a retrievable impl; the binning scheme below follows
// the paper the header cites.
func SHOT[T geom.Scalar](c *cloud.Cloud[T], idx search.Index, keypointIndices []int, cfg SHOTConfig) []cloud.Signature {
	normals := ensureNormals(c, idx, cfg.NumNeighbors)

	out := make([]cloud.Signature, len(keypointIndices))
	for oi, i := range keypointIndices {
		sig := cloud.NewSignature(cloud.SHOT)
		q := search.QueryPoint(c.Points[i])
		neighbors := neighbourhood(idx, q, cfg.SearchRadius, cfg.NumNeighbors)
		if len(neighbors) < 5 {
			out[oi] = sig
			continue
		}
		radius := cfg.SearchRadius
		if radius <= 0 {
			for _, nb := range neighbors {
				if nb.Distance > radius {
					radius = nb.Distance
				}
			}
		}
		lrf, ok := computeLRF(c, i, neighbors, radius)
		if !ok {
			out[oi] = sig
			continue
		}

		center := point64(c, i)
		for _, nb := range neighbors {
			if nb.Index == i {
				continue
			}
			p := point64(c, nb.Index)
			cosSim := lrf.z.Dot(normals[nb.Index])
			if cosSim > 1 {
				cosSim = 1
			} else if cosSim < -1 {
				cosSim = -1
			}
			angularFrac := (cosSim + 1) * 0.5
			scatterQuadrilinear(sig.Histogram, p, center, lrf, radius, angularFrac)
		}

		normalizeL2(sig.Histogram)
		out[oi] = sig
	}
	return out
}

// computeLRF builds the SHOT local reference frame: the eigenvectors of the
// distance-weighted covariance of the neighbourhood around c.Points[i],
// with the x and z signs disambiguated so each axis points toward the side
// holding the majority of neighbours (as the original SHOT formulation
// requires for repeatability).
func computeLRF[T geom.Scalar](c *cloud.Cloud[T], i int, neighbors []search.Neighbor, radius float64) (localReferenceFrame, bool) {
	center := point64(c, i)
	n := len(neighbors)
	if n < 3 {
		return localReferenceFrame{}, false
	}

	var weightSum float64
	weights := make([]float64, n)
	for j, nb := range neighbors {
		w := radius - nb.Distance
		if w < 0 {
			w = 0
		}
		weights[j] = w
		weightSum += w
	}
	if weightSum <= 0 {
		return localReferenceFrame{}, false
	}

	cov := mat.NewSymDense(3, nil)
	var acc [3][3]float64
	for j, nb := range neighbors {
		p := point64(c, nb.Index)
		d := p.Sub(center)
		w := weights[j] / weightSum
		acc[0][0] += w * d.X * d.X
		acc[0][1] += w * d.X * d.Y
		acc[0][2] += w * d.X * d.Z
		acc[1][1] += w * d.Y * d.Y
		acc[1][2] += w * d.Y * d.Z
		acc[2][2] += w * d.Z * d.Z
	}
	cov.SetSym(0, 0, acc[0][0])
	cov.SetSym(0, 1, acc[0][1])
	cov.SetSym(0, 2, acc[0][2])
	cov.SetSym(1, 1, acc[1][1])
	cov.SetSym(1, 2, acc[1][2])
	cov.SetSym(2, 2, acc[2][2])

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return localReferenceFrame{}, false
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Ascending order: vecs column 0 = smallest (normal-like), column 2 =
	// largest (most spread-out, the x axis).
	order := []int{0, 1, 2}
	for a := 0; a < 3; a++ {
		for b := a + 1; b < 3; b++ {
			if values[order[a]] > values[order[b]] {
				order[a], order[b] = order[b], order[a]
			}
		}
	}
	axis := func(col int) geom.Point3[float64] {
		return geom.Point3[float64]{X: vecs.At(0, col), Y: vecs.At(1, col), Z: vecs.At(2, col)}
	}
	x := axis(order[2])
	z := axis(order[0])

	disambiguate := func(axis geom.Point3[float64]) geom.Point3[float64] {
		var pos, neg int
		for _, nb := range neighbors {
			d := point64(c, nb.Index).Sub(center)
			if axis.Dot(d) >= 0 {
				pos++
			} else {
				neg++
			}
		}
		if neg > pos {
			return axis.Scale(-1)
		}
		return axis
	}
	x = disambiguate(x)
	z = disambiguate(z)
	y := z.Cross(x)
	yNorm := y.Norm()
	if yNorm < 1e-9 {
		return localReferenceFrame{}, false
	}
	y = y.Scale(1 / yNorm)
	x = y.Cross(z).Normalize()

	return localReferenceFrame{x: x, y: y, z: z}, true
}

// spatialFractions expresses p's position relative to center, in lrf's
// basis, as three continuous fractions in [0,1): azimuth around z, elevation
// from the xy plane, and radial distance from center, each ready to be
// soft-assigned across its bin's neighbours by interpAxis.
func spatialFractions(p, center geom.Point3[float64], lrf localReferenceFrame, radius float64) (azFrac, elFrac, radFrac float64) {
	d := p.Sub(center)
	lx, ly, lz := lrf.x.Dot(d), lrf.y.Dot(d), lrf.z.Dot(d)
	dist := math.Sqrt(lx*lx + ly*ly + lz*lz)

	azimuth := math.Atan2(ly, lx) // [-pi, pi]
	azFrac = (azimuth + math.Pi) / (2 * math.Pi)

	var elevation float64
	if dist > 1e-9 {
		elevation = math.Asin(clamp(lz/dist, -1, 1)) // [-pi/2, pi/2]
	}
	elFrac = (elevation + math.Pi/2) / math.Pi

	radFrac = dist / radius
	if radFrac > 1 {
		radFrac = 1
	}
	return azFrac, elFrac, radFrac
}

// interpAxis splits a continuous bin coordinate (frac in [0,1) over bins
// bins) between its two nearest bin centres, returning their indices and
// interpolation weights (summing to 1). circular wraps the high index
// around bins (azimuth); the other axes clamp at the edges instead.
func interpAxis(frac float64, bins int, circular bool) (idx [2]int, weight [2]float64) {
	pos := frac*float64(bins) - 0.5
	lo := int(math.Floor(pos))
	hi := lo + 1
	weight[1] = pos - float64(lo)
	weight[0] = 1 - weight[1]
	if circular {
		idx[0] = ((lo % bins) + bins) % bins
		idx[1] = ((hi % bins) + bins) % bins
		return idx, weight
	}
	idx[0] = clampInt(lo, 0, bins-1)
	idx[1] = clampInt(hi, 0, bins-1)
	return idx, weight
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// scatterQuadrilinear soft-assigns one neighbour's contribution to hist,
// spreading its weight across the 2x2x2x2 spatial-azimuth x spatial-
// elevation x spatial-radial x angular bins adjacent to its continuous
// position (spec.md 4.5's quadrilinear interpolation), rather than the
// single nearest bin a hard assignment would pick.
func scatterQuadrilinear(hist []float64, p, center geom.Point3[float64], lrf localReferenceFrame, radius, angularFrac float64) {
	azFrac, elFrac, radFrac := spatialFractions(p, center, lrf, radius)

	azIdx, azW := interpAxis(azFrac, shotAzimuthDivisions, true)
	elIdx, elW := interpAxis(elFrac, shotElevationDivisions, false)
	radIdx, radW := interpAxis(radFrac, shotRadialDivisions, false)
	angIdx, angW := interpAxis(angularFrac, shotAngularBins, false)

	for a := 0; a < 2; a++ {
		for e := 0; e < 2; e++ {
			for r := 0; r < 2; r++ {
				spatial := (radIdx[r]*shotElevationDivisions+elIdx[e])*shotAzimuthDivisions + azIdx[a]
				spatialWeight := azW[a] * elW[e] * radW[r]
				for g := 0; g < 2; g++ {
					hist[spatial*shotAngularBins+angIdx[g]] += spatialWeight * angW[g]
				}
			}
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
