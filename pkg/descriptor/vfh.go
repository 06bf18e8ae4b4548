package descriptor

import (
	"math"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

const (
	vfhBinsPerAngularFeature = 45
	vfhViewpointBins         = 128
)

// VFHConfig parameters the Viewpoint Feature Histogram extractor.
type VFHConfig struct {
	NumNeighbors int
	// Viewpoint is the sensor origin the viewpoint component is measured
	// against; defaults to (0,0,100) to match original_source's default
	// when left at the zero value.
	Viewpoint *geom.Point3[float64]
}

// VFH computes a single global 308-bin Viewpoint Feature Histogram (4*45
// extended-FPFH angular bins plus 128 viewpoint-direction bins) for the
// whole cloud, ignoring keypoint indices — VFH describes an object's
// overall shape, not a local neighbourhood (spec.md 4.5), matching
// original_source's vfh_extractor_t::compute_impl which processes every
// point regardless of the keypoint list it's handed.
func VFH[T geom.Scalar](c *cloud.Cloud[T], idx search.Index, cfg VFHConfig) cloud.Signature {
	sig := cloud.NewSignature(cloud.VFH)
	n := c.Len()
	if n == 0 {
		return sig
	}
	normals := ensureNormals(c, idx, cfg.NumNeighbors)

	var centroid geom.Point3[float64]
	for i := 0; i < n; i++ {
		centroid = centroid.Add(point64(c, i))
	}
	centroid = centroid.Scale(1 / float64(n))

	viewpoint := geom.Point3[float64]{X: 0, Y: 0, Z: 100}
	if cfg.Viewpoint != nil {
		viewpoint = *cfg.Viewpoint
	}
	vpDir := viewpoint.Sub(centroid)
	if norm := vpDir.Norm(); norm > 1e-9 {
		vpDir = vpDir.Scale(1 / norm)
	}

	for i := 0; i < n; i++ {
		ni := normals[i]
		cosAngle := ni.Dot(vpDir)
		if cosAngle > 1 {
			cosAngle = 1
		} else if cosAngle < -1 {
			cosAngle = -1
		}
		vpAngle := math.Acos(cosAngle)
		vpBin := quantize(vpAngle/math.Pi, vfhViewpointBins)
		sig.Histogram[4*vfhBinsPerAngularFeature+vpBin]++

		pi := point64(c, i)
		for j := i + 1; j < n; j++ {
			pj := point64(c, j)
			nj := normals[j]
			d := pj.Sub(pi)
			dist := d.Norm()
			if dist < 1e-8 {
				continue
			}
			d = d.Scale(1 / dist)

			f1 := ni.Dot(d)
			f2 := nj.Dot(d) - f1
			f3 := directedAngle(ni, d)
			f4 := directedAngle(nj, d) - f3

			b1 := quantize((f1+1)*0.5, vfhBinsPerAngularFeature)
			b2 := quantize((f2+1)*0.5, vfhBinsPerAngularFeature)
			b3 := quantize((f3+math.Pi)/(2*math.Pi), vfhBinsPerAngularFeature)
			b4 := quantize((f4+math.Pi)/(2*math.Pi), vfhBinsPerAngularFeature)

			sig.Histogram[b1]++
			sig.Histogram[vfhBinsPerAngularFeature+b2]++
			sig.Histogram[2*vfhBinsPerAngularFeature+b3]++
			sig.Histogram[3*vfhBinsPerAngularFeature+b4]++
		}
	}

	normalizeSum(sig.Histogram)
	return sig
}

// directedAngle is original_source's f3/f4 formula: atan2(n.y*d.z - n.z*d.y,
// n . d), the angle between a normal and a unit direction measured in the
// plane the normal's y/z components span.
func directedAngle(n, dUnit geom.Point3[float64]) float64 {
	return math.Atan2(n.Y*dUnit.Z-n.Z*dUnit.Y, n.Dot(dUnit))
}
