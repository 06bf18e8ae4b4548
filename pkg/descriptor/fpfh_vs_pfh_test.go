package descriptor

import (
	"testing"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
)

// cornerCloud builds a cloud with two geometrically distinct neighbourhoods:
// a flat planar patch around index 0 and a sharp right-angle corner (two
// perpendicular walls) around index 1, so a descriptor computed at one
// point should read as more similar to another point in the same
// neighbourhood than to a point across a differently-shaped one.
func cornerCloud() *cloud.Cloud[float64] {
	c := cloud.New[float64]()
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			c.Points = append(c.Points, geom.Point3[float64]{X: float64(i), Y: float64(j), Z: 0})
		}
	}
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			c.Points = append(c.Points, geom.Point3[float64]{X: 20 + float64(i), Y: 20, Z: float64(j)})
			c.Points = append(c.Points, geom.Point3[float64]{X: 20, Y: 20 + float64(i), Z: float64(j)})
		}
	}
	return c
}

// TestFPFHAndPFHAgreeOnNeighbourhoodSimilarity is a behavioral comparison in
// the spirit of the original toolbox's fpfh_vs_pfh_test.cpp/descriptors_
// debug.cpp: rather than timing FPFH against PFH, it checks both extractors
// produce descriptors whose distances reflect the same underlying geometry
// — near-zero self-distance, and a point on the flat patch reading closer
// to another flat-patch point than to a point on the sharp corner.
func TestFPFHAndPFHAgreeOnNeighbourhoodSimilarity(t *testing.T) {
	c := cornerCloud()
	idx := buildIndex(c)

	flatA, flatB := 0, 9
	corner := c.Len() - 1
	keypoints := []int{flatA, flatB, corner}

	fpfhSigs := FPFH(c, idx, keypoints, FPFHConfig{NumNeighbors: 20})
	pfhSigs := PFH(c, idx, keypoints, PFHConfig{NumNeighbors: 20})

	for _, tc := range []struct {
		name string
		sigs []cloud.Signature
	}{
		{"FPFH", fpfhSigs},
		{"PFH", pfhSigs},
	} {
		self := tc.sigs[0].Distance(tc.sigs[0])
		if self != 0 {
			t.Fatalf("%s: self-distance = %f, want 0", tc.name, self)
		}

		sameRegion := tc.sigs[0].Distance(tc.sigs[1])
		crossRegion := tc.sigs[0].Distance(tc.sigs[2])
		if sameRegion >= crossRegion {
			t.Fatalf("%s: same-region distance %f should be smaller than cross-region distance %f", tc.name, sameRegion, crossRegion)
		}
	}
}

// TestFPFHAndPFHBothDistinguishFlatFromCorner checks FPFH's cheaper
// SPFH-plus-neighbour-average construction (spec.md 4.5) doesn't lose the
// discriminative power of PFH's exhaustive all-pairs histogram: both must
// still separate a flat neighbourhood from a sharp corner by a nonzero
// margin, the property the original benchmark's timing comparison assumed
// held before measuring which was faster.
func TestFPFHAndPFHBothDistinguishFlatFromCorner(t *testing.T) {
	c := cornerCloud()
	idx := buildIndex(c)
	flat, corner := 0, c.Len()-1

	fpfhSigs := FPFH(c, idx, []int{flat, corner}, FPFHConfig{NumNeighbors: 20})
	pfhSigs := PFH(c, idx, []int{flat, corner}, PFHConfig{NumNeighbors: 20})

	if d := fpfhSigs[0].Distance(fpfhSigs[1]); d <= 0 {
		t.Fatalf("FPFH: expected flat and corner neighbourhoods to differ, got distance %f", d)
	}
	if d := pfhSigs[0].Distance(pfhSigs[1]); d <= 0 {
		t.Fatalf("PFH: expected flat and corner neighbourhoods to differ, got distance %f", d)
	}
}
