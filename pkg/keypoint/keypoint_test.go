package keypoint

import (
	"testing"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/metric"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

// planeWithBumpCloud builds a flat 20x20 grid in the XY plane (spacing 1)
// with a single point raised sharply out-of-plane near the centre, giving
// detectors an unambiguous "boring" region and one distinctive corner.
func planeWithBumpCloud() *cloud.Cloud[float64] {
	c := cloud.New[float64]()
	for i := 0; i < 20; i++ {
		for j := 0; j < 20; j++ {
			x, y := float64(i), float64(j)
			z := 0.0
			if i == 10 && j == 10 {
				z = 5.0
			}
			c.Points = append(c.Points, geom.Point3[float64]{X: x, Y: y, Z: z})
		}
	}
	return c
}

func buildIndex(c *cloud.Cloud[float64]) search.Index {
	l2, _ := metric.New("l2")
	return search.NewKDTree(search.FromCloud(c), l2, 8)
}

func TestCurvatureFlagsTheBump(t *testing.T) {
	c := planeWithBumpCloud()
	idx := buildIndex(c)
	got := Curvature(c, idx, CurvatureConfig{
		NumNeighbors:       12,
		CurvatureThreshold: 0.05,
		NonMaximaRadius:    2,
		MinNeighbors:       5,
	})
	if len(got) == 0 {
		t.Fatalf("expected at least one keypoint near the bump, got none")
	}
}

func TestCurvatureFlatPlaneYieldsNoKeypoints(t *testing.T) {
	c := cloud.New[float64]()
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			c.Points = append(c.Points, geom.Point3[float64]{X: float64(i), Y: float64(j), Z: 0})
		}
	}
	idx := buildIndex(c)
	got := Curvature(c, idx, CurvatureConfig{
		NumNeighbors:       8,
		CurvatureThreshold: 0.05,
		NonMaximaRadius:    2,
		MinNeighbors:       5,
	})
	if len(got) != 0 {
		t.Fatalf("expected no keypoints on a perfectly flat plane, got %v", got)
	}
}

func TestHarris3DFlagsTheBump(t *testing.T) {
	c := planeWithBumpCloud()
	idx := buildIndex(c)
	got := Harris3D(c, idx, Harris3DConfig{
		NumNeighbors:      12,
		Threshold:         1e-6,
		SuppressionRadius: 2,
	})
	if len(got) == 0 {
		t.Fatalf("expected at least one Harris3D corner near the bump")
	}
}

func TestISSRejectsFlatPlane(t *testing.T) {
	c := cloud.New[float64]()
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			c.Points = append(c.Points, geom.Point3[float64]{X: float64(i), Y: float64(j), Z: 0})
		}
	}
	idx := buildIndex(c)
	got := ISS(c, idx, ISSConfig{
		NumNeighbors:    8,
		Gamma21:         0.975,
		Gamma32:         0.975,
		NonMaximaRadius: 2,
	})
	if len(got) != 0 {
		t.Fatalf("expected no ISS keypoints on a flat plane, got %v", got)
	}
}

func TestSUSANFlagsTheBump(t *testing.T) {
	c := planeWithBumpCloud()
	idx := buildIndex(c)
	got := SUSAN(c, idx, SUSANConfig{
		NumNeighbors:       12,
		GeometricThreshold: 1.5,
		USANThreshold:      0.6,
		NonMaximaRadius:    2,
	})
	if len(got) == 0 {
		t.Fatalf("expected SUSAN to flag the bump as a corner candidate")
	}
}

func TestAGASTRunsWithoutPanicking(t *testing.T) {
	c := planeWithBumpCloud()
	idx := buildIndex(c)
	// AGAST's brightness analogue on a uniform lattice is noisy; this test
	// only asserts the detector completes and returns a valid (possibly
	// empty) index set, not that it must fire on the bump.
	got := AGAST(c, idx, AGASTConfig{
		NumNeighbors:    12,
		Threshold:       0.05,
		PatternRadius:   1.5,
		NonMaximaRadius: 2,
	})
	for _, i := range got {
		if i < 0 || i >= c.Len() {
			t.Fatalf("AGAST returned out-of-range index %d", i)
		}
	}
}

func TestLOAMClassifiesEdgesAndPlanes(t *testing.T) {
	c := cloud.New[float64]()
	// A scan line with a sharp jump in the middle (edge) and a flat run.
	for i := 0; i < 10; i++ {
		c.Points = append(c.Points, geom.Point3[float64]{X: float64(i), Y: 0, Z: 0})
	}
	for i := 0; i < 10; i++ {
		c.Points = append(c.Points, geom.Point3[float64]{X: 9, Y: float64(i), Z: float64(i) * 2})
	}
	result := LOAM(c, LOAMConfig{
		NumScanNeighbors:   2,
		EdgeThreshold:      0.01,
		PlanarThreshold:    0.0005,
		CurvatureThreshold: 0.0001,
	})
	if len(result.Labels) != c.Len() {
		t.Fatalf("expected a label per point, got %d labels for %d points", len(result.Labels), c.Len())
	}
}

func TestMLSFlagsTheBump(t *testing.T) {
	c := planeWithBumpCloud()
	idx := buildIndex(c)
	got := MLS(c, idx, MLSConfig{
		NumNeighbors:       12,
		Order:              PolynomialLinear,
		VariationThreshold: 0.05,
		CurvatureThreshold: 0,
		NonMaximaRadius:    2,
		MinNeighbors:       5,
	})
	if len(got) == 0 {
		t.Fatalf("expected MLS to flag high-residual points near the bump")
	}
}

func TestMLSFlatPlaneYieldsNoKeypoints(t *testing.T) {
	c := cloud.New[float64]()
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			c.Points = append(c.Points, geom.Point3[float64]{X: float64(i), Y: float64(j), Z: 0})
		}
	}
	idx := buildIndex(c)
	got := MLS(c, idx, MLSConfig{
		NumNeighbors:       8,
		Order:              PolynomialLinear,
		VariationThreshold: 0.01,
		CurvatureThreshold: 0,
		NonMaximaRadius:    2,
		MinNeighbors:       5,
	})
	if len(got) != 0 {
		t.Fatalf("expected no MLS keypoints on a flat plane, got %v", got)
	}
}

func TestSIFT3DRunsAndFlagsSomething(t *testing.T) {
	c := planeWithBumpCloud()
	idx := buildIndex(c)
	got := SIFT3D(c, idx, SIFT3DConfig{
		NumNeighbors:      12,
		NumScales:         4,
		BaseScale:         1.0,
		ScaleFactor:       1.414,
		ContrastThreshold: 0.01,
		EdgeThreshold:     10,
		NonMaximaRadius:   2,
	})
	for _, i := range got {
		if i < 0 || i >= c.Len() {
			t.Fatalf("SIFT3D returned out-of-range index %d", i)
		}
	}
}

func TestNonMaxSuppressKeepsOnlyLocalBestAndSortsAscending(t *testing.T) {
	c := cloud.New[float64]()
	for i := 0; i < 5; i++ {
		c.Points = append(c.Points, geom.Point3[float64]{X: float64(i), Y: 0, Z: 0})
	}
	idx := buildIndex(c)
	candidates := []responsePoint{
		{index: 0, response: 1.0},
		{index: 1, response: 5.0},
		{index: 4, response: 2.0},
	}
	got := nonMaxSuppress(c, idx, candidates, 1.5)
	if len(got) != 2 {
		t.Fatalf("expected 2 surviving keypoints, got %v", got)
	}
	if got[0] != 1 || got[1] != 4 {
		t.Fatalf("expected ascending [1 4], got %v", got)
	}
}
