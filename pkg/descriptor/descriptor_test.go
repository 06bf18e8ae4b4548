package descriptor

import (
	"testing"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/metric"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

func planeCloud() *cloud.Cloud[float64] {
	c := cloud.New[float64]()
	for i := 0; i < 12; i++ {
		for j := 0; j < 12; j++ {
			c.Points = append(c.Points, geom.Point3[float64]{X: float64(i), Y: float64(j), Z: 0})
		}
	}
	return c
}

func buildIndex(c *cloud.Cloud[float64]) search.Index {
	l2, _ := metric.New("l2")
	return search.NewKDTree(search.FromCloud(c), l2, 8)
}

func TestPFHHistogramSizeAndNormalisation(t *testing.T) {
	c := planeCloud()
	idx := buildIndex(c)
	sigs := PFH(c, idx, []int{0, 80}, PFHConfig{NumNeighbors: 15})
	for _, sig := range sigs {
		if len(sig.Histogram) != cloud.PFH.HistogramSize() {
			t.Fatalf("expected %d bins, got %d", cloud.PFH.HistogramSize(), len(sig.Histogram))
		}
		if !sig.IsFinite() {
			t.Fatalf("expected finite histogram, got %v", sig.Histogram)
		}
		var sum float64
		for _, v := range sig.Histogram {
			sum += v
		}
		if sum < 0.99 || sum > 1.01 {
			t.Fatalf("expected histogram to sum to ~1, got %f", sum)
		}
	}
}

func TestFPFHHistogramSizeAndNormalisation(t *testing.T) {
	c := planeCloud()
	idx := buildIndex(c)
	sigs := FPFH(c, idx, []int{0, 80, 143}, FPFHConfig{NumNeighbors: 15})
	for _, sig := range sigs {
		if len(sig.Histogram) != cloud.FPFH.HistogramSize() {
			t.Fatalf("expected %d bins, got %d", cloud.FPFH.HistogramSize(), len(sig.Histogram))
		}
		if !sig.IsFinite() {
			t.Fatalf("expected finite histogram, got %v", sig.Histogram)
		}
		var sum float64
		for _, v := range sig.Histogram {
			sum += v
		}
		if sum < 0.99 || sum > 1.01 {
			t.Fatalf("expected histogram to sum to ~1, got %f", sum)
		}
	}
}

func TestSHOTHistogramSizeAndUnitNorm(t *testing.T) {
	c := planeCloud()
	idx := buildIndex(c)
	sigs := SHOT(c, idx, []int{80}, SHOTConfig{NumNeighbors: 20, SearchRadius: 3})
	if len(sigs) != 1 {
		t.Fatalf("expected one signature, got %d", len(sigs))
	}
	sig := sigs[0]
	if len(sig.Histogram) != cloud.SHOT.HistogramSize() {
		t.Fatalf("expected %d bins, got %d", cloud.SHOT.HistogramSize(), len(sig.Histogram))
	}
	if !sig.IsFinite() {
		t.Fatalf("expected finite histogram, got %v", sig.Histogram)
	}
	var sumSq float64
	for _, v := range sig.Histogram {
		sumSq += v * v
	}
	if sumSq < 0.9 || sumSq > 1.1 {
		t.Fatalf("expected L2-normalised histogram (sum of squares ~1), got %f", sumSq)
	}
}

func TestVFHIsGlobalAndNormalised(t *testing.T) {
	c := planeCloud()
	idx := buildIndex(c)
	sig := VFH(c, idx, VFHConfig{NumNeighbors: 15})
	if len(sig.Histogram) != cloud.VFH.HistogramSize() {
		t.Fatalf("expected %d bins, got %d", cloud.VFH.HistogramSize(), len(sig.Histogram))
	}
	if !sig.IsFinite() {
		t.Fatalf("expected finite histogram, got %v", sig.Histogram)
	}
	var sum float64
	for _, v := range sig.Histogram {
		sum += v
	}
	if sum < 0.99 || sum > 1.01 {
		t.Fatalf("expected VFH histogram to sum to ~1, got %f", sum)
	}
}

func TestDescriptorsHandleEmptyNeighbourhoodGracefully(t *testing.T) {
	c := cloud.New[float64]()
	c.Points = append(c.Points, geom.Point3[float64]{X: 0, Y: 0, Z: 0})
	idx := buildIndex(c)
	sigs := PFH(c, idx, []int{0}, PFHConfig{NumNeighbors: 5})
	if len(sigs) != 1 || !sigs[0].IsFinite() {
		t.Fatalf("expected a finite (all-zero) histogram for a single-point cloud, got %v", sigs)
	}
}
