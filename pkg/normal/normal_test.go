package normal

import (
	"math"
	"testing"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/metric"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

func planeCloud() *cloud.Cloud[float64] {
	c := cloud.New[float64]()
	for x := -2.0; x <= 2.0; x++ {
		for y := -2.0; y <= 2.0; y++ {
			c.Points = append(c.Points, geom.Point3[float64]{X: x, Y: y, Z: 0})
		}
	}
	return c
}

func TestEstimateFlatPlaneNormalIsVertical(t *testing.T) {
	c := planeCloud()
	l2, _ := metric.New("l2")
	idx := search.NewKDTree(search.FromCloud(c), l2, 8)

	normals := Estimate(c, idx, Config{NumNeighbors: 8})
	for i, n := range normals {
		if math.Abs(math.Abs(n.Z)-1) > 1e-6 {
			t.Fatalf("point %d: normal %v not close to vertical", i, n)
		}
		if math.Abs(n.X) > 1e-6 || math.Abs(n.Y) > 1e-6 {
			t.Errorf("point %d: normal %v has unexpected in-plane component", i, n)
		}
	}
}

func TestEstimateViewpointFlip(t *testing.T) {
	c := planeCloud()
	l2, _ := metric.New("l2")
	idx := search.NewKDTree(search.FromCloud(c), l2, 8)

	below := geom.Point3[float64]{X: 0, Y: 0, Z: -10}
	normals := Estimate(c, idx, Config{NumNeighbors: 8, Viewpoint: &below})
	for i, n := range normals {
		if n.Z > 0 {
			t.Errorf("point %d: normal %v not oriented toward viewpoint below the plane", i, n)
		}
	}
}

func TestEstimateDegenerateNeighborhood(t *testing.T) {
	c := cloud.New[float64]()
	c.Points = []geom.Point3[float64]{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}}
	l2, _ := metric.New("l2")
	idx := search.NewBruteForce(search.FromCloud(c), l2)

	normals := Estimate(c, idx, Config{NumNeighbors: 2})
	for i, n := range normals {
		if n != Degenerate {
			t.Errorf("point %d: expected degenerate normal, got %v", i, n)
		}
	}
}

func TestEstimateZeroNeighborsConfigDegenerates(t *testing.T) {
	c := planeCloud()
	l2, _ := metric.New("l2")
	idx := search.NewBruteForce(search.FromCloud(c), l2)

	normals := Estimate(c, idx, Config{NumNeighbors: 0})
	for _, n := range normals {
		if n != Degenerate {
			t.Errorf("expected degenerate normal for NumNeighbors=0, got %v", n)
		}
	}
}

func TestEstimateParallelMatchesSerial(t *testing.T) {
	c := planeCloud()
	l2, _ := metric.New("l2")
	idx := search.NewKDTree(search.FromCloud(c), l2, 8)

	serial := Estimate(c, idx, Config{NumNeighbors: 8})
	parallel := Estimate(c, idx, Config{NumNeighbors: 8, Parallel: true, Workers: 4})

	if len(serial) != len(parallel) {
		t.Fatalf("length mismatch: serial=%d parallel=%d", len(serial), len(parallel))
	}
	for i := range serial {
		if math.Abs(float64(serial[i].X-parallel[i].X)) > 1e-12 ||
			math.Abs(float64(serial[i].Y-parallel[i].Y)) > 1e-12 ||
			math.Abs(float64(serial[i].Z-parallel[i].Z)) > 1e-12 {
			t.Errorf("point %d: serial=%v parallel=%v", i, serial[i], parallel[i])
		}
	}
}
