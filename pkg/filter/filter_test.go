package filter

import (
	"math"
	"testing"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/randutil"
)

func gridCloud() *cloud.Cloud[float64] {
	c := cloud.New[float64]()
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			for j := 0; j < 3; j++ { // duplicate each cell 3x, jittered slightly
				c.Points = append(c.Points, geom.Point3[float64]{
					X: float64(x) + float64(j)/64,
					Y: float64(y) + float64(j)/64,
					Z: 0,
				})
			}
		}
	}
	return c
}

// TestVoxelGridMinimumSeparation is invariant 3: no two output points closer
// than the cell size in any axis, since each belongs to a distinct cell.
func TestVoxelGridMinimumSeparation(t *testing.T) {
	c := gridCloud()
	out := VoxelGrid(c, 1.0)
	if out.Len() != 100 {
		t.Fatalf("expected 100 distinct voxels, got %d", out.Len())
	}
	for i := 0; i < out.Len(); i++ {
		for j := i + 1; j < out.Len(); j++ {
			dx := math.Abs(float64(out.Points[i].X - out.Points[j].X))
			dy := math.Abs(float64(out.Points[i].Y - out.Points[j].Y))
			if dx < 1.0 && dy < 1.0 {
				t.Fatalf("points %d,%d too close: %v %v", i, j, out.Points[i], out.Points[j])
			}
		}
	}
}

// TestVoxelGridIdempotent is invariant 10: applying twice with the same cell
// size changes nothing further (up to ordering).
func TestVoxelGridIdempotent(t *testing.T) {
	c := gridCloud()
	once := VoxelGrid(c, 1.0)
	twice := VoxelGrid(once, 1.0)
	if once.Len() != twice.Len() {
		t.Fatalf("voxel grid not idempotent: once=%d twice=%d", once.Len(), twice.Len())
	}
}

func TestVoxelGridEmptyInput(t *testing.T) {
	c := cloud.New[float64]()
	out := VoxelGrid(c, 1.0)
	if out.Len() != 0 {
		t.Errorf("expected empty output, got %d points", out.Len())
	}
}

func TestVoxelGridNonPositiveCellSize(t *testing.T) {
	c := gridCloud()
	out := VoxelGrid(c, 0)
	if out.Len() != 0 {
		t.Errorf("non-positive cell size should yield empty output, got %d", out.Len())
	}
}

func TestUniformGridKeepsOriginalPoints(t *testing.T) {
	c := gridCloud()
	out := UniformGrid(c, 1.0)
	if out.Len() != 100 {
		t.Fatalf("expected 100 cells, got %d", out.Len())
	}
	for _, p := range out.Points {
		found := false
		for _, orig := range c.Points {
			if p == orig {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("uniform grid point %v is not an original input point", p)
		}
	}
}

func TestRandomDownsampleRatio(t *testing.T) {
	c := gridCloud()
	src := randutil.New(42)
	out := RandomDownsample(c, 0.3, src)
	want := int(float64(c.Len()) * 0.3)
	if out.Len() != want {
		t.Errorf("RandomDownsample(0.3) = %d points, want %d", out.Len(), want)
	}
}

func TestRandomDownsampleClampsRatio(t *testing.T) {
	c := gridCloud()
	src := randutil.New(1)
	if out := RandomDownsample(c, 2.0, src); out.Len() != c.Len() {
		t.Errorf("ratio > 1 should clamp to full cloud, got %d", out.Len())
	}
	if out := RandomDownsample(c, -1.0, src); out.Len() != 0 {
		t.Errorf("negative ratio should clamp to empty, got %d", out.Len())
	}
}

func TestFilterEmptyInputsReturnEmpty(t *testing.T) {
	c := cloud.New[float64]()
	src := randutil.New(1)
	if out := RandomDownsample(c, 0.5, src); out.Len() != 0 {
		t.Errorf("RandomDownsample on empty cloud should be empty, got %d", out.Len())
	}
	if out := UniformGrid(c, 1.0); out.Len() != 0 {
		t.Errorf("UniformGrid on empty cloud should be empty, got %d", out.Len())
	}
}
