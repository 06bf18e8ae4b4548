package pipeline

import (
	"math"
	"testing"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/config"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
)

// bumpySurface builds a cloud sampled over a wavy height field so nearby
// points have distinguishable local curvature, the property descriptor
// matching (and so the whole funnel) depends on.
func bumpySurface(n int, spacing float64) *cloud.Cloud[float64] {
	c := cloud.New[float64]()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x := float64(i) * spacing
			y := float64(j) * spacing
			z := 0.3 * math.Sin(x*2) * math.Cos(y*2)
			c.Points = append(c.Points, geom.Point3[float64]{X: x, Y: y, Z: z})
		}
	}
	return c
}

func translate(c *cloud.Cloud[float64], dx, dy, dz float64) *cloud.Cloud[float64] {
	out := c.Clone()
	for i, p := range out.Points {
		out.Points[i] = geom.Point3[float64]{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
	}
	return out
}

func testConfig() config.Config {
	cfg := *config.Default()
	cfg.Pipeline.CorrespondenceTopK = 200
	cfg.Pipeline.NormalNumNeighbors = 8
	cfg.Registration.MaxIterations = 20
	return cfg
}

func TestAlignSmallTranslationRunsToCompletion(t *testing.T) {
	source := bumpySurface(8, 0.5)
	target := translate(source, 0.2, 0.1, 0)

	p := New(testConfig(), nil, nil)
	result, err := p.Align(source, target)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if result == nil {
		t.Fatal("Align returned a nil result")
	}
	if math.IsNaN(result.Fine.FitnessScore) || math.IsInf(result.Fine.FitnessScore, 0) {
		t.Errorf("fine fitness score is not finite: %v", result.Fine.FitnessScore)
	}
	det := result.Transform.Determinant()
	if math.Abs(det-1) > 0.05 {
		t.Errorf("recovered transform determinant = %v, want ~1 (proper rotation)", det)
	}
}

func TestAlignReportsCorrespondenceFunnel(t *testing.T) {
	source := bumpySurface(6, 0.5)
	target := translate(source, 0.1, 0, 0.05)

	p := New(testConfig(), nil, nil)
	result, err := p.Align(source, target)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(result.Stages.SourceKeypoints) == 0 {
		t.Error("expected at least one source keypoint with an empty KeypointDetector (all points kept)")
	}
	if len(result.Stages.TargetKeypoints) == 0 {
		t.Error("expected at least one target keypoint with an empty KeypointDetector (all points kept)")
	}
}

func TestAlignUnknownCoarseMethodErrors(t *testing.T) {
	source := bumpySurface(4, 0.5)
	target := translate(source, 0.1, 0, 0)

	cfg := testConfig()
	cfg.Pipeline.CoarseMethod = "not-a-real-method"
	p := New(cfg, nil, nil)
	if _, err := p.Align(source, target); err == nil {
		t.Error("expected an error for an unknown coarse method")
	}
}

func TestAlignUnknownDescriptorKindErrors(t *testing.T) {
	source := bumpySurface(4, 0.5)
	target := translate(source, 0.1, 0, 0)

	cfg := testConfig()
	cfg.Pipeline.DescriptorKind = "not-a-real-descriptor"
	p := New(cfg, nil, nil)
	if _, err := p.Align(source, target); err == nil {
		t.Error("expected an error for an unknown descriptor kind")
	}
}
