package registration

import (
	"math"
	"testing"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/metric"
	"github.com/arjun-mehta/pointcloudkit/pkg/randutil"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

func gridCloud(n int, spacing float64) *cloud.Cloud[float64] {
	c := cloud.New[float64]()
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < 2; z++ {
				c.Points = append(c.Points, geom.Point3[float64]{
					X: float64(x) * spacing,
					Y: float64(y) * spacing,
					Z: float64(z) * spacing,
				})
			}
		}
	}
	return c
}

func rotateZ(theta float64) *rot3 {
	return &rot3{
		{math.Cos(theta), -math.Sin(theta), 0},
		{math.Sin(theta), math.Cos(theta), 0},
		{0, 0, 1},
	}
}

// rot3 is a tiny 3x3 literal helper for building test transforms
// without importing gonum/mat directly into the test file.
type rot3 [3][3]float64

func (m *rot3) apply(p geom.Point3[float64], t [3]float64) geom.Point3[float64] {
	return geom.Point3[float64]{
		X: m[0][0]*p.X + m[0][1]*p.Y + m[0][2]*p.Z + t[0],
		Y: m[1][0]*p.X + m[1][1]*p.Y + m[1][2]*p.Z + t[1],
		Z: m[2][0]*p.X + m[2][1]*p.Y + m[2][2]*p.Z + t[2],
	}
}

func TestEstimateRigidTransformIdentity(t *testing.T) {
	pts := []geom.Point3[float64]{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1}}
	xf, ok := EstimateRigidTransform(pts, pts, nil)
	if !ok {
		t.Fatal("expected success")
	}
	rotDev, transDev := xf.DeviationFromIdentity()
	if rotDev > 1e-9 || transDev > 1e-9 {
		t.Fatalf("expected identity, got rotDev=%v transDev=%v", rotDev, transDev)
	}
}

func TestEstimateRigidTransformPureTranslation(t *testing.T) {
	src := []geom.Point3[float64]{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1}}
	offset := [3]float64{2, -1, 0.5}
	dst := make([]geom.Point3[float64], len(src))
	for i, p := range src {
		dst[i] = geom.Point3[float64]{X: p.X + offset[0], Y: p.Y + offset[1], Z: p.Z + offset[2]}
	}
	xf, ok := EstimateRigidTransform(src, dst, nil)
	if !ok {
		t.Fatal("expected success")
	}
	for i, p := range src {
		tp := cloud.Apply(xf, p)
		if geom.Distance(tp, dst[i]) > 1e-9 {
			t.Fatalf("point %d: got %v want %v", i, tp, dst[i])
		}
	}
}

func TestEstimateRigidTransformRotationIsOrthonormal(t *testing.T) {
	src := []geom.Point3[float64]{{X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1}, {X: 1, Y: 1, Z: 1}}
	rot := rotateZ(math.Pi / 4)
	dst := make([]geom.Point3[float64], len(src))
	for i, p := range src {
		dst[i] = rot.apply(p, [3]float64{0, 0, 0})
	}
	xf, ok := EstimateRigidTransform(src, dst, nil)
	if !ok {
		t.Fatal("expected success")
	}
	det := xf.Determinant()
	if math.Abs(det-1) > 1e-6 {
		t.Fatalf("expected det(R)=1, got %v", det)
	}
}

// buildRANSACScenario returns a source/target pair where 70% of the
// correspondences are genuine inliers under a known translation and 30%
// are random outliers, the S3 scenario spec.md 8 names.
func buildRANSACScenario(t *testing.T) (cloud.PointSource, cloud.PointSource, []cloud.Correspondence, [3]float64) {
	t.Helper()
	src := gridCloud(5, 1.0)
	offset := [3]float64{1.5, -0.5, 0.25}
	dst := cloud.New[float64]()
	for _, p := range src.Points {
		dst.Points = append(dst.Points, geom.Point3[float64]{X: p.X + offset[0], Y: p.Y + offset[1], Z: p.Z + offset[2]})
	}
	rng := randutil.New(42)
	var corr []cloud.Correspondence
	for i := range src.Points {
		corr = append(corr, cloud.Correspondence{SrcIdx: i, DstIdx: i})
	}
	n := len(corr)
	numOutliers := int(float64(n) * 0.3)
	for k := 0; k < numOutliers; k++ {
		idx := k % n
		j := randutil.Int(rng, 0, len(dst.Points))
		corr[idx].DstIdx = j
	}
	return cloud.AsPointSource(src), cloud.AsPointSource(dst), corr, offset
}

func TestRANSACRecoversTranslationDespiteOutliers(t *testing.T) {
	src, dst, corr, offset := buildRANSACScenario(t)
	cfg := DefaultRANSACConfig()
	cfg.InlierThreshold = 0.1
	cfg.Seed = 7
	result := RANSAC(src, dst, corr, cfg)
	if result.TerminationReason != ConvergedTransform {
		t.Fatalf("expected convergence, got %v", result.TerminationReason)
	}
	gotT := result.Transform.T
	for i := 0; i < 3; i++ {
		if math.Abs(gotT[i]-offset[i]) > 0.05 {
			t.Fatalf("translation component %d: got %v want %v", i, gotT[i], offset[i])
		}
	}
	if result.FitnessScore > cfg.InlierThreshold {
		t.Fatalf("fitness score %v exceeds inlier threshold", result.FitnessScore)
	}
}

func TestRANSACTooFewCorrespondences(t *testing.T) {
	src := cloud.New[float64]()
	src.Points = []geom.Point3[float64]{{X: 0, Y: 0, Z: 0}}
	dst := cloud.New[float64]()
	dst.Points = []geom.Point3[float64]{{X: 0, Y: 0, Z: 0}}
	result := RANSAC(cloud.AsPointSource(src), cloud.AsPointSource(dst),
		[]cloud.Correspondence{{SrcIdx: 0, DstIdx: 0}}, DefaultRANSACConfig())
	if result.TerminationReason != TooFewCorrespondences {
		t.Fatalf("expected too_few_correspondences, got %v", result.TerminationReason)
	}
}

func buildTransformedCloud(base *cloud.Cloud[float64], rot *rot3, offset [3]float64) *cloud.Cloud[float64] {
	out := cloud.New[float64]()
	for _, p := range base.Points {
		out.Points = append(out.Points, rot.apply(p, offset))
	}
	return out
}

func TestFourPCSRecoversTransform(t *testing.T) {
	src := gridCloud(6, 0.5)
	rot := rotateZ(0.2)
	offset := [3]float64{0.3, -0.2, 0.1}
	dst := buildTransformedCloud(src, rot, offset)

	cfg := DefaultFourPCSConfig()
	cfg.Seed = 3
	cfg.Delta = 0.08
	cfg.MaxBaseTries = 40
	result := FourPCS(cloud.AsPointSource(src), cloud.AsPointSource(dst), cfg)
	if result.TerminationReason != ConvergedTransform {
		t.Fatalf("expected convergence, got %v", result.TerminationReason)
	}
	if result.FitnessScore > cfg.Delta*2 {
		t.Fatalf("fitness score %v too high", result.FitnessScore)
	}
}

func TestSuper4PCSRecoversTransform(t *testing.T) {
	src := gridCloud(6, 0.5)
	rot := rotateZ(0.15)
	offset := [3]float64{0.2, 0.1, 0.0}
	dst := buildTransformedCloud(src, rot, offset)

	cfg := DefaultSuper4PCSConfig()
	cfg.Seed = 11
	cfg.Delta = 0.08
	cfg.MaxBaseTries = 40
	result := Super4PCS(cloud.AsPointSource(src), cloud.AsPointSource(dst), cfg)
	if result.TerminationReason != ConvergedTransform {
		t.Fatalf("expected convergence, got %v", result.TerminationReason)
	}
	if result.FitnessScore > cfg.Delta*2 {
		t.Fatalf("fitness score %v too high", result.FitnessScore)
	}
}

func buildTargetIndex(t *testing.T, pts []geom.Point3[float64]) search.Index {
	t.Helper()
	c := cloud.New[float64]()
	c.Points = pts
	l2, err := metric.New("l2")
	if err != nil {
		t.Fatalf("metric.New: %v", err)
	}
	return search.NewKDTree(search.FromCloud(c), l2, 8)
}

func TestPointToPointICPConvergesOnSmallTranslation(t *testing.T) {
	base := gridCloud(5, 1.0)
	offset := [3]float64{0.3, -0.15, 0.05}
	identity := &rot3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	target := buildTransformedCloud(base, identity, offset)
	idx := buildTargetIndex(t, target.Points)

	cfg := DefaultFineConfig()
	cfg.MaxCorrespondenceDistance = 2.0
	result := PointToPointICP(base.Points, target.Points, idx, cfg)

	if !result.Converged {
		t.Fatalf("expected convergence, got reason %v", result.TerminationReason)
	}
	for i, p := range base.Points {
		tp := cloud.Apply(result.Transform, p)
		want := target.Points[i]
		if geom.Distance(tp, want) > 0.05 {
			t.Fatalf("point %d: got %v want %v", i, tp, want)
		}
	}
}

func TestPointToPlaneICPConvergesWithNormals(t *testing.T) {
	base := gridCloud(5, 1.0)
	offset := [3]float64{0.1, 0.2, 0.0}
	identity := &rot3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	target := buildTransformedCloud(base, identity, offset)
	idx := buildTargetIndex(t, target.Points)

	normals := make([]geom.Point3[float64], len(target.Points))
	for i := range normals {
		normals[i] = geom.Point3[float64]{X: 0, Y: 0, Z: 1}
	}

	cfg := DefaultFineConfig()
	cfg.MaxCorrespondenceDistance = 2.0
	result := PointToPlaneICP(base.Points, target.Points, normals, idx, cfg)
	if result.TerminationReason == NumericalFailure {
		t.Fatalf("unexpected numerical failure")
	}
	if result.NumIterations == 0 {
		t.Fatal("expected at least one iteration")
	}
}

func TestAAICPConvergesFasterOrEqualToBase(t *testing.T) {
	base := gridCloud(5, 1.0)
	offset := [3]float64{0.4, -0.3, 0.1}
	identity := &rot3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	target := buildTransformedCloud(base, identity, offset)
	idx := buildTargetIndex(t, target.Points)

	cfg := DefaultAAICPConfig()
	cfg.MaxCorrespondenceDistance = 2.0
	result := AAICP(base.Points, target.Points, idx, cfg)
	if !result.Converged {
		t.Fatalf("expected convergence, got reason %v", result.TerminationReason)
	}
	for i, p := range base.Points {
		tp := cloud.Apply(result.Transform, p)
		if geom.Distance(tp, target.Points[i]) > 0.1 {
			t.Fatalf("point %d: got %v want %v", i, tp, target.Points[i])
		}
	}
}

func TestNDTConvergesOnSmallTranslation(t *testing.T) {
	base := gridCloud(8, 0.3)
	offset := [3]float64{0.1, 0.05, 0.0}
	identity := &rot3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	target := buildTransformedCloud(base, identity, offset)

	cfg := DefaultNDTConfig()
	cfg.Resolution = 0.6
	cfg.MinPointsPerVoxel = 2
	result := NDT(base.Points, target.Points, cfg)
	if result.TerminationReason == NumericalFailure || result.TerminationReason == TooFewCorrespondences {
		t.Fatalf("unexpected termination reason %v", result.TerminationReason)
	}
	rotDev, transDev := result.Transform.DeviationFromIdentity()
	_ = rotDev
	if transDev < 1e-6 {
		t.Fatalf("expected non-trivial correction, got near-identity transform")
	}
}

func TestTerminationReasonString(t *testing.T) {
	cases := map[TerminationReason]string{
		ConvergedTransform:    "converged_transform",
		ConvergedError:        "converged_error",
		MaxIterations:         "max_iterations",
		TooFewCorrespondences: "too_few_correspondences",
		NumericalFailure:      "numerical_failure",
	}
	for reason, want := range cases {
		if got := reason.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", reason, got, want)
		}
	}
}
