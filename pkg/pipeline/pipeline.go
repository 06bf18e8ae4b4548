// Package pipeline composes the full registration funnel (spec.md 4):
// filter -> normals -> keypoints -> descriptors -> correspondences -> coarse
// registration -> fine registration, driven by a single Config and exposed
// as a builder/configure -> apply component, matching spec.md 6's "In-process
// API surface" contract.
//
// Grounded on therealutkarshpriyadarshi-vector/pkg/search/hybrid.go's
// HybridSearch: a struct wrapping its collaborator components with setter
// methods and one Search-style orchestration entry point, the shape this
// module's top-level Align() generalises to a five-stage funnel instead of
// hybrid's two-way fusion.
package pipeline

import (
	"fmt"
	"time"

	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/config"
	"github.com/arjun-mehta/pointcloudkit/pkg/correspondence"
	"github.com/arjun-mehta/pointcloudkit/pkg/descriptor"
	"github.com/arjun-mehta/pointcloudkit/pkg/filter"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/keypoint"
	"github.com/arjun-mehta/pointcloudkit/pkg/metric"
	"github.com/arjun-mehta/pointcloudkit/pkg/normal"
	"github.com/arjun-mehta/pointcloudkit/pkg/observability"
	"github.com/arjun-mehta/pointcloudkit/pkg/registration"
	"github.com/arjun-mehta/pointcloudkit/pkg/search"
)

// Pipeline runs the end-to-end Align operation configured by a
// config.PipelineConfig and config.RegistrationConfig.
type Pipeline struct {
	pipeline     config.PipelineConfig
	registration config.RegistrationConfig
	logger       *observability.Logger
	metrics      *observability.Metrics
}

// New builds a Pipeline from a full Config. logger and metrics may be nil,
// in which case the package's global logger is used and metrics recording
// is skipped.
func New(cfg config.Config, logger *observability.Logger, metrics *observability.Metrics) *Pipeline {
	if logger == nil {
		logger = observability.GetGlobalLogger()
	}
	return &Pipeline{
		pipeline:     cfg.Pipeline,
		registration: cfg.Registration,
		logger:       logger,
		metrics:      metrics,
	}
}

// WithOverride returns a copy of p with any non-zero field in override
// applied on top of p's pipeline config, leaving the registration config and
// collaborators untouched. Used to honour a per-request config override
// (e.g. from an API caller) without mutating the shared Pipeline.
func (p *Pipeline) WithOverride(override PipelineOverride) *Pipeline {
	cfg := p.pipeline
	if override.VoxelLeafSize != 0 {
		cfg.VoxelLeafSize = override.VoxelLeafSize
	}
	if override.KeypointDetector != "" {
		cfg.KeypointDetector = override.KeypointDetector
	}
	if override.NormalNumNeighbors != 0 {
		cfg.NormalNumNeighbors = override.NormalNumNeighbors
	}
	if override.DescriptorKind != "" {
		cfg.DescriptorKind = override.DescriptorKind
	}
	if override.CorrespondenceTopK != 0 {
		cfg.CorrespondenceTopK = override.CorrespondenceTopK
	}
	if override.CoarseMethod != "" {
		cfg.CoarseMethod = override.CoarseMethod
	}
	if override.FineMethod != "" {
		cfg.FineMethod = override.FineMethod
	}
	out := *p
	out.pipeline = cfg
	return &out
}

// PipelineOverride is the subset of config.PipelineConfig a caller may
// override per Align() call; a zero field means "keep the Pipeline's
// existing value".
type PipelineOverride struct {
	VoxelLeafSize      float64
	KeypointDetector   string
	NormalNumNeighbors int
	DescriptorKind     string
	CorrespondenceTopK int
	CoarseMethod       string
	FineMethod         string
}

// StageResult is one funnel stage's output, kept for diagnostics and
// tests — the per-stage correspondence funnel spec.md 4.6 asks for.
type StageResult struct {
	SourceKeypoints []int
	TargetKeypoints []int
	Correspondences correspondence.Result
}

// AlignResult is the outcome of a full Align() run.
type AlignResult struct {
	Transform cloud.Transform
	Coarse    registration.Result
	Fine      registration.Result
	Stages    StageResult
	Duration  time.Duration
}

// Align runs the full funnel from two raw clouds to a refined rigid
// transform mapping source onto target.
func (p *Pipeline) Align(source, target *cloud.Cloud[float64]) (*AlignResult, error) {
	start := time.Now()
	status := "ok"
	defer func() {
		if p.metrics != nil {
			p.metrics.RecordAlign(p.pipeline.CoarseMethod, p.pipeline.FineMethod, status, time.Since(start))
		}
	}()

	srcFiltered := p.filterCloud(source)
	dstFiltered := p.filterCloud(target)
	p.log("filter", "source_points", srcFiltered.Len(), "target_points", dstFiltered.Len())

	l2, err := metric.New("l2")
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("pipeline: building l2 metric: %w", err)
	}

	srcIndex := search.NewKDTree(search.FromCloud(srcFiltered), l2, 8)
	dstIndex := search.NewKDTree(search.FromCloud(dstFiltered), l2, 8)

	normalCfg := normal.Config{NumNeighbors: p.pipeline.NormalNumNeighbors, Parallel: true, Workers: p.pipeline.Workers}
	srcFiltered.Normals = normal.Estimate(srcFiltered, srcIndex, normalCfg)
	dstFiltered.Normals = normal.Estimate(dstFiltered, dstIndex, normalCfg)

	srcKeypoints := p.detectKeypoints(srcFiltered, srcIndex)
	dstKeypoints := p.detectKeypoints(dstFiltered, dstIndex)
	if p.metrics != nil {
		p.metrics.RecordKeypoints(p.pipeline.KeypointDetector, len(srcKeypoints)+len(dstKeypoints))
	}
	p.log("keypoints", "source_count", len(srcKeypoints), "target_count", len(dstKeypoints))

	descStart := time.Now()
	srcSigs, err := p.extractDescriptors(srcFiltered, srcIndex, srcKeypoints)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("pipeline: source descriptors: %w", err)
	}
	dstSigs, err := p.extractDescriptors(dstFiltered, dstIndex, dstKeypoints)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("pipeline: target descriptors: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordDescriptorExtract(p.pipeline.DescriptorKind, time.Since(descStart))
	}

	targetSigIndex := search.NewKDTree(search.FromSignatures(dstSigs), l2, 8)
	corrCfg := correspondence.Config{RatioThreshold: 0.8, MutualVerification: true}
	corrResult := correspondence.GenerateKNN(
		correspondence.Side{Signatures: srcSigs, Keypoints: srcKeypoints},
		correspondence.Side{Signatures: dstSigs, Keypoints: dstKeypoints},
		targetSigIndex,
		corrCfg,
	)
	if p.metrics != nil {
		p.metrics.RecordCorrespondences("generated", len(corrResult.Correspondences))
	}

	ranked := p.rankCorrespondences(corrResult.Correspondences)
	if p.metrics != nil {
		p.metrics.RecordCorrespondences("ranked", len(ranked))
	}
	p.log("correspondences", "generated", len(corrResult.Correspondences), "ranked", len(ranked))

	coarse, err := p.coarseRegister(srcFiltered, dstFiltered, ranked)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("pipeline: coarse registration: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordRegistration(p.pipeline.CoarseMethod, coarse.NumIterations, coarse.FitnessScore, coarse.TerminationReason.String())
	}
	p.log("coarse", "method", p.pipeline.CoarseMethod, "fitness", coarse.FitnessScore, "converged", coarse.Converged)

	fine := p.fineRegister(srcFiltered, dstFiltered, srcIndex, dstIndex, coarse.Transform)
	if p.metrics != nil {
		p.metrics.RecordRegistration(p.pipeline.FineMethod, fine.NumIterations, fine.FitnessScore, fine.TerminationReason.String())
	}
	p.log("fine", "method", p.pipeline.FineMethod, "fitness", fine.FitnessScore, "converged", fine.Converged)

	if !fine.Converged {
		status = "unconverged"
	}

	return &AlignResult{
		Transform: fine.Transform,
		Coarse:    coarse,
		Fine:      fine,
		Stages: StageResult{
			SourceKeypoints: srcKeypoints,
			TargetKeypoints: dstKeypoints,
			Correspondences: corrResult,
		},
		Duration: time.Since(start),
	}, nil
}

func (p *Pipeline) filterCloud(c *cloud.Cloud[float64]) *cloud.Cloud[float64] {
	if p.pipeline.VoxelLeafSize <= 0 {
		return c.Clone()
	}
	return filter.VoxelGrid(c, p.pipeline.VoxelLeafSize)
}

func (p *Pipeline) log(stage string, kv ...interface{}) {
	if p.logger == nil {
		return
	}
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			fields[key] = kv[i+1]
		}
	}
	p.logger.WithStage(stage).WithFields(fields).Info("pipeline stage complete")
}

func (p *Pipeline) detectKeypoints(c *cloud.Cloud[float64], idx search.Index) []int {
	neighbors := p.pipeline.NormalNumNeighbors
	if neighbors <= 0 {
		neighbors = 20
	}
	switch p.pipeline.KeypointDetector {
	case "":
		return allIndices(c.Len())
	case "harris3d":
		return keypoint.Harris3D(c, idx, keypoint.Harris3DConfig{
			NumNeighbors:      neighbors,
			Threshold:         1e-6,
			HarrisK:           0.04,
			SuppressionRadius: p.pipeline.VoxelLeafSize * 2,
		})
	case "iss":
		return keypoint.ISS(c, idx, keypoint.ISSConfig{
			NumNeighbors:    neighbors,
			Gamma21:         0.975,
			Gamma32:         0.975,
			NonMaximaRadius: p.pipeline.VoxelLeafSize * 2,
		})
	case "sift3d":
		return keypoint.SIFT3D(c, idx, keypoint.SIFT3DConfig{
			NumNeighbors:    neighbors,
			NonMaximaRadius: p.pipeline.VoxelLeafSize * 2,
		})
	case "susan":
		return keypoint.SUSAN(c, idx, keypoint.SUSANConfig{
			NumNeighbors:       neighbors,
			GeometricThreshold: p.pipeline.VoxelLeafSize,
			USANThreshold:      0.5,
			NonMaximaRadius:    p.pipeline.VoxelLeafSize * 2,
		})
	case "agast":
		return keypoint.AGAST(c, idx, keypoint.AGASTConfig{
			NumNeighbors:    neighbors,
			Threshold:       0.1,
			PatternRadius:   p.pipeline.VoxelLeafSize,
			NonMaximaRadius: p.pipeline.VoxelLeafSize * 2,
		})
	case "mls":
		return keypoint.MLS(c, idx, keypoint.MLSConfig{
			NumNeighbors:       neighbors,
			Order:              keypoint.PolynomialQuadratic,
			VariationThreshold: 0.01,
			CurvatureThreshold: 0.01,
			NonMaximaRadius:    p.pipeline.VoxelLeafSize * 2,
			MinNeighbors:       5,
		})
	case "loam":
		r := keypoint.LOAM(c, keypoint.LOAMConfig{
			NumScanNeighbors:   neighbors,
			EdgeThreshold:      0.1,
			PlanarThreshold:    0.1,
			CurvatureThreshold: 0.1,
		})
		return loamKeypointIndices(r)
	case "curvature":
		return keypoint.Curvature(c, idx, keypoint.CurvatureConfig{
			NumNeighbors:       neighbors,
			CurvatureThreshold: 0.01,
			NonMaximaRadius:    p.pipeline.VoxelLeafSize * 2,
			MinNeighbors:       5,
		})
	default:
		return keypoint.Curvature(c, idx, keypoint.CurvatureConfig{
			NumNeighbors:       neighbors,
			CurvatureThreshold: 0.01,
			NonMaximaRadius:    p.pipeline.VoxelLeafSize * 2,
			MinNeighbors:       5,
		})
	}
}

// loamKeypointIndices flattens LOAM's labelled result into one index slice
// (edge and planar points both feed the correspondence stage).
func loamKeypointIndices(r keypoint.LOAMResult) []int {
	out := make([]int, 0, len(r.EdgeIndices)+len(r.PlanarIndices))
	out = append(out, r.EdgeIndices...)
	out = append(out, r.PlanarIndices...)
	return out
}

func (p *Pipeline) extractDescriptors(c *cloud.Cloud[float64], idx search.Index, keypoints []int) ([]cloud.Signature, error) {
	radius := p.pipeline.VoxelLeafSize * 4
	if radius <= 0 {
		radius = 1.0
	}
	neighbors := p.pipeline.NormalNumNeighbors
	if neighbors <= 0 {
		neighbors = 20
	}
	switch p.pipeline.DescriptorKind {
	case "pfh":
		return descriptor.PFH(c, idx, keypoints, descriptor.PFHConfig{
			NumNeighbors: neighbors,
			SearchRadius: radius,
		}), nil
	case "shot":
		return descriptor.SHOT(c, idx, keypoints, descriptor.SHOTConfig{
			NumNeighbors: neighbors,
			SearchRadius: radius,
		}), nil
	case "fpfh", "":
		return descriptor.FPFH(c, idx, keypoints, descriptor.FPFHConfig{
			NumNeighbors: neighbors,
			SearchRadius: radius,
		}), nil
	default:
		return nil, fmt.Errorf("unknown descriptor kind %q", p.pipeline.DescriptorKind)
	}
}

func (p *Pipeline) rankCorrespondences(cs []cloud.Correspondence) []cloud.Correspondence {
	if len(cs) == 0 {
		return cs
	}
	sorter := correspondence.NewDescriptorDistanceSorter()
	order := correspondence.SortedIndices(cs, sorter)
	k := p.pipeline.CorrespondenceTopK
	if k <= 0 || k > len(order) {
		k = len(order)
	}
	out := make([]cloud.Correspondence, k)
	for i := 0; i < k; i++ {
		out[i] = cs[order[i]]
	}
	return out
}

func (p *Pipeline) coarseRegister(src, dst *cloud.Cloud[float64], correspondences []cloud.Correspondence) (registration.Result, error) {
	srcSource := cloud.AsPointSource(src)
	dstSource := cloud.AsPointSource(dst)

	switch p.pipeline.CoarseMethod {
	case "fourpcs":
		cfg := registration.DefaultFourPCSConfig()
		cfg.Seed = p.registration.Seed
		return registration.FourPCS(srcSource, dstSource, cfg), nil
	case "super4pcs":
		cfg := registration.Super4PCSConfig{FourPCSConfig: registration.DefaultFourPCSConfig()}
		cfg.Seed = p.registration.Seed
		cfg.GridResolution = p.pipeline.VoxelLeafSize
		if cfg.GridResolution <= 0 {
			cfg.GridResolution = cfg.Delta
		}
		return registration.Super4PCS(srcSource, dstSource, cfg), nil
	case "ransac", "":
		cfg := registration.DefaultRANSACConfig()
		cfg.Seed = p.registration.Seed
		if p.registration.RANSACConfidence > 0 {
			cfg.Confidence = p.registration.RANSACConfidence
		}
		if p.registration.RANSACInlierThreshold > 0 {
			cfg.InlierThreshold = p.registration.RANSACInlierThreshold
		}
		return registration.RANSAC(srcSource, dstSource, correspondences, cfg), nil
	default:
		return registration.Result{}, fmt.Errorf("unknown coarse method %q", p.pipeline.CoarseMethod)
	}
}

func (p *Pipeline) fineRegister(src, dst *cloud.Cloud[float64], srcIndex, dstIndex search.Index, initialGuess cloud.Transform) registration.Result {
	fineCfg := registration.DefaultFineConfig()
	fineCfg.InitialGuess = initialGuess
	if p.registration.MaxIterations > 0 {
		fineCfg.MaxIterations = p.registration.MaxIterations
	}
	if p.registration.TransformationEpsilon > 0 {
		fineCfg.TransformationEpsilon = p.registration.TransformationEpsilon
	}
	if p.registration.EuclideanFitnessEpsilon > 0 {
		fineCfg.EuclideanFitnessEpsilon = p.registration.EuclideanFitnessEpsilon
	}
	if p.registration.MaxCorrespondenceDistance > 0 {
		fineCfg.MaxCorrespondenceDistance = p.registration.MaxCorrespondenceDistance
	}

	srcPts := points64(src)
	dstPts := points64(dst)

	switch p.pipeline.FineMethod {
	case "point_to_plane":
		return registration.PointToPlaneICP(srcPts, dstPts, dst.Normals, dstIndex, fineCfg)
	case "generalized":
		srcCov := registration.PointCovariance(src, srcIndex, 20, 1e-3)
		dstCov := registration.PointCovariance(dst, dstIndex, 20, 1e-3)
		return registration.GeneralizedICP(srcPts, dstPts, srcCov, dstCov, dstIndex, fineCfg, 10)
	case "aa":
		aaCfg := registration.DefaultAAICPConfig()
		aaCfg.FineConfig = fineCfg
		return registration.AAICP(srcPts, dstPts, dstIndex, aaCfg)
	case "ndt":
		ndtCfg := registration.DefaultNDTConfig()
		ndtCfg.FineConfig = fineCfg
		if p.pipeline.VoxelLeafSize > 0 {
			ndtCfg.Resolution = p.pipeline.VoxelLeafSize * 2
		}
		return registration.NDT(srcPts, dstPts, ndtCfg)
	case "point_to_point", "":
		return registration.PointToPointICP(srcPts, dstPts, dstIndex, fineCfg)
	default:
		return registration.PointToPointICP(srcPts, dstPts, dstIndex, fineCfg)
	}
}

func points64(c *cloud.Cloud[float64]) []geom.Point3[float64] {
	return c.Points
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
