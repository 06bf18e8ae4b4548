package grpc

import (
	"context"
	"fmt"
	"io"
	"time"

	apiproto "github.com/arjun-mehta/pointcloudkit/pkg/api/grpc/proto"
	"github.com/arjun-mehta/pointcloudkit/pkg/cloud"
	"github.com/arjun-mehta/pointcloudkit/pkg/geom"
	"github.com/arjun-mehta/pointcloudkit/pkg/pipeline"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Align implements the RegistrationService Align RPC.
func (s *Server) Align(ctx context.Context, req *apiproto.AlignRequest) (*apiproto.AlignResponse, error) {
	if len(req.Source.Points) == 0 || len(req.Target.Points) == 0 {
		return nil, status.Error(codes.InvalidArgument, "source and target clouds must be non-empty")
	}

	source := cloudFromMessage(req.Source)
	target := cloudFromMessage(req.Target)

	p := s.pipeline
	if req.Config != nil {
		p = s.pipeline.WithOverride(overrideFromMessage(*req.Config))
	}

	start := time.Now()
	result, err := p.Align(source, target)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("align: %v", err))
	}

	runID := req.RequestID
	if runID == "" {
		runID = uuid.NewString()
	}
	return resultToMessage(runID, result, time.Since(start)), nil
}

func overrideFromMessage(m apiproto.PipelineOverride) pipeline.PipelineOverride {
	return pipeline.PipelineOverride{
		VoxelLeafSize:      m.VoxelLeafSize,
		KeypointDetector:   m.KeypointDetector,
		NormalNumNeighbors: int(m.NormalNumNeighbors),
		DescriptorKind:     m.DescriptorKind,
		CorrespondenceTopK: int(m.CorrespondenceTopK),
		CoarseMethod:       m.CoarseMethod,
		FineMethod:         m.FineMethod,
	}
}

// AlignSequence implements the streaming RegistrationService AlignSequence
// RPC: each client-sent AlignRequest is registered independently and its
// AlignResponse streamed back immediately, so a caller can pipeline a whole
// KITTI sequence's consecutive frame pairs without waiting for the others.
func (s *Server) AlignSequence(stream apiproto.RegistrationService_AlignSequenceServer) error {
	start := time.Now()
	var processed int

	for {
		req, err := stream.Recv()
		if err == io.EOF {
			s.logger.WithStage("grpc").Info(fmt.Sprintf("AlignSequence processed %d pairs (took %v)", processed, time.Since(start)))
			return nil
		}
		if err != nil {
			return status.Error(codes.Internal, fmt.Sprintf("stream recv: %v", err))
		}

		resp, err := s.Align(stream.Context(), req)
		if err != nil {
			return err
		}
		if err := stream.Send(resp); err != nil {
			return status.Error(codes.Internal, fmt.Sprintf("stream send: %v", err))
		}
		processed++
	}
}

func cloudFromMessage(m apiproto.CloudMessage) *cloud.Cloud[float64] {
	c := cloud.New[float64]()
	c.Points = make([]geom.Point3[float64], len(m.Points))
	for i, p := range m.Points {
		c.Points[i] = geom.Point3[float64]{X: p.X, Y: p.Y, Z: p.Z}
	}
	return c
}

func resultToMessage(runID string, r *pipeline.AlignResult, duration time.Duration) *apiproto.AlignResponse {
	var rot [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot[i*3+j] = r.Transform.R.At(i, j)
		}
	}
	return &apiproto.AlignResponse{
		RunID:             runID,
		Transform:         apiproto.TransformMessage{Rotation: rot, Translation: r.Transform.T},
		FitnessScore:      r.Fine.FitnessScore,
		Inliers:           int32(len(r.Fine.Inliers)),
		NumIterations:     int32(r.Fine.NumIterations),
		Converged:         r.Fine.Converged,
		TerminationReason: r.Fine.TerminationReason.String(),
		DurationMs:        float64(duration.Milliseconds()),
	}
}
