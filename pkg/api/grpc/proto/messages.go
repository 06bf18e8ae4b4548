// Package proto defines the wire messages and service description for the
// registration gRPC service.
//
// The teacher (therealutkarshpriyadarshi-vector/pkg/api/grpc/proto) is a
// protoc-gen-go/protoc-gen-go-grpc output checked into the repo from a
// .proto source. This environment cannot invoke protoc, and hand-authoring
// a byte-faithful protoc-gen-go message (which requires a matching raw
// FileDescriptorProto for the reflection machinery google.golang.org/protobuf
// builds on) is not something that can be done reliably without the
// toolchain that generates it. Rather than check in generated code nobody
// generated, this package keeps google.golang.org/grpc as the real
// transport — streaming, keepalive, TLS, service descriptors, all as the
// teacher wires them — and swaps the serialization plugged into it: plain
// Go structs carried over a small JSON codec (see codec.go) instead of a
// protobuf wire codec. See registration.proto for the message shapes this
// mirrors.
package proto

// Point3 is one point's coordinates on the wire.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// CloudMessage is a point cloud on the wire: positions only, since normals
// and descriptors are recomputed pipeline-side from the pipeline config.
type CloudMessage struct {
	Points []Point3 `json:"points"`
}

// PipelineOverride carries the subset of config.PipelineConfig a caller may
// override per request; a zero value field means "use the server's default".
type PipelineOverride struct {
	VoxelLeafSize      float64 `json:"voxel_leaf_size,omitempty"`
	KeypointDetector   string  `json:"keypoint_detector,omitempty"`
	NormalNumNeighbors int     `json:"normal_num_neighbors,omitempty"`
	DescriptorKind     string  `json:"descriptor_kind,omitempty"`
	CorrespondenceTopK int     `json:"correspondence_top_k,omitempty"`
	CoarseMethod       string  `json:"coarse_method,omitempty"`
	FineMethod         string  `json:"fine_method,omitempty"`
}

// AlignRequest asks the service to register Source onto Target.
type AlignRequest struct {
	RequestID string            `json:"request_id,omitempty"`
	Source    CloudMessage      `json:"source"`
	Target    CloudMessage      `json:"target"`
	Config    *PipelineOverride `json:"config,omitempty"`
}

// TransformMessage is a rigid transform: Rotation is row-major 3x3,
// Translation is (tx, ty, tz).
type TransformMessage struct {
	Rotation    [9]float64 `json:"rotation"`
	Translation [3]float64 `json:"translation"`
}

// AlignResponse is the registration outcome for one Align call.
type AlignResponse struct {
	RunID             string           `json:"run_id"`
	Transform         TransformMessage `json:"transform"`
	FitnessScore      float64          `json:"fitness_score"`
	Inliers           int32            `json:"inliers"`
	NumIterations     int32            `json:"num_iterations"`
	Converged         bool             `json:"converged"`
	TerminationReason string           `json:"termination_reason"`
	DurationMs        float64          `json:"duration_ms"`
}
