package cloud

import "math"

// SignatureKind names the descriptor family a Signature's histogram belongs
// to, fixing its expected length (spec.md 3).
type SignatureKind int

const (
	PFH SignatureKind = iota
	FPFH
	SHOT
	VFH
)

// HistogramSize is the fixed bin count for each descriptor kind.
func (k SignatureKind) HistogramSize() int {
	switch k {
	case PFH:
		return 125
	case FPFH:
		return 33
	case SHOT:
		return 352
	case VFH:
		return 308
	default:
		return 0
	}
}

func (k SignatureKind) String() string {
	switch k {
	case PFH:
		return "PFH"
	case FPFH:
		return "FPFH"
	case SHOT:
		return "SHOT"
	case VFH:
		return "VFH"
	default:
		return "unknown"
	}
}

// Signature is a fixed-length descriptor histogram for one keypoint.
type Signature struct {
	Kind      SignatureKind
	Histogram []float64
}

// NewSignature allocates a zeroed signature of the correct length for kind.
func NewSignature(kind SignatureKind) Signature {
	return Signature{Kind: kind, Histogram: make([]float64, kind.HistogramSize())}
}

// IsFinite reports whether every bin is a finite number, the invariant
// descriptor extraction must uphold whenever the neighbourhood has >= 3
// points (spec.md 8, invariant 4).
func (s Signature) IsFinite() bool {
	for _, v := range s.Histogram {
		if v != v || v > 1e300 || v < -1e300 { // NaN or effectively Inf
			return false
		}
	}
	return true
}

// Distance returns the L2 distance between two same-kind signatures, the
// default distance operation every signature kind carries (spec.md 4.5);
// callers needing a different metric compare s.Histogram / other.Histogram
// directly through pkg/metric instead.
func (s Signature) Distance(other Signature) float64 {
	var sum float64
	n := len(s.Histogram)
	if len(other.Histogram) < n {
		n = len(other.Histogram)
	}
	for i := 0; i < n; i++ {
		d := s.Histogram[i] - other.Histogram[i]
		sum += d * d
	}
	for i := n; i < len(s.Histogram); i++ {
		sum += s.Histogram[i] * s.Histogram[i]
	}
	for i := n; i < len(other.Histogram); i++ {
		sum += other.Histogram[i] * other.Histogram[i]
	}
	return math.Sqrt(sum)
}
