package cloud

// Correspondence is a hypothesised match between a source and a target
// index (into their respective clouds or keypoint subsets, documented per
// call site) together with the descriptor-space distance that justified it.
type Correspondence struct {
	SrcIdx   int
	DstIdx   int
	Distance float64
}

// CorrespondenceStats accumulates the funnel counters a CorrespondenceGenerator
// must expose for downstream diagnostics (spec.md 4.6).
type CorrespondenceStats struct {
	TotalCandidates    int
	RatioTestPassed    int
	MutualTestPassed   int
	DistanceTestPassed int
}

// BySrcAscending reports whether correspondences are sorted by ascending
// SrcIdx, the order every generator must return after filtering.
func BySrcAscending(cs []Correspondence) bool {
	for i := 1; i < len(cs); i++ {
		if cs[i].SrcIdx < cs[i-1].SrcIdx {
			return false
		}
	}
	return true
}

// UniqueSrc reports whether every SrcIdx appears at most once, the
// post-filtering set-semantics invariant from the data model.
func UniqueSrc(cs []Correspondence) bool {
	seen := make(map[int]struct{}, len(cs))
	for _, c := range cs {
		if _, ok := seen[c.SrcIdx]; ok {
			return false
		}
		seen[c.SrcIdx] = struct{}{}
	}
	return true
}
