// Package search implements nearest-neighbour search over indexed elements
// (3D points or descriptor vectors) under a pluggable metric.
//
// Grounded on therealutkarshpriyadarshi-vector/pkg/hnsw (Index/Search split
// into construction and read-only query phases) and
// original_source/pcl/knn/{bfknn,kdtree}.hpp for the brute-force and
// KD-tree contract and fallback rule.
package search

// Neighbor is one result of a k-nearest or radius query: the index of the
// matched element in the data the index was built over, and its distance
// to the query.
type Neighbor struct {
	Index    int
	Distance float64
}

// Index is the contract every neighbour-search variant implements
// (spec.md 4.2). Construction takes ownership of a reference to the data
// and is single-threaded; KNearest/Radius are read-only and may be called
// concurrently from many goroutines once construction returns.
type Index interface {
	// KNearest returns up to k neighbours of query sorted by ascending
	// distance, ties broken by lower index first. Returns an empty slice,
	// not an error, for an empty index or k <= 0.
	KNearest(query []float64, k int) []Neighbor
	// Radius returns every element within distance r of query, sorted
	// ascending. Returns an empty slice for a non-positive radius or an
	// empty index.
	Radius(query []float64, r float64) []Neighbor
	// Len returns the number of elements the index was built over.
	Len() int
}

// Dataset is the minimal read access a search index needs over the
// underlying element collection: count and per-index vector lookup. Both
// 3D point clouds and descriptor signature collections implement this by
// adapting their native storage (see search/adapters.go).
type Dataset interface {
	Len() int
	At(i int) []float64
}

// sliceDataset adapts a plain [][]float64 into a Dataset.
type sliceDataset [][]float64

func (s sliceDataset) Len() int            { return len(s) }
func (s sliceDataset) At(i int) []float64 { return s[i] }

// FromSlice wraps vectors as a Dataset, the common case for descriptor
// search where the "points" are already histograms.
func FromSlice(vectors [][]float64) Dataset {
	return sliceDataset(vectors)
}

// sortByDistanceThenIndex performs the ascending-distance,
// lower-index-first stable ordering spec.md 4.2 requires for reproducible
// results.
func sortByDistanceThenIndex(ns []Neighbor) {
	// insertion sort: result sets are small (k or radius-bounded) so this
	// avoids pulling in sort.Slice's closure overhead for the hot path;
	// still O(n^2) worst case, acceptable given the bounded n.
	for i := 1; i < len(ns); i++ {
		j := i
		for j > 0 && less(ns[j], ns[j-1]) {
			ns[j], ns[j-1] = ns[j-1], ns[j]
			j--
		}
	}
}

func less(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Index < b.Index
}
