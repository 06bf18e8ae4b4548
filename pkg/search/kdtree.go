package search

import (
	"container/heap"
	"sort"

	"github.com/arjun-mehta/pointcloudkit/pkg/metric"
)

// KDTree indexes 3-dimensional data for L2 (and squared-L2) nearest
// neighbour queries via a bulk-loaded, median-split tree with a
// configurable max leaf size. Only valid for L2; constructing one with any
// other metric transparently falls back to BruteForce over the same data,
// preserving the answer set (spec.md 4.2).
type KDTree struct {
	data        Dataset
	metric      metric.Metric
	maxLeafSize int
	root        *kdNode
	fallback    *BruteForce // non-nil iff the requested metric isn't L2
}

type kdNode struct {
	// leaf node: indices holds every point index in this node's bucket.
	indices []int
	// internal node: axis/split define the partition, left/right the children.
	axis        int
	split       float64
	left, right *kdNode
}

// DefaultMaxLeafSize is used when NewKDTree's maxLeafSize is <= 0.
const DefaultMaxLeafSize = 16

// NewKDTree builds a KD-tree over data under m. If m is not L2 (by name),
// the tree degrades to a BruteForce wrapper with identical query semantics.
func NewKDTree(data Dataset, m metric.Metric, maxLeafSize int) *KDTree {
	if maxLeafSize <= 0 {
		maxLeafSize = DefaultMaxLeafSize
	}
	t := &KDTree{data: data, metric: m, maxLeafSize: maxLeafSize}
	if m == nil || m.Name() != "l2" {
		t.fallback = NewBruteForce(data, m)
		return t
	}
	indices := make([]int, data.Len())
	for i := range indices {
		indices[i] = i
	}
	t.root = t.build(indices)
	return t
}

func (t *KDTree) Len() int { return t.data.Len() }

func (t *KDTree) build(indices []int) *kdNode {
	if len(indices) <= t.maxLeafSize {
		return &kdNode{indices: indices}
	}

	axis := t.widestAxis(indices)
	sort.Slice(indices, func(i, j int) bool {
		return t.data.At(indices[i])[axis] < t.data.At(indices[j])[axis]
	})
	mid := len(indices) / 2
	split := t.data.At(indices[mid])[axis]

	left := t.build(append([]int{}, indices[:mid]...))
	right := t.build(append([]int{}, indices[mid:]...))
	return &kdNode{axis: axis, split: split, left: left, right: right}
}

// widestAxis picks the coordinate axis with the largest spread among the
// given indices, so splits cut along the direction that separates points
// the most (rather than a fixed round-robin axis).
func (t *KDTree) widestAxis(indices []int) int {
	mins := []float64{1e308, 1e308, 1e308}
	maxs := []float64{-1e308, -1e308, -1e308}
	for _, idx := range indices {
		v := t.data.At(idx)
		for a := 0; a < 3; a++ {
			if v[a] < mins[a] {
				mins[a] = v[a]
			}
			if v[a] > maxs[a] {
				maxs[a] = v[a]
			}
		}
	}
	best, bestSpread := 0, -1.0
	for a := 0; a < 3; a++ {
		spread := maxs[a] - mins[a]
		if spread > bestSpread {
			bestSpread, best = spread, a
		}
	}
	return best
}

func (t *KDTree) KNearest(query []float64, k int) []Neighbor {
	if t.fallback != nil {
		return t.fallback.KNearest(query, k)
	}
	if k <= 0 || t.data.Len() == 0 || t.root == nil {
		return nil
	}
	h := &maxHeap{}
	t.searchKNN(t.root, query, k, h)

	out := make([]Neighbor, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Neighbor)
	}
	sortByDistanceThenIndex(out)
	return out
}

func (t *KDTree) searchKNN(n *kdNode, query []float64, k int, h *maxHeap) {
	if n == nil {
		return
	}
	if n.indices != nil {
		for _, idx := range n.indices {
			d := t.metric.Distance(query, t.data.At(idx))
			pushBounded(h, Neighbor{Index: idx, Distance: d}, k)
		}
		return
	}

	diff := query[n.axis] - n.split
	first, second := n.left, n.right
	if diff > 0 {
		first, second = n.right, n.left
	}
	t.searchKNN(first, query, k, h)
	// Only descend into the far side if it could still contain a point
	// closer than the current worst kept neighbour.
	if h.Len() < k || diff*diff < (*h)[0].Distance*(*h)[0].Distance {
		t.searchKNN(second, query, k, h)
	}
}

func (t *KDTree) Radius(query []float64, r float64) []Neighbor {
	if t.fallback != nil {
		return t.fallback.Radius(query, r)
	}
	if r <= 0 || t.data.Len() == 0 || t.root == nil {
		return nil
	}
	var out []Neighbor
	t.searchRadius(t.root, query, r, &out)
	sortByDistanceThenIndex(out)
	return out
}

func (t *KDTree) searchRadius(n *kdNode, query []float64, r float64, out *[]Neighbor) {
	if n == nil {
		return
	}
	if n.indices != nil {
		for _, idx := range n.indices {
			d := t.metric.Distance(query, t.data.At(idx))
			if d <= r {
				*out = append(*out, Neighbor{Index: idx, Distance: d})
			}
		}
		return
	}
	diff := query[n.axis] - n.split
	near, far := n.left, n.right
	if diff > 0 {
		near, far = n.right, n.left
	}
	t.searchRadius(near, query, r, out)
	if diff*diff <= r*r {
		t.searchRadius(far, query, r, out)
	}
}

// maxHeap is a bounded max-heap over Neighbor, keeping the k closest seen so
// far with the farthest at the root for O(log k) eviction.
type maxHeap []Neighbor

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(Neighbor)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func pushBounded(h *maxHeap, n Neighbor, k int) {
	if h.Len() < k {
		heap.Push(h, n)
		return
	}
	if n.Distance < (*h)[0].Distance {
		heap.Pop(h)
		heap.Push(h, n)
	}
}
