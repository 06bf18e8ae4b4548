package search

import (
	"runtime"
	"sync"

	"github.com/arjun-mehta/pointcloudkit/pkg/metric"
)

// parallelThreshold is the dataset size above which BruteForceParallel
// actually spreads distance computation across workers; below it, the
// per-goroutine overhead outweighs the gain and it runs single-threaded
// (spec.md 4.2, "used when the dataset exceeds a threshold (~1024
// elements)").
const parallelThreshold = 1024

// BruteForceParallel is BruteForce with distance computation spread across
// a worker pool in disjoint chunks; semantics (answer set, ordering) are
// identical to BruteForce, only wall-clock differs.
type BruteForceParallel struct {
	inner   *BruteForce
	workers int
}

// NewBruteForceParallel builds a parallel brute-force index over data under
// m. workers <= 0 defaults to runtime.GOMAXPROCS(0).
func NewBruteForceParallel(data Dataset, m metric.Metric, workers int) *BruteForceParallel {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &BruteForceParallel{inner: NewBruteForce(data, m), workers: workers}
}

func (b *BruteForceParallel) Len() int { return b.inner.Len() }

// computeAll returns every (index, distance) pair for query, computed in
// parallel chunks when the dataset is large enough to be worth it.
func (b *BruteForceParallel) computeAll(query []float64) []Neighbor {
	n := b.inner.data.Len()
	all := make([]Neighbor, n)

	if n < parallelThreshold || b.workers <= 1 {
		for i := 0; i < n; i++ {
			all[i] = Neighbor{Index: i, Distance: b.inner.metric.Distance(query, b.inner.data.At(i))}
		}
		return all
	}

	chunk := (n + b.workers - 1) / b.workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				all[i] = Neighbor{Index: i, Distance: b.inner.metric.Distance(query, b.inner.data.At(i))}
			}
		}(start, end)
	}
	wg.Wait()
	return all
}

func (b *BruteForceParallel) KNearest(query []float64, k int) []Neighbor {
	if k <= 0 || b.inner.data.Len() == 0 {
		return nil
	}
	all := b.computeAll(query)
	sortByDistanceThenIndex(all)
	if k > len(all) {
		k = len(all)
	}
	return all[:k]
}

func (b *BruteForceParallel) Radius(query []float64, r float64) []Neighbor {
	if r <= 0 || b.inner.data.Len() == 0 {
		return nil
	}
	all := b.computeAll(query)
	var out []Neighbor
	for _, n := range all {
		if n.Distance <= r {
			out = append(out, n)
		}
	}
	sortByDistanceThenIndex(out)
	return out
}
