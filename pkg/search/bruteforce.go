package search

import "github.com/arjun-mehta/pointcloudkit/pkg/metric"

// BruteForce is the single-threaded baseline index: correct for every
// metric, used directly for small datasets and as the documented fallback
// for metrics a KD-tree cannot serve.
type BruteForce struct {
	data   Dataset
	metric metric.Metric
}

// NewBruteForce builds an index over data under m. Construction is cheap
// (no preprocessing): the data reference is simply retained.
func NewBruteForce(data Dataset, m metric.Metric) *BruteForce {
	return &BruteForce{data: data, metric: m}
}

func (b *BruteForce) Len() int { return b.data.Len() }

func (b *BruteForce) KNearest(query []float64, k int) []Neighbor {
	if k <= 0 || b.data.Len() == 0 {
		return nil
	}
	all := make([]Neighbor, b.data.Len())
	for i := 0; i < b.data.Len(); i++ {
		all[i] = Neighbor{Index: i, Distance: b.metric.Distance(query, b.data.At(i))}
	}
	sortByDistanceThenIndex(all)
	if k > len(all) {
		k = len(all)
	}
	return all[:k]
}

func (b *BruteForce) Radius(query []float64, r float64) []Neighbor {
	if r <= 0 || b.data.Len() == 0 {
		return nil
	}
	var out []Neighbor
	for i := 0; i < b.data.Len(); i++ {
		d := b.metric.Distance(query, b.data.At(i))
		if d <= r {
			out = append(out, Neighbor{Index: i, Distance: d})
		}
	}
	sortByDistanceThenIndex(out)
	return out
}
