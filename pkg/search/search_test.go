package search

import (
	"math/rand"
	"testing"

	"github.com/arjun-mehta/pointcloudkit/pkg/metric"
)

func randomVectors(n, dim int, seed int64) [][]float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([][]float64, n)
	for i := range out {
		v := make([]float64, dim)
		for j := range v {
			v[j] = r.Float64()*20 - 10
		}
		out[i] = v
	}
	return out
}

// TestKDTreeMatchesBruteForce is the universal invariant from spec.md 8:
// for any k <= |D|, a KD-tree's k-nearest answer set equals brute force's,
// for the same (data, metric, query, k).
func TestKDTreeMatchesBruteForce(t *testing.T) {
	data := randomVectors(500, 3, 1)
	ds := FromSlice(data)
	l2, _ := metric.New("l2")
	bf := NewBruteForce(ds, l2)
	kd := NewKDTree(ds, l2, 8)

	queries := randomVectors(20, 3, 2)
	for qi, q := range queries {
		for _, k := range []int{1, 5, 10, 50} {
			bfResult := bf.KNearest(q, k)
			kdResult := kd.KNearest(q, k)
			if len(bfResult) != len(kdResult) {
				t.Fatalf("query %d k=%d: len mismatch bf=%d kd=%d", qi, k, len(bfResult), len(kdResult))
			}
			for i := range bfResult {
				if bfResult[i].Index != kdResult[i].Index {
					t.Fatalf("query %d k=%d pos %d: bf idx=%d kd idx=%d (dist bf=%v kd=%v)",
						qi, k, i, bfResult[i].Index, kdResult[i].Index, bfResult[i].Distance, kdResult[i].Distance)
				}
			}
		}
	}
}

func TestKDTreeFallsBackForNonL2Metric(t *testing.T) {
	data := randomVectors(50, 3, 3)
	ds := FromSlice(data)
	l1, _ := metric.New("l1")
	bf := NewBruteForce(ds, l1)
	kd := NewKDTree(ds, l1, 8)

	q := []float64{1, 2, 3}
	bfResult := bf.KNearest(q, 5)
	kdResult := kd.KNearest(q, 5)
	if len(bfResult) != len(kdResult) {
		t.Fatalf("fallback result length mismatch: bf=%d kd=%d", len(bfResult), len(kdResult))
	}
	for i := range bfResult {
		if bfResult[i].Index != kdResult[i].Index {
			t.Errorf("fallback mismatch at %d: bf=%d kd=%d", i, bfResult[i].Index, kdResult[i].Index)
		}
	}
}

func TestEmptyIndexReturnsEmptyNotError(t *testing.T) {
	ds := FromSlice(nil)
	l2, _ := metric.New("l2")
	for _, idx := range []Index{NewBruteForce(ds, l2), NewKDTree(ds, l2, 8), NewBruteForceParallel(ds, l2, 2)} {
		if got := idx.KNearest([]float64{0, 0, 0}, 5); len(got) != 0 {
			t.Errorf("KNearest on empty index = %v, want empty", got)
		}
		if got := idx.Radius([]float64{0, 0, 0}, 1); len(got) != 0 {
			t.Errorf("Radius on empty index = %v, want empty", got)
		}
	}
}

func TestNonPositiveRadiusReturnsEmpty(t *testing.T) {
	data := randomVectors(10, 3, 4)
	ds := FromSlice(data)
	l2, _ := metric.New("l2")
	kd := NewKDTree(ds, l2, 4)
	if got := kd.Radius(data[0], 0); len(got) != 0 {
		t.Errorf("Radius with r=0 = %v, want empty", got)
	}
	if got := kd.Radius(data[0], -1); len(got) != 0 {
		t.Errorf("Radius with r<0 = %v, want empty", got)
	}
}

func TestSinglePointCloudReturnsThatPoint(t *testing.T) {
	data := [][]float64{{1, 2, 3}}
	ds := FromSlice(data)
	l2, _ := metric.New("l2")
	kd := NewKDTree(ds, l2, 4)
	got := kd.KNearest([]float64{0, 0, 0}, 5)
	if len(got) != 1 || got[0].Index != 0 {
		t.Fatalf("single-point cloud KNearest = %v, want the single point", got)
	}
}

func TestTieBreakingByLowerIndex(t *testing.T) {
	data := [][]float64{{0, 0, 0}, {1, 0, 0}, {1, 0, 0}, {1, 0, 0}}
	ds := FromSlice(data)
	l2, _ := metric.New("l2")
	bf := NewBruteForce(ds, l2)
	got := bf.KNearest([]float64{0, 0, 0}, 4)
	for i := 1; i < len(got)-1; i++ {
		if got[i].Distance == got[i+1].Distance && got[i].Index > got[i+1].Index {
			t.Errorf("tie not broken by lower index: %v", got)
		}
	}
}

func TestBruteForceParallelMatchesSerial(t *testing.T) {
	data := randomVectors(2000, 5, 7)
	ds := FromSlice(data)
	l2, _ := metric.New("l2")
	serial := NewBruteForce(ds, l2)
	parallel := NewBruteForceParallel(ds, l2, 4)

	q := randomVectors(1, 5, 8)[0]
	want := serial.KNearest(q, 15)
	got := parallel.KNearest(q, 15)
	if len(want) != len(got) {
		t.Fatalf("length mismatch: serial=%d parallel=%d", len(want), len(got))
	}
	for i := range want {
		if want[i].Index != got[i].Index {
			t.Errorf("mismatch at %d: serial=%d parallel=%d", i, want[i].Index, got[i].Index)
		}
	}
}
