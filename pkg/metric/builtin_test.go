package metric

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float64
		expected float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 0},
		{"unit offset", []float64{0, 0, 0}, []float64{1, 0, 0}, 1},
		{"3-4-5", []float64{0, 0}, []float64{3, 4}, 5},
		{"empty", []float64{}, []float64{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := L2(tt.a, tt.b); !almostEqual(got, tt.expected) {
				t.Errorf("L2(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
			if got := math.Sqrt(L2Squared(tt.a, tt.b)); !almostEqual(got, tt.expected) {
				t.Errorf("sqrt(L2Squared) = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCosineZeroNorm(t *testing.T) {
	if got := Cosine([]float64{0, 0, 0}, []float64{1, 2, 3}); got != 1 {
		t.Errorf("Cosine with zero-norm input = %v, want defined maximum 1", got)
	}
}

func TestAngularZeroNorm(t *testing.T) {
	if got := Angular([]float64{0, 0, 0}, []float64{1, 2, 3}); got != math.Pi {
		t.Errorf("Angular with zero-norm input = %v, want defined maximum pi", got)
	}
}

func TestKLDivergenceInfinity(t *testing.T) {
	p := []float64{1, 0}
	q := []float64{0, 1}
	if got := KLDivergence(p, q); !math.IsInf(got, 1) {
		t.Errorf("KLDivergence(p, q) with q=0,p>0 = %v, want +Inf", got)
	}
}

func TestHistogramMassBelowEpsilon(t *testing.T) {
	zero := []float64{0, 0, 0}
	nonzero := []float64{1, 2, 3}
	for _, m := range []struct {
		name string
		fn   Func
	}{
		{"bhattacharyya", Bhattacharyya},
		{"hellinger", Hellinger},
	} {
		if got := m.fn(zero, nonzero); got != 1 {
			t.Errorf("%s with near-empty histogram = %v, want defined maximum 1", m.name, got)
		}
	}
}

func TestSymmetry(t *testing.T) {
	a := []float64{1, 5, 2, 9}
	b := []float64{3, 1, 7, 4}
	symmetric := []Func{L1, L2, LInf, ChiSquared, HistogramIntersection, Bhattacharyya, Hellinger, Cosine, Angular, PearsonCorrelation}
	for _, f := range symmetric {
		if !almostEqual(f(a, b), f(b, a)) {
			t.Errorf("metric expected symmetric: f(a,b)=%v f(b,a)=%v", f(a, b), f(b, a))
		}
	}
}

func TestIdentityIsZero(t *testing.T) {
	a := []float64{1, 5, 2, 9}
	for _, f := range []Func{L1, L2, LInf, ChiSquared, HistogramIntersection, Bhattacharyya, Hellinger, EMD, Cosine, Angular} {
		if got := f(a, a); !almostEqual(got, 0) {
			t.Errorf("f(x, x) = %v, want 0", got)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	for _, name := range []string{"l1", "l2", "linf", "cosine", "angular", "chi_squared"} {
		if _, err := New(name); err != nil {
			t.Errorf("New(%q) returned error: %v", name, err)
		}
	}
	if _, err := New("does-not-exist"); err == nil {
		t.Errorf("New(unknown) expected an error")
	}
}

func TestWeightedSumNormalises(t *testing.T) {
	l2, _ := New("l2")
	l1, _ := New("l1")
	m, err := NewWeightedSum("mix", Weighted{Metric: l2, Weight: 3}, Weighted{Metric: l1, Weight: 1})
	if err != nil {
		t.Fatalf("NewWeightedSum: %v", err)
	}
	a := []float64{0, 0}
	b := []float64{3, 4}
	want := 0.75*l2.Distance(a, b) + 0.25*l1.Distance(a, b)
	if got := m.Distance(a, b); !almostEqual(got, want) {
		t.Errorf("weighted sum = %v, want %v", got, want)
	}
}
