package metric

import (
	"fmt"
	"math"
	"sync"
)

// Registry maps metric names to constructed Metric values, the runtime
// counterpart to static dispatch (spec.md 9). A package-level Default
// registry is pre-populated with every built-in metric; constructing a
// private Registry is supported for tests and for callers that want a
// restricted or extended name space.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// Register adds or replaces the metric under name.
func (r *Registry) Register(name string, m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[name] = m
}

// Lookup returns the metric registered under name, or an error if absent.
func (r *Registry) Lookup(name string) (Metric, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("metric: no metric registered under %q", name)
	}
	return m, nil
}

// Names returns every registered metric name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.metrics))
	for n := range r.metrics {
		names = append(names, n)
	}
	return names
}

func newBuiltin(name string, dist, sqDist Func, traits Traits) funcMetric {
	return funcMetric{name: name, dist: dist, sqDist: sqDist, traits: traits}
}

func squareOf(f Func) Func {
	return func(a, b []float64) float64 {
		d := f(a, b)
		return d * d
	}
}

// Default is the process-wide registry of built-in metrics, the "metric-name
// registry" singleton spec.md 9 calls out — documented here rather than
// hidden, and safe for concurrent lookups from many goroutines.
var Default = func() *Registry {
	r := NewRegistry()
	r.Register("l1", newBuiltin("l1", L1, squareOf(L1), Traits{IsSymmetric: true, MaxValue: math.Inf(1)}))
	r.Register("l2", newBuiltin("l2", L2, L2Squared, Traits{IsSymmetric: true, HasSquaredForm: true, MaxValue: math.Inf(1)}))
	r.Register("linf", newBuiltin("linf", LInf, squareOf(LInf), Traits{IsSymmetric: true, MaxValue: math.Inf(1)}))
	r.Register("chi_squared", newBuiltin("chi_squared", ChiSquared, squareOf(ChiSquared), Traits{IsSymmetric: true, RequiresPositiveValues: true, MaxValue: math.Inf(1)}))
	r.Register("histogram_intersection", newBuiltin("histogram_intersection", HistogramIntersection, squareOf(HistogramIntersection), Traits{IsSymmetric: true, RequiresPositiveValues: true, MinValue: 0, MaxValue: 1}))
	r.Register("bhattacharyya", newBuiltin("bhattacharyya", Bhattacharyya, squareOf(Bhattacharyya), Traits{IsSymmetric: true, RequiresPositiveValues: true, MaxValue: math.Inf(1)}))
	r.Register("hellinger", newBuiltin("hellinger", Hellinger, squareOf(Hellinger), Traits{IsSymmetric: true, RequiresPositiveValues: true, MinValue: 0, MaxValue: 1}))
	r.Register("emd", newBuiltin("emd", EMD, squareOf(EMD), Traits{IsSymmetric: false, RequiresPositiveValues: true, MaxValue: math.Inf(1)}))
	r.Register("kl_divergence", newBuiltin("kl_divergence", KLDivergence, squareOf(KLDivergence), Traits{IsSymmetric: false, RequiresPositiveValues: true, MaxValue: math.Inf(1)}))
	r.Register("jensen_shannon", newBuiltin("jensen_shannon", JensenShannon, squareOf(JensenShannon), Traits{IsSymmetric: true, RequiresPositiveValues: true, MaxValue: math.Inf(1)}))
	r.Register("cosine", newBuiltin("cosine", Cosine, squareOf(Cosine), Traits{IsSymmetric: true, MinValue: 0, MaxValue: 2}))
	r.Register("angular", newBuiltin("angular", Angular, squareOf(Angular), Traits{IsSymmetric: true, MinValue: 0, MaxValue: math.Pi}))
	r.Register("normalized_angular", newBuiltin("normalized_angular", NormalizedAngular, squareOf(NormalizedAngular), Traits{IsSymmetric: true, MinValue: 0, MaxValue: 1}))
	r.Register("pearson", newBuiltin("pearson", PearsonCorrelation, squareOf(PearsonCorrelation), Traits{IsSymmetric: true, MinValue: 0, MaxValue: 2}))
	r.Register("inner_product", newBuiltin("inner_product", InnerProduct, squareOf(InnerProduct), Traits{IsSymmetric: true, MaxValue: math.Inf(1)}))
	return r
}()

// New constructs a built-in metric by name from the Default registry, the
// "factory maps string names to default-constructed metrics" contract of
// spec.md 4.1.
func New(name string) (Metric, error) {
	return Default.Lookup(name)
}
