package metric

import "fmt"

// Weighted is a named (metric, weight) pair fed to NewWeightedSum.
type Weighted struct {
	Metric Metric
	Weight float64
}

// weightedSum composes several metrics into one via a normalised weighted
// sum (spec.md 4.1, "weighted sum of metrics").
type weightedSum struct {
	name    string
	parts   []Weighted
}

// NewWeightedSum returns a Metric whose distance is the weighted sum of the
// component metrics' distances, with weights renormalised to sum to 1.
func NewWeightedSum(name string, parts ...Weighted) (Metric, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("metric: weighted sum requires at least one component")
	}
	var total float64
	for _, p := range parts {
		total += p.Weight
	}
	if total <= 0 {
		return nil, fmt.Errorf("metric: weighted sum weights must sum to a positive value")
	}
	normalised := make([]Weighted, len(parts))
	for i, p := range parts {
		normalised[i] = Weighted{Metric: p.Metric, Weight: p.Weight / total}
	}
	return weightedSum{name: name, parts: normalised}, nil
}

func (w weightedSum) Distance(a, b []float64) float64 {
	var sum float64
	for _, p := range w.parts {
		sum += p.Weight * p.Metric.Distance(a, b)
	}
	return sum
}

func (w weightedSum) SquaredDistance(a, b []float64) float64 {
	d := w.Distance(a, b)
	return d * d
}

func (w weightedSum) Name() string { return w.name }

// scaled applies a per-dimension weight vector before delegating to an
// inner metric, spec.md 4.1's "per-dimension-scaled metric".
type scaled struct {
	name   string
	inner  Metric
	scales []float64
}

// NewScaled returns a Metric that scales each dimension of a and b by
// scales before computing inner's distance.
func NewScaled(name string, inner Metric, scales []float64) Metric {
	return scaled{name: name, inner: inner, scales: scales}
}

func (s scaled) apply(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		sc := 1.0
		if i < len(s.scales) {
			sc = s.scales[i]
		}
		out[i] = v[i] * sc
	}
	return out
}

func (s scaled) Distance(a, b []float64) float64 {
	return s.inner.Distance(s.apply(a), s.apply(b))
}

func (s scaled) SquaredDistance(a, b []float64) float64 {
	return s.inner.SquaredDistance(s.apply(a), s.apply(b))
}

func (s scaled) Name() string { return s.name }

// Lambda adapts a user-supplied distance function into a Metric, spec.md
// 4.1's "user-supplied lambda metric" extension point.
type Lambda struct {
	LambdaName string
	Fn         Func
}

func (l Lambda) Distance(a, b []float64) float64 {
	return l.Fn(a, b)
}

func (l Lambda) SquaredDistance(a, b []float64) float64 {
	d := l.Fn(a, b)
	return d * d
}

func (l Lambda) Name() string { return l.LambdaName }
