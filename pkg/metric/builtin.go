package metric

import "math"

// L2 returns the Euclidean distance between a and b.
func L2(a, b []float64) float64 {
	return math.Sqrt(L2Squared(a, b))
}

// L2Squared returns the squared Euclidean distance between a and b, skipping
// the sqrt L2 pays for.
func L2Squared(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// L1 returns the Manhattan (L1) distance between a and b.
func L1(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

// LInf returns the Chebyshev (L-infinity) distance between a and b.
func LInf(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	var max float64
	for i := range a {
		d := math.Abs(a[i] - b[i])
		if d > max {
			max = d
		}
	}
	return max
}

// Lp returns the general p-norm distance between a and b for a runtime p.
// p == 1 and p == 2 special-case to the cheaper L1/L2 forms.
func Lp(p float64) Func {
	switch p {
	case 1:
		return L1
	case 2:
		return L2
	default:
		return func(a, b []float64) float64 {
			if len(a) == 0 {
				return 0
			}
			var sum float64
			for i := range a {
				sum += math.Pow(math.Abs(a[i]-b[i]), p)
			}
			return math.Pow(sum, 1/p)
		}
	}
}

// epsilon is the tolerance below which a histogram's total mass, or a
// vector's norm, is treated as zero for the purposes of the numerical edge
// cases spec.md 4.1 requires (zero-norm cosine/angular, near-empty
// histograms).
const epsilon = 1e-12

// ChiSquared returns the chi-squared distance between two histograms,
// including the conventional 1/2 factor.
func ChiSquared(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		denom := a[i] + b[i]
		if denom > epsilon {
			d := a[i] - b[i]
			sum += (d * d) / denom
		}
	}
	return sum * 0.5
}

// HistogramIntersection returns 1 minus the normalised intersection of two
// non-negative histograms (0 = identical, 1 = disjoint).
func HistogramIntersection(a, b []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	var inter, sumA, sumB float64
	for i := range a {
		if m := math.Min(a[i], b[i]); m > 0 {
			inter += m
		}
		sumA += a[i]
		sumB += b[i]
	}
	maxSum := math.Max(sumA, sumB)
	if maxSum < epsilon {
		return 0
	}
	return 1 - inter/maxSum
}

// Bhattacharyya returns the Bhattacharyya distance between two histograms
// normalised to probability distributions. Histograms whose total mass is
// below epsilon are defined to have maximum distance (1) to any partner.
func Bhattacharyya(a, b []float64) float64 {
	sumA, sumB := sum(a), sum(b)
	if sumA < epsilon || sumB < epsilon {
		return 1
	}
	var bc float64
	for i := range a {
		bc += math.Sqrt((a[i] / sumA) * (b[i] / sumB))
	}
	switch {
	case bc >= 1:
		return 0
	case bc <= 0:
		return math.Inf(1)
	default:
		return -math.Log(bc)
	}
}

// Hellinger returns the Hellinger distance between two histograms.
func Hellinger(a, b []float64) float64 {
	sumA, sumB := sum(a), sum(b)
	if sumA < epsilon || sumB < epsilon {
		return 1
	}
	var acc float64
	for i := range a {
		sa := math.Sqrt(a[i] / sumA)
		sb := math.Sqrt(b[i] / sumB)
		d := sa - sb
		acc += d * d
	}
	return math.Sqrt(acc / 2)
}

// EMD returns the 1-D Earth Mover's Distance between two histograms via the
// cumulative-difference form (sum of |CDF_a - CDF_b|).
func EMD(a, b []float64) float64 {
	sumA, sumB := sum(a), sum(b)
	if sumA < epsilon || sumB < epsilon {
		return float64(len(a))
	}
	var emd, cumA, cumB float64
	for i := range a {
		cumA += a[i] / sumA
		cumB += b[i] / sumB
		emd += math.Abs(cumA - cumB)
	}
	return emd
}

// KLDivergence returns the (asymmetric) Kullback-Leibler divergence D(a||b).
// Returns +Inf when q = 0 and p > 0, per spec.md 4.1's numerical edge cases.
func KLDivergence(a, b []float64) float64 {
	sumA, sumB := sum(a), sum(b)
	if sumA < epsilon {
		return math.Inf(1)
	}
	var kl float64
	for i := range a {
		p := a[i] / sumA
		var q float64
		if sumB > epsilon {
			q = b[i] / sumB
		}
		if p > epsilon {
			if q < epsilon {
				return math.Inf(1)
			}
			kl += p * math.Log(p/q)
		}
	}
	return kl
}

// JensenShannon returns the symmetric Jensen-Shannon divergence, the average
// of D(a||m) and D(b||m) where m is the mixture distribution.
func JensenShannon(a, b []float64) float64 {
	sumA, sumB := sum(a), sum(b)
	if sumA < epsilon && sumB < epsilon {
		return 0
	}
	m := make([]float64, len(a))
	pa := make([]float64, len(a))
	pb := make([]float64, len(a))
	for i := range a {
		if sumA > epsilon {
			pa[i] = a[i] / sumA
		}
		if sumB > epsilon {
			pb[i] = b[i] / sumB
		}
		m[i] = 0.5 * (pa[i] + pb[i])
	}
	return 0.5*klNormalized(pa, m) + 0.5*klNormalized(pb, m)
}

// klNormalized computes KL divergence between two already-normalised
// distributions p and q, used internally by JensenShannon.
func klNormalized(p, q []float64) float64 {
	var kl float64
	for i := range p {
		if p[i] > epsilon {
			if q[i] < epsilon {
				return math.Inf(1)
			}
			kl += p[i] * math.Log(p[i]/q[i])
		}
	}
	return kl
}

// Cosine returns 1 - cos(theta) between a and b. Zero-norm input returns the
// documented maximum distance of 1.
func Cosine(a, b []float64) float64 {
	cos, ok := cosineSimilarity(a, b)
	if !ok {
		return 1
	}
	return 1 - cos
}

// Angular returns acos(cos(theta)) in radians, clamped to [0, pi]. Zero-norm
// input returns the documented maximum of pi.
func Angular(a, b []float64) float64 {
	cos, ok := cosineSimilarity(a, b)
	if !ok {
		return math.Pi
	}
	return math.Acos(clamp(cos, -1, 1))
}

// NormalizedAngular returns Angular(a, b) / pi, in [0, 1].
func NormalizedAngular(a, b []float64) float64 {
	return Angular(a, b) / math.Pi
}

// PearsonCorrelation returns 1 - Pearson correlation coefficient between a
// and b, a distance in [0, 2].
func PearsonCorrelation(a, b []float64) float64 {
	n := float64(len(a))
	if n == 0 {
		return 0
	}
	meanA, meanB := sum(a)/n, sum(b)/n
	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	denom := math.Sqrt(varA * varB)
	if denom < epsilon {
		return 1
	}
	return 1 - cov/denom
}

// InnerProduct returns the negative dot product, so that higher similarity
// maps to lower distance (used by nearest-neighbour searches that otherwise
// minimise distance).
func InnerProduct(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return -sum
}

func cosineSimilarity(a, b []float64) (cos float64, ok bool) {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na < epsilon || nb < epsilon {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}
