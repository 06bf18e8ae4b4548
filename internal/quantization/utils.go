package quantization

import (
	"fmt"
	"math"
	"math/rand"
)

// EuclideanDistanceFloat32 computes Euclidean distance between two float32
// vectors (the codebook/centroid working precision).
func EuclideanDistanceFloat32(a, b []float32) float32 {
	var sum float32
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return float32(math.Sqrt(float64(sum)))
}

// CosineDistanceFloat32 computes cosine distance (1 - cosine similarity).
func CosineDistanceFloat32(a, b []float32) float32 {
	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	normA = float32(math.Sqrt(float64(normA)))
	normB = float32(math.Sqrt(float64(normB)))
	if normA == 0 || normB == 0 {
		return 1.0
	}
	return 1.0 - dotProduct/(normA*normB)
}

// DotProductFloat32 computes the dot product of two float32 vectors.
func DotProductFloat32(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// toFloat32 converts a histogram from the descriptor package's native
// float64 to the quantizer's working float32 precision.
func toFloat32(h []float64) []float32 {
	out := make([]float32, len(h))
	for i, v := range h {
		out[i] = float32(v)
	}
	return out
}

// toFloat64 converts a decoded float32 histogram back to float64 for
// callers expecting a cloud.Signature-compatible histogram.
func toFloat64(h []float32) []float64 {
	out := make([]float64, len(h))
	for i, v := range h {
		out[i] = float64(v)
	}
	return out
}

// KMeansPlusPlus clusters vectors into k centroids using k-means++
// initialisation followed by standard Lloyd iterations.
func KMeansPlusPlus(vectors [][]float32, k int, config *QuantizationConfig) ([][]float32, error) {
	if len(vectors) < k {
		return nil, fmt.Errorf("not enough vectors (%d) for %d clusters", len(vectors), k)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("empty vectors")
	}

	dim := len(vectors[0])
	centroids := make([][]float32, k)
	r := rand.New(rand.NewSource(config.RandomSeed))

	firstIdx := r.Intn(len(vectors))
	centroids[0] = make([]float32, dim)
	copy(centroids[0], vectors[firstIdx])

	for c := 1; c < k; c++ {
		distances := make([]float32, len(vectors))
		var totalDist float32

		for i, vec := range vectors {
			minDist := float32(math.MaxFloat32)
			for j := 0; j < c; j++ {
				dist := distanceFloat32(config.DistanceMetric, vec, centroids[j])
				if dist < minDist {
					minDist = dist
				}
			}
			distances[i] = minDist * minDist
			totalDist += distances[i]
		}

		if totalDist > 0 {
			target := r.Float32() * totalDist
			var cumulative float32
			for i, dist := range distances {
				cumulative += dist
				if cumulative >= target {
					centroids[c] = make([]float32, dim)
					copy(centroids[c], vectors[i])
					break
				}
			}
		} else {
			idx := r.Intn(len(vectors))
			centroids[c] = make([]float32, dim)
			copy(centroids[c], vectors[idx])
		}
	}

	for iter := 0; iter < config.NumIterations; iter++ {
		clusters := make([][][]float32, k)
		for _, vec := range vectors {
			minDist := float32(math.MaxFloat32)
			minCluster := 0
			for c, centroid := range centroids {
				dist := distanceFloat32(config.DistanceMetric, vec, centroid)
				if dist < minDist {
					minDist = dist
					minCluster = c
				}
			}
			clusters[minCluster] = append(clusters[minCluster], vec)
		}

		converged := true
		for c := range centroids {
			if len(clusters[c]) == 0 {
				continue
			}
			newCentroid := make([]float32, dim)
			for _, vec := range clusters[c] {
				for d := 0; d < dim; d++ {
					newCentroid[d] += vec[d]
				}
			}
			for d := 0; d < dim; d++ {
				newCentroid[d] /= float32(len(clusters[c]))
			}
			if EuclideanDistanceFloat32(centroids[c], newCentroid) > 1e-6 {
				converged = false
			}
			centroids[c] = newCentroid
		}

		if converged {
			if config.Verbose {
				fmt.Printf("k-means converged at iteration %d\n", iter)
			}
			break
		}
	}

	return centroids, nil
}

func distanceFloat32(metric DistanceMetric, a, b []float32) float32 {
	switch metric {
	case CosineDistance:
		return CosineDistanceFloat32(a, b)
	case DotProductDistance:
		return -DotProductFloat32(a, b)
	default:
		return EuclideanDistanceFloat32(a, b)
	}
}
