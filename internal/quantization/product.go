package quantization

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ProductQuantizer splits each histogram into numSubvectors contiguous
// chunks and k-means-codes each chunk independently against its own
// codebook, trading reconstruction fidelity for compression far beyond what
// ScalarQuantizer can reach: a histogram of dim D becomes numSubvectors
// bytes, one codebook index per chunk.
type ProductQuantizer struct {
	dim           int
	numSubvectors int
	subvectorDim  int
	bitsPerCode   int
	numCentroids  int
	codebooks     [][][]float32 // [subvector][centroid][subvectorDim]
	config        *QuantizationConfig
	trained       bool
}

// NewProductQuantizer constructs a quantizer that splits each histogram
// into numSubvectors chunks, each coded against 2^bitsPerCode centroids.
func NewProductQuantizer(numSubvectors, bitsPerCode int, config *QuantizationConfig) *ProductQuantizer {
	if config == nil {
		config = DefaultConfig()
	}
	return &ProductQuantizer{
		numSubvectors: numSubvectors,
		bitsPerCode:   bitsPerCode,
		numCentroids:  1 << uint(bitsPerCode),
		config:        config,
	}
}

// Train splits every histogram into subvectors and runs k-means++ per
// subvector to build that subvector's codebook.
func (q *ProductQuantizer) Train(histograms [][]float64) error {
	if len(histograms) == 0 {
		return fmt.Errorf("no histograms to train on")
	}
	q.dim = len(histograms[0])
	if q.dim%q.numSubvectors != 0 {
		return fmt.Errorf("histogram dimension %d not divisible by %d subvectors", q.dim, q.numSubvectors)
	}
	q.subvectorDim = q.dim / q.numSubvectors

	working := make([][]float32, len(histograms))
	for i, h := range histograms {
		if len(h) != q.dim {
			return fmt.Errorf("histogram dimension mismatch: got %d, want %d", len(h), q.dim)
		}
		working[i] = toFloat32(h)
	}

	q.codebooks = make([][][]float32, q.numSubvectors)
	for sub := 0; sub < q.numSubvectors; sub++ {
		start := sub * q.subvectorDim
		end := start + q.subvectorDim

		subvectors := make([][]float32, len(working))
		for i, vec := range working {
			subvectors[i] = vec[start:end]
		}

		numCentroids := q.numCentroids
		if numCentroids > len(subvectors) {
			numCentroids = len(subvectors)
		}
		centroids, err := KMeansPlusPlus(subvectors, numCentroids, q.config)
		if err != nil {
			return fmt.Errorf("training subvector %d codebook: %w", sub, err)
		}
		q.codebooks[sub] = centroids
	}

	q.trained = true
	return nil
}

// Encode assigns each subvector to its nearest centroid, producing one
// codebook index per subvector.
func (q *ProductQuantizer) Encode(histogram []float64) []byte {
	working := toFloat32(histogram)
	code := make([]byte, q.numSubvectors)

	for sub := 0; sub < q.numSubvectors; sub++ {
		start := sub * q.subvectorDim
		end := start + q.subvectorDim
		subvec := working[start:end]

		best := 0
		bestDist := float32(math.MaxFloat32)
		for c, centroid := range q.codebooks[sub] {
			dist := distanceFloat32(q.config.DistanceMetric, subvec, centroid)
			if dist < bestDist {
				bestDist = dist
				best = c
			}
		}
		code[sub] = byte(best)
	}
	return code
}

// Decode reconstructs a histogram by concatenating each subvector's
// assigned centroid.
func (q *ProductQuantizer) Decode(code []byte) []float64 {
	working := make([]float32, q.dim)
	for sub, idx := range code {
		start := sub * q.subvectorDim
		copy(working[start:start+q.subvectorDim], q.codebooks[sub][idx])
	}
	return toFloat64(working)
}

// GetCompressionRatio returns the ratio of float64 storage to the encoded
// numSubvectors-byte code.
func (q *ProductQuantizer) GetCompressionRatio(originalDim int) float32 {
	return float32(originalDim*8) / float32(q.numSubvectors)
}

// GetMemoryUsage returns the total bytes the trained codebooks occupy.
func (q *ProductQuantizer) GetMemoryUsage() int {
	total := 0
	for _, codebook := range q.codebooks {
		for _, centroid := range codebook {
			total += len(centroid) * 4
		}
	}
	return total
}

// DistanceTable is the precomputed per-subvector, per-centroid distance
// a query histogram has to every codebook entry, enabling asymmetric
// distance computation without decoding candidates.
type DistanceTable struct {
	distances [][]float32 // [subvector][centroid]
}

// ComputeDistanceTable precomputes a query's distance to every centroid in
// every subvector's codebook.
func (q *ProductQuantizer) ComputeDistanceTable(query []float64) interface{} {
	working := toFloat32(query)
	table := &DistanceTable{distances: make([][]float32, q.numSubvectors)}

	for sub := 0; sub < q.numSubvectors; sub++ {
		start := sub * q.subvectorDim
		end := start + q.subvectorDim
		subvec := working[start:end]

		table.distances[sub] = make([]float32, len(q.codebooks[sub]))
		for c, centroid := range q.codebooks[sub] {
			table.distances[sub][c] = distanceFloat32(q.config.DistanceMetric, subvec, centroid)
		}
	}
	return table
}

// AsymmetricDistance sums the precomputed per-subvector distances for an
// encoded candidate's codebook indices.
func (q *ProductQuantizer) AsymmetricDistance(distTable interface{}, code []byte) float32 {
	table, ok := distTable.(*DistanceTable)
	if !ok {
		return float32(math.MaxFloat32)
	}
	var sum float32
	for sub, idx := range code {
		sum += table.distances[sub][idx]
	}
	return sum
}

// SymmetricDistance combines subvector-wise distances between two encoded
// candidates via their shared codebooks (decode both subvectors, compare):
// it returns the square root of the sum of the squared subvector distances.
func (q *ProductQuantizer) SymmetricDistance(codeA, codeB []byte) float32 {
	var sum float32
	for sub := range codeA {
		ca := q.codebooks[sub][codeA[sub]]
		cb := q.codebooks[sub][codeB[sub]]
		d := distanceFloat32(q.config.DistanceMetric, ca, cb)
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// Serialize encodes the trained codebooks for persistence.
func (q *ProductQuantizer) Serialize() []byte {
	header := make([]byte, 16)
	binary.LittleEndian.PutUint32(header[0:4], uint32(q.dim))
	binary.LittleEndian.PutUint32(header[4:8], uint32(q.numSubvectors))
	binary.LittleEndian.PutUint32(header[8:12], uint32(q.subvectorDim))
	binary.LittleEndian.PutUint32(header[12:16], uint32(q.numCentroids))

	buf := header
	for _, codebook := range q.codebooks {
		for _, centroid := range codebook {
			for _, v := range centroid {
				b := make([]byte, 4)
				binary.LittleEndian.PutUint32(b, math.Float32bits(v))
				buf = append(buf, b...)
			}
		}
	}
	return buf
}

// Deserialize restores a trained set of codebooks from Serialize's output.
func (q *ProductQuantizer) Deserialize(buf []byte) error {
	if len(buf) < 16 {
		return fmt.Errorf("buffer too short for product quantizer header: %d bytes", len(buf))
	}
	q.dim = int(binary.LittleEndian.Uint32(buf[0:4]))
	q.numSubvectors = int(binary.LittleEndian.Uint32(buf[4:8]))
	q.subvectorDim = int(binary.LittleEndian.Uint32(buf[8:12]))
	q.numCentroids = int(binary.LittleEndian.Uint32(buf[12:16]))

	offset := 16
	q.codebooks = make([][][]float32, q.numSubvectors)
	for sub := 0; sub < q.numSubvectors; sub++ {
		q.codebooks[sub] = make([][]float32, q.numCentroids)
		for c := 0; c < q.numCentroids; c++ {
			centroid := make([]float32, q.subvectorDim)
			for d := 0; d < q.subvectorDim; d++ {
				if offset+4 > len(buf) {
					return fmt.Errorf("buffer truncated while reading codebooks")
				}
				centroid[d] = math.Float32frombits(binary.LittleEndian.Uint32(buf[offset : offset+4]))
				offset += 4
			}
			q.codebooks[sub][c] = centroid
		}
	}
	q.trained = true
	return nil
}
