package quantization

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ScalarQuantizer maps each histogram dimension independently onto the int8
// range using a single learned (min, max) scale/offset pair, giving a flat
// 8x reduction (float64 -> int8) with no codebook to store.
type ScalarQuantizer struct {
	dim     int
	min     float32
	max     float32
	scale   float32
	offset  float32
	trained bool
}

// NewScalarQuantizer constructs an untrained ScalarQuantizer.
func NewScalarQuantizer() *ScalarQuantizer {
	return &ScalarQuantizer{}
}

// Train learns the global (min, max) range across every histogram and
// dimension, deriving the scale/offset that maps that range onto [-127, 127].
func (q *ScalarQuantizer) Train(histograms [][]float64) error {
	if len(histograms) == 0 {
		return fmt.Errorf("no histograms to train on")
	}
	q.dim = len(histograms[0])

	minVal := float32(math.MaxFloat32)
	maxVal := float32(-math.MaxFloat32)
	for _, h := range histograms {
		if len(h) != q.dim {
			return fmt.Errorf("histogram dimension mismatch: got %d, want %d", len(h), q.dim)
		}
		for _, v := range h {
			f := float32(v)
			if f < minVal {
				minVal = f
			}
			if f > maxVal {
				maxVal = f
			}
		}
	}

	q.min = minVal
	q.max = maxVal
	valueRange := maxVal - minVal
	if valueRange == 0 {
		valueRange = 1
	}
	q.scale = valueRange / 254.0
	q.offset = minVal + valueRange/2
	q.trained = true
	return nil
}

// Encode quantizes a histogram into one int8 byte per dimension.
func (q *ScalarQuantizer) Encode(histogram []float64) []byte {
	code := make([]byte, len(histogram))
	for i, v := range histogram {
		centered := float32(v) - q.offset
		scaled := centered / q.scale
		if scaled > 127 {
			scaled = 127
		}
		if scaled < -127 {
			scaled = -127
		}
		code[i] = byte(int8(math.Round(float64(scaled))))
	}
	return code
}

// Decode reconstructs an approximate histogram from quantized codes.
func (q *ScalarQuantizer) Decode(code []byte) []float64 {
	histogram := make([]float64, len(code))
	for i, b := range code {
		v := float32(int8(b))*q.scale + q.offset
		histogram[i] = float64(v)
	}
	return histogram
}

// GetCompressionRatio returns the ratio of float64 storage to one quantized
// byte per dimension.
func (q *ScalarQuantizer) GetCompressionRatio(originalDim int) float32 {
	return float32(originalDim*8) / float32(originalDim)
}

// GetMemoryReduction reports the fraction of memory saved versus storing
// the original histogram as float64.
func (q *ScalarQuantizer) GetMemoryReduction() float32 {
	return 1.0 - 1.0/8.0
}

// GetParameters exposes the learned scale/offset/range for serialization.
func (q *ScalarQuantizer) GetParameters() (min, max, scale, offset float32) {
	return q.min, q.max, q.scale, q.offset
}

// SetParameters restores a previously learned scale/offset/range, e.g. after
// deserializing a quantizer trained elsewhere.
func (q *ScalarQuantizer) SetParameters(dim int, min, max, scale, offset float32) {
	q.dim = dim
	q.min = min
	q.max = max
	q.scale = scale
	q.offset = offset
	q.trained = true
}

// Serialize encodes the quantizer's parameters for persistence.
func (q *ScalarQuantizer) Serialize() []byte {
	buf := make([]byte, 4+4*4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(q.dim))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(q.min))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(q.max))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(q.scale))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(q.offset))
	return buf
}

// Deserialize restores a quantizer's parameters from Serialize's output.
func (q *ScalarQuantizer) Deserialize(buf []byte) error {
	if len(buf) < 20 {
		return fmt.Errorf("buffer too short for scalar quantizer parameters: %d bytes", len(buf))
	}
	q.dim = int(binary.LittleEndian.Uint32(buf[0:4]))
	q.min = math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
	q.max = math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12]))
	q.scale = math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16]))
	q.offset = math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20]))
	q.trained = true
	return nil
}

// DistanceInt8 computes the approximate Euclidean distance between two
// quantized codes without decoding either one fully into float32.
func DistanceInt8(a, b []byte, scale float32) float32 {
	var sum float32
	for i := range a {
		diff := (float32(int8(a[i])) - float32(int8(b[i]))) * scale
		sum += diff * diff
	}
	return float32(math.Sqrt(float64(sum)))
}

// DotProductInt8 computes the dot product between two quantized codes,
// rescaled back into the original value range.
func DotProductInt8(a, b []byte, scale, offset float32) float32 {
	var sum float32
	for i := range a {
		va := float32(int8(a[i]))*scale + offset
		vb := float32(int8(b[i]))*scale + offset
		sum += va * vb
	}
	return sum
}
