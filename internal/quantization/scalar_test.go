package quantization

import (
	"math"
	"math/rand"
	"testing"
)

func TestScalarQuantizerTrain(t *testing.T) {
	q := NewScalarQuantizer()

	histograms := [][]float64{
		{0.0, 0.5, 1.0},
		{0.2, 0.6, 0.8},
		{0.1, 0.4, 0.9},
	}

	if err := q.Train(histograms); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if q.min >= q.max {
		t.Errorf("invalid min/max: min=%f, max=%f", q.min, q.max)
	}
}

func TestScalarQuantizerTrainRejectsEmpty(t *testing.T) {
	q := NewScalarQuantizer()
	if err := q.Train(nil); err == nil {
		t.Error("expected an error training on no histograms")
	}
}

func TestScalarQuantizerEncode(t *testing.T) {
	q := NewScalarQuantizer()
	histograms := [][]float64{
		{0.0, 0.5, 1.0},
		{0.2, 0.6, 0.8},
	}
	if err := q.Train(histograms); err != nil {
		t.Fatalf("Train: %v", err)
	}

	code := q.Encode([]float64{0.1, 0.55, 0.9})
	if len(code) != 3 {
		t.Errorf("len(code) = %d, want 3", len(code))
	}
}

func TestScalarQuantizerRoundTrip(t *testing.T) {
	q := NewScalarQuantizer()

	r := rand.New(rand.NewSource(1))
	histograms := make([][]float64, 50)
	for i := range histograms {
		h := make([]float64, 16)
		for d := range h {
			h[d] = r.Float64()
		}
		histograms[i] = h
	}
	if err := q.Train(histograms); err != nil {
		t.Fatalf("Train: %v", err)
	}

	original := histograms[0]
	code := q.Encode(original)
	reconstructed := q.Decode(code)

	for i := range original {
		diff := math.Abs(original[i] - reconstructed[i])
		if diff > 0.05 {
			t.Errorf("dimension %d: original=%f, reconstructed=%f, diff=%f", i, original[i], reconstructed[i], diff)
		}
	}
}

func TestScalarQuantizerSerializeDeserialize(t *testing.T) {
	q := NewScalarQuantizer()
	histograms := [][]float64{{0.0, 1.0}, {0.5, 0.25}}
	if err := q.Train(histograms); err != nil {
		t.Fatalf("Train: %v", err)
	}

	buf := q.Serialize()
	restored := NewScalarQuantizer()
	if err := restored.Deserialize(buf); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if restored.min != q.min || restored.max != q.max || restored.scale != q.scale || restored.offset != q.offset {
		t.Error("deserialized parameters do not match the original")
	}
}

func TestScalarQuantizerDeserializeRejectsShortBuffer(t *testing.T) {
	q := NewScalarQuantizer()
	if err := q.Deserialize([]byte{1, 2, 3}); err == nil {
		t.Error("expected an error deserializing a truncated buffer")
	}
}

func TestDistanceInt8(t *testing.T) {
	a := []byte{10, 20, 30}
	b := []byte{10, 20, 30}
	if d := DistanceInt8(a, b, 0.1); d != 0 {
		t.Errorf("DistanceInt8 for identical codes = %f, want 0", d)
	}

	c := []byte{byte(int8(0)), byte(int8(0)), byte(int8(0))}
	if d := DistanceInt8(a, c, 0.1); d <= 0 {
		t.Errorf("DistanceInt8 for differing codes = %f, want > 0", d)
	}
}
