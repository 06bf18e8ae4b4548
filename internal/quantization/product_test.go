package quantization

import (
	"math/rand"
	"testing"
)

func randomHistograms(n, dim int, seed int64) [][]float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([][]float64, n)
	for i := range out {
		h := make([]float64, dim)
		for d := range h {
			h[d] = r.Float64()
		}
		out[i] = h
	}
	return out
}

func TestProductQuantizerTrain(t *testing.T) {
	q := NewProductQuantizer(4, 4, DefaultConfig())
	histograms := randomHistograms(64, 16, 7)

	if err := q.Train(histograms); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if len(q.codebooks) != 4 {
		t.Errorf("len(codebooks) = %d, want 4", len(q.codebooks))
	}
}

func TestProductQuantizerTrainRejectsIndivisibleDim(t *testing.T) {
	q := NewProductQuantizer(5, 4, DefaultConfig())
	histograms := randomHistograms(32, 16, 3)
	if err := q.Train(histograms); err == nil {
		t.Error("expected an error when dim is not divisible by numSubvectors")
	}
}

func TestProductQuantizerEncodeDecode(t *testing.T) {
	q := NewProductQuantizer(4, 4, DefaultConfig())
	histograms := randomHistograms(64, 16, 11)
	if err := q.Train(histograms); err != nil {
		t.Fatalf("Train: %v", err)
	}

	code := q.Encode(histograms[0])
	if len(code) != 4 {
		t.Errorf("len(code) = %d, want 4", len(code))
	}

	reconstructed := q.Decode(code)
	if len(reconstructed) != 16 {
		t.Errorf("len(reconstructed) = %d, want 16", len(reconstructed))
	}
}

func TestProductQuantizerAsymmetricDistanceMatchesSelf(t *testing.T) {
	q := NewProductQuantizer(4, 4, DefaultConfig())
	histograms := randomHistograms(64, 16, 23)
	if err := q.Train(histograms); err != nil {
		t.Fatalf("Train: %v", err)
	}

	query := histograms[0]
	code := q.Encode(query)

	table := q.ComputeDistanceTable(query)
	dist := q.AsymmetricDistance(table, code)
	if dist < 0 {
		t.Errorf("AsymmetricDistance = %f, want >= 0", dist)
	}
}

func TestProductQuantizerSymmetricDistanceZeroForSameCode(t *testing.T) {
	q := NewProductQuantizer(4, 4, DefaultConfig())
	histograms := randomHistograms(64, 16, 29)
	if err := q.Train(histograms); err != nil {
		t.Fatalf("Train: %v", err)
	}

	code := q.Encode(histograms[0])
	if d := q.SymmetricDistance(code, code); d != 0 {
		t.Errorf("SymmetricDistance(code, code) = %f, want 0", d)
	}
}

func TestProductQuantizerSerializeDeserialize(t *testing.T) {
	q := NewProductQuantizer(4, 4, DefaultConfig())
	histograms := randomHistograms(64, 16, 31)
	if err := q.Train(histograms); err != nil {
		t.Fatalf("Train: %v", err)
	}

	buf := q.Serialize()
	restored := NewProductQuantizer(4, 4, DefaultConfig())
	if err := restored.Deserialize(buf); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	query := histograms[0]
	wantCode := q.Encode(query)
	gotCode := restored.Encode(query)
	for i := range wantCode {
		if wantCode[i] != gotCode[i] {
			t.Errorf("code[%d] = %d, want %d", i, gotCode[i], wantCode[i])
		}
	}
}

func TestProductQuantizerCompressionRatio(t *testing.T) {
	q := NewProductQuantizer(4, 4, DefaultConfig())
	ratio := q.GetCompressionRatio(16)
	if ratio != 32 {
		t.Errorf("GetCompressionRatio(16) = %f, want 32", ratio)
	}
}
