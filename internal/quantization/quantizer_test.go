package quantization

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.NumIterations != 25 {
		t.Errorf("NumIterations = %d, want 25", cfg.NumIterations)
	}
	if cfg.DistanceMetric != EuclideanDistance {
		t.Errorf("DistanceMetric = %v, want EuclideanDistance", cfg.DistanceMetric)
	}
	if cfg.RandomSeed != 42 {
		t.Errorf("RandomSeed = %d, want 42", cfg.RandomSeed)
	}
}

func TestScalarQuantizerSatisfiesQuantizer(t *testing.T) {
	var _ Quantizer = NewScalarQuantizer()
}

func TestProductQuantizerSatisfiesAsymmetricQuantizer(t *testing.T) {
	var _ AsymmetricQuantizer = NewProductQuantizer(4, 4, nil)
}
