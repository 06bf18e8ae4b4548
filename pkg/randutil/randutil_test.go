package randutil

import "testing"

func TestIntWithinBounds(t *testing.T) {
	s := New(1)
	for i := 0; i < 1000; i++ {
		v := Int(s, 5, 10)
		if v < 5 || v > 10 {
			t.Fatalf("Int(5,10) = %d out of bounds", v)
		}
	}
}

func TestFloatWithinBounds(t *testing.T) {
	s := New(2)
	for i := 0; i < 1000; i++ {
		v := Float(s, -1.0, 1.0)
		if v < -1.0 || v >= 1.0 {
			t.Fatalf("Float(-1,1) = %v out of bounds", v)
		}
	}
}

func TestSameSeedReproducesSequence(t *testing.T) {
	a := New(7)
	b := New(7)
	for i := 0; i < 10; i++ {
		if Int(a, 0, 1000) != Int(b, 0, 1000) {
			t.Fatal("same seed produced diverging sequences")
		}
	}
}

func TestSampleDistinctAndSubset(t *testing.T) {
	s := New(3)
	population := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	sample := Sample(s, population, 4)
	if len(sample) != 4 {
		t.Fatalf("Sample returned %d elements, want 4", len(sample))
	}
	seen := make(map[int]bool)
	for _, v := range sample {
		if seen[v] {
			t.Fatalf("Sample returned duplicate element %d", v)
		}
		seen[v] = true
	}
}

func TestSamplePanicsWhenKExceedsPopulation(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when k > len(population)")
		}
	}()
	s := New(4)
	Sample(s, []int{1, 2}, 5)
}
