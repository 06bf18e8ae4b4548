package pool

import (
	"sync"
	"testing"
)

func TestGetAllocatesWhenEmpty(t *testing.T) {
	calls := 0
	p := New(Config[[]float64]{
		New: func() *[]float64 { calls++; buf := make([]float64, 0, 16); return &buf },
	})
	v := p.Get()
	if v == nil {
		t.Fatal("expected non-nil value")
	}
	if calls != 1 {
		t.Fatalf("expected 1 allocation, got %d", calls)
	}
}

func TestPutGetReusesValue(t *testing.T) {
	calls := 0
	p := New(Config[[]float64]{
		New: func() *[]float64 { calls++; buf := make([]float64, 0, 4); return &buf },
	})
	v1 := p.Get()
	*v1 = append(*v1, 1, 2, 3)
	p.Put(v1)

	v2 := p.Get()
	if calls != 1 {
		t.Fatalf("expected reuse (1 allocation total), got %d", calls)
	}
	if v2 != v1 {
		t.Error("expected Get to return the same pointer Put received")
	}
}

func TestResetClearsValueOnPut(t *testing.T) {
	p := New(Config[[]float64]{
		New:   func() *[]float64 { buf := make([]float64, 0, 4); return &buf },
		Reset: func(v *[]float64) { *v = (*v)[:0] },
	})
	v := p.Get()
	*v = append(*v, 1, 2, 3)
	p.Put(v)

	if len(*v) != 0 {
		t.Errorf("expected Reset to truncate to length 0, got %d", len(*v))
	}
}

func TestMaxCachedDropsExcess(t *testing.T) {
	p := New(Config[int]{
		New:       func() *int { v := 0; return &v },
		MaxCached: 1,
	})
	a := p.Get()
	b := p.Get()
	p.Put(a)
	p.Put(b)
	if got := p.Free(); got != 1 {
		t.Errorf("expected MaxCached=1 to cap the freelist, got %d", got)
	}
}

func TestInitialBlocksPreallocates(t *testing.T) {
	calls := 0
	p := New(Config[int]{
		New:           func() *int { calls++; v := 0; return &v },
		InitialBlocks: 4,
	})
	if calls != 4 {
		t.Fatalf("expected 4 preallocated blocks, got %d", calls)
	}
	if got := p.Free(); got != 4 {
		t.Errorf("expected 4 free blocks, got %d", got)
	}
}

func TestReleaseUnusedEmptiesFreelist(t *testing.T) {
	p := New(Config[int]{New: func() *int { v := 0; return &v }, InitialBlocks: 3})
	p.ReleaseUnused()
	if got := p.Free(); got != 0 {
		t.Errorf("expected empty freelist after ReleaseUnused, got %d", got)
	}
}

func TestConcurrentGetPut(t *testing.T) {
	p := New(Config[[]float64]{
		New: func() *[]float64 { buf := make([]float64, 0, 3); return &buf },
	})
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := p.Get()
			*v = append((*v)[:0], 1, 2, 3)
			p.Put(v)
		}()
	}
	wg.Wait()
}
