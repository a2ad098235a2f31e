package pools

import (
	"sync"
	"testing"
)

func TestGetKeySliceIsEmpty(t *testing.T) {
	kp := NewKeyPools(16, 1024)
	s := kp.GetKeySlice()
	if len(s) != 0 {
		t.Errorf("expected empty slice, got len %d", len(s))
	}
	if cap(s) < 16 {
		t.Errorf("expected capacity >= 16, got %d", cap(s))
	}

	s = append(s, 1, 2, 3)
	kp.ReturnKeySlice(s)

	// sync.Pool may drop the slice, but whatever comes back must be reset.
	again := kp.GetKeySlice()
	if len(again) != 0 {
		t.Errorf("expected reset slice, got len %d", len(again))
	}
}

func TestReturnKeySliceCapacityCap(t *testing.T) {
	kp := NewKeyPools(4, 8)
	kp.ReturnKeySlice(make([]uint32, 0, 64))
	kp.ReturnKeySlice(nil)

	for i := 0; i < 10; i++ {
		s := kp.GetKeySlice()
		if cap(s) > 8 {
			t.Fatalf("oversized slice returned from pool: cap %d", cap(s))
		}
	}
}

func TestKeyPoolsConcurrent(t *testing.T) {
	kp := NewKeyPools(32, 1024)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s := kp.GetKeySlice()
				if len(s) != 0 {
					t.Errorf("goroutine %d: dirty slice len %d", g, len(s))
					return
				}
				s = append(s, uint32(i), uint32(g))
				kp.ReturnKeySlice(s)
			}
		}(g)
	}
	wg.Wait()
}

func BenchmarkKeySlicePool(b *testing.B) {
	kp := NewKeyPools(DefaultKeyCapacity, MaxPooledKeyCapacity)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s := kp.GetKeySlice()
		s = append(s, uint32(i))
		kp.ReturnKeySlice(s)
	}
}
