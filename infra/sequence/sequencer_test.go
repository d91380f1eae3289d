package sequence

import (
	"sync"
	"testing"
)

func TestMonotonic(t *testing.T) {
	s := New(0)
	for want := uint64(1); want <= 100; want++ {
		if got := s.Next(); got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}
	if s.Current() != 100 {
		t.Errorf("Current() = %d, want 100", s.Current())
	}
}

func TestResetAfterReplay(t *testing.T) {
	s := New(0)
	s.Reset(41)
	if got := s.Next(); got != 42 {
		t.Errorf("Next() after Reset(41) = %d, want 42", got)
	}
}

func TestConcurrentNextUnique(t *testing.T) {
	s := New(0)
	const goroutines, perG = 8, 1000

	var mu sync.Mutex
	seen := make(map[uint64]bool, goroutines*perG)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]uint64, 0, perG)
			for i := 0; i < perG; i++ {
				ids = append(ids, s.Next())
			}
			mu.Lock()
			for _, id := range ids {
				if seen[id] {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if s.Current() != goroutines*perG {
		t.Errorf("Current() = %d, want %d", s.Current(), goroutines*perG)
	}
}
