package snowflake

import (
	"sync"
	"testing"
)

func TestNewNodeRange(t *testing.T) {
	if _, err := NewNode(-1); err == nil {
		t.Fatal("expected error for negative node")
	}
	if _, err := NewNode(maxNode + 1); err == nil {
		t.Fatal("expected error for node above max")
	}
	if _, err := NewNode(0); err != nil {
		t.Fatalf("NewNode(0): %v", err)
	}
}

func TestGenerateMonotonic(t *testing.T) {
	n, err := NewNode(1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	var prev int64
	for i := 0; i < 10000; i++ {
		id := n.Generate()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestGenerateUniqueUnderConcurrency(t *testing.T) {
	n, err := NewNode(1)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}

	const perGoroutine = 2000
	var mu sync.Mutex
	seen := make(map[int64]bool, 8*perGoroutine)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]int64, perGoroutine)
			for i := range ids {
				ids[i] = n.Generate()
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				if seen[id] {
					t.Errorf("duplicate id %d", id)
					return
				}
				seen[id] = true
			}
		}()
	}
	wg.Wait()
}
