package session

import (
	"sync"
	"testing"
)

func TestSequenceAllocator_StartsAtOne(t *testing.T) {
	var a SequenceAllocator
	if got := a.Next(); got != 1 {
		t.Fatalf("first identifier: got %d, want 1", got)
	}
	if got := a.Next(); got != 2 {
		t.Fatalf("second identifier: got %d, want 2", got)
	}
	if got := a.Last(); got != 2 {
		t.Fatalf("Last: got %d, want 2", got)
	}
}

func TestSequenceAllocator_ConcurrentNoGapsNoDuplicates(t *testing.T) {
	const workers = 8
	const perWorker = 500

	var a SequenceAllocator
	var wg sync.WaitGroup
	results := make([][]uint64, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ids := make([]uint64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				ids = append(ids, a.Next())
			}
			results[w] = ids
		}(w)
	}
	wg.Wait()

	seen := make(map[uint64]struct{}, workers*perWorker)
	for w, ids := range results {
		prev := uint64(0)
		for _, id := range ids {
			if id <= prev {
				t.Fatalf("worker %d: identifiers not increasing: %d after %d", w, id, prev)
			}
			prev = id
			if _, dup := seen[id]; dup {
				t.Fatalf("duplicate identifier %d", id)
			}
			seen[id] = struct{}{}
		}
	}

	// Gapless: exactly 1..N issued.
	total := uint64(workers * perWorker)
	for id := uint64(1); id <= total; id++ {
		if _, ok := seen[id]; !ok {
			t.Fatalf("gap: identifier %d never issued", id)
		}
	}
	if a.Last() != total {
		t.Fatalf("Last: got %d, want %d", a.Last(), total)
	}
}
