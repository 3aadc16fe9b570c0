package listview

import (
	"sync"
	"testing"
)

func TestSequencerOnlyLatestWins(t *testing.T) {
	var seq Sequencer
	first := seq.Next()
	second := seq.Next()

	if seq.IsLatest(first) {
		t.Fatal("earlier tag must be stale")
	}
	if !seq.IsLatest(second) {
		t.Fatal("latest tag must be accepted")
	}
}

func TestSequencerConcurrentTagsAreUnique(t *testing.T) {
	var seq Sequencer
	var mu sync.Mutex
	seen := map[uint64]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tag := seq.Next()
				mu.Lock()
				if seen[tag] {
					t.Errorf("duplicate tag %d", tag)
				}
				seen[tag] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if !seq.IsLatest(1000) {
		t.Fatal("expected tag 1000 to be latest")
	}
}
