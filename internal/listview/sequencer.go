package listview

import "sync/atomic"

// Sequencer tags requests so only the most recent response is applied.
type Sequencer struct {
	last atomic.Uint64
}

// Next issues a new tag; every earlier tag becomes stale.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

func (s *Sequencer) IsLatest(tag uint64) bool {
	return s.last.Load() == tag
}
