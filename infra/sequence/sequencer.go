package sequence

import "sync/atomic"

// Sequencer issues strictly monotonic sequence IDs for journal
// records and outbox events. Deterministic and replay-safe.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer starting after a given value.
// Fresh start → start = 0
// After replay → start = last replayed seq
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next sequence ID.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset sets the sequencer to a specific value.
// ONLY used after journal replay.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
