package localclock

import "sync/atomic"

// Snapshotter publishes a Clock value from one writer goroutine (the PTP
// engine) to any number of lock-free readers (the audio callback), using
// the seqlock pattern spec §9 recommends: the writer increments a
// generation counter, writes the fields, then increments again; a reader
// retries until it observes an even, stable generation.
//
// The audio callback never blocks: Load either returns promptly with a
// consistent snapshot or, in the vanishingly rare case it raced a writer,
// retries a few times in a tight loop (no syscalls, no allocation).
type Snapshotter struct {
	generation atomic.Uint64
	value      atomic.Value // holds Clock
}

// NewSnapshotter creates a Snapshotter pre-populated with the given Clock.
func NewSnapshotter(initial Clock) *Snapshotter {
	s := &Snapshotter{}
	s.value.Store(initial)
	return s
}

// Store publishes a new Clock value. Must only be called from the single
// writer (the PTP engine's goroutine).
func (s *Snapshotter) Store(c Clock) {
	s.generation.Add(1) // odd: write in progress
	s.value.Store(c)
	s.generation.Add(1) // even: write complete
}

// Load returns the most recently published Clock. Realtime-safe: no
// syscalls, no allocation, no blocking (it is a bounded spin that only
// ever iterates more than once if it races a concurrent Store).
func (s *Snapshotter) Load() Clock {
	for {
		g1 := s.generation.Load()
		if g1%2 != 0 {
			continue // writer in progress
		}
		c := s.value.Load().(Clock)
		g2 := s.generation.Load()
		if g1 == g2 {
			return c
		}
	}
}
