package fifo

import (
	"sync"
	"sync/atomic"
)

// MPSC allows any number of producer goroutines to write (serialized by an
// internal mutex, so writes are not realtime-safe) while a single consumer
// goroutine reads lock-free (spec §4.2).
//
// Producers may commit out of order (goroutine A reserves before B but
// commits after it); the portion visible to the reader only advances past
// a contiguous run of commits starting at the current read point, so a
// reservation dropped without a commit stalls visibility at that point
// without corrupting the buffer — matching "a reservation that is dropped
// without commit leaves the FIFO unchanged" (spec §4.2).
type MPSC struct {
	id        uint64
	mu        sync.Mutex
	claimed   uint64
	completed map[uint64]uint64 // claim start -> size, for out-of-order commits
	published atomic.Uint64     // externally-visible write watermark
	readTS    atomic.Uint64
	capacity  int
}

// NewMPSC creates an MPSC FIFO with the given capacity.
func NewMPSC(capacity int) *MPSC {
	validateCapacity(capacity)
	return &MPSC{id: allocFifoID(), capacity: capacity, completed: make(map[uint64]uint64)}
}

// Capacity returns the FIFO's capacity.
func (f *MPSC) Capacity() int { return f.capacity }

// Size returns the number of elements visible to the reader.
func (f *MPSC) Size() int {
	return int(f.published.Load() - f.readTS.Load())
}

// Reset discards all contents. Not safe to call concurrently with
// reservations.
func (f *MPSC) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimed = 0
	f.completed = make(map[uint64]uint64)
	f.published.Store(0)
	f.readTS.Store(0)
}

// Resize changes the capacity, implying a Reset.
func (f *MPSC) Resize(capacity int) {
	validateCapacity(capacity)
	f.mu.Lock()
	f.capacity = capacity
	f.mu.Unlock()
	f.Reset()
}

// ReserveWrite reserves space for n elements. Safe to call concurrently
// from any number of goroutines; not realtime-safe (takes a mutex).
func (f *MPSC) ReserveWrite(n int) (Lock, bool) {
	if n < 0 {
		return Lock{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(f.claimed-f.readTS.Load())+n > f.capacity {
		return Lock{}, false
	}
	start := f.claimed
	pos := computePosition(start, f.capacity, n)
	f.claimed += uint64(n)
	l := newLock(lockKindWrite, pos, uint64(n), f.id)
	l.claimStart = start
	return l, true
}

// CommitWrite marks the reservation as committed, then advances the
// reader-visible watermark past any now-contiguous run of commits.
func (f *MPSC) CommitWrite(l *Lock) {
	l.markUsed(lockKindWrite, f.id)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[l.claimStart] = l.n
	for {
		pub := f.published.Load()
		sz, ok := f.completed[pub]
		if !ok {
			break
		}
		delete(f.completed, pub)
		f.published.Store(pub + sz)
	}
}

// ReserveRead reserves n elements for reading. Call only from the single
// consumer goroutine; lock-free.
func (f *MPSC) ReserveRead(n int) (Lock, bool) {
	if n < 0 {
		return Lock{}, false
	}
	readTS := f.readTS.Load()
	if int(f.published.Load()-readTS) < n {
		return Lock{}, false
	}
	pos := computePosition(readTS, f.capacity, n)
	return newLock(lockKindRead, pos, uint64(n), f.id), true
}

// CommitRead advances the read cursor.
func (f *MPSC) CommitRead(l *Lock) {
	l.markUsed(lockKindRead, f.id)
	f.readTS.Add(l.n)
}
