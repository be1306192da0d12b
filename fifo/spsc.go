package fifo

import "sync/atomic"

// SPSC is safe for exactly one writer goroutine and one reader goroutine
// running concurrently; both reservation and commit are realtime-safe on
// both sides (spec §4.2).
//
// Go's atomic.Uint64 load/store already carry acquire/release semantics,
// so a committed write's bytes are visible to the reader before the
// reader observes the advanced write cursor, and vice versa for reads.
type SPSC struct {
	id       uint64
	readTS   atomic.Uint64
	writeTS  atomic.Uint64
	capacity int
}

// NewSPSC creates an SPSC FIFO with the given capacity.
func NewSPSC(capacity int) *SPSC {
	validateCapacity(capacity)
	return &SPSC{id: allocFifoID(), capacity: capacity}
}

// Capacity returns the FIFO's capacity.
func (f *SPSC) Capacity() int { return f.capacity }

// Size returns the number of elements currently held.
func (f *SPSC) Size() int {
	return int(f.writeTS.Load() - f.readTS.Load())
}

// Reset discards all contents. Not safe to call concurrently with
// reservations.
func (f *SPSC) Reset() {
	f.readTS.Store(0)
	f.writeTS.Store(0)
}

// Resize changes the capacity, implying a Reset. Not safe to call
// concurrently with reservations.
func (f *SPSC) Resize(capacity int) {
	validateCapacity(capacity)
	f.capacity = capacity
	f.Reset()
}

// ReserveWrite reserves space for n elements. Call only from the single
// producer goroutine.
func (f *SPSC) ReserveWrite(n int) (Lock, bool) {
	if n < 0 {
		return Lock{}, false
	}
	writeTS := f.writeTS.Load()
	readTS := f.readTS.Load()
	if int(writeTS-readTS)+n > f.capacity {
		return Lock{}, false
	}
	pos := computePosition(writeTS, f.capacity, n)
	return newLock(lockKindWrite, pos, uint64(n), f.id), true
}

// CommitWrite publishes the reserved write. Sample bytes written by the
// caller before calling CommitWrite become visible to the reader's next
// ReserveRead/Size observation.
func (f *SPSC) CommitWrite(l *Lock) {
	l.markUsed(lockKindWrite, f.id)
	f.writeTS.Add(l.n)
}

// ReserveRead reserves n elements for reading. Call only from the single
// consumer goroutine.
func (f *SPSC) ReserveRead(n int) (Lock, bool) {
	if n < 0 {
		return Lock{}, false
	}
	readTS := f.readTS.Load()
	writeTS := f.writeTS.Load()
	if int(writeTS-readTS) < n {
		return Lock{}, false
	}
	pos := computePosition(readTS, f.capacity, n)
	return newLock(lockKindRead, pos, uint64(n), f.id), true
}

// CommitRead advances the read cursor, freeing the reserved space for
// reuse by a subsequent write.
func (f *SPSC) CommitRead(l *Lock) {
	l.markUsed(lockKindRead, f.id)
	f.readTS.Add(l.n)
}
