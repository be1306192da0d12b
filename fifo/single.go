package fifo

import "sync/atomic"

var nextFifoID atomic.Uint64

func allocFifoID() uint64 { return nextFifoID.Add(1) }

// Single is a FIFO discipline with no synchronization at all: it is safe
// only when reserved and read from the same single thread (spec §4.2,
// "Single: 1 writer, 1 reader, same thread").
type Single struct {
	id       uint64
	readTS   uint64
	writeTS  uint64
	capacity int
}

// NewSingle creates a Single FIFO with the given capacity.
func NewSingle(capacity int) *Single {
	validateCapacity(capacity)
	return &Single{id: allocFifoID(), capacity: capacity}
}

// Capacity returns the FIFO's capacity.
func (f *Single) Capacity() int { return f.capacity }

// Size returns the number of elements currently held.
func (f *Single) Size() int { return int(f.writeTS - f.readTS) }

// Reset discards all contents.
func (f *Single) Reset() { f.readTS = 0; f.writeTS = 0 }

// Resize changes the capacity, implying a Reset.
func (f *Single) Resize(capacity int) {
	validateCapacity(capacity)
	f.capacity = capacity
	f.Reset()
}

// ReserveWrite reserves space for n elements. It fails (ok=false) if
// writeTS-readTS+n would exceed capacity.
func (f *Single) ReserveWrite(n int) (Lock, bool) {
	if n < 0 || f.Size()+n > f.capacity {
		return Lock{}, false
	}
	pos := computePosition(f.writeTS, f.capacity, n)
	return newLock(lockKindWrite, pos, uint64(n), f.id), true
}

// CommitWrite advances the write cursor by the amount reserved in l.
func (f *Single) CommitWrite(l *Lock) {
	l.markUsed(lockKindWrite, f.id)
	f.writeTS += l.n
}

// ReserveRead reserves n elements for reading. It fails if fewer than n
// elements are available.
func (f *Single) ReserveRead(n int) (Lock, bool) {
	if n < 0 || f.Size() < n {
		return Lock{}, false
	}
	pos := computePosition(f.readTS, f.capacity, n)
	return newLock(lockKindRead, pos, uint64(n), f.id), true
}

// CommitRead advances the read cursor by the amount reserved in l.
func (f *Single) CommitRead(l *Lock) {
	l.markUsed(lockKindRead, f.id)
	f.readTS += l.n
}
