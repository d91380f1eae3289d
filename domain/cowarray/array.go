package cowarray

import (
	"fmt"
	"sync"
	"sync/atomic"

	"audhumla/infra/scdrf"
)

// nextArrayID gives every array a process-unique id. Swap and
// TakeFrom lock two arrays in ascending id order, which makes a
// concurrent reverse swap deadlock-free.
var nextArrayID atomic.Uint64

// Array is a fixed-length copy-on-write array. Reads never block and
// never touch the write mutex; writes serialize on it and publish a
// fresh store with a single pointer swap. The published store is
// never nil, not even after TakeFrom moves the contents away.
type Array[T any] struct {
	id     uint64
	length int

	flag      scdrf.Flag
	published atomic.Pointer[Store[T]]

	mu  sync.Mutex // serializes publishes; readers never take it
	gen atomic.Uint64
}

// New returns an array of n zero values.
func New[T any](n int) *Array[T] {
	if n < 0 {
		panic("cowarray: negative length")
	}
	a := &Array[T]{
		id:     nextArrayID.Add(1),
		length: n,
	}
	a.published.Store(&Store[T]{vals: make([]T, n)})
	return a
}

// NewFrom returns an array holding a copy of vals.
func NewFrom[T any](vals []T) *Array[T] {
	cp := make([]T, len(vals))
	copy(cp, vals)
	a := &Array[T]{
		id:     nextArrayID.Add(1),
		length: len(vals),
	}
	a.published.Store(&Store[T]{vals: cp})
	return a
}

// Len returns the fixed length. Constant for the life of the array.
func (a *Array[T]) Len() int { return a.length }

// IsEmpty reports whether the array has zero elements.
func (a *Array[T]) IsEmpty() bool { return a.length == 0 }

// Gen returns the current publish generation.
func (a *Array[T]) Gen() uint64 { return a.gen.Load() }

// Snapshot returns the currently published store. Lock-free and O(1);
// the store is immutable and survives every later write.
func (a *Array[T]) Snapshot() *Store[T] {
	sec := scdrf.Enter(&a.flag)
	s := a.published.Load()
	sec.Leave()
	return s
}

// Values returns the current snapshot's backing slice. Read-only by
// contract.
func (a *Array[T]) Values() []T { return a.Snapshot().vals }

// At returns element i of the current snapshot. Bounds are the
// runtime's business; see Get for the checked form.
func (a *Array[T]) At(i int) T { return a.Snapshot().vals[i] }

// Get returns element i of the current snapshot, or ErrIndexRange.
func (a *Array[T]) Get(i int) (T, error) {
	s := a.Snapshot()
	if i < 0 || i >= len(s.vals) {
		var zero T
		return zero, fmt.Errorf("%w: %d of %d", ErrIndexRange, i, len(s.vals))
	}
	return s.vals[i], nil
}

// publish stamps the next generation on s and swaps it in.
// Caller holds a.mu; s must not be reachable by anyone else yet.
func (a *Array[T]) publish(s *Store[T]) {
	s.gen = a.gen.Add(1)
	sec := scdrf.Enter(&a.flag)
	a.published.Store(s)
	sec.Leave()
}

// Put replaces element i and publishes the result. The clone is taken
// from the snapshot observed at call time, before the publish lock:
// two concurrent Puts clone the same parent and the later publish
// wins wholesale, losing the earlier one. Use Update when the write
// depends on current contents.
func (a *Array[T]) Put(i int, v T) error {
	if i < 0 || i >= a.length {
		return fmt.Errorf("%w: %d of %d", ErrIndexRange, i, a.length)
	}
	next := a.Snapshot().clone()
	next.vals[i] = v

	a.mu.Lock()
	a.publish(next)
	a.mu.Unlock()
	return nil
}

// Fill publishes a fresh store with every element set to v.
func (a *Array[T]) Fill(v T) {
	vals := make([]T, a.length)
	for i := range vals {
		vals[i] = v
	}
	a.mu.Lock()
	a.publish(&Store[T]{vals: vals})
	a.mu.Unlock()
}

// Update runs fn against a private clone of the current store while
// holding the write mutex, then publishes the clone if fn returns
// nil. Unlike Put, the clone is taken under the lock, so the whole
// read-modify-write is atomic against other writers. fn must not
// retain vals past its return.
func (a *Array[T]) Update(fn func(vals []T) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := a.Snapshot().clone()
	if err := fn(next.vals); err != nil {
		return err
	}
	a.publish(next)
	return nil
}

// CloneStore returns a private mutable copy of the current snapshot,
// for preparing a generation out of line. Publishing it back with
// SetStore is a last-publish-wins write, exactly like Put.
func (a *Array[T]) CloneStore() *Store[T] {
	return a.Snapshot().clone()
}

// SetStore publishes s as the next generation. s must have the
// array's length. Ownership of s passes to the array; the caller
// must not touch it afterwards.
func (a *Array[T]) SetStore(s *Store[T]) error {
	if s.Len() != a.length {
		return fmt.Errorf("%w: got %d, want %d", ErrStoreLen, s.Len(), a.length)
	}
	a.mu.Lock()
	a.publish(s)
	a.mu.Unlock()
	return nil
}

// CopyFrom publishes a copy of src's current snapshot into a.
// Lengths must match. src is only read.
func (a *Array[T]) CopyFrom(src *Array[T]) error {
	if src.Len() != a.length {
		return fmt.Errorf("%w: got %d, want %d", ErrStoreLen, src.Len(), a.length)
	}
	if src == a {
		return nil
	}
	next := src.Snapshot().clone()
	a.mu.Lock()
	a.publish(next)
	a.mu.Unlock()
	return nil
}

// TakeFrom moves src's current contents into a without copying the
// element slice. src is left holding a zeroed store of its own length
// and stays fully usable; its published store is never nil. The
// caller must be src's only writer for the duration.
func (a *Array[T]) TakeFrom(src *Array[T]) error {
	if src.Len() != a.length {
		return fmt.Errorf("%w: got %d, want %d", ErrStoreLen, src.Len(), a.length)
	}
	if src == a {
		return nil
	}
	first, second := a, src
	if first.id > second.id {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	taken := src.published.Load()
	src.publish(&Store[T]{vals: make([]T, src.length)})
	// New header: the taken store stays immutable for its holders.
	a.publish(&Store[T]{vals: taken.vals})
	return nil
}

// Swap exchanges the published contents of a and other without
// copying element slices. Lengths must match. Locks are taken in
// creation-id order, so a concurrent reverse swap cannot deadlock.
// Swapping an array with itself is a no-op.
func (a *Array[T]) Swap(other *Array[T]) error {
	if other.Len() != a.length {
		return fmt.Errorf("%w: got %d, want %d", ErrStoreLen, other.Len(), a.length)
	}
	if other == a {
		return nil
	}
	first, second := a, other
	if first.id > second.id {
		first, second = second, first
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	as := a.published.Load()
	os := other.published.Load()
	a.publish(&Store[T]{vals: os.vals})
	other.publish(&Store[T]{vals: as.vals})
	return nil
}

// Equal reports whether a and b currently hold the same elements.
// Each side is read from one coherent snapshot; the comparison is not
// atomic across both arrays.
func Equal[T comparable](a, b *Array[T]) bool {
	if a == b {
		return true
	}
	as, bs := a.Snapshot(), b.Snapshot()
	if len(as.vals) != len(bs.vals) {
		return false
	}
	for i := range as.vals {
		if as.vals[i] != bs.vals[i] {
			return false
		}
	}
	return true
}
