package cowarray

// UnsyncView is an unsynchronized window onto the currently published
// store. Set writes in place: no clone, no lock, no new generation.
// Every snapshot already handed out for the current generation sees
// the write, which breaks snapshot immutability for that generation.
// Only safe while the caller is the array's sole user, such as bulk
// load or replay before the array is shared.
type UnsyncView[T any] struct {
	s *Store[T]
}

// Unsync returns a mutable view of the current store. See UnsyncView
// for the narrow conditions under which writing through it is sound.
func (a *Array[T]) Unsync() UnsyncView[T] {
	return UnsyncView[T]{s: a.Snapshot()}
}

// Len returns the view's element count.
func (v UnsyncView[T]) Len() int { return len(v.s.vals) }

// At returns the element at i.
func (v UnsyncView[T]) At(i int) T { return v.s.vals[i] }

// Set writes the element at i in place.
func (v UnsyncView[T]) Set(i int, val T) { v.s.vals[i] = val }

// Values exposes the store's backing slice for bulk writes.
func (v UnsyncView[T]) Values() []T { return v.s.vals }
