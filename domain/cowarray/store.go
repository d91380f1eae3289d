package cowarray

// Store is one immutable generation of an Array's contents. Once
// published it is never written again; a store obtained from Snapshot
// stays valid for as long as the caller holds it, regardless of later
// writes to the array.
type Store[T any] struct {
	vals []T
	gen  uint64
}

// Len returns the element count.
func (s *Store[T]) Len() int { return len(s.vals) }

// At returns the element at i. Bounds are the runtime's business.
func (s *Store[T]) At(i int) T { return s.vals[i] }

// Values exposes the backing slice. Read-only by contract: writing
// through it breaks immutability for every holder of this store.
func (s *Store[T]) Values() []T { return s.vals }

// Gen is the publish generation that produced this store. Zero for a
// store that has not been published yet.
func (s *Store[T]) Gen() uint64 { return s.gen }

// clone returns a private mutable copy with an unstamped generation.
func (s *Store[T]) clone() *Store[T] {
	vals := make([]T, len(s.vals))
	copy(vals, s.vals)
	return &Store[T]{vals: vals}
}
