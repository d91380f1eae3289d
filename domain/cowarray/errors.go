package cowarray

import "errors"

var (
	// ErrIndexRange reports an index outside [0, Len).
	ErrIndexRange = errors.New("cowarray: index out of range")

	// ErrStoreLen reports a store or peer array whose length does not
	// match this array's fixed length.
	ErrStoreLen = errors.New("cowarray: store length mismatch")
)
