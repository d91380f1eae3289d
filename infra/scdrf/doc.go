// Package scdrf implements a sequentially consistent, data-race-free
// critical section: a pair of atomic operations on a shared Flag that
// orders the ordinary memory accesses around them.
//
// Enter performs a sequentially consistent load of the flag, Leave a
// sequentially consistent store of the value Enter observed. The flag's
// value never matters; only the ordering effect of the pair does. Every
// sync/atomic operation is sequentially consistent under the Go memory
// model, so when one goroutine's Leave is observed by another
// goroutine's Enter on the same Flag, everything the first goroutine
// wrote before Leave is visible after Enter.
//
// The section provides ordering, NOT mutual exclusion. Writers that
// need exclusion serialize on their own mutex; readers never block.
//
// The Go memory model gives racing plain loads and stores no defined
// meaning, even between sequentially consistent operations on another
// location. State published under a scdrf section must therefore
// itself be accessed through sync/atomic; the section orders the
// surrounding writes, the atomic carries the pointer.
package scdrf
