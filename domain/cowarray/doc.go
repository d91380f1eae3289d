// Package cowarray provides a fixed-length, copy-on-write array with
// lock-free snapshot reads and serialized writes.
//
// An Array never mutates its published contents. Every write clones
// the current store, edits the clone, and publishes it with one
// atomic pointer swap inside an scdrf critical section. Readers load
// the pointer inside the same kind of section and get an immutable
// Store that stays valid for as long as they hold it; the garbage
// collector reclaims old generations once the last holder drops them.
//
// Guarantee boundary: reads are atomic per whole snapshot, writes are
// atomic per whole publish. Two concurrent Put calls clone the same
// parent store and the later publish wins wholesale, so one update
// can be lost. Callers that need read-modify-write atomicity use
// Update, which clones under the write mutex.
//
// The array's length is fixed at construction. There is no grow, no
// shrink, no append.
package cowarray
