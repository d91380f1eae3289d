package scdrf

import "sync/atomic"

// Flag is the shared cell a critical section synchronizes on.
// The zero value is ready to use. Must not be copied after first use.
type Flag struct {
	v atomic.Bool
}

// Section is an open critical section on a Flag.
// Obtained from Enter, closed by exactly one Leave.
type Section struct {
	f *Flag
	v bool
}

// Enter opens a critical section on f with a sequentially consistent
// load. The observed value rides in the Section and is stored back by
// Leave.
//
//	sec := scdrf.Enter(&f)
//	defer sec.Leave()
func Enter(f *Flag) Section {
	return Section{f: f, v: f.v.Load()}
}

// Leave closes the section with a sequentially consistent store,
// making every write before it visible after the next Enter on the
// same Flag.
func (s Section) Leave() {
	s.f.v.Store(s.v)
}
