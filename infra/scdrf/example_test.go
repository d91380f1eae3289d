package scdrf_test

import (
	"fmt"
	"sync/atomic"

	"audhumla/infra/scdrf"
)

// Example shows the publish/observe discipline: every access to the
// shared pointer is bracketed by a section on the same flag.
func Example() {
	type state struct{ n int }

	var (
		flag      scdrf.Flag
		published atomic.Pointer[state]
	)
	published.Store(&state{n: 1})

	// writer side
	sec := scdrf.Enter(&flag)
	published.Store(&state{n: 2})
	sec.Leave()

	// reader side
	sec = scdrf.Enter(&flag)
	s := published.Load()
	sec.Leave()

	fmt.Println(s.n)
	// Output: 2
}
