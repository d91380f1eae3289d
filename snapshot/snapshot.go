// Package snapshot persists point-in-time array state so restart can
// skip most of the journal. Snapshots are optional: a missing file
// means a cold start with full replay.
package snapshot

import (
	"time"

	"github.com/google/uuid"
)

const FileName = "snapshot.bin"

// Snapshot is the full persisted state at a journal sequence.
type Snapshot struct {
	Seq     uint64
	Created time.Time
	Arrays  []ArrayState
}

// ArrayState is one array's contents at snapshot time.
type ArrayState struct {
	Name   string
	ID     uuid.UUID
	Length int
	Gen    uint64
	Values []int64
}
