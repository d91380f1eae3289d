package service

import (
	"fmt"

	"github.com/google/uuid"

	"audhumla/domain/cowarray"
	"audhumla/infra/journal"
	"audhumla/snapshot"
)

/*
Bootstrap rebuilds in-memory state on startup:

 1. restore the latest snapshot, if one exists
 2. replay journal records past the snapshot's sequence
 3. resume the sequencer after the highest applied sequence

IMPORTANT:
- This MUST run before accepting traffic
- The outbox is NOT replayed; the broadcaster drains it on its own
*/
func (s *ArrayService) Bootstrap(snapPath, journalDir string) error {
	snap, err := snapshot.Load(snapPath)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap != nil {
		s.restore(snap)
		s.log.Info("snapshot restored",
			"seq", snap.Seq,
			"arrays", len(snap.Arrays),
			"created", snap.Created,
		)
	}

	replayed := 0
	lastSeq, err := journal.Replay(journalDir, func(rec *journal.Record) error {
		if rec.Seq <= s.restoredSeq {
			return nil // covered by the snapshot
		}
		replayed++
		return s.apply(rec)
	})
	if err != nil {
		return fmt.Errorf("journal replay: %w", err)
	}

	if lastSeq < s.restoredSeq {
		lastSeq = s.restoredSeq
	}
	s.seq.Reset(lastSeq)
	s.metrics.Replayed.Add(float64(replayed))

	s.log.Info("bootstrap complete", "last_seq", lastSeq, "replayed", replayed)
	return nil
}

func (s *ArrayService) restore(snap *snapshot.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range snap.Arrays {
		s.arrays[st.Name] = &arrayEntry{
			arr: cowarray.NewFrom(st.Values),
			id:  st.ID,
		}
	}
	s.restoredSeq = snap.Seq
	s.metrics.Arrays.Set(float64(len(s.arrays)))
}

// apply replays one journal record against in-memory state. No new
// sequence numbers, no journaling, no events.
func (s *ArrayService) apply(rec *journal.Record) error {
	switch rec.Kind {
	case journal.KindCreate:
		id, err := uuid.FromBytes(rec.ArrayID)
		if err != nil {
			id = uuid.New() // old records without an ID
		}
		s.mu.Lock()
		if _, ok := s.arrays[rec.Name]; !ok {
			s.arrays[rec.Name] = &arrayEntry{
				arr: cowarray.New[int64](int(rec.Length)),
				id:  id,
			}
			s.metrics.Arrays.Inc()
		}
		s.mu.Unlock()
		return nil

	case journal.KindPut:
		e, err := s.lookup(rec.Name)
		if err != nil {
			return err
		}
		return e.arr.Put(int(rec.Index), rec.Value)

	case journal.KindFill:
		e, err := s.lookup(rec.Name)
		if err != nil {
			return err
		}
		e.arr.Fill(rec.Value)
		return nil

	case journal.KindStore:
		e, err := s.lookup(rec.Name)
		if err != nil {
			return err
		}
		return e.arr.Update(func(vals []int64) error {
			if len(vals) != len(rec.Values) {
				return fmt.Errorf("%w: record %d, array %d",
					cowarray.ErrStoreLen, len(rec.Values), len(vals))
			}
			copy(vals, rec.Values)
			return nil
		})

	default:
		return fmt.Errorf("unknown journal record kind %d at seq %d", rec.Kind, rec.Seq)
	}
}
