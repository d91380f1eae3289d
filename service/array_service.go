package service

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"audhumla/domain/cowarray"
	"audhumla/infra/journal"
	"audhumla/infra/outbox"
	"audhumla/infra/sequence"
	"audhumla/snapshot"
)

/*
ArrayService is the ONLY write entry point into the system.

All coordination between:
- domain (cowarray)
- infra (journal, outbox, sequence)
- snapshot
happens here.

The write mutex serializes the seq -> journal -> apply -> outbox
chain so journal order always matches sequence order. Reads bypass it
entirely and ride the arrays' lock-free snapshots.
*/

type ArrayService struct {
	log     *slog.Logger
	seq     *sequence.Sequencer
	journal *journal.Journal
	outbox  *outbox.Outbox
	snap    *snapshot.Writer
	metrics *Metrics

	wmu sync.Mutex // serializes all mutations

	mu          sync.RWMutex // guards the registry map only
	arrays      map[string]*arrayEntry
	restoredSeq uint64
}

type arrayEntry struct {
	arr *cowarray.Array[int64]
	id  uuid.UUID
}

// ArrayInfo is the read-model header of one array.
type ArrayInfo struct {
	Name   string    `json:"name"`
	ID     uuid.UUID `json:"id"`
	Length int       `json:"length"`
	Gen    uint64    `json:"gen"`
}

// New wires all dependencies. No globals. No magic.
// The outbox may be nil when no event feed is wanted.
func New(
	log *slog.Logger,
	seqGen *sequence.Sequencer,
	jrnl *journal.Journal,
	ob *outbox.Outbox,
	snapWriter *snapshot.Writer,
	metrics *Metrics,
) *ArrayService {
	if log == nil {
		log = slog.Default()
	}
	return &ArrayService{
		log:     log,
		seq:     seqGen,
		journal: jrnl,
		outbox:  ob,
		snap:    snapWriter,
		metrics: metrics,
		arrays:  make(map[string]*arrayEntry),
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Create registers a new array of the given fixed length, zeroed.
// It returns the array's header including its assigned ID.
func (s *ArrayService) Create(name string, length int) (ArrayInfo, error) {
	if name == "" || length < 0 {
		return ArrayInfo{}, fmt.Errorf("%w: name=%q length=%d", ErrInvalid, name, length)
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.RLock()
	_, exists := s.arrays[name]
	s.mu.RUnlock()
	if exists {
		return ArrayInfo{}, fmt.Errorf("%w: %q", ErrExists, name)
	}

	id := uuid.New()
	rec := &journal.Record{
		Seq:     s.seq.Next(),
		Time:    time.Now().UnixNano(),
		Kind:    journal.KindCreate,
		Name:    name,
		Length:  uint64(length),
		ArrayID: id[:],
	}
	if err := s.journal.Append(rec); err != nil {
		return ArrayInfo{}, fmt.Errorf("journal create: %w", err)
	}

	e := &arrayEntry{arr: cowarray.New[int64](length), id: id}
	s.mu.Lock()
	s.arrays[name] = e
	s.mu.Unlock()

	s.publishEvent(rec)
	s.metrics.Creates.Inc()
	s.metrics.Arrays.Inc()
	return ArrayInfo{Name: name, ID: id, Length: length, Gen: 0}, nil
}

// Put writes one element and returns the mutation's sequence number.
func (s *ArrayService) Put(name string, index uint64, value int64) (uint64, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	e, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	if index >= uint64(e.arr.Len()) {
		return 0, fmt.Errorf("%w: %d of %d", cowarray.ErrIndexRange, index, e.arr.Len())
	}

	rec := &journal.Record{
		Seq:   s.seq.Next(),
		Time:  time.Now().UnixNano(),
		Kind:  journal.KindPut,
		Name:  name,
		Index: index,
		Value: value,
	}
	if err := s.journal.Append(rec); err != nil {
		return 0, fmt.Errorf("journal put: %w", err)
	}
	if err := e.arr.Put(int(index), value); err != nil {
		return 0, err
	}

	s.publishEvent(rec)
	s.metrics.Puts.Inc()
	return rec.Seq, nil
}

// Fill sets every element to value and returns the sequence number.
func (s *ArrayService) Fill(name string, value int64) (uint64, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	e, err := s.lookup(name)
	if err != nil {
		return 0, err
	}

	rec := &journal.Record{
		Seq:   s.seq.Next(),
		Time:  time.Now().UnixNano(),
		Kind:  journal.KindFill,
		Name:  name,
		Value: value,
	}
	if err := s.journal.Append(rec); err != nil {
		return 0, fmt.Errorf("journal fill: %w", err)
	}
	e.arr.Fill(value)

	s.publishEvent(rec)
	s.metrics.Fills.Inc()
	return rec.Seq, nil
}

// Update runs fn against a private copy of the array and publishes
// the result as one atomic store mutation. The journal carries the
// resulting contents, not fn, so replay stays deterministic.
func (s *ArrayService) Update(name string, fn func(vals []int64) error) (uint64, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	e, err := s.lookup(name)
	if err != nil {
		return 0, err
	}

	c := e.arr.CloneStore()
	if err := fn(c.Values()); err != nil {
		return 0, err
	}

	vals := make([]int64, c.Len())
	copy(vals, c.Values())
	rec := &journal.Record{
		Seq:    s.seq.Next(),
		Time:   time.Now().UnixNano(),
		Kind:   journal.KindStore,
		Name:   name,
		Length: uint64(len(vals)),
		Values: vals,
	}
	if err := s.journal.Append(rec); err != nil {
		return 0, fmt.Errorf("journal update: %w", err)
	}
	if err := e.arr.SetStore(c); err != nil {
		return 0, err
	}

	s.publishEvent(rec)
	s.metrics.Updates.Inc()
	return rec.Seq, nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Get returns one element from the array's current snapshot.
func (s *ArrayService) Get(name string, index uint64) (int64, error) {
	e, err := s.lookup(name)
	if err != nil {
		return 0, err
	}
	return e.arr.Get(int(index))
}

// Values returns the array's current contents and generation. The
// slice is a live snapshot: read-only by contract.
func (s *ArrayService) Values(name string) ([]int64, uint64, error) {
	e, err := s.lookup(name)
	if err != nil {
		return nil, 0, err
	}
	st := e.arr.Snapshot()
	vals := make([]int64, st.Len())
	copy(vals, st.Values())
	return vals, st.Gen(), nil
}

// Info returns the array's header.
func (s *ArrayService) Info(name string) (ArrayInfo, error) {
	e, err := s.lookup(name)
	if err != nil {
		return ArrayInfo{}, err
	}
	return ArrayInfo{
		Name:   name,
		ID:     e.id,
		Length: e.arr.Len(),
		Gen:    e.arr.Gen(),
	}, nil
}

// List returns every array's header, sorted by name.
func (s *ArrayService) List() []ArrayInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ArrayInfo, 0, len(s.arrays))
	for name, e := range s.arrays {
		out = append(out, ArrayInfo{
			Name:   name,
			ID:     e.id,
			Length: e.arr.Len(),
			Gen:    e.arr.Gen(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ServiceStats is a point-in-time aggregate over the whole registry.
type ServiceStats struct {
	Arrays      int    `json:"arrays"`
	Cells       int    `json:"cells"`
	Seq         uint64 `json:"seq"`
	RestoredSeq uint64 `json:"restored_seq"`
}

// Stats reports registry-wide totals. Seq is the last assigned
// mutation sequence, RestoredSeq the point recovery caught up to.
func (s *ArrayService) Stats() ServiceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := ServiceStats{
		Arrays:      len(s.arrays),
		Seq:         s.seq.Current(),
		RestoredSeq: s.restoredSeq,
	}
	for _, e := range s.arrays {
		st.Cells += e.arr.Len()
	}
	return st
}

//
// ──────────────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────────────
//

func (s *ArrayService) lookup(name string) (*arrayEntry, error) {
	s.mu.RLock()
	e, ok := s.arrays[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return e, nil
}

// publishEvent enqueues the mutation for broadcast. The state change
// is already journaled and applied; a failing outbox degrades the
// feed, not the engine, so it logs instead of unwinding.
func (s *ArrayService) publishEvent(rec *journal.Record) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.Put(rec.Seq, rec.Marshal()); err != nil {
		s.log.Error("outbox put failed", "seq", rec.Seq, "err", err)
	}
}
