package outbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound reports a sequence with no outbox record.
var ErrNotFound = errors.New("outbox: not found")

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// Record is one durable outbox event, keyed by journal sequence.
// Payload is the framed journal record the broadcaster publishes.
type Record struct {
	Seq         uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// value encoding: [state:1][retries:4][lastAttempt:8][payload...]
const headerLen = 1 + 4 + 8

func encodeRecord(r *Record) []byte {
	buf := make([]byte, headerLen+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[headerLen:], r.Payload)
	return buf
}

func decodeRecord(seq uint64, b []byte) (*Record, error) {
	if len(b) < headerLen {
		return nil, errors.New("outbox: short record")
	}
	payload := make([]byte, len(b)-headerLen)
	copy(payload, b[headerLen:])
	return &Record{
		Seq:         seq,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

// -------------------- Outbox --------------------

// Outbox is the durable event store between the write path and the
// broadcaster. Events move NEW -> SENT -> ACKED; anything not ACKED
// is fair game for redelivery, so consumers must be idempotent.
type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // we WANT durability
	})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// -------------------- API --------------------

// Put inserts a NEW event. Called on the service write path, after
// the journal append.
func (o *Outbox) Put(seq uint64, payload []byte) error {
	rec := &Record{Seq: seq, State: StateNew, Payload: payload}
	return o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// Get returns the record for seq, or ErrNotFound.
func (o *Outbox) Get(seq uint64) (*Record, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: seq %d", ErrNotFound, seq)
		}
		return nil, err
	}
	defer closer.Close()
	return decodeRecord(seq, val)
}

// MarkSent records a delivery attempt: bumps the retry counter and
// stamps the attempt time. Idempotent from the broadcaster's view.
func (o *Outbox) MarkSent(seq uint64) error {
	return o.update(seq, func(r *Record) {
		r.State = StateSent
		r.Retries++
		r.LastAttempt = time.Now().UnixNano()
	})
}

// MarkAcked finalizes an event after the broker accepted it.
func (o *Outbox) MarkAcked(seq uint64) error {
	return o.update(seq, func(r *Record) {
		r.State = StateAcked
	})
}

// MarkFailed parks an event after the broadcaster gave up on it.
func (o *Outbox) MarkFailed(seq uint64) error {
	return o.update(seq, func(r *Record) {
		r.State = StateFailed
	})
}

func (o *Outbox) update(seq uint64, fn func(*Record)) error {
	rec, err := o.Get(seq)
	if err != nil {
		return err
	}
	fn(rec)
	return o.db.Set(keyFor(seq), encodeRecord(rec), pebble.Sync)
}

// Delete removes a record outright. Cleanup path only.
func (o *Outbox) Delete(seq uint64) error {
	return o.db.Delete(keyFor(seq), pebble.Sync)
}

// -------------------- Scan --------------------

// ScanPending visits NEW and SENT records in sequence order. SENT is
// included so an event stranded by a crash between send and ack gets
// redelivered; this is where at-least-once comes from.
func (o *Outbox) ScanPending(fn func(*Record) error) error {
	return o.scan(func(r *Record) error {
		if r.State != StateNew && r.State != StateSent {
			return nil
		}
		return fn(r)
	})
}

// ScanByState visits records in a single state, in sequence order.
func (o *Outbox) ScanByState(state State, fn func(*Record) error) error {
	return o.scan(func(r *Record) error {
		if r.State != state {
			return nil
		}
		return fn(r)
	})
}

func (o *Outbox) scan(fn func(*Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// TruncateAckedUpTo deletes ACKED records with seq at or below the
// given sequence. Called by the snapshot job once a snapshot covers
// them.
func (o *Outbox) TruncateAckedUpTo(seq uint64) error {
	var stale []uint64
	err := o.ScanByState(StateAcked, func(r *Record) error {
		if r.Seq <= seq {
			stale = append(stale, r.Seq)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, s := range stale {
		if err := o.Delete(s); err != nil {
			return err
		}
	}
	return nil
}

// -------------------- Helpers --------------------

const keyPrefix = "event/"

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &seq)
	return seq, err
}
