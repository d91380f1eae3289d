package journal

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func put(seq uint64, name string, index uint64, value int64) *Record {
	return &Record{
		Seq:   seq,
		Time:  time.Now().UnixNano(),
		Kind:  KindPut,
		Name:  name,
		Index: index,
		Value: value,
	}
}

func TestAppendAndReplay(t *testing.T) {
	dir := t.TempDir()

	// --- write phase ---
	j, err := Open(Config{Dir: dir, SegmentSize: 64 << 20})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	arrayID := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	recs := []*Record{
		{Seq: 1, Time: 10, Kind: KindCreate, Name: "prices", Length: 4, ArrayID: arrayID},
		put(2, "prices", 2, 42),
		put(3, "prices", 0, -7),
		{Seq: 4, Time: 40, Kind: KindFill, Name: "prices", Value: 9},
		{Seq: 5, Time: 50, Kind: KindStore, Name: "prices", Length: 4, Values: []int64{1, -2, 3, -4}},
	}
	for _, r := range recs {
		if err := j.Append(r); err != nil {
			t.Fatalf("append seq %d: %v", r.Seq, err)
		}
	}
	if err := j.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// --- replay phase ---
	var got []*Record
	last, err := Replay(dir, func(r *Record) error {
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if last != 5 {
		t.Errorf("last seq = %d, want 5", last)
	}
	if len(got) != len(recs) {
		t.Fatalf("replayed %d records, want %d", len(got), len(recs))
	}

	cr := got[0]
	if cr.Kind != KindCreate || cr.Length != 4 || !bytes.Equal(cr.ArrayID, arrayID) {
		t.Errorf("create record mangled: %+v", cr)
	}

	r := got[1]
	if r.Kind != KindPut || r.Name != "prices" || r.Index != 2 || r.Value != 42 {
		t.Errorf("put record mangled: %+v", r)
	}
	if got[2].Value != -7 {
		t.Errorf("negative value mangled: %d", got[2].Value)
	}
	st := got[4]
	if st.Kind != KindStore || len(st.Values) != 4 {
		t.Fatalf("store record mangled: %+v", st)
	}
	for i, want := range []int64{1, -2, 3, -4} {
		if st.Values[i] != want {
			t.Errorf("values[%d] = %d, want %d", i, st.Values[i], want)
		}
	}
}

func TestReplayDetectsCorruption(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for seq := uint64(1); seq <= 3; seq++ {
		if err := j.Append(put(seq, "a", 0, int64(seq))); err != nil {
			t.Fatal(err)
		}
	}
	_ = j.Close()

	// flip one byte inside a record body
	path := segmentPath(dir, 0)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[frameHeaderSize+2] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Replay(dir, func(*Record) error { return nil })
	if !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("err = %v, want ErrCorruptRecord", err)
	}
}

func TestRotationKeepsOrder(t *testing.T) {
	dir := t.TempDir()

	// tiny segments force a rotation every couple of records
	j, err := Open(Config{Dir: dir, SegmentSize: 64})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	const n = 50
	for seq := uint64(1); seq <= n; seq++ {
		if err := j.Append(put(seq, "a", 0, int64(seq))); err != nil {
			t.Fatal(err)
		}
	}
	_ = j.Close()

	segs, _ := filepath.Glob(filepath.Join(dir, segmentPattern))
	if len(segs) < 2 {
		t.Fatalf("expected rotation, got %d segment(s)", len(segs))
	}

	var want uint64
	last, err := Replay(dir, func(r *Record) error {
		want++
		if r.Seq != want {
			t.Fatalf("out of order: seq %d at position %d", r.Seq, want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if last != n {
		t.Errorf("last = %d, want %d", last, n)
	}
}

func TestTruncateBeforeSparesActiveSegment(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(Config{Dir: dir, SegmentSize: 64})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	const n = 40
	for seq := uint64(1); seq <= n; seq++ {
		if err := j.Append(put(seq, "a", 0, int64(seq))); err != nil {
			t.Fatal(err)
		}
	}

	before, _ := filepath.Glob(filepath.Join(dir, segmentPattern))
	if err := j.TruncateBefore(n); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	after, _ := filepath.Glob(filepath.Join(dir, segmentPattern))

	if len(after) >= len(before) {
		t.Errorf("nothing truncated: %d -> %d segments", len(before), len(after))
	}
	if len(after) == 0 {
		t.Fatal("active segment removed")
	}

	// journal still writable after truncation
	if err := j.Append(put(n+1, "a", 0, 1)); err != nil {
		t.Fatalf("append after truncate: %v", err)
	}
	_ = j.Close()

	last, err := Replay(dir, func(*Record) error { return nil })
	if err != nil {
		t.Fatalf("replay after truncate: %v", err)
	}
	if last != n+1 {
		t.Errorf("last = %d, want %d", last, n+1)
	}
}

func TestReopenResumesHighestSegment(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(Config{Dir: dir, SegmentSize: 64})
	if err != nil {
		t.Fatal(err)
	}
	for seq := uint64(1); seq <= 10; seq++ {
		if err := j.Append(put(seq, "a", 0, int64(seq))); err != nil {
			t.Fatal(err)
		}
	}
	_ = j.Close()

	j2, err := Open(Config{Dir: dir, SegmentSize: 64})
	if err != nil {
		t.Fatal(err)
	}
	for seq := uint64(11); seq <= 20; seq++ {
		if err := j2.Append(put(seq, "a", 0, int64(seq))); err != nil {
			t.Fatal(err)
		}
	}
	_ = j2.Close()

	count := 0
	last, err := Replay(dir, func(*Record) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if count != 20 || last != 20 {
		t.Errorf("count=%d last=%d, want 20/20", count, last)
	}
}

func TestReplayRejectsNonMonotonicSeq(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	_ = j.Append(put(5, "a", 0, 1))
	_ = j.Append(put(3, "a", 0, 2))
	_ = j.Close()

	_, err = Replay(dir, func(*Record) error { return nil })
	if err == nil {
		t.Fatal("expected non-monotonic seq error")
	}
}
