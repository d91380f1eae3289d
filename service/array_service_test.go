package service

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audhumla/domain/cowarray"
	"audhumla/infra/journal"
	"audhumla/infra/outbox"
	"audhumla/infra/sequence"
	"audhumla/snapshot"
)

// testEnv owns the on-disk state so a test can close a service and
// bring up a fresh one over the same directories.
type testEnv struct {
	t    *testing.T
	jdir string
	odir string
	sdir string
}

func newEnv(t *testing.T) *testEnv {
	return &testEnv{
		t:    t,
		jdir: t.TempDir(),
		odir: t.TempDir(),
		sdir: t.TempDir(),
	}
}

func (e *testEnv) open() (*ArrayService, func()) {
	e.t.Helper()

	j, err := journal.Open(journal.Config{Dir: e.jdir})
	require.NoError(e.t, err)

	ob, err := outbox.Open(e.odir)
	require.NoError(e.t, err)

	svc := New(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		sequence.New(0),
		j,
		ob,
		&snapshot.Writer{Dir: e.sdir},
		NewMetrics(prometheus.NewRegistry()),
	)
	return svc, func() {
		_ = j.Close()
		_ = ob.Close()
	}
}

func (e *testEnv) snapPath() string { return snapshot.Path(e.sdir) }

func TestCreatePutGet(t *testing.T) {
	svc, closer := newEnv(t).open()
	defer closer()

	info, err := svc.Create("prices", 4)
	require.NoError(t, err)
	assert.Equal(t, "prices", info.Name)
	assert.Equal(t, 4, info.Length)
	assert.NotEqual(t, [16]byte{}, [16]byte(info.ID))

	seq, err := svc.Put("prices", 2, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq) // create took seq 1

	v, err := svc.Get("prices", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	vals, gen, err := svc.Values("prices")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 42, 0}, vals)
	assert.Equal(t, uint64(1), gen)

	list := svc.List()
	require.Len(t, list, 1)
	assert.Equal(t, info.ID, list[0].ID)
}

func TestCreateValidation(t *testing.T) {
	svc, closer := newEnv(t).open()
	defer closer()

	_, err := svc.Create("", 3)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Create("a", -1)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Create("a", 3)
	require.NoError(t, err)
	_, err = svc.Create("a", 3)
	assert.ErrorIs(t, err, ErrExists)
}

func TestUnknownArrayAndBadIndex(t *testing.T) {
	svc, closer := newEnv(t).open()
	defer closer()

	_, err := svc.Put("ghost", 0, 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Get("ghost", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Create("a", 2)
	require.NoError(t, err)
	_, err = svc.Put("a", 2, 1)
	assert.ErrorIs(t, err, cowarray.ErrIndexRange)
	_, err = svc.Get("a", 9)
	assert.ErrorIs(t, err, cowarray.ErrIndexRange)
}

func TestFillAndUpdate(t *testing.T) {
	svc, closer := newEnv(t).open()
	defer closer()

	_, err := svc.Create("a", 3)
	require.NoError(t, err)

	_, err = svc.Fill("a", 5)
	require.NoError(t, err)
	vals, _, _ := svc.Values("a")
	assert.Equal(t, []int64{5, 5, 5}, vals)

	_, err = svc.Update("a", func(vals []int64) error {
		for i := range vals {
			vals[i] *= 2
		}
		return nil
	})
	require.NoError(t, err)
	vals, _, _ = svc.Values("a")
	assert.Equal(t, []int64{10, 10, 10}, vals)

	boom := errors.New("boom")
	_, err = svc.Update("a", func(vals []int64) error {
		vals[0] = 999
		return boom
	})
	assert.ErrorIs(t, err, boom)
	vals, _, _ = svc.Values("a")
	assert.Equal(t, []int64{10, 10, 10}, vals, "failed update must not publish")
}

func TestMutationsLandInOutbox(t *testing.T) {
	env := newEnv(t)
	svc, closer := env.open()
	defer closer()

	_, err := svc.Create("a", 2)
	require.NoError(t, err)
	putSeq, err := svc.Put("a", 1, 7)
	require.NoError(t, err)

	var events []*outbox.Record
	require.NoError(t, svc.outbox.ScanPending(func(r *outbox.Record) error {
		events = append(events, r)
		return nil
	}))
	require.Len(t, events, 2)

	rec, err := journal.Unmarshal(events[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, putSeq, rec.Seq)
	assert.Equal(t, journal.KindPut, rec.Kind)
	assert.Equal(t, uint64(1), rec.Index)
	assert.Equal(t, int64(7), rec.Value)
}

func TestBootstrapFromJournal(t *testing.T) {
	env := newEnv(t)

	svc1, close1 := env.open()
	info, err := svc1.Create("prices", 3)
	require.NoError(t, err)
	_, err = svc1.Put("prices", 0, 11)
	require.NoError(t, err)
	_, err = svc1.Fill("prices", 4)
	require.NoError(t, err)
	_, err = svc1.Put("prices", 2, 9)
	require.NoError(t, err)
	close1()

	svc2, close2 := env.open()
	defer close2()
	require.NoError(t, svc2.Bootstrap(env.snapPath(), env.jdir))

	vals, _, err := svc2.Values("prices")
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 4, 9}, vals)

	got, err := svc2.Info("prices")
	require.NoError(t, err)
	assert.Equal(t, info.ID, got.ID, "array identity must survive replay")

	// sequencing resumes after the last journaled mutation
	seq, err := svc2.Put("prices", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), seq)
}

func TestSnapshotThenReplayTail(t *testing.T) {
	env := newEnv(t)

	svc1, close1 := env.open()
	_, err := svc1.Create("a", 2)
	require.NoError(t, err)
	_, err = svc1.Fill("a", 1)
	require.NoError(t, err)
	require.NoError(t, svc1.WriteSnapshot())

	// mutations after the snapshot live only in the journal
	_, err = svc1.Put("a", 0, 99)
	require.NoError(t, err)
	close1()

	svc2, close2 := env.open()
	defer close2()
	require.NoError(t, svc2.Bootstrap(env.snapPath(), env.jdir))

	vals, _, err := svc2.Values("a")
	require.NoError(t, err)
	assert.Equal(t, []int64{99, 1}, vals)

	assert.Equal(t, float64(1), testutil.ToFloat64(svc2.metrics.Replayed),
		"only the post-snapshot tail should replay")
}

func TestMetricsCount(t *testing.T) {
	svc, closer := newEnv(t).open()
	defer closer()

	_, err := svc.Create("a", 2)
	require.NoError(t, err)
	_, err = svc.Put("a", 0, 1)
	require.NoError(t, err)
	_, err = svc.Put("a", 1, 2)
	require.NoError(t, err)
	_, err = svc.Fill("a", 3)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(svc.metrics.Creates))
	assert.Equal(t, float64(2), testutil.ToFloat64(svc.metrics.Puts))
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.metrics.Fills))
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.metrics.Arrays))
}

func TestSequencesAreDense(t *testing.T) {
	svc, closer := newEnv(t).open()
	defer closer()

	_, err := svc.Create("a", 1)
	require.NoError(t, err)

	for want := uint64(2); want <= 6; want++ {
		seq, err := svc.Put("a", 0, int64(want))
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}
}

func TestStatsAggregate(t *testing.T) {
	svc, closer := newEnv(t).open()
	defer closer()

	assert.Equal(t, ServiceStats{}, svc.Stats())

	_, err := svc.Create("a", 3)
	require.NoError(t, err)
	_, err = svc.Create("b", 5)
	require.NoError(t, err)
	_, err = svc.Put("a", 0, 7)
	require.NoError(t, err)

	st := svc.Stats()
	assert.Equal(t, 2, st.Arrays)
	assert.Equal(t, 8, st.Cells)
	assert.Equal(t, uint64(3), st.Seq)
	assert.Equal(t, uint64(0), st.RestoredSeq)
}
