package journal

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// ErrCorruptRecord reports a frame whose checksum or body failed to
// decode.
var ErrCorruptRecord = errors.New("journal: corrupt record")

// frameHeaderSize is [len:4][crc:4], little endian, crc over the body.
const frameHeaderSize = 8

// maxRecordSize bounds a frame's declared body length so a corrupt
// header cannot demand an absurd allocation.
const maxRecordSize = 16 << 20

type Config struct {
	Dir         string
	SegmentSize int64 // rotate once the active segment reaches this many bytes
}

// Journal is a segmented append-only log of array mutations.
// Safe for concurrent use; the write path serializes internally.
type Journal struct {
	mu       sync.Mutex
	dir      string
	segSize  int64
	current  *segment
	segIndex int
}

// Open creates dir if needed and resumes appending to the highest
// existing segment, or starts segment 0 on a fresh directory.
func Open(cfg Config) (*Journal, error) {
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = 64 << 20
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	index := 0
	if files, err := filepath.Glob(filepath.Join(cfg.Dir, segmentPattern)); err == nil && len(files) > 0 {
		index = segmentIndex(files[len(files)-1])
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}
	return &Journal{
		dir:      cfg.Dir,
		segSize:  cfg.SegmentSize,
		current:  seg,
		segIndex: index,
	}, nil
}

func segmentIndex(path string) int {
	base := filepath.Base(path)
	base = strings.TrimPrefix(base, "segment-")
	base = strings.TrimSuffix(base, ".wal")
	n, err := strconv.Atoi(base)
	if err != nil {
		return 0
	}
	return n
}

// Append frames and writes one record:
// [len:4][crc:4][body], little endian, crc over the body.
func (j *Journal) Append(r *Record) error {
	body := r.Marshal()

	buf := make([]byte, frameHeaderSize+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(body)))
	binary.LittleEndian.PutUint32(buf[4:8], checksum(body))
	copy(buf[frameHeaderSize:], body)

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.current.append(buf); err != nil {
		return err
	}
	if j.current.offset >= j.segSize {
		return j.rotate()
	}
	return nil
}

// rotate seals the active segment and opens the next. Caller holds j.mu.
func (j *Journal) rotate() error {
	if err := j.current.sync(); err != nil {
		return err
	}
	_ = j.current.close()
	j.segIndex++

	seg, err := openSegment(j.dir, j.segIndex)
	if err != nil {
		return err
	}
	j.current = seg
	return nil
}

// Sync flushes the active segment to stable storage.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current.sync()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.current.close()
}

// TruncateBefore removes sealed segments whose records are all
// covered by a snapshot at seq. The active segment is never removed.
func (j *Journal) TruncateBefore(seq uint64) error {
	j.mu.Lock()
	active := segmentPath(j.dir, j.segIndex)
	j.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(j.dir, segmentPattern))
	if err != nil {
		return err
	}
	for _, path := range files {
		if path == active {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			_ = os.Remove(path)
		}
	}
	return nil
}
