package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReplayHandler consumes one decoded record during replay.
type ReplayHandler func(*Record) error

// Replay feeds every record under dir to fn in segment order and
// returns the last sequence seen. Sequences must be strictly
// increasing across the whole log, segment boundaries included.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := filepath.Glob(filepath.Join(dir, segmentPattern))
	if err != nil {
		return 0, err
	}

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return lastSeq, err
		}

		for {
			rec, err := readRecord(f)
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				_ = f.Close()
				return lastSeq, err
			}

			if rec.Seq <= lastSeq {
				_ = f.Close()
				return lastSeq, fmt.Errorf("non-monotonic seq %d after %d", rec.Seq, lastSeq)
			}
			lastSeq = rec.Seq

			if err := fn(rec); err != nil {
				_ = f.Close()
				return lastSeq, err
			}
		}
		_ = f.Close()
	}

	return lastSeq, nil
}

// readRecord reads one frame. A clean end of segment surfaces as
// io.EOF; a torn header as io.ErrUnexpectedEOF.
func readRecord(r io.Reader) (*Record, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	bodyLen := binary.LittleEndian.Uint32(header[0:4])
	crc := binary.LittleEndian.Uint32(header[4:8])
	if bodyLen > maxRecordSize {
		return nil, fmt.Errorf("%w: frame length %d", ErrCorruptRecord, bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: truncated body", ErrCorruptRecord)
	}
	if !checksumValid(body, crc) {
		return nil, fmt.Errorf("%w: crc mismatch", ErrCorruptRecord)
	}
	return Unmarshal(body)
}
