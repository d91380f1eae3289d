package journal

import (
	"errors"
	"io"
	"os"
)

// maxSeqInSegment scans one segment and returns the maximum sequence
// ID found. ONLY used for snapshot-based truncation.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var max uint64
	for {
		rec, err := readRecord(f)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return max, nil
			}
			return max, err
		}
		if rec.Seq > max {
			max = rec.Seq
		}
	}
}
