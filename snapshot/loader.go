package snapshot

import (
	"encoding/gob"
	"os"
)

// Load reads the snapshot at path. A missing file is a cold start,
// not an error: it returns (nil, nil).
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // cold start
		}
		return nil, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
