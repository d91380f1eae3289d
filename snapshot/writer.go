package snapshot

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"time"
)

type Writer struct {
	Dir string
}

// Path returns where snapshots live under dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Write persists the state for seq. The file lands via temp + rename
// so a crash mid-write never leaves a half-written snapshot behind.
func (w *Writer) Write(seq uint64, arrays []ArrayState) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(w.Dir, FileName+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	s := Snapshot{
		Seq:     seq,
		Created: time.Now(),
		Arrays:  arrays,
	}
	if err := gob.NewEncoder(tmp).Encode(&s); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), Path(w.Dir))
}
