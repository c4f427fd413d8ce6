package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// snapshotVersion tags the on-disk snapshot schema. Future field additions
// bump this and stay backward-readable through the json decoder.
const snapshotVersion = 1

// snapshotFile is the on-disk representation of the corpus.
type snapshotFile struct {
	Version int     `json:"version"`
	Chunks  []Chunk `json:"chunks"`
}

// writeSnapshot persists the chunk list to path. The file is written to a
// temporary location in the same directory and promoted by rename, so a
// concurrent load never observes a half-written snapshot.
func writeSnapshot(path string, chunks []Chunk) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrPersistence, err)
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(snapshotFile{Version: snapshotVersion, Chunks: chunks}); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: encode snapshot: %v", ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: sync snapshot: %v", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close snapshot: %v", ErrPersistence, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: promote snapshot: %v", ErrPersistence, err)
	}

	return nil
}

// readSnapshot loads the chunk list from path. A missing file is not an
// error: the store starts empty.
func readSnapshot(path string) ([]Chunk, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open snapshot: %v", ErrPersistence, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var snap snapshotFile
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", ErrPersistence, err)
	}
	if snap.Version > snapshotVersion {
		return nil, fmt.Errorf("%w: snapshot version %d is newer than supported %d", ErrPersistence, snap.Version, snapshotVersion)
	}

	return snap.Chunks, nil
}
