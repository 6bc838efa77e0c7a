package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const snapshotFileName = "snapshot.json"

// snapshot is the on-disk representation of the materialized store state. All log entries up to and including
// Sequence are folded into Data, so recovery only needs to replay entries after Sequence.
type snapshot struct {
	Sequence uint64            `json:"sequence"`
	Data     map[string][]byte `json:"data"`
}

// writeSnapshot writes the snapshot to the given path atomically. The file is staged next to the target, synced to
// stable storage and renamed over the target, so a crash mid-write leaves the previous snapshot intact.
func writeSnapshot(filePath string, value snapshot) error {
	stagingFilePath := filePath + ".new"
	if err := os.Remove(stagingFilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing the leftover staging file %q: %w", stagingFilePath, err)
	}

	file, err := os.OpenFile(stagingFilePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o664)
	if err != nil {
		return fmt.Errorf("creating the staging file %q: %w", stagingFilePath, err)
	}

	if err := json.NewEncoder(file).Encode(value); err != nil {
		return errors.Join(fmt.Errorf("encoding the snapshot: %w", err), file.Close())
	}
	if err := file.Sync(); err != nil {
		return errors.Join(fmt.Errorf("syncing the staging file %q: %w", stagingFilePath, err), file.Close())
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing the staging file %q: %w", stagingFilePath, err)
	}

	if err := os.Rename(stagingFilePath, filePath); err != nil {
		return fmt.Errorf("renaming the staging file into %q: %w", filePath, err)
	}
	return syncDirectory(filepath.Dir(filePath))
}

// readSnapshot reads the snapshot at the given path. The second return value reports if a snapshot exists, a missing
// snapshot is not an error.
func readSnapshot(filePath string) (snapshot, bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return snapshot{}, false, nil
		}
		return snapshot{}, false, fmt.Errorf("opening the snapshot file %q: %w", filePath, err)
	}
	defer file.Close() //nolint:errcheck // The file is only open for reading.

	var result snapshot
	if err := json.NewDecoder(file).Decode(&result); err != nil {
		return snapshot{}, false, fmt.Errorf("decoding the snapshot file %q: %w", filePath, err)
	}
	return result, true, nil
}

// syncDirectory makes sure the rename of the snapshot file is itself persisted in the directory metadata.
func syncDirectory(directory string) error {
	directoryFile, err := os.Open(directory)
	if err != nil {
		return fmt.Errorf("opening the directory %q: %w", directory, err)
	}
	syncErr := directoryFile.Sync()
	closeErr := directoryFile.Close()
	if syncErr != nil {
		return errors.Join(fmt.Errorf("syncing the directory %q: %w", directory, syncErr), closeErr)
	}
	return closeErr
}
