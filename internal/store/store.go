// Package store provides the key-value store on top of the write-ahead log. Every mutation is appended to the log
// and flushed to stable storage before it becomes visible in memory, so the in-memory state is never ahead of the
// durable log.
package store

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/durakv/durakv/internal/encoding"
	"github.com/durakv/durakv/internal/wal"
)

// Store is a single-node key-value store whose durability rests on a write-ahead log. It exclusively owns its log:
// nothing else may append to the same directory.
//
// Store is safe to use from multiple goroutines concurrently. Mutating operations are serialized by an exclusive
// lock so the append order of the log matches the order in which effects become visible to readers. Reads take a
// shared lock and never touch the log.
type Store struct {
	mutex sync.RWMutex

	dataDir string
	wal     *wal.WAL
	data    map[string][]byte

	// The sequence number of the last log entry applied to data. The map is exactly the result of applying every
	// log entry up to this sequence number in order.
	lastApplied uint64
}

// Open opens the store in the given data directory, creating it if necessary, and recovers the in-memory state from
// the write-ahead log before returning. The options are passed through to the log.
func Open(dataDir string, walOptions ...wal.Option) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o775); err != nil {
		return nil, fmt.Errorf("creating the data directory %q: %w", dataDir, err)
	}

	walInstance, err := wal.Open(filepath.Join(dataDir, "wal"), walOptions...)
	if err != nil {
		return nil, err
	}

	newStore := Store{
		dataDir: dataDir,
		wal:     walInstance,
		data:    make(map[string][]byte),
	}
	if err := newStore.Recover(); err != nil {
		return nil, fmt.Errorf("recovering the store state: %w", err)
	}
	return &newStore, nil
}

// Put stores the given key-value pair. The operation is logged and flushed before the map is updated. On error the
// in-memory state is left untouched.
func (s *Store) Put(key string, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	sequenceNumber, err := s.wal.Append(encoding.OpPut, []byte(key), value)
	if err != nil {
		return err
	}
	s.data[key] = bytes.Clone(value)
	s.lastApplied = sequenceNumber
	OperationsTotal.WithLabelValues("put").Inc()
	return nil
}

// Get returns the current value of the given key. The second return value reports if the key is present. Get never
// touches the write-ahead log.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	OperationsTotal.WithLabelValues("get").Inc()
	value, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(value), true
}

// Delete removes the given key. The operation is logged even when the key is absent, so that replay stays
// idempotent regardless of prior state. Removing an absent key is a no-op at the map level.
func (s *Store) Delete(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	sequenceNumber, err := s.wal.Append(encoding.OpDelete, []byte(key), nil)
	if err != nil {
		return err
	}
	delete(s.data, key)
	s.lastApplied = sequenceNumber
	OperationsTotal.WithLabelValues("delete").Inc()
	return nil
}

// Keys returns a sorted snapshot of all present keys at call time.
func (s *Store) Keys() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make([]string, 0, len(s.data))
	for key := range s.data {
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}

// Len returns the number of present keys.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.data)
}

// Checkpoint appends a checkpoint marker to the write-ahead log and rotates into a new segment. The marker is a
// durability boundary only, the in-memory state is not changed.
func (s *Store) Checkpoint() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	sequenceNumber, err := s.wal.Append(encoding.OpCheckpoint, nil, nil)
	if err != nil {
		return err
	}
	s.lastApplied = sequenceNumber
	OperationsTotal.WithLabelValues("checkpoint").Inc()
	return s.wal.Rotate()
}

// Recover rebuilds the in-memory state from the snapshot and the write-ahead log. It is called on startup before
// the store serves any request, and is idempotent: recovering twice without intervening writes yields the same
// state both times.
func (s *Store) Recover() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, lastApplied, err := s.replay()
	if err != nil {
		return err
	}
	s.data = data
	s.lastApplied = lastApplied
	return nil
}

// replay loads the snapshot if one exists and applies all log entries it does not already cover, in sequence number
// order, to a fresh map.
func (s *Store) replay() (map[string][]byte, uint64, error) {
	data := make(map[string][]byte)
	var lastApplied uint64

	snapshot, found, err := readSnapshot(s.snapshotPath())
	if err != nil {
		return nil, 0, err
	}

	var reader *wal.Reader
	if found {
		for key, value := range snapshot.Data {
			data[key] = bytes.Clone(value)
		}
		lastApplied = snapshot.Sequence
		reader, err = wal.NewReaderFrom(s.wal.Directory(), snapshot.Sequence+1)
	} else {
		reader, err = wal.NewReader(s.wal.Directory())
	}
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close() //nolint:errcheck // The segment file is only open for reading.

	for reader.Next() {
		record := reader.Value()
		switch record.Op {
		case encoding.OpPut:
			data[string(record.Key)] = bytes.Clone(record.Value)
		case encoding.OpDelete:
			delete(data, string(record.Key))
		case encoding.OpCheckpoint:
			// Checkpoint markers do not change the state.
		}
		lastApplied = record.Sequence
		RecoveredEntriesTotal.Inc()
	}
	if err := reader.Err(); err != nil {
		return nil, 0, err
	}
	if reader.TailTruncated() {
		log.Printf("WARNING: The write-ahead log ended with a partially written entry. State was recovered up to sequence number %d.\n", lastApplied)
	}
	return data, lastApplied, nil
}

// Compact writes a snapshot of the current state and removes all log segments the snapshot covers. Recovery then
// loads the snapshot and replays only the entries after it.
func (s *Store) Compact() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := writeSnapshot(s.snapshotPath(), snapshot{
		Sequence: s.lastApplied,
		Data:     s.data,
	}); err != nil {
		return err
	}
	CompactionTotal.Inc()
	return s.wal.RemoveSegmentsBelow(s.lastApplied)
}

// Close flushes and closes the write-ahead log. The store must not be used afterward.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.wal.Close()
}

func (s *Store) snapshotPath() string {
	return filepath.Join(s.dataDir, snapshotFileName)
}
