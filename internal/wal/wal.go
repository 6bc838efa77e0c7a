package wal

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/durakv/durakv/internal/encoding"
	"github.com/durakv/durakv/internal/segment"
)

// FirstSequenceNumber is the sequence number the very first entry of a new write-ahead log receives.
const FirstSequenceNumber = 1

// DefaultMaxSegmentSize is the segment size threshold at which the write-ahead log rotates into a new segment.
const DefaultMaxSegmentSize = 10 * 1024 * 1024

// ErrAppend marks a failure to durably append an entry. Callers must not apply the corresponding mutation to any
// in-memory state when they receive this error.
var ErrAppend = errors.New("appending to the write-ahead log failed")

// WAL provides the main functionality for writing to the write-ahead log. It abstracts away the fact that the log is
// distributed over several segment files and rotates into new segments as necessary.
//
// WAL is safe to use from multiple goroutines concurrently.
type WAL struct {
	mutex sync.Mutex

	directory  string
	writer     *segment.Writer
	syncPolicy SyncPolicy

	maxSegmentSize      int64
	entryLengthEncoding encoding.EntryLengthEncoding
	entryChecksumType   encoding.EntryChecksumType
	compression         encoding.CompressionType
	rotationCallback    RotationCallback
}

// Open opens the write-ahead log in the given directory, creating the directory and the first segment if necessary.
// When segments already exist, the newest segment is scanned to its end and appending resumes with the next sequence
// number. A partially written entry at the tail, left behind by a crash, is cut off.
func Open(directory string, options ...Option) (*WAL, error) {
	newWAL := newWithDefaults(directory, options...)

	if err := os.MkdirAll(directory, 0o775); err != nil {
		return nil, fmt.Errorf("creating the write-ahead log directory %q: %w", directory, err)
	}

	segments, err := segment.GetSegments(directory)
	if err != nil {
		return nil, err
	}

	if len(segments) == 0 {
		newWAL.writer, err = segment.Create(directory, FirstSequenceNumber, newWAL.createConfig())
		if err != nil {
			return nil, err
		}
	} else {
		newWAL.writer, err = openLastSegment(directory, segments[len(segments)-1])
		if err != nil {
			return nil, err
		}
	}

	if err := newWAL.syncPolicy.Startup(newWAL.writer); err != nil {
		return nil, errors.Join(err, newWAL.writer.Close())
	}
	return newWAL, nil
}

// Init initializes a new write-ahead log in the given directory without keeping it open. This is what the CLI uses
// to prepare a directory ahead of time.
func Init(directory string, options ...Option) error {
	newWAL := newWithDefaults(directory, options...)

	if err := os.MkdirAll(directory, 0o775); err != nil {
		return fmt.Errorf("creating the write-ahead log directory %q: %w", directory, err)
	}
	segmentWriter, err := segment.Create(directory, FirstSequenceNumber, newWAL.createConfig())
	if err != nil {
		return err
	}
	return segmentWriter.Close()
}

// IsInitialized reports if there is already a write-ahead log available in the given directory.
func IsInitialized(directory string) (bool, error) {
	segments, err := segment.GetSegments(directory)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return len(segments) > 0, nil
}

func newWithDefaults(directory string, options ...Option) *WAL {
	newWAL := WAL{
		directory:           directory,
		maxSegmentSize:      DefaultMaxSegmentSize,
		entryLengthEncoding: encoding.DefaultEntryLengthEncoding,
		entryChecksumType:   encoding.DefaultEntryChecksumType,
		compression:         encoding.DefaultCompressionType,
		rotationCallback:    DefaultRotationCallback,
	}
	for _, option := range options {
		option(&newWAL)
	}
	if newWAL.syncPolicy == nil {
		newWAL.syncPolicy = NewSyncPolicyImmediate()
	}
	return &newWAL
}

func (w *WAL) createConfig() segment.CreateConfig {
	return segment.CreateConfig{
		EntryLengthEncoding: w.entryLengthEncoding,
		EntryChecksumType:   w.entryChecksumType,
		Compression:         w.compression,
	}
}

// openLastSegment scans the newest segment to its end and turns it into a writer. Trailing garbage from an append
// interrupted by a crash is logged and cut off.
func openLastSegment(directory string, firstSequenceNumber uint64) (*segment.Writer, error) {
	segmentReader, err := segment.Open(directory, firstSequenceNumber)
	if err != nil {
		return nil, err
	}
	for segmentReader.Next() {
		// Skip all entries to reach the end of the segment.
	}
	if err := segmentReader.Err(); !errors.Is(err, io.EOF) {
		log.Printf("WARNING: Dropping a partially written entry at the tail of segment %q (offset %d): %v\n",
			segmentReader.FilePath(), segmentReader.Offset(), err)
	}

	segmentWriter, err := segmentReader.ToWriter()
	if err != nil {
		return nil, errors.Join(err, segmentReader.Close())
	}
	return segmentWriter, nil
}

// Directory returns the directory the segment files are located in.
func (w *WAL) Directory() string {
	return w.directory
}

// NextSequenceNumber returns the sequence number the next entry will receive.
func (w *WAL) NextSequenceNumber() uint64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.writer.NextSequenceNumber()
}

// Append assigns the next sequence number to the given operation, encodes it and appends it to the current segment.
// When Append returns without error, the entry is durable and will survive a crash. When Append returns an error,
// the caller must not apply the operation to any in-memory state.
func (w *WAL) Append(op encoding.Op, key []byte, value []byte) (uint64, error) {
	sequenceNumber, err := w.appendEntry(op, key, value)
	if err != nil {
		return 0, errors.Join(ErrAppend, err)
	}

	// Note that the call to the sync policy must not happen under the WAL mutex. The grouped sync policy blocks to
	// batch several Append calls, and holding the mutex here would prevent any batching.
	if err := w.syncPolicy.EntryAppended(sequenceNumber); err != nil {
		return 0, errors.Join(ErrAppend, err)
	}
	return sequenceNumber, nil
}

func (w *WAL) appendEntry(op encoding.Op, key []byte, value []byte) (uint64, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return 0, err
	}

	record := encoding.Record{
		Sequence:  w.writer.NextSequenceNumber(),
		Op:        op,
		Key:       key,
		Value:     value,
		Timestamp: time.Now().UnixNano(),
	}
	payload, err := encoding.CompressPayload(record.Encode(), w.compression)
	if err != nil {
		return 0, err
	}

	sequenceNumber, err := w.writer.Append(payload)
	if err != nil {
		return 0, fmt.Errorf("writing entry to segment file: %w", err)
	}
	return sequenceNumber, nil
}

// Rotate closes the current segment and opens a new one for subsequent appends. Closed segments remain part of the
// replay history and are never modified again. Rotating an empty segment is a no-op.
func (w *WAL) Rotate() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.rotate()
}

// rotateIfNeeded checks if the current offset exceeds the desired maximum segment size and rotates then.
func (w *WAL) rotateIfNeeded() error {
	if w.writer.Offset() < w.maxSegmentSize {
		// We did not yet reach the desired maximum segment size. We can continue with what we have at hand.
		return nil
	}
	return w.rotate()
}

func (w *WAL) rotate() error {
	if w.writer.Offset() <= encoding.HeaderSize {
		// An empty segment would produce a duplicate file name on the next rotation, so we keep appending to it.
		return nil
	}

	RotationTotal.Inc()
	start := time.Now()

	previousSegment := w.writer.Header().FirstSequenceNumber

	if err := w.syncPolicy.Shutdown(); err != nil {
		return err
	}
	if err := w.writer.Close(); err != nil {
		return err
	}

	nextWriter, err := segment.Create(w.directory, w.writer.NextSequenceNumber(), w.createConfig())
	if err != nil {
		return err
	}
	w.writer = nextWriter

	if err := w.syncPolicy.Startup(w.writer); err != nil {
		return err
	}

	nextSegment := w.writer.Header().FirstSequenceNumber
	w.rotationCallback(previousSegment, nextSegment)

	duration := time.Since(start).Seconds()
	if duration > 1.0 {
		log.Printf("WARNING: Segment rotation needed %f seconds which is too slow.\n", duration)
	}
	RotationDuration.Observe(duration)
	return nil
}

// RemoveSegmentsBelow deletes segment files whose entries all have sequence numbers at or below the given sequence
// number. The segment currently open for appending is never removed. This is used by the store after it has written
// a snapshot which covers those entries.
func (w *WAL) RemoveSegmentsBelow(sequenceNumber uint64) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	segments, err := segment.GetSegments(w.directory)
	if err != nil {
		return err
	}

	currentSegment := w.writer.Header().FirstSequenceNumber
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == currentSegment {
			break
		}
		// All entries of segment i are below the first sequence number of segment i+1.
		if segments[i+1] > sequenceNumber+1 {
			break
		}
		segmentFilePath := segment.SegmentFilePath(w.directory, segments[i])
		if err := os.Remove(segmentFilePath); err != nil {
			return fmt.Errorf("removing the segment file %q: %w", segmentFilePath, err)
		}
		RemovedSegmentsTotal.Inc()
	}
	return nil
}

// Close flushes all pending entries and closes the current segment.
func (w *WAL) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	syncErr := w.syncPolicy.Shutdown()
	closeErr := w.writer.Close()
	return errors.Join(syncErr, closeErr)
}
