package wal

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/durakv/durakv/internal/encoding"
	"github.com/durakv/durakv/internal/segment"
	"github.com/durakv/durakv/internal/utils"
)

// Reader provides functionality to replay the write-ahead log. It abstracts away the fact that the log is split into
// multiple segments and yields decoded records in append order.
//
// A broken entry at the tail of the final segment is treated as an append which was interrupted by a crash: the
// reader stops in front of it without error and TailTruncated reports the cut. A broken entry anywhere else is
// unrecoverable log damage and surfaces through Err.
//
// Instances of this struct are NOT safe for concurrent use. Either use it on a single goroutine or provide your own
// external synchronization.
type Reader struct {
	noCopy utils.NoCopy

	// The directory the segment files are located in.
	directory string

	// The first sequence numbers of all segments at the time the reader was created, in ascending order.
	segments []uint64

	// The index into segments of the segment currently being read.
	index int

	// The currently active segment reader.
	segmentReader *segment.Reader

	// The record the reader returns. Only contains useful data if err is nil.
	value encoding.Record

	// The error for the last operation.
	err error

	// Reports if replay was cut short by a partially written entry at the tail of the final segment.
	tailTruncated bool
}

// NewReader creates a new Reader starting at the oldest segment in the directory.
func NewReader(directory string) (*Reader, error) {
	segments, err := segment.GetSegments(directory)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments found in %q", directory)
	}

	segmentReader, err := segment.Open(directory, segments[0])
	if err != nil {
		return nil, err
	}
	return &Reader{
		directory:     directory,
		segments:      segments,
		segmentReader: segmentReader,
	}, nil
}

// NewReaderFrom creates a new Reader positioned so that the first record it yields has at least the given sequence
// number. This is used for replaying only the entries which a snapshot does not already cover.
func NewReaderFrom(directory string, sequenceNumber uint64) (*Reader, error) {
	segments, err := segment.GetSegments(directory)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments found in %q", directory)
	}

	firstSegment, err := segment.SegmentFromSequenceNumber(directory, sequenceNumber)
	if err != nil {
		return nil, err
	}
	index := slices.Index(segments, firstSegment)
	segmentReader, err := segment.Open(directory, firstSegment)
	if err != nil {
		return nil, err
	}

	newReader := Reader{
		directory:     directory,
		segments:      segments,
		index:         index,
		segmentReader: segmentReader,
	}
	for newReader.segmentReader.NextSequenceNumber() < sequenceNumber && newReader.Next() {
		// Skip entries until we have reached our target sequence number.
	}
	if newReader.err != nil {
		return nil, errors.Join(newReader.err, newReader.Close())
	}
	return &newReader, nil
}

// Next reports if a record has been successfully read. When it returns true, Err() returns nil and Value() contains
// valid data. When it returns false, Err() is nil if the end of the log was reached, or an error if the log is
// damaged mid-stream.
func (r *Reader) Next() bool {
	for {
		if r.segmentReader.Next() {
			return r.decode()
		}

		err := r.segmentReader.Err()
		if !errors.Is(err, io.EOF) {
			// Something other than a clean end of the segment file: a truncated or corrupt entry.
			return r.fail(err)
		}
		if r.onFinalSegment() {
			r.err = nil
			return false
		}

		// Move on to the next segment. The first sequence number of the next segment has to line up with where the
		// current segment ended, otherwise part of the operation history is missing.
		expected := r.segmentReader.NextSequenceNumber()
		if r.segments[r.index+1] != expected {
			r.err = fmt.Errorf("expected the next segment to start at sequence number %d but found %d", expected, r.segments[r.index+1])
			return false
		}
		if err := r.segmentReader.Close(); err != nil {
			r.err = fmt.Errorf("closing the segment reader: %w", err)
			return false
		}

		nextSegmentReader, err := segment.Open(r.directory, r.segments[r.index+1])
		if err != nil {
			r.err = err
			return false
		}
		r.index++
		r.segmentReader = nextSegmentReader
	}
}

// decode turns the framed payload of the segment reader into a record.
func (r *Reader) decode() bool {
	rawRecord, err := encoding.DecompressPayload(r.segmentReader.Value().Payload)
	if err != nil {
		return r.fail(err)
	}
	record, err := encoding.DecodeRecord(rawRecord)
	if err != nil {
		return r.fail(err)
	}
	if record.Sequence != r.segmentReader.Value().SequenceNumber {
		return r.fail(fmt.Errorf("the record claims sequence number %d but is stored at %d", record.Sequence, r.segmentReader.Value().SequenceNumber))
	}
	r.value = record
	return true
}

// fail decides whether a broken entry ends replay gracefully or is an error. Only the tail of the final segment can
// legitimately hold a partially written entry.
func (r *Reader) fail(cause error) bool {
	if r.onFinalSegment() {
		r.tailTruncated = true
		ReplayTruncatedTotal.Inc()
		r.err = nil
		return false
	}
	r.err = fmt.Errorf("the write-ahead log is damaged in segment %q: %w", r.segmentReader.FilePath(), cause)
	return false
}

func (r *Reader) onFinalSegment() bool {
	return r.index+1 >= len(r.segments)
}

// Value returns the last record read. The value is only valid after a call to Next() which returned true.
func (r *Reader) Value() encoding.Record {
	return r.value
}

// Err returns the error for the last call to Next().
func (r *Reader) Err() error {
	return r.err
}

// TailTruncated reports if replay was cut short by a partially written entry at the tail of the final segment.
func (r *Reader) TailTruncated() bool {
	return r.tailTruncated
}

// Close closes the currently open segment file.
func (r *Reader) Close() error {
	return r.segmentReader.Close()
}

// ReadAll replays the write-ahead log in the given directory and returns all records in append order. Replay stops
// in front of a partially written entry at the tail, per the tail truncation rule.
func ReadAll(directory string) ([]encoding.Record, error) {
	reader, err := NewReader(directory)
	if err != nil {
		return nil, err
	}
	defer reader.Close() //nolint:errcheck // The segment file is only open for reading.

	var result []encoding.Record
	for reader.Next() {
		result = append(result, reader.Value())
	}
	return result, reader.Err()
}
