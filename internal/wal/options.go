package wal

import (
	"time"

	"github.com/durakv/durakv/internal/encoding"
)

// RotationCallback is the callback users can register for getting notified when the write-ahead log rotates into a
// new segment. The parameters are the previous and the next segment identified by the first sequence number of the
// entries stored inside.
type RotationCallback func(previousSegment uint64, nextSegment uint64)

// DefaultRotationCallback provides a callback which does nothing.
var DefaultRotationCallback RotationCallback = func(previousSegment uint64, nextSegment uint64) {}

// Option describes the function signature which all write-ahead log options need to implement.
type Option func(w *WAL)

// WithMaxSegmentSize overwrites the default maximum segment size which causes rotation into a new segment when
// reached.
func WithMaxSegmentSize(maxSegmentSize int64) Option {
	return func(w *WAL) {
		// We need to prevent zero entry segments as they would result in duplicate segment file names. We therefore
		// enforce at least one byte more than the header to have at least one entry in each segment.
		w.maxSegmentSize = max(maxSegmentSize, encoding.HeaderSize+1)
	}
}

// WithEntryLengthEncoding overwrites the default entry length encoding for newly created segments.
func WithEntryLengthEncoding(entryLengthEncoding encoding.EntryLengthEncoding) Option {
	return func(w *WAL) {
		w.entryLengthEncoding = entryLengthEncoding
	}
}

// WithEntryChecksumType overwrites the default entry checksum type for newly created segments.
func WithEntryChecksumType(entryChecksumType encoding.EntryChecksumType) Option {
	return func(w *WAL) {
		w.entryChecksumType = entryChecksumType
	}
}

// WithCompression overwrites the default compression applied to entry payloads.
func WithCompression(compression encoding.CompressionType) Option {
	return func(w *WAL) {
		w.compression = compression
	}
}

// WithSyncPolicyImmediate overwrites the default sync policy with sync policy immediate.
func WithSyncPolicyImmediate() Option {
	return func(w *WAL) {
		w.syncPolicy = NewSyncPolicyImmediate()
	}
}

// WithSyncPolicyNone overwrites the default sync policy with sync policy none.
func WithSyncPolicyNone() Option {
	return func(w *WAL) {
		w.syncPolicy = NewSyncPolicyNone()
	}
}

// WithSyncPolicyGrouped overwrites the default sync policy with sync policy grouped.
func WithSyncPolicyGrouped(syncAfter time.Duration) Option {
	return func(w *WAL) {
		w.syncPolicy = NewSyncPolicyGrouped(syncAfter)
	}
}

// WithRotationCallback sets the given callback for being triggered when the current segment is rotated.
func WithRotationCallback(rotationCallback RotationCallback) Option {
	return func(w *WAL) {
		w.rotationCallback = rotationCallback
	}
}
