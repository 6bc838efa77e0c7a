// Package wal provides the write-ahead log of the key-value store.
//
// The on-disk structure looks like this:
//
//   - The write-ahead log is made up of multiple segment files. All segment files are located in the same directory.
//     Every segment file has the sequence number of its first entry as its file name, padded with leading zeros to be
//     20 characters in length with a `.wal` file extension.
//   - Each segment file consists of a file header describing some details of the entries stored in the segment. After
//     the file header, the entries follow one after the other. Each entry is made up of a length, a payload and a
//     checksum. The payload is a single key-value store operation, optionally compressed.
//   - Sequence numbers uniquely identify every entry. They are unsigned 64-bit integers which are monotonically
//     increasing across segment rotation and process restarts.
//
// Every mutation of the key-value store is appended here and flushed to stable storage before it is applied to the
// in-memory state. Replaying all entries in order reconstructs that state after a crash.
package wal
