// Package durakv is the public API of the durable key-value store. It re-exports the store, the client and the
// write-ahead log configuration so users do not need to reach into internal packages.
package durakv

import (
	"github.com/durakv/durakv/internal/client"
	"github.com/durakv/durakv/internal/encoding"
	"github.com/durakv/durakv/internal/store"
	"github.com/durakv/durakv/internal/wal"
)

// Store is a single-node key-value store whose durability rests on a write-ahead log.
type Store = store.Store

// Open opens the store in the given data directory, creating it if necessary, and recovers the in-memory state from
// the write-ahead log before returning.
func Open(dataDir string, options ...Option) (*Store, error) {
	return store.Open(dataDir, options...)
}

// Option configures the write-ahead log backing the store.
type Option = wal.Option

var (
	WithMaxSegmentSize      = wal.WithMaxSegmentSize
	WithCompression         = wal.WithCompression
	WithSyncPolicyImmediate = wal.WithSyncPolicyImmediate
	WithSyncPolicyNone      = wal.WithSyncPolicyNone
	WithSyncPolicyGrouped   = wal.WithSyncPolicyGrouped
)

// The compression types available for entry payloads.
const (
	CompressionNone = encoding.CompressionTypeNone
	CompressionZlib = encoding.CompressionTypeZlib
)

// Client is a connection to a server.
type Client = client.Client

// Dial connects to the server at the given address.
func Dial(address string) (*Client, error) {
	return client.Dial(address)
}

// ErrNotFound is returned by Client.Get when the requested key is not present.
var ErrNotFound = client.ErrNotFound
