package wal

// Syncer is the part of a segment writer a sync policy needs to flush entries to stable storage.
type Syncer interface {
	Sync() error
}

// SyncPolicy describes how appended entries are flushed to stable storage. A policy is started against the current
// segment writer and shut down before the segment is closed, which happens on rotation and on closing the
// write-ahead log.
type SyncPolicy interface {
	// Startup attaches the policy to the given syncer. It is called once when the write-ahead log is opened and
	// again after every segment rotation.
	Startup(syncer Syncer) error

	// EntryAppended is called after the entry with the given sequence number was written. When EntryAppended returns
	// without error, the entry must be durable, unless the policy explicitly trades durability for performance.
	EntryAppended(sequenceNumber uint64) error

	// Shutdown detaches the policy from the current syncer, flushing anything still pending.
	Shutdown() error
}
