package wal

// SyncPolicyImmediate flushes the segment to disk after every entry. Append latency is dominated by the flush, but
// an entry is guaranteed to be durable when Append returns. This is the default policy.
type SyncPolicyImmediate struct {
	syncer Syncer
}

// SyncPolicyImmediate implements SyncPolicy.
var _ SyncPolicy = (*SyncPolicyImmediate)(nil)

func NewSyncPolicyImmediate() *SyncPolicyImmediate {
	return &SyncPolicyImmediate{}
}

func (s *SyncPolicyImmediate) Startup(syncer Syncer) error {
	s.syncer = syncer
	return nil
}

func (s *SyncPolicyImmediate) EntryAppended(sequenceNumber uint64) error {
	return s.syncer.Sync()
}

func (s *SyncPolicyImmediate) Shutdown() error {
	return nil
}
