package wal

// SyncPolicyNone never flushes the segment to disk explicitly. This improves performance considerably but loses the
// durability guarantee of Append, so it is only suitable for tests and benchmarks.
type SyncPolicyNone struct{}

// SyncPolicyNone implements SyncPolicy.
var _ SyncPolicy = (*SyncPolicyNone)(nil)

func NewSyncPolicyNone() *SyncPolicyNone {
	return &SyncPolicyNone{}
}

func (s *SyncPolicyNone) Startup(syncer Syncer) error {
	return nil
}

func (s *SyncPolicyNone) EntryAppended(sequenceNumber uint64) error {
	return nil
}

func (s *SyncPolicyNone) Shutdown() error {
	return nil
}
