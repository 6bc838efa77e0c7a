package wal

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// SyncPolicyGrouped batches several entries into a single flush. Every EntryAppended call blocks until a flush
// covering its sequence number completed, so the durability guarantee of Append still holds while concurrent
// appenders share the cost of a single flush.
type SyncPolicyGrouped struct {
	syncAfter time.Duration

	shutdown          chan struct{}
	shutdownWaitGroup sync.WaitGroup

	mutex                 sync.Mutex
	backgroundSync        sync.Cond
	syncer                Syncer
	syncTimer             *time.Timer
	syncTimerActive       bool
	pendingSequenceNumber uint64
	syncedSequenceNumber  uint64
	err                   error
}

// SyncPolicyGrouped implements SyncPolicy.
var _ SyncPolicy = (*SyncPolicyGrouped)(nil)

func NewSyncPolicyGrouped(syncAfter time.Duration) *SyncPolicyGrouped {
	newPolicy := SyncPolicyGrouped{
		syncAfter: syncAfter,
		syncTimer: time.NewTimer(math.MaxInt64),
	}
	newPolicy.backgroundSync.L = &newPolicy.mutex
	return &newPolicy
}

func (s *SyncPolicyGrouped) Startup(syncer Syncer) error {
	s.mutex.Lock()
	s.syncer = syncer
	s.err = nil
	s.mutex.Unlock()

	s.shutdown = make(chan struct{})
	s.shutdownWaitGroup.Add(1)
	go s.backgroundTask()
	return nil
}

func (s *SyncPolicyGrouped) EntryAppended(sequenceNumber uint64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.syncTimerActive {
		s.syncTimer.Reset(s.syncAfter)
		s.syncTimerActive = true
	}

	s.pendingSequenceNumber = max(s.pendingSequenceNumber, sequenceNumber)
	for s.syncedSequenceNumber < sequenceNumber && s.err == nil {
		s.backgroundSync.Wait()
	}
	return s.err
}

func (s *SyncPolicyGrouped) Shutdown() error {
	// Shut down and wait for the background sync to exit before doing the final flush.
	s.syncTimer.Stop()
	close(s.shutdown)
	s.shutdownWaitGroup.Wait()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.syncNow(); err != nil {
		return err
	}
	return s.err
}

func (s *SyncPolicyGrouped) backgroundTask() {
	defer s.shutdownWaitGroup.Done()
	for {
		select {
		case <-s.syncTimer.C:
			s.periodicSync()
		case <-s.shutdown:
			return
		}
	}
}

func (s *SyncPolicyGrouped) periodicSync() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.syncNow(); err != nil {
		// The error was recorded and is reported to all blocked and future appenders.
		return
	}
	s.syncTimerActive = false
}

func (s *SyncPolicyGrouped) syncNow() error {
	if s.syncedSequenceNumber == s.pendingSequenceNumber {
		return nil
	}

	if err := s.syncer.Sync(); err != nil {
		s.err = fmt.Errorf("flushing the segment file: %w", err)
		s.backgroundSync.Broadcast()
		return s.err
	}
	s.syncedSequenceNumber = s.pendingSequenceNumber
	s.backgroundSync.Broadcast()
	return nil
}
