package tracking

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Syncer performs one batch exchange with the remote aggregator and
// reconciles the journal with the outcome. Delivery is at-least-once: the
// server is expected to deduplicate on timestamp+trackId+type.
type Syncer struct {
	journal   *Journal
	transport Transport

	mu      sync.Mutex
	syncing bool
}

// NewSyncer creates a syncer flushing journal batches through transport.
func NewSyncer(journal *Journal, transport Transport) *Syncer {
	return &Syncer{
		journal:   journal,
		transport: transport,
	}
}

// IsSyncing reports whether a flush is currently in flight.
func (s *Syncer) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncing
}

// Sync sends the full pending snapshot to the aggregator. If a sync is
// already in flight the call is a no-op: the in-flight exchange covers the
// queue it snapshotted and the next trigger picks up the rest. Failures are
// absorbed: the queue stays intact for retry and the failure counter grows.
func (s *Syncer) Sync(ctx context.Context) {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		log.Debug().Msg("Sync already in flight, skipping")
		return
	}
	s.syncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	batch := s.journal.PendingSnapshot()
	if len(batch) == 0 {
		return
	}

	processed, err := s.transport.PushEvents(ctx, batch)
	if err != nil {
		s.journal.RecordSyncFailure()
		log.Warn().
			Err(err).
			Int("batch", len(batch)).
			Int("failures", s.journal.SyncState().FailureCount).
			Msg("Event sync failed, batch retained for retry")
		return
	}

	s.journal.RecordSyncSuccess()
	log.Debug().
		Int("sent", len(batch)).
		Int("processed", processed).
		Msg("Event batch synced")
}
