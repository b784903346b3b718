package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/soundcrate/playercore/internal/infra/store"
)

func newTestSyncer(t *testing.T, transport Transport) (*Journal, *Syncer) {
	t.Helper()
	j := NewJournal(store.NewMemoryStore())
	return j, NewSyncer(j, transport)
}

func TestSyncSuccessReconcilesState(t *testing.T) {
	transport := &recordingTransport{}
	j, syncer := newTestSyncer(t, transport)

	j.Record(1, EventPlay, EventMetadata{})
	j.Record(2, EventLike, EventMetadata{})

	syncer.Sync(context.Background())

	if got := transport.calls(); got != 1 {
		t.Fatalf("transport calls = %d, want 1", got)
	}
	if got := len(transport.lastBatch()); got != 2 {
		t.Errorf("batch size = %d, want 2", got)
	}
	state := j.SyncState()
	if state.LastSyncTimestamp == 0 {
		t.Error("LastSyncTimestamp not advanced after success")
	}
	if state.FailureCount != 0 {
		t.Errorf("FailureCount = %d, want 0", state.FailureCount)
	}
}

func TestSyncFailureRetainsQueue(t *testing.T) {
	transport := &recordingTransport{err: errors.New("aggregator unreachable")}
	j, syncer := newTestSyncer(t, transport)

	j.Record(1, EventPlay, EventMetadata{})
	j.Record(2, EventDownload, EventMetadata{})
	before := j.PendingCount()

	syncer.Sync(context.Background())

	// The batch is retained verbatim for the next attempt.
	if got := j.PendingCount(); got != before {
		t.Errorf("pending count = %d, want %d after failed sync", got, before)
	}
	if got := j.SyncState().FailureCount; got != 1 {
		t.Errorf("FailureCount = %d, want 1", got)
	}

	syncer.Sync(context.Background())
	if got := j.SyncState().FailureCount; got != 2 {
		t.Errorf("FailureCount = %d, want 2 after second failure", got)
	}
}

func TestSyncEmptyQueueIsNoop(t *testing.T) {
	transport := &recordingTransport{}
	_, syncer := newTestSyncer(t, transport)

	syncer.Sync(context.Background())

	if got := transport.calls(); got != 0 {
		t.Errorf("transport calls = %d, want 0 for empty queue", got)
	}
}

func TestConcurrentSyncIsMutuallyExclusive(t *testing.T) {
	transport := &recordingTransport{delay: 100 * time.Millisecond}
	j, syncer := newTestSyncer(t, transport)

	j.Record(1, EventPlay, EventMetadata{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			syncer.Sync(context.Background())
		}()
	}
	wg.Wait()

	// The first caller holds the in-flight flag; the rest are no-ops.
	if got := transport.calls(); got != 1 {
		t.Errorf("transport calls = %d, want 1", got)
	}
	if syncer.IsSyncing() {
		t.Error("IsSyncing still true after all syncs returned")
	}
}
