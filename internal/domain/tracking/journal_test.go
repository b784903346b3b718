package tracking

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/soundcrate/playercore/internal/host"
	"github.com/soundcrate/playercore/internal/infra/store"
)

// fakeClock is a controllable time source. Timers fire on the real
// scheduler; only Now is virtual.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) host.Timer {
	return time.AfterFunc(d, fn)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestJournal(t *testing.T) (*Journal, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	j := NewJournal(store.NewMemoryStore(), WithClock(clock))
	return j, clock
}

func TestRecordUpdatesStatsAndSets(t *testing.T) {
	j, _ := newTestJournal(t)

	j.Record(42, EventPlay, EventMetadata{})
	j.Record(42, EventDownload, EventMetadata{})
	j.Record(42, EventLike, EventMetadata{})

	stats := j.Stats()
	if stats.TotalPlays != 1 || stats.TotalDownloads != 1 || stats.TotalLikes != 1 {
		t.Errorf("stats = %+v, want one play, one download, one like", stats)
	}
	if !j.IsPlayed(42) {
		t.Error("expected track 42 played")
	}
	if !j.IsDownloaded(42) {
		t.Error("expected track 42 downloaded")
	}
	if !j.IsLiked(42) {
		t.Error("expected track 42 liked")
	}
	if got := j.PendingCount(); got != 3 {
		t.Errorf("pending count = %d, want 3", got)
	}
}

func TestMembershipIsIdempotent(t *testing.T) {
	j, _ := newTestJournal(t)

	j.Record(7, EventDownload, EventMetadata{})
	j.Record(7, EventDownload, EventMetadata{})

	if !j.IsDownloaded(7) {
		t.Fatal("expected track 7 downloaded")
	}
	// The set holds one occurrence; only the counter grows.
	if got := j.Stats().TotalDownloads; got != 2 {
		t.Errorf("total downloads = %d, want 2", got)
	}
}

func TestLikeUnlikeSymmetry(t *testing.T) {
	j, _ := newTestJournal(t)

	before := j.Stats().TotalLikes
	j.Record(9, EventLike, EventMetadata{})
	j.Record(9, EventUnlike, EventMetadata{})

	if j.IsLiked(9) {
		t.Error("expected track 9 not liked after unlike")
	}
	if got := j.Stats().TotalLikes; got != before {
		t.Errorf("total likes = %d, want %d", got, before)
	}
}

func TestUnlikeNeverGoesNegative(t *testing.T) {
	j, _ := newTestJournal(t)

	j.Record(1, EventUnlike, EventMetadata{})
	j.Record(1, EventUnlike, EventMetadata{})

	if got := j.Stats().TotalLikes; got != 0 {
		t.Errorf("total likes = %d, want 0", got)
	}
}

func TestEventLogRingBuffer(t *testing.T) {
	j, _ := newTestJournal(t)

	for i := 0; i < 1500; i++ {
		j.Record(int64(i), EventPlay, EventMetadata{})
	}

	events := j.Events()
	if len(events) != MaxLogEntries {
		t.Fatalf("event log length = %d, want %d", len(events), MaxLogEntries)
	}
	// The 1000 most recent survive: track IDs 500..1499.
	if got := events[0].TrackID; got != 500 {
		t.Errorf("oldest surviving event trackId = %d, want 500", got)
	}
	if got := events[len(events)-1].TrackID; got != 1499 {
		t.Errorf("newest event trackId = %d, want 1499", got)
	}
}

func TestCleanupOldDataRespectsRetention(t *testing.T) {
	j, clock := newTestJournal(t)

	j.Record(1, EventPlay, EventMetadata{})
	clock.Advance(40 * 24 * time.Hour)
	j.Record(2, EventPlay, EventMetadata{})

	j.CleanupOldData(30)

	events := j.Events()
	if len(events) != 1 {
		t.Fatalf("event log length = %d, want 1", len(events))
	}
	if events[0].TrackID != 2 {
		t.Errorf("surviving event trackId = %d, want 2", events[0].TrackID)
	}
	// Membership sets record "ever happened" and survive cleanup.
	if !j.IsPlayed(1) {
		t.Error("expected track 1 still marked played after cleanup")
	}
}

func TestSyncSuccessTrimsStalePendingAndResetsFailures(t *testing.T) {
	j, clock := newTestJournal(t)

	j.Record(1, EventPlay, EventMetadata{})
	clock.Advance(2 * time.Hour)
	j.Record(2, EventPlay, EventMetadata{})

	j.RecordSyncFailure()
	if got := j.SyncState().FailureCount; got != 1 {
		t.Fatalf("failure count = %d, want 1", got)
	}

	j.RecordSyncSuccess()

	state := j.SyncState()
	if state.FailureCount != 0 {
		t.Errorf("failure count after success = %d, want 0", state.FailureCount)
	}
	if state.LastSyncTimestamp != clock.Now().UnixMilli() {
		t.Errorf("last sync = %d, want %d", state.LastSyncTimestamp, clock.Now().UnixMilli())
	}
	// The two-hour-old event is purged, the fresh one stays queued.
	pending := j.PendingSnapshot()
	if len(pending) != 1 || pending[0].TrackID != 2 {
		t.Errorf("pending after trim = %+v, want only track 2", pending)
	}
}

func TestPurgeStalePendingBoundsQueueWithoutSync(t *testing.T) {
	j, clock := newTestJournal(t)

	j.Record(1, EventPlay, EventMetadata{})
	clock.Advance(61 * time.Minute)
	j.Record(2, EventPlay, EventMetadata{})

	j.PurgeStalePending()

	if got := j.PendingCount(); got != 1 {
		t.Errorf("pending count = %d, want 1", got)
	}
}

func TestJournalRestoresPersistedState(t *testing.T) {
	kv := store.NewMemoryStore()
	clock := newFakeClock()

	j1 := NewJournal(kv, WithClock(clock))
	j1.Record(5, EventDownload, EventMetadata{})
	j1.Record(6, EventLike, EventMetadata{})
	session := j1.SessionID()

	j2 := NewJournal(kv, WithClock(clock))
	if !j2.IsDownloaded(5) {
		t.Error("expected downloaded set restored")
	}
	if !j2.IsLiked(6) {
		t.Error("expected liked set restored")
	}
	if got := j2.PendingCount(); got != 2 {
		t.Errorf("restored pending count = %d, want 2", got)
	}
	if got := j2.Stats().TotalDownloads; got != 1 {
		t.Errorf("restored total downloads = %d, want 1", got)
	}
	if j2.SessionID() != session {
		t.Errorf("session id = %q, want %q", j2.SessionID(), session)
	}
}

func TestCorruptKeyDegradesGracefully(t *testing.T) {
	kv := store.NewMemoryStore()
	j1 := NewJournal(kv, WithClock(newFakeClock()))
	j1.Record(5, EventDownload, EventMetadata{})

	// Corrupt only the stats blob.
	if err := kv.Set("tracking:stats", "{not json"); err != nil {
		t.Fatal(err)
	}

	j2 := NewJournal(kv, WithClock(newFakeClock()))
	if got := j2.Stats().TotalDownloads; got != 0 {
		t.Errorf("stats from corrupt blob = %d, want zero value", got)
	}
	// The other keys still load.
	if !j2.IsDownloaded(5) {
		t.Error("expected downloaded set to survive corrupt stats key")
	}
}

func TestRecordFillsSessionMetadata(t *testing.T) {
	j, _ := newTestJournal(t)

	j.Record(3, EventPlay, EventMetadata{})

	events := j.Events()
	if len(events) != 1 {
		t.Fatal("expected one event")
	}
	if events[0].Metadata.SessionID != j.SessionID() {
		t.Errorf("session id = %q, want %q", events[0].Metadata.SessionID, j.SessionID())
	}
	if events[0].Metadata.UserAgent == "" {
		t.Error("expected user agent to be stamped")
	}
}

func TestRecordSurvivesFailingStore(t *testing.T) {
	j := NewJournal(failingStore{}, WithClock(newFakeClock()))

	// Must not panic or propagate the storage error.
	j.Record(1, EventPlay, EventMetadata{})

	if !j.IsPlayed(1) {
		t.Error("expected in-memory state despite failing store")
	}
}

// failingStore rejects every operation.
type failingStore struct{}

var errFailingStore = errors.New("store unavailable")

func (failingStore) Get(string) (string, error) { return "", errFailingStore }
func (failingStore) Set(string, string) error   { return errFailingStore }
func (failingStore) Remove(string) error        { return errFailingStore }
