package tracking

import (
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/soundcrate/playercore/internal/host"
	"github.com/soundcrate/playercore/internal/infra/store"
	"github.com/soundcrate/playercore/internal/version"
)

const (
	// MaxLogEntries caps the event log; oldest entries drop first.
	MaxLogEntries = 1000

	// DefaultRetentionDays bounds how long events stay in the log.
	DefaultRetentionDays = 30

	// PendingMaxAge bounds how long an event may sit in the pending queue,
	// synced or not.
	PendingMaxAge = time.Hour
)

// Storage keys. Each key is an independent JSON blob; a corrupt key loads
// as its zero value without affecting the others.
const (
	keyEvents    = "tracking:events"
	keyStats     = "tracking:stats"
	keyDownloads = "tracking:downloaded"
	keyLiked     = "tracking:liked"
	keyPlayed    = "tracking:played"
	keyPending   = "tracking:pending_sync"
	keySyncState = "tracking:sync_state"
	keySession   = "tracking:session_id"
)

// Journal is the durable, idempotent local record of user actions and the
// aggregates derived from them. All methods are safe for concurrent use.
// Recording never returns an error: storage failures are logged and the
// operation degrades to in-memory only.
type Journal struct {
	mu        sync.RWMutex
	store     store.KeyValueStore
	clock     host.Clock
	sessionID string
	userAgent string

	events     []TrackEvent
	stats      UserStats
	downloaded map[int64]struct{}
	liked      map[int64]struct{}
	played     map[int64]struct{}
	pending    []TrackEvent
	syncState  SyncState

	onRecord func()
}

// JournalOption is a functional option for configuring the journal.
type JournalOption func(*Journal)

// WithClock substitutes the time source (used by tests).
func WithClock(c host.Clock) JournalOption {
	return func(j *Journal) {
		j.clock = c
	}
}

// WithUserAgent overrides the user agent stamped into event metadata.
func WithUserAgent(ua string) JournalOption {
	return func(j *Journal) {
		j.userAgent = ua
	}
}

// NewJournal creates a journal backed by kv, loading any state persisted by
// a prior session.
func NewJournal(kv store.KeyValueStore, opts ...JournalOption) *Journal {
	j := &Journal{
		store:      kv,
		clock:      host.SystemClock{},
		userAgent:  version.UserAgent(),
		downloaded: make(map[int64]struct{}),
		liked:      make(map[int64]struct{}),
		played:     make(map[int64]struct{}),
	}

	for _, opt := range opts {
		opt(j)
	}

	j.load()

	if j.sessionID == "" {
		j.sessionID = uuid.New().String()
		j.persist(keySession, j.sessionID)
	}

	return j
}

// SetRecordListener registers fn to run after every successful Record call.
// The scheduler uses this to evaluate its flush triggers.
func (j *Journal) SetRecordListener(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onRecord = fn
}

// SessionID returns the identifier stamped into this session's events.
func (j *Journal) SessionID() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.sessionID
}

// Record appends an event for trackID, updates the derived aggregates and
// membership sets, and queues the event for sync. It never fails: tracking
// must not block the action being tracked.
func (j *Journal) Record(trackID int64, typ EventType, meta EventMetadata) {
	j.mu.Lock()

	if meta.SessionID == "" {
		meta.SessionID = j.sessionID
	}
	if meta.UserAgent == "" {
		meta.UserAgent = j.userAgent
	}

	now := j.clock.Now().UnixMilli()
	event := TrackEvent{
		TrackID:   trackID,
		Timestamp: now,
		Type:      typ,
		Metadata:  meta,
	}

	j.events = append(j.events, event)
	if len(j.events) > MaxLogEntries {
		j.events = j.events[len(j.events)-MaxLogEntries:]
	}

	j.stats.LastActivity = now
	switch typ {
	case EventDownload:
		j.stats.TotalDownloads++
		j.downloaded[trackID] = struct{}{}
	case EventPlay:
		j.stats.TotalPlays++
		j.played[trackID] = struct{}{}
	case EventLike:
		j.stats.TotalLikes++
		j.liked[trackID] = struct{}{}
	case EventUnlike:
		if j.stats.TotalLikes > 0 {
			j.stats.TotalLikes--
		}
		delete(j.liked, trackID)
	default:
		log.Warn().Str("type", string(typ)).Msg("Unknown event type recorded")
	}

	j.pending = append(j.pending, event)

	j.persistAllLocked()

	onRecord := j.onRecord
	j.mu.Unlock()

	log.Debug().
		Int64("trackId", trackID).
		Str("type", string(typ)).
		Msg("Recorded track event")

	if onRecord != nil {
		onRecord()
	}
}

// IsDownloaded reports whether trackID was ever downloaded.
func (j *Journal) IsDownloaded(trackID int64) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	_, ok := j.downloaded[trackID]
	return ok
}

// IsLiked reports whether trackID is currently liked.
func (j *Journal) IsLiked(trackID int64) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	_, ok := j.liked[trackID]
	return ok
}

// IsPlayed reports whether trackID was ever played.
func (j *Journal) IsPlayed(trackID int64) bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	_, ok := j.played[trackID]
	return ok
}

// Stats returns a snapshot of the derived aggregates.
func (j *Journal) Stats() UserStats {
	j.mu.RLock()
	defer j.mu.RUnlock()

	stats := j.stats
	stats.FavoriteGenres = append([]string(nil), j.stats.FavoriteGenres...)
	stats.FavoriteArtists = append([]string(nil), j.stats.FavoriteArtists...)
	return stats
}

// Events returns a snapshot of the event log, oldest first.
func (j *Journal) Events() []TrackEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]TrackEvent(nil), j.events...)
}

// PendingCount returns the number of events awaiting sync.
func (j *Journal) PendingCount() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.pending)
}

// PendingSnapshot returns a copy of the pending queue in record order.
func (j *Journal) PendingSnapshot() []TrackEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]TrackEvent(nil), j.pending...)
}

// SyncState returns the current sync bookkeeping.
func (j *Journal) SyncState() SyncState {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.syncState
}

// RecordSyncSuccess advances the sync timestamp, resets the failure count
// and purges pending entries older than PendingMaxAge. Age-based trimming is
// an approximation: the endpoint acknowledges only a processed count, not
// per-event IDs, so what was almost certainly just sent is removed while
// events recorded concurrently with the exchange stay queued.
func (j *Journal) RecordSyncSuccess() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.syncState.LastSyncTimestamp = j.clock.Now().UnixMilli()
	j.syncState.FailureCount = 0
	j.trimPendingLocked()

	j.persist(keyPending, j.pending)
	j.persist(keySyncState, j.syncState)
}

// RecordSyncFailure increments the failure counter. The pending queue is
// left untouched so the batch retries on the next trigger.
func (j *Journal) RecordSyncFailure() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.syncState.FailureCount++
	j.persist(keySyncState, j.syncState)
}

// PurgeStalePending drops pending entries older than PendingMaxAge
// regardless of sync outcome, bounding the queue when sync is perpetually
// failing.
func (j *Journal) PurgeStalePending() {
	j.mu.Lock()
	defer j.mu.Unlock()

	before := len(j.pending)
	j.trimPendingLocked()
	if len(j.pending) != before {
		j.persist(keyPending, j.pending)
	}
}

// trimPendingLocked removes pending entries older than PendingMaxAge.
func (j *Journal) trimPendingLocked() {
	cutoff := j.clock.Now().Add(-PendingMaxAge).UnixMilli()
	kept := j.pending[:0]
	for _, e := range j.pending {
		if e.Timestamp > cutoff {
			kept = append(kept, e)
		}
	}
	j.pending = kept
}

// CleanupOldData purges events older than the retention window. Membership
// sets are untouched: they record "ever happened", not a time-bounded log.
func (j *Journal) CleanupOldData(retentionDays int) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := j.clock.Now().AddDate(0, 0, -retentionDays).UnixMilli()
	kept := j.events[:0]
	for _, e := range j.events {
		if e.Timestamp > cutoff {
			kept = append(kept, e)
		}
	}

	removed := len(j.events) - len(kept)
	j.events = kept
	if removed > 0 {
		j.persist(keyEvents, j.events)
		log.Info().Int("removed", removed).Msg("Purged expired track events")
	}
}

// persistAllLocked writes every journal key. Failures are logged, never
// propagated.
func (j *Journal) persistAllLocked() {
	j.persist(keyEvents, j.events)
	j.persist(keyStats, j.stats)
	j.persist(keyDownloads, setToSlice(j.downloaded))
	j.persist(keyLiked, setToSlice(j.liked))
	j.persist(keyPlayed, setToSlice(j.played))
	j.persist(keyPending, j.pending)
}

// persist marshals v and stores it under key, swallowing failures.
func (j *Journal) persist(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to marshal tracking state")
		return
	}
	if err := j.store.Set(key, string(data)); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to persist tracking state")
	}
}

// load restores each key independently so one corrupt blob cannot poison
// the rest of the store.
func (j *Journal) load() {
	loadKey(j.store, keyEvents, &j.events)
	loadKey(j.store, keyStats, &j.stats)
	loadKey(j.store, keyPending, &j.pending)
	loadKey(j.store, keySyncState, &j.syncState)
	loadKey(j.store, keySession, &j.sessionID)

	var ids []int64
	if loadKey(j.store, keyDownloads, &ids) {
		j.downloaded = sliceToSet(ids)
	}
	ids = nil
	if loadKey(j.store, keyLiked, &ids) {
		j.liked = sliceToSet(ids)
	}
	ids = nil
	if loadKey(j.store, keyPlayed, &ids) {
		j.played = sliceToSet(ids)
	}

	if len(j.events) > 0 || len(j.pending) > 0 {
		log.Info().
			Int("events", len(j.events)).
			Int("pending", len(j.pending)).
			Msg("Restored tracking journal")
	}
}

// loadKey reads one blob into v, reporting whether the key held a usable
// value.
func loadKey(kv store.KeyValueStore, key string, v any) bool {
	blob, err := kv.Get(key)
	if err != nil {
		if err != store.ErrNotFound {
			log.Warn().Err(err).Str("key", key).Msg("Failed to read tracking state")
		}
		return false
	}
	if err := json.Unmarshal([]byte(blob), v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding corrupt tracking state")
		return false
	}
	return true
}

func setToSlice(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

func sliceToSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
