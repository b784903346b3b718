// Package tracking provides the local-first journal of user-action events
// and its batched synchronization with the remote aggregation endpoint.
// Recording is best-effort: no tracking failure ever blocks the user action
// that produced the event.
package tracking

import "context"

// EventType identifies the kind of user action an event records.
type EventType string

// Event types recognized by the journal.
const (
	EventDownload EventType = "download"
	EventPlay     EventType = "play"
	EventLike     EventType = "like"
	EventUnlike   EventType = "unlike"
)

// EventMetadata carries optional context captured with an event.
type EventMetadata struct {
	Duration  int    `json:"duration,omitempty"` // Seconds listened, for play events
	Source    string `json:"source,omitempty"`   // Page or feature that triggered the action
	UserAgent string `json:"userAgent,omitempty"`
	SessionID string `json:"sessionId"`
}

// TrackEvent is an immutable fact about a user action. Events are never
// mutated after recording; they age out of the journal by retention and out
// of the pending queue by successful sync or the one-hour purge.
type TrackEvent struct {
	TrackID   int64         `json:"trackId"`
	Timestamp int64         `json:"timestamp"` // Epoch milliseconds
	Type      EventType     `json:"type"`
	Metadata  EventMetadata `json:"metadata"`
}

// UserStats is the derived aggregate updated in lock-step with recording.
// Counts never go negative; unlike decrements TotalLikes with a floor of
// zero.
type UserStats struct {
	TotalDownloads  int      `json:"totalDownloads"`
	TotalPlays      int      `json:"totalPlays"`
	TotalLikes      int      `json:"totalLikes"`
	LastActivity    int64    `json:"lastActivity"` // Epoch milliseconds
	FavoriteGenres  []string `json:"favoriteGenres"`
	FavoriteArtists []string `json:"favoriteArtists"`
}

// SyncState is the sync bookkeeping persisted alongside the journal.
type SyncState struct {
	IsSyncing         bool  `json:"-"` // Re-entrancy guard, never persisted
	LastSyncTimestamp int64 `json:"lastSyncTimestamp"`
	FailureCount      int   `json:"failureCount"`
}

// Transport performs one network exchange of a batch of events with the
// remote aggregator. It returns the number of events the server reports
// processed. Any transport or non-success response is returned as an error;
// the caller treats the whole batch as failed and keeps it queued.
type Transport interface {
	PushEvents(ctx context.Context, events []TrackEvent) (processed int, err error)
}
