// Package playback provides the authoritative state machine for what is
// playing and what plays next: current track, playlist position, play/pause,
// secure-URL resolution and sink error handling.
package playback

// Track is the external track shape the engine consumes. It carries up to
// three raw audio references; AudioReference picks the first usable one.
type Track struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	PreviewURL  string `json:"previewUrl,omitempty"`
	URL         string `json:"url,omitempty"`
}

// AudioReference returns the track's raw audio reference, preferring the
// full download over the preview, or "" when the track carries none.
func (t Track) AudioReference() string {
	switch {
	case t.DownloadURL != "":
		return t.DownloadURL
	case t.PreviewURL != "":
		return t.PreviewURL
	default:
		return t.URL
	}
}

// State is a snapshot of the engine's playback state. CurrentIndex is -1
// when no track is bound, otherwise a valid index into Playlist.
type State struct {
	CurrentTrack *Track
	IsPlaying    bool
	Playlist     []Track
	CurrentIndex int
}

// Session exposes the read-only authentication fact gating playback.
type Session interface {
	IsLoggedIn() bool
}

// SessionFunc adapts a func to the Session interface.
type SessionFunc func() bool

func (f SessionFunc) IsLoggedIn() bool { return f() }
