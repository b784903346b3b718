// Package audio defines the playback output capability consumed by the
// playback engine. The engine never touches a concrete media API; it drives
// whatever Sink the host provides (a browser media element bridge, an MPD
// daemon, or a fake in tests).
package audio

// ReadyState reports how far the sink has progressed toward being able to
// play without stalling. Values mirror the HTML media element ladder.
type ReadyState int

const (
	// HaveNothing means no information about the bound source is available.
	HaveNothing ReadyState = iota

	// HaveMetadata means duration and format are known.
	HaveMetadata

	// HaveCurrentData means data for the current position is available.
	HaveCurrentData

	// HaveFutureData means playback can start but may stall later.
	HaveFutureData

	// HaveEnoughData means playback can proceed uninterrupted.
	HaveEnoughData
)

// ErrorCode classifies a sink-reported media error.
type ErrorCode int

const (
	// ErrNone means no error is pending.
	ErrNone ErrorCode = iota

	// ErrAborted means loading was aborted by the host.
	ErrAborted

	// ErrNetwork means a network failure interrupted fetching.
	ErrNetwork

	// ErrDecode means fetched data could not be decoded.
	ErrDecode

	// ErrSrcNotSupported means the source format is not playable.
	ErrSrcNotSupported
)

// Sink is the audio output owned exclusively by the playback engine.
// Implementations must be safe for concurrent use.
type Sink interface {
	// SetSource binds a playable URL. Binding does not start loading;
	// callers invoke Load afterwards.
	SetSource(url string)

	// Source returns the currently bound URL, or "" if none.
	Source() string

	// Load begins fetching and decoding the bound source.
	Load()

	// Play starts or resumes playback. It returns an error when the host
	// refuses playback (missing gesture, unsupported format, ...).
	Play() error

	// Pause halts playback without unbinding the source.
	Pause()

	// Seek moves the playback position, in seconds.
	Seek(seconds float64)

	// CurrentTime returns the playback position in seconds.
	CurrentTime() float64

	// Duration returns the bound source's duration in seconds, or 0 if
	// unknown.
	Duration() float64

	// ReadyState reports load progress for the bound source.
	ReadyState() ReadyState

	// Error returns the pending media error, if any.
	Error() ErrorCode

	// OnCanPlay registers a one-shot callback fired when ReadyState first
	// reaches HaveCurrentData or better after a Load.
	OnCanPlay(fn func())

	// OnEnded registers a callback fired each time the source plays to its
	// natural end.
	OnEnded(fn func())

	// OnError registers a callback fired when the sink enters an error
	// state, with the classified code.
	OnError(fn func(ErrorCode))
}
