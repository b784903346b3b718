package playback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soundcrate/playercore/internal/audio"
	"github.com/soundcrate/playercore/internal/domain/tracking"
	"github.com/soundcrate/playercore/internal/host"
	"github.com/soundcrate/playercore/internal/notify"
)

const (
	// DefaultReadyTimeout bounds how long a play attempt waits for the
	// sink to become playable before failing as a load timeout.
	DefaultReadyTimeout = 10 * time.Second

	// DefaultResolveTimeout bounds the secure-URL exchange.
	DefaultResolveTimeout = 30 * time.Second
)

// Resolver produces a playable URL for a raw audio reference.
type Resolver interface {
	Resolve(ctx context.Context, ref string) string
}

// Engine is the playback state machine. It exclusively owns the audio sink;
// no other component touches the sink's source, position or volume. All
// methods are safe for concurrent use.
//
// A new PlayTrack call supersedes any still-resolving one: resolutions are
// not cancelled, their completions are discarded when the resolved track no
// longer matches the current target.
type Engine struct {
	sink     audio.Sink
	resolver Resolver
	session  Session
	notifier notify.Notifier
	journal  *tracking.Journal
	clock    host.Clock

	readyTimeout   time.Duration
	resolveTimeout time.Duration

	mu       sync.RWMutex
	current  *Track
	playing  bool
	playlist []Track
	index    int
}

// EngineOption is a functional option for configuring the engine.
type EngineOption func(*Engine)

// WithJournal wires the tracking journal the engine emits play events into.
func WithJournal(j *tracking.Journal) EngineOption {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithEngineClock substitutes the time source (used by tests).
func WithEngineClock(c host.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithReadyTimeout overrides the play-readiness timeout.
func WithReadyTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.readyTimeout = d
	}
}

// NewEngine creates a playback engine driving sink. The engine subscribes
// to the sink's ended and error events; it auto-advances the playlist on
// natural end and surfaces classified errors.
func NewEngine(sink audio.Sink, resolver Resolver, session Session, notifier notify.Notifier, opts ...EngineOption) *Engine {
	e := &Engine{
		sink:           sink,
		resolver:       resolver,
		session:        session,
		notifier:       notifier,
		clock:          host.SystemClock{},
		readyTimeout:   DefaultReadyTimeout,
		resolveTimeout: DefaultResolveTimeout,
		index:          -1,
	}

	for _, opt := range opts {
		opt(e)
	}

	sink.OnEnded(e.handleEnded)
	sink.OnError(e.handleSinkError)
	return e
}

// State returns a snapshot of the playback state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var cur *Track
	if e.current != nil {
		c := *e.current
		cur = &c
	}
	return State{
		CurrentTrack: cur,
		IsPlaying:    e.playing,
		Playlist:     append([]Track(nil), e.playlist...),
		CurrentIndex: e.index,
	}
}

// PlayTrack starts playback of track. When newPlaylist is non-nil it
// replaces the playlist and the index is the track's position within it;
// otherwise the track is located in the existing playlist, defaulting to
// index 0 when absent. Playback requires a logged-in session and a usable
// audio reference; either precondition failing surfaces a notification and
// leaves the state unchanged.
func (e *Engine) PlayTrack(track Track, newPlaylist []Track) {
	if !e.session.IsLoggedIn() {
		log.Debug().Int64("trackId", track.ID).Msg("Playback blocked, no session")
		e.notifier.LoginRequired()
		return
	}

	ref := track.AudioReference()
	if ref == "" {
		log.Warn().Int64("trackId", track.ID).Msg("Track has no audio reference")
		e.notifier.InvalidAudio()
		return
	}

	e.mu.Lock()
	if newPlaylist != nil {
		e.playlist = append([]Track(nil), newPlaylist...)
		e.index = indexOf(e.playlist, track.ID)
	} else {
		idx := indexOf(e.playlist, track.ID)
		if idx == -1 {
			// Tolerant default: PlayTrack is sometimes called without
			// full playlist context.
			idx = 0
		}
		e.index = idx
	}
	t := track
	e.current = &t
	e.playing = true
	e.mu.Unlock()

	log.Info().
		Int64("trackId", track.ID).
		Str("title", track.Title).
		Str("artist", track.Artist).
		Msg("Playing track")

	go e.resolveAndStart(track.ID, ref)
}

// PauseTrack pauses playback, keeping the current track and position.
func (e *Engine) PauseTrack() {
	e.mu.Lock()
	e.playing = false
	e.mu.Unlock()

	e.sink.Pause()
	log.Debug().Msg("Paused")
}

// StopTrack fully resets the engine to idle: no current track, index -1,
// sink position rewound to zero.
func (e *Engine) StopTrack() {
	e.mu.Lock()
	e.current = nil
	e.index = -1
	e.playing = false
	e.mu.Unlock()

	e.sink.Pause()
	e.sink.Seek(0)
	log.Debug().Msg("Stopped")
}

// TogglePlayPause pauses when playing and resumes when paused. Resuming
// respects sink readiness: when the sink is not yet playable the play call
// is deferred to the readiness event rather than issued blindly. No-op
// without a current track.
func (e *Engine) TogglePlayPause() {
	e.mu.Lock()
	if e.current == nil {
		e.mu.Unlock()
		return
	}
	if e.playing {
		e.mu.Unlock()
		e.PauseTrack()
		return
	}
	trackID := e.current.ID
	e.mu.Unlock()

	e.attemptPlay(trackID)
}

// NextTrack advances circularly through the playlist.
func (e *Engine) NextTrack() {
	e.step(1)
}

// PreviousTrack steps back circularly through the playlist.
func (e *Engine) PreviousTrack() {
	e.step(-1)
}

// step moves delta positions through the playlist, wrapping at both ends.
// No-op with an empty playlist or no current index.
func (e *Engine) step(delta int) {
	e.mu.RLock()
	if len(e.playlist) == 0 || e.index < 0 {
		e.mu.RUnlock()
		return
	}
	next := (e.index + delta + len(e.playlist)) % len(e.playlist)
	track := e.playlist[next]
	e.mu.RUnlock()

	e.PlayTrack(track, nil)
}

// Seek moves the playback position, in seconds.
func (e *Engine) Seek(seconds float64) {
	e.sink.Seek(seconds)
}

// resolveAndStart resolves the secure URL and binds it to the sink, unless
// a newer PlayTrack call superseded this one while the exchange ran.
func (e *Engine) resolveAndStart(trackID int64, ref string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.resolveTimeout)
	defer cancel()

	resolved := e.resolver.Resolve(ctx, ref)

	if !e.isCurrent(trackID) {
		log.Debug().Int64("trackId", trackID).Msg("Discarding stale URL resolution")
		return
	}

	// Only rebind when the URL actually changed, to avoid a redundant
	// reload. After a rebind the sink must reload before playing.
	if e.sink.Source() != resolved {
		e.sink.SetSource(resolved)
		e.sink.Load()
	}

	e.attemptPlay(trackID)
}

// attemptPlay plays the sink once it is safe to: not in an error state and
// ready enough. Insufficient readiness defers to the can-play event with a
// bounded timeout instead of hanging indefinitely.
func (e *Engine) attemptPlay(trackID int64) {
	if code := e.sink.Error(); code != audio.ErrNone {
		e.failPlayback(trackID, classifySinkError(code))
		return
	}

	if e.sink.ReadyState() >= audio.HaveCurrentData {
		e.startPlayback(trackID)
		return
	}

	var once sync.Once
	timer := e.clock.AfterFunc(e.readyTimeout, func() {
		once.Do(func() {
			log.Warn().Int64("trackId", trackID).Msg("Sink did not become playable in time")
			e.failPlayback(trackID, ErrorTimeout)
		})
	})
	e.sink.OnCanPlay(func() {
		if timer.Stop() {
			once.Do(func() {
				e.startPlayback(trackID)
			})
		}
	})
}

// startPlayback issues the actual play call, discarding stale attempts.
func (e *Engine) startPlayback(trackID int64) {
	if !e.isCurrent(trackID) {
		return
	}

	if err := e.sink.Play(); err != nil {
		log.Warn().Err(err).Int64("trackId", trackID).Msg("Play rejected by sink")
		e.failPlayback(trackID, classifyPlayError(err))
		return
	}

	e.mu.Lock()
	if e.current != nil && e.current.ID == trackID {
		e.playing = true
	}
	e.mu.Unlock()
}

// failPlayback forces isPlaying off and surfaces the classified error. The
// current track is kept so the user can retry. Stale failures (the engine
// already moved on) are dropped silently.
func (e *Engine) failPlayback(trackID int64, class ErrorClass) {
	e.mu.Lock()
	if e.current == nil || e.current.ID != trackID {
		e.mu.Unlock()
		return
	}
	e.playing = false
	e.mu.Unlock()

	surfaceError(e.notifier, class)
}

// handleEnded reacts to the sink reaching natural end: the finished play is
// journaled and the playlist advances instead of stopping.
func (e *Engine) handleEnded() {
	e.mu.RLock()
	cur := e.current
	e.mu.RUnlock()
	if cur == nil {
		return
	}

	if e.journal != nil {
		e.journal.Record(cur.ID, tracking.EventPlay, tracking.EventMetadata{
			Duration: int(e.sink.Duration()),
			Source:   "player",
		})
	}

	e.NextTrack()
}

// handleSinkError surfaces sink-reported media errors.
func (e *Engine) handleSinkError(code audio.ErrorCode) {
	e.mu.RLock()
	cur := e.current
	e.mu.RUnlock()
	if cur == nil {
		return
	}

	log.Warn().
		Int64("trackId", cur.ID).
		Int("code", int(code)).
		Msg("Sink reported media error")
	e.failPlayback(cur.ID, classifySinkError(code))
}

// isCurrent reports whether trackID is still the engine's target.
func (e *Engine) isCurrent(trackID int64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current != nil && e.current.ID == trackID
}

// indexOf locates a track by ID, returning -1 when absent.
func indexOf(playlist []Track, trackID int64) int {
	for i, t := range playlist {
		if t.ID == trackID {
			return i
		}
	}
	return -1
}
