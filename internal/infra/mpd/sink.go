// Package mpd implements the audio sink on top of an MPD daemon via gompd,
// for headless hosts that play through the music player daemon instead of a
// browser media element.
package mpd

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"

	"github.com/soundcrate/playercore/internal/audio"
)

// Sink drives MPD as an audio.Sink. It maintains a single-entry MPD queue
// holding the currently bound source and watches the player subsystem to
// translate MPD state transitions into sink events.
type Sink struct {
	mu       sync.RWMutex
	client   *mpd.Client
	watcher  *mpd.Watcher
	host     string
	port     int
	password string

	source    string
	loaded    bool
	lastState string
	errCode   audio.ErrorCode

	canPlayFns []func()
	endedFns   []func()
	errorFns   []func(audio.ErrorCode)
}

// NewSink creates an MPD sink. Call Connect before use.
func NewSink(host string, port int, password string) *Sink {
	return &Sink{
		host:     host,
		port:     port,
		password: password,
	}
}

// Connect establishes the MPD connection and starts the player watcher.
func (s *Sink) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	watcher, err := mpd.NewWatcher("tcp", addr, s.password, "player")
	if err != nil {
		return fmt.Errorf("failed to start MPD watcher: %w", err)
	}
	s.watcher = watcher
	go s.watch()

	return nil
}

// connectLocked establishes the command connection (must hold lock).
func (s *Sink) connectLocked() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	log.Info().Str("addr", addr).Msg("Connecting to MPD")

	client, err := mpd.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to MPD: %w", err)
	}

	if s.password != "" {
		if err := client.Command("password %s", s.password).OK(); err != nil {
			client.Close()
			return fmt.Errorf("MPD authentication failed: %w", err)
		}
	}

	s.client = client
	return nil
}

// ensureConnected checks the connection and reconnects if needed.
func (s *Sink) ensureConnected() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return s.connectLocked()
	}
	if err := s.client.Ping(); err != nil {
		log.Warn().Err(err).Msg("MPD connection lost, reconnecting")
		s.client.Close()
		s.client = nil
		return s.connectLocked()
	}
	return nil
}

// Close closes the MPD connection and watcher.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.client != nil {
		err := s.client.Close()
		s.client = nil
		return err
	}
	return nil
}

// SetSource binds a playable URL. Loading happens on Load.
func (s *Sink) SetSource(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = url
	s.loaded = false
	s.errCode = audio.ErrNone
}

// Source returns the currently bound URL.
func (s *Sink) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Load replaces the MPD queue with the bound source.
func (s *Sink) Load() {
	s.mu.RLock()
	source := s.source
	s.mu.RUnlock()
	if source == "" {
		return
	}

	if err := s.ensureConnected(); err != nil {
		s.fail(audio.ErrNetwork, err)
		return
	}

	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if err := client.Clear(); err != nil {
		s.fail(audio.ErrNetwork, err)
		return
	}
	if err := client.Add(source); err != nil {
		// MPD rejects URIs it has no input plugin for
		s.fail(audio.ErrSrcNotSupported, err)
		return
	}

	s.mu.Lock()
	s.loaded = true
	fns := s.canPlayFns
	s.canPlayFns = nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Play starts or resumes playback.
func (s *Sink) Play() error {
	if err := s.ensureConnected(); err != nil {
		return err
	}

	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	status, err := client.Status()
	if err != nil {
		return fmt.Errorf("mpd status: %w", err)
	}
	if status["state"] == "pause" {
		return client.Pause(false)
	}
	return client.Play(0)
}

// Pause halts playback without unbinding the source.
func (s *Sink) Pause() {
	if err := s.ensureConnected(); err != nil {
		return
	}
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if err := client.Pause(true); err != nil {
		log.Warn().Err(err).Msg("MPD pause failed")
	}
}

// Seek moves the playback position, in seconds.
func (s *Sink) Seek(seconds float64) {
	if err := s.ensureConnected(); err != nil {
		return
	}
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	d := time.Duration(seconds * float64(time.Second))
	if err := client.SeekCur(d, false); err != nil {
		log.Warn().Err(err).Float64("seconds", seconds).Msg("MPD seek failed")
	}
}

// CurrentTime returns the playback position in seconds.
func (s *Sink) CurrentTime() float64 {
	return s.statusFloat("elapsed")
}

// Duration returns the bound source's duration in seconds.
func (s *Sink) Duration() float64 {
	return s.statusFloat("duration")
}

// ReadyState reports HaveEnoughData once the source is queued: MPD buffers
// internally, so a queued source is immediately playable.
func (s *Sink) ReadyState() audio.ReadyState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loaded {
		return audio.HaveEnoughData
	}
	return audio.HaveNothing
}

// Error returns the pending media error, if any.
func (s *Sink) Error() audio.ErrorCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errCode
}

// OnCanPlay registers a one-shot callback fired after the next successful
// Load.
func (s *Sink) OnCanPlay(fn func()) {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		fn()
		return
	}
	s.canPlayFns = append(s.canPlayFns, fn)
	s.mu.Unlock()
}

// OnEnded registers a callback fired when the source plays to its end.
func (s *Sink) OnEnded(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endedFns = append(s.endedFns, fn)
}

// OnError registers a callback fired when the sink enters an error state.
func (s *Sink) OnError(fn func(audio.ErrorCode)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorFns = append(s.errorFns, fn)
}

// watch translates MPD player-subsystem events into sink events. A
// play-to-stop transition with the queue exhausted is a natural end.
func (s *Sink) watch() {
	s.mu.RLock()
	watcher := s.watcher
	s.mu.RUnlock()
	if watcher == nil {
		return
	}

	for range watcher.Event {
		if err := s.ensureConnected(); err != nil {
			continue
		}
		s.mu.Lock()
		client := s.client
		s.mu.Unlock()

		status, err := client.Status()
		if err != nil {
			continue
		}

		state := status["state"]
		s.mu.Lock()
		prev := s.lastState
		s.lastState = state
		var fns []func()
		if prev == "play" && state == "stop" && status["song"] == "" {
			fns = append(fns, s.endedFns...)
		}
		s.mu.Unlock()

		for _, fn := range fns {
			fn()
		}
	}
}

// statusFloat reads a float field from MPD status, defaulting to 0.
func (s *Sink) statusFloat(field string) float64 {
	if err := s.ensureConnected(); err != nil {
		return 0
	}
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	status, err := client.Status()
	if err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(status[field], 64)
	if err != nil {
		return 0
	}
	return v
}

// fail records an error state and notifies subscribers.
func (s *Sink) fail(code audio.ErrorCode, err error) {
	log.Warn().Err(err).Int("code", int(code)).Msg("MPD sink error")

	s.mu.Lock()
	s.errCode = code
	fns := append(([]func(audio.ErrorCode))(nil), s.errorFns...)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(code)
	}
}
