// Package playercore wires the tracking journal, batch sync scheduler,
// secure URL resolver and playback engine into one embeddable core. The
// embedding application constructs a single Core at startup and hands it
// its session state, notification surface and audio sink.
package playercore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/soundcrate/playercore/internal/audio"
	"github.com/soundcrate/playercore/internal/config"
	"github.com/soundcrate/playercore/internal/domain/playback"
	"github.com/soundcrate/playercore/internal/domain/streaming"
	"github.com/soundcrate/playercore/internal/domain/tracking"
	"github.com/soundcrate/playercore/internal/host"
	"github.com/soundcrate/playercore/internal/infra/mpd"
	"github.com/soundcrate/playercore/internal/infra/store"
	"github.com/soundcrate/playercore/internal/infra/syncapi"
	"github.com/soundcrate/playercore/internal/notify"
	"github.com/soundcrate/playercore/internal/version"
)

// Re-exported collaborator types so embedding applications do not import
// internal packages.
type (
	// Track is the external track shape the engine consumes.
	Track = playback.Track

	// Notifier is the user-facing notification surface.
	Notifier = notify.Notifier

	// Session exposes the read-only login fact gating playback.
	Session = playback.Session

	// SessionFunc adapts a func to Session.
	SessionFunc = playback.SessionFunc

	// Sink is the audio output capability.
	Sink = audio.Sink
)

// Options carries the collaborators the embedding application provides.
type Options struct {
	// Session gates playback; required.
	Session Session

	// Notifier surfaces playback messages; defaults to logging.
	Notifier Notifier

	// Sink is the audio output. When nil and MPD is enabled in the
	// configuration, an MPD sink is connected; otherwise construction
	// fails.
	Sink Sink

	// Lifecycle triggers the final best-effort flush; defaults to OS
	// signals.
	Lifecycle host.LifecycleSignal
}

// Core is the wired playercore instance.
type Core struct {
	Journal   *tracking.Journal
	Scheduler *tracking.Scheduler
	Syncer    *tracking.Syncer
	Resolver  *streaming.Resolver
	Engine    *playback.Engine

	kv      *store.SQLiteStore
	mpdSink *mpd.Sink
}

// New constructs a Core from cfg. Call Start afterwards to launch the
// background sync loop, and Close on shutdown.
func New(cfg *config.Config, opts Options) (*Core, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("playercore: Session is required")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	kv := store.NewSQLiteStore(cfg.Storage.Path)
	if err := kv.Open(); err != nil {
		return nil, fmt.Errorf("playercore: open store: %w", err)
	}

	client := syncapi.NewClient(cfg.API.BaseURL)

	journal := tracking.NewJournal(kv)
	journal.CleanupOldData(cfg.Tracking.RetentionDays)

	syncer := tracking.NewSyncer(journal, client)
	scheduler := tracking.NewScheduler(journal, syncer,
		tracking.WithSchedulerConfig(tracking.SchedulerConfig{
			MaxEvents:      cfg.Tracking.MaxEvents,
			MaxWaitTime:    cfg.Tracking.MaxWaitTime,
			DebounceWindow: cfg.Tracking.DebounceWindow,
			CheckInterval:  cfg.Tracking.CheckInterval,
			StartupDelay:   cfg.Tracking.StartupDelay,
		}))

	resolver := streaming.NewResolver(client)

	core := &Core{
		Journal:   journal,
		Scheduler: scheduler,
		Syncer:    syncer,
		Resolver:  resolver,
		kv:        kv,
	}

	sink := opts.Sink
	if sink == nil {
		if !cfg.MPD.Enabled {
			kv.Close()
			return nil, fmt.Errorf("playercore: no audio sink provided and MPD is disabled")
		}
		mpdSink := mpd.NewSink(cfg.MPD.Host, cfg.MPD.Port, cfg.MPD.Password)
		if err := mpdSink.Connect(); err != nil {
			kv.Close()
			return nil, fmt.Errorf("playercore: connect MPD sink: %w", err)
		}
		core.mpdSink = mpdSink
		sink = mpdSink
	}

	core.Engine = playback.NewEngine(sink, resolver, opts.Session, notifier,
		playback.WithJournal(journal),
		playback.WithReadyTimeout(cfg.Playback.ReadyTimeout),
	)

	lifecycle := opts.Lifecycle
	if lifecycle == nil {
		lifecycle = host.NewSignalLifecycle()
	}
	scheduler.BindLifecycle(lifecycle)

	log.Info().
		Str("version", version.GetInfo().String()).
		Str("api", cfg.API.BaseURL).
		Str("store", cfg.Storage.Path).
		Msg("playercore initialized")

	return core, nil
}

// Start launches the background sync loop. Background work stops when ctx
// is cancelled or Close is called.
func (c *Core) Start(ctx context.Context) {
	c.Scheduler.Start(ctx)
}

// Close flushes pending events best-effort and releases resources.
func (c *Core) Close() error {
	c.Scheduler.Stop()
	c.Scheduler.FinalFlush()

	var err error
	if c.mpdSink != nil {
		err = c.mpdSink.Close()
	}
	if cerr := c.kv.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
