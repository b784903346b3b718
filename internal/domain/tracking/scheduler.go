package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soundcrate/playercore/internal/host"
)

// SchedulerConfig controls when pending events are flushed.
type SchedulerConfig struct {
	// MaxEvents triggers a flush once this many events are pending.
	MaxEvents int

	// MaxWaitTime triggers a flush once this long has passed since the
	// last successful sync with events still pending.
	MaxWaitTime time.Duration

	// DebounceWindow is the quiet period after a trigger that lets a burst
	// of near-simultaneous events coalesce into one batch.
	DebounceWindow time.Duration

	// CheckInterval is how often trigger conditions are re-evaluated even
	// with no new events.
	CheckInterval time.Duration

	// StartupDelay is how long after Start the scheduler attempts to flush
	// events left over from a prior session.
	StartupDelay time.Duration
}

// DefaultSchedulerConfig returns the production thresholds.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxEvents:      10,
		MaxWaitTime:    5 * time.Minute,
		DebounceWindow: time.Second,
		CheckInterval:  5 * time.Minute,
		StartupDelay:   3 * time.Second,
	}
}

// Scheduler decides when the pending queue is flushed, trading network
// chattiness against staleness. It maintains at most one pending flush job:
// a new trigger during the debounce window cancels and replaces the timer
// rather than queuing a second flush.
type Scheduler struct {
	journal *Journal
	syncer  *Syncer
	clock   host.Clock
	config  SchedulerConfig

	mu         sync.Mutex
	flushTimer host.Timer
	baseline   int64 // Stand-in for LastSyncTimestamp before the first sync
	running    bool
	stopCh     chan struct{}
	stopped    bool
}

// SchedulerOption is a functional option for configuring the scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerConfig replaces the default thresholds.
func WithSchedulerConfig(cfg SchedulerConfig) SchedulerOption {
	return func(s *Scheduler) {
		s.config = cfg
	}
}

// WithSchedulerClock substitutes the time source (used by tests).
func WithSchedulerClock(c host.Clock) SchedulerOption {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// NewScheduler creates a scheduler and registers it as the journal's record
// listener so every recorded event re-evaluates the flush triggers.
func NewScheduler(journal *Journal, syncer *Syncer, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		journal: journal,
		syncer:  syncer,
		clock:   host.SystemClock{},
		config:  DefaultSchedulerConfig(),
		stopCh:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.baseline = s.clock.Now().UnixMilli()
	journal.SetRecordListener(s.Trigger)
	return s
}

// Start launches the startup flush attempt and the periodic re-evaluation
// loop. It returns immediately; background work stops when ctx is cancelled
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Info().
		Int("maxEvents", s.config.MaxEvents).
		Dur("maxWait", s.config.MaxWaitTime).
		Dur("debounce", s.config.DebounceWindow).
		Msg("Sync scheduler started")

	// Flush anything a prior session left pending.
	s.clock.AfterFunc(s.config.StartupDelay, s.Trigger)

	go s.run(ctx)
}

// run periodically re-evaluates triggers and bounds the pending queue.
func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.journal.PurgeStalePending()
			s.Trigger()
		}
	}
}

// BindLifecycle registers a best-effort final flush on host termination.
// The host may exit before the flush completes; that loss is accepted.
func (s *Scheduler) BindLifecycle(ls host.LifecycleSignal) {
	ls.OnTerminate(s.FinalFlush)
}

// Trigger re-evaluates the flush conditions. When they hold, the flush is
// debounced: the pending timer, if any, is cancelled and replaced.
func (s *Scheduler) Trigger() {
	if !s.shouldFlush() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}
	s.flushTimer = s.clock.AfterFunc(s.config.DebounceWindow, s.flush)
}

// shouldFlush reports whether either trigger condition holds. Both require
// at least one pending event; flushing an empty queue is pointless.
func (s *Scheduler) shouldFlush() bool {
	pending := s.journal.PendingCount()
	if pending == 0 {
		return false
	}
	if pending >= s.config.MaxEvents {
		return true
	}

	last := s.journal.SyncState().LastSyncTimestamp
	if last == 0 {
		last = s.baseline
	}
	elapsed := s.clock.Now().UnixMilli() - last
	return elapsed >= s.config.MaxWaitTime.Milliseconds()
}

// flush runs when the debounce window elapses without a newer trigger.
func (s *Scheduler) flush() {
	s.mu.Lock()
	s.flushTimer = nil
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		return
	}
	s.syncer.Sync(context.Background())
}

// FinalFlush attempts one synchronous flush, bypassing the debounce. Used on
// host termination.
func (s *Scheduler) FinalFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	log.Debug().Int("pending", s.journal.PendingCount()).Msg("Final flush on terminate")
	s.syncer.Sync(ctx)
}

// Stop cancels any pending flush job and halts the periodic loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	close(s.stopCh)
}
