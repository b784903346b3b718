// Package host abstracts the capabilities playercore borrows from its
// embedding environment: time, deferred execution and termination signals.
// Production hosts use the system implementations below; tests substitute
// deterministic fakes.
package host

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Clock provides the current time and timer scheduling.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time

	// AfterFunc runs fn after d elapses and returns a handle that can
	// cancel the pending call.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable pending call created by Clock.AfterFunc.
type Timer interface {
	// Stop cancels the pending call. It reports whether the call was
	// still pending.
	Stop() bool
}

// LifecycleSignal notifies subscribers that the host is about to
// terminate. Subscribers get a best-effort chance to flush state; the
// process may exit before their callbacks complete.
type LifecycleSignal interface {
	OnTerminate(fn func())
}

// SystemClock implements Clock using the standard library.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SignalLifecycle implements LifecycleSignal using SIGINT/SIGTERM.
type SignalLifecycle struct {
	mu        sync.Mutex
	callbacks []func()
	watching  bool
}

// NewSignalLifecycle creates a lifecycle signal backed by OS signals.
func NewSignalLifecycle() *SignalLifecycle {
	return &SignalLifecycle{}
}

// OnTerminate registers fn to run when SIGINT or SIGTERM arrives.
func (s *SignalLifecycle) OnTerminate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callbacks = append(s.callbacks, fn)
	if s.watching {
		return
	}
	s.watching = true

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		s.mu.Lock()
		cbs := make([]func(), len(s.callbacks))
		copy(cbs, s.callbacks)
		s.mu.Unlock()
		for _, cb := range cbs {
			cb()
		}
	}()
}
