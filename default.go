package ztick

import (
	"sync"

	"github.com/evan-idocoding/ztick/rt/clock"
	"github.com/evan-idocoding/ztick/rt/coro"
)

var (
	defaultMu    sync.Mutex
	defaultSched *coro.Scheduler
	defaultOpts  []coro.Option
)

// SetDefaultOptions sets the options used when the default scheduler is created.
// It has no effect once Default was called (until CloseDefault).
func SetDefaultOptions(opts ...coro.Option) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultOpts = append([]coro.Option(nil), opts...)
}

// Default returns the process-wide scheduler, creating it on first use.
//
// Like any scheduler it must be driven from a single goroutine. After CloseDefault, the next call
// creates a fresh one.
func Default() *coro.Scheduler {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSched == nil {
		defaultSched = coro.NewScheduler(defaultOpts...)
	}
	return defaultSched
}

// CloseDefault closes the default scheduler, stopping its tasks. Go has no process-exit hook;
// call this from main before returning if task teardown (deferred functions in bodies) matters.
func CloseDefault() {
	defaultMu.Lock()
	s := defaultSched
	defaultSched = nil
	defaultMu.Unlock()
	if s != nil {
		s.Close()
	}
}

// Start starts task on the default scheduler.
func Start[T any](task *coro.Task[T], opts ...coro.StartOption) (*coro.Handle[T], error) {
	return coro.Start(Default(), task, opts...)
}

// Update drains the default queue of the default scheduler.
func Update() { Default().Update() }

// UpdateOn drains one (phase, domain) queue of the default scheduler.
func UpdateOn(phase coro.Phase, domain coro.Domain) { Default().UpdateOn(phase, domain) }

// SetCustomTimer replaces a domain clock of the default scheduler.
func SetCustomTimer(d coro.Domain, fn clock.Func) { Default().SetCustomTimer(d, fn) }

// Now reads a domain clock of the default scheduler.
func Now(d coro.Domain) float64 { return Default().Now(d) }
