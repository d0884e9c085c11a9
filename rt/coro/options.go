package coro

import (
	"log/slog"

	"github.com/evan-idocoding/ztick/rt/clock"
)

type config struct {
	phases  int
	domains int
	clocks  map[Domain]clock.Func

	logger  *slog.Logger
	onPanic PanicHandler

	// hooks
	onTaskStart  func(info StartInfo)
	onTaskFinish func(info FinishInfo)

	publish bool
}

// Option configures a Scheduler.
type Option func(*config)

func defaultConfig() config {
	return config{
		phases:  DefaultPhaseCount,
		domains: DefaultDomainCount,
	}
}

// WithPhases sets the number of phases. Phases are 0..n-1.
//
// If n <= 0, NewScheduler panics (configuration error).
func WithPhases(n int) Option {
	return func(c *config) { c.phases = n }
}

// WithDomains sets the number of time domains. Domains are 0..n-1.
//
// If n <= 0, NewScheduler panics (configuration error).
func WithDomains(n int) Option {
	return func(c *config) { c.domains = n }
}

// WithClock sets the clock for a domain, replacing the default steady clock.
// It is equivalent to calling SetCustomTimer after construction.
func WithClock(d Domain, fn clock.Func) Option {
	return func(c *config) {
		if c.clocks == nil {
			c.clocks = make(map[Domain]clock.Func)
		}
		c.clocks[d] = fn
	}
}

// WithLogger sets the logger for lifecycle events. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithPanicHandler sets the handler for task body panics. If not set, panics are reported to
// stderr. In both cases the panic becomes the task's failure (*PanicError).
func WithPanicHandler(h PanicHandler) Option {
	return func(c *config) { c.onPanic = h }
}

// WithOnTaskStart sets a hook to observe task starts. Hooks are called synchronously on the
// loop goroutine and must be fast.
func WithOnTaskStart(fn func(info StartInfo)) Option {
	return func(c *config) { c.onTaskStart = fn }
}

// WithOnTaskFinish sets a hook to observe tasks reaching a final state (including Stop).
// Hooks are called synchronously on the loop goroutine and must be fast.
func WithOnTaskFinish(fn func(info FinishInfo)) Option {
	return func(c *config) { c.onTaskFinish = fn }
}

// WithSnapshotPublishing makes the scheduler publish a Snapshot at the end of every update,
// readable from any goroutine via LastSnapshot. Default is false.
func WithSnapshotPublishing(v bool) Option {
	return func(c *config) { c.publish = v }
}

type startConfig struct {
	name string
	tags []Tag
}

// StartOption configures a single Start call.
type StartOption func(*startConfig)

// WithName sets a human-friendly task name.
//
// Notes:
//   - Name is optional (empty means unnamed).
//   - Name is normalized by strings.TrimSpace.
//   - Non-empty names must match [A-Za-z0-9._-]; Start returns ErrInvalidName otherwise.
func WithName(name string) StartOption {
	return func(c *startConfig) { c.name = name }
}

// WithTag appends a single tag.
func WithTag(key, value string) StartOption {
	return func(c *startConfig) {
		c.tags = append(c.tags, Tag{Key: key, Value: value})
	}
}

// WithTags appends tags (preserving order).
func WithTags(tags ...Tag) StartOption {
	return func(c *startConfig) {
		if len(tags) == 0 {
			return
		}
		c.tags = append(c.tags, tags...)
	}
}

type waitConfig struct {
	phase  Phase
	domain Domain
}

// WaitOption selects the queue a wait registers in.
type WaitOption func(*waitConfig)

// OnPhase makes the wait fire during updates of phase p (default PhaseUpdate).
func OnPhase(p Phase) WaitOption {
	return func(c *waitConfig) { c.phase = p }
}

// InDomain measures the wait against the clock of domain d (default DomainRealtime).
func InDomain(d Domain) WaitOption {
	return func(c *waitConfig) { c.domain = d }
}
