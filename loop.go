package ztick

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/evan-idocoding/ztick/rt/coro"
)

var (
	// ErrLoopClosed is returned by Do (and helpers built on it) once the loop has exited.
	ErrLoopClosed = errors.New("ztick: loop closed")
	// ErrLoopRunning is returned by Run when the loop is already running or has run.
	ErrLoopRunning = errors.New("ztick: loop already started")
	// ErrUnknownTask is returned by StopTask for an ID the scheduler does not hold.
	ErrUnknownTask = errors.New("ztick: unknown task")
)

// LoopConfig holds host loop settings.
type LoopConfig struct {
	// Interval is the time between frames. <= 0 means 1/60s.
	Interval time.Duration
	// MaxFrames stops the loop after that many frames. 0 means no limit.
	MaxFrames uint64
}

// DefaultLoopConfig returns a 60 FPS loop without a frame limit.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{Interval: time.Second / 60}
}

// Loop drives a coro.Scheduler from a dedicated goroutine at a fixed frame interval.
//
// Each frame it runs work posted with Do, then drains every (phase, domain) queue in phase-major
// order, then calls the frame hook. Because the scheduler is single-goroutine, other goroutines
// (HTTP handlers, signal handlers) reach it only through Do.
type Loop struct {
	s      *coro.Scheduler
	cfg    LoopConfig
	logger *slog.Logger

	onFrame func(frame uint64, s *coro.Scheduler)

	inbox chan func()

	started atomic.Bool
	frames  atomic.Uint64
	snap    atomic.Pointer[coro.Snapshot]

	doneOnce sync.Once
	done     chan struct{}
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the loop logger. Default discards.
func WithLoopLogger(l *slog.Logger) LoopOption {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// WithFrameHook sets a function called on the loop goroutine at the end of every frame.
// It may start and stop tasks.
func WithFrameHook(fn func(frame uint64, s *coro.Scheduler)) LoopOption {
	return func(lp *Loop) { lp.onFrame = fn }
}

// NewLoop creates a Loop for s. The loop owns s from Run until Run returns.
func NewLoop(s *coro.Scheduler, cfg LoopConfig, opts ...LoopOption) *Loop {
	if s == nil {
		panic("ztick: nil scheduler")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultLoopConfig().Interval
	}
	l := &Loop{
		s:      s,
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		inbox:  make(chan func(), 64),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	l.logger = l.logger.With("component", "loop")
	return l
}

// Run drives the scheduler until ctx is done or MaxFrames frames have run. It blocks.
//
// Run closes the scheduler before returning. It returns ctx.Err() when cancelled and nil when the
// frame limit was reached.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.finish()

	l.logger.Info("loop started", "interval", l.cfg.Interval, "max_frames", l.cfg.MaxFrames)
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	l.publish()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("loop stopping (context cancelled)", "frames", l.frames.Load())
			return ctx.Err()
		case fn := <-l.inbox:
			fn()
		case <-ticker.C:
			n := l.Frame()
			if l.cfg.MaxFrames > 0 && n >= l.cfg.MaxFrames {
				l.logger.Info("loop stopping (frame limit)", "frames", n)
				return nil
			}
		}
	}
}

// Frame runs a single frame on the calling goroutine and returns the frame count. Run calls it
// on every tick; call it directly only when not using Run.
func (l *Loop) Frame() uint64 {
	l.drainInbox()
	for p := 0; p < l.s.Phases(); p++ {
		for d := 0; d < l.s.Domains(); d++ {
			l.s.UpdateOn(coro.Phase(p), coro.Domain(d))
		}
	}
	n := l.frames.Add(1)
	if l.onFrame != nil {
		l.onFrame(n, l.s)
	}
	l.publish()
	return n
}

func (l *Loop) publish() {
	snap := l.s.Snapshot()
	l.snap.Store(&snap)
}

func (l *Loop) finish() {
	l.doneOnce.Do(func() {
		close(l.done)
		// Posted jobs see done closed and skip their work.
		l.drainInbox()
		l.s.Close()
		l.publish()
		l.logger.Info("loop stopped", "frames", l.frames.Load())
	})
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Frames returns the number of frames run so far.
func (l *Loop) Frames() uint64 { return l.frames.Load() }

// Do runs fn on the loop goroutine between frames and waits for it to return.
//
// It returns ErrLoopClosed if the loop has exited, or ctx.Err() if ctx is done first (fn may
// still run later in that case).
func (l *Loop) Do(ctx context.Context, fn func(s *coro.Scheduler)) error {
	if fn == nil {
		return nil
	}
	var skipped bool
	ran := make(chan struct{})
	job := func() {
		defer close(ran)
		select {
		case <-l.done:
			skipped = true
			return
		default:
		}
		fn(l.s)
	}

	select {
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	case l.inbox <- job:
	}

	select {
	case <-ran:
		if skipped {
			return ErrLoopClosed
		}
		return nil
	case <-l.done:
		// done is closed on the loop goroutine, so the job either already ran or never will.
		select {
		case <-ran:
			if !skipped {
				return nil
			}
		default:
		}
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) drainInbox() {
	for {
		select {
		case fn := <-l.inbox:
			fn()
		default:
			return
		}
	}
}

// StopTask stops a task by ID on the loop goroutine.
func (l *Loop) StopTask(ctx context.Context, id uint64) (coro.Status, error) {
	var (
		st coro.Status
		ok bool
	)
	if err := l.Do(ctx, func(s *coro.Scheduler) { st, ok = s.StopTask(id) }); err != nil {
		return coro.Status{}, err
	}
	if !ok {
		return coro.Status{}, fmt.Errorf("%w: %d", ErrUnknownTask, id)
	}
	return st, nil
}

// LastSnapshot returns the snapshot taken at the end of the most recent frame.
// It is safe for concurrent use.
func (l *Loop) LastSnapshot() (coro.Snapshot, bool) {
	p := l.snap.Load()
	if p == nil {
		return coro.Snapshot{}, false
	}
	return *p, true
}

// Ready reports an error unless the loop is running. It fits a readiness check.
func (l *Loop) Ready(context.Context) error {
	if !l.started.Load() {
		return errors.New("loop not started")
	}
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
		return nil
	}
}
