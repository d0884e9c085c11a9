package coro

import (
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/evan-idocoding/ztick/rt/clock"
	"github.com/evan-idocoding/ztick/rt/timequeue"
)

// Scheduler runs tasks on the goroutine that calls its methods.
//
// It owns one time-ordered queue per (phase, domain) pair and a registry of started tasks.
// Except for LastSnapshot, methods are not safe for concurrent use: the host loop drives the
// scheduler from a single goroutine, and task bodies run on that goroutine.
type Scheduler struct {
	cfg     config
	logger  *slog.Logger
	onPanic PanicHandler

	mgr    *manager
	queues []*timequeue.Queue[*timedWait]
	clocks []clock.Func

	// live holds sub-tasks (run by Await/All/Any) that have not finished.
	live map[*frame]struct{}

	depth    int // nesting of frames currently running
	updating bool

	published atomic.Pointer[Snapshot]
}

// NewScheduler creates a Scheduler.
//
// Configuration errors (non-positive phase/domain counts, a clock for an unknown domain) panic.
func NewScheduler(opts ...Option) *Scheduler {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.phases <= 0 {
		panic(fmt.Sprintf("coro: phase count must be > 0, got %d", cfg.phases))
	}
	if cfg.domains <= 0 {
		panic(fmt.Sprintf("coro: domain count must be > 0, got %d", cfg.domains))
	}

	s := &Scheduler{
		cfg:     cfg,
		onPanic: cfg.onPanic,
		queues:  make([]*timequeue.Queue[*timedWait], cfg.phases*cfg.domains),
		clocks:  make([]clock.Func, cfg.domains),
		live:    make(map[*frame]struct{}),
	}
	for i := range s.queues {
		s.queues[i] = timequeue.New[*timedWait]()
	}
	for d, fn := range cfg.clocks {
		s.SetCustomTimer(d, fn)
	}
	if s.onPanic == nil {
		s.onPanic = reportPanicToStderr
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.logger = logger.With("component", "coro")
	s.mgr = newManager(s)
	return s
}

// Start runs task until its first suspension point and registers it.
//
// The returned Handle can stop the task and take its result. Start returns ErrClosed after Close
// and ErrInvalidName for a bad WithName. Start may be called from inside a task body.
func Start[T any](s *Scheduler, task *Task[T], opts ...StartOption) (*Handle[T], error) {
	f := task.frame()
	id, err := s.mgr.start(f, opts)
	if err != nil {
		return nil, err
	}
	return newHandle[T](s.mgr, id), nil
}

// MustStart is like Start but panics on error.
func MustStart[T any](s *Scheduler, task *Task[T], opts ...StartOption) *Handle[T] {
	h, err := Start(s, task, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

// Update drains the default (PhaseUpdate, DomainRealtime) queue.
func (s *Scheduler) Update() { s.UpdateOn(PhaseUpdate, DomainRealtime) }

// UpdateOn resumes every task waiting on (phase, domain) whose wake time has been reached.
//
// The domain clock is read once, at the start of the drain. Tasks that register a wait on the
// same queue while the drain runs are not resumed by it, even with zero delay; they are due on
// the next call.
//
// UpdateOn panics if called from inside a task body or a hook, or with an out-of-range phase or
// domain. It is a no-op after Close.
func (s *Scheduler) UpdateOn(phase Phase, domain Domain) {
	if s.depth > 0 || s.updating {
		panic("coro: Update called re-entrantly")
	}
	q := s.queue(phase, domain)
	if s.mgr.closed {
		return
	}
	s.updating = true
	defer func() { s.updating = false }()

	s.mgr.drainDropped()
	q.SetupUpdate(s.Now(domain))
	for q.CheckUpdate() {
		w := q.Pop()
		w.fire()
		s.mgr.finalizeFinished()
	}
	if s.cfg.publish {
		snap := s.Snapshot()
		s.published.Store(&snap)
	}
}

// SetCustomTimer replaces the clock of domain d. A nil fn restores the default steady clock.
func (s *Scheduler) SetCustomTimer(d Domain, fn clock.Func) {
	s.checkDomain(d)
	s.clocks[d] = fn
}

// Now reads the clock of domain d, in seconds.
func (s *Scheduler) Now(d Domain) float64 {
	s.checkDomain(d)
	if fn := s.clocks[d]; fn != nil {
		return fn()
	}
	return clock.Steady()
}

// StopTask stops a started task by ID, including one whose handle was released. It returns the
// task's status after the call; ok is false when the scheduler holds no task with that ID (never
// started, or released and already down).
func (s *Scheduler) StopTask(id uint64) (st Status, ok bool) {
	sl := s.mgr.slots[id]
	if sl == nil {
		return Status{}, false
	}
	s.mgr.stopSlot(sl)
	return sl.status(), true
}

// Phases returns the configured number of phases.
func (s *Scheduler) Phases() int { return s.cfg.phases }

// Domains returns the configured number of domains.
func (s *Scheduler) Domains() int { return s.cfg.domains }

// Closed reports whether Close was called.
func (s *Scheduler) Closed() bool { return s.mgr.closed }

// Close stops every running task, including sub-tasks, and empties all queues.
// Handles report their tasks as down afterwards. Close is idempotent and panics if called from
// inside a task body.
func (s *Scheduler) Close() {
	if s.depth > 0 {
		panic("coro: Close called from inside a task")
	}
	if s.mgr.closed {
		return
	}
	tasks := len(s.mgr.slots)
	s.mgr.close()

	subs := make([]*frame, 0, len(s.live))
	for f := range s.live {
		subs = append(subs, f)
	}
	for _, f := range subs {
		f.teardown()
	}
	for _, q := range s.queues {
		q.Clear()
	}
	s.logger.Info("scheduler closed", slog.Int("tasks", tasks), slog.Int("subtasks", len(subs)))

	if s.cfg.publish {
		snap := s.Snapshot()
		s.published.Store(&snap)
	}
}

// Snapshot returns a point-in-time view of the scheduler. Call it on the loop goroutine; use
// LastSnapshot from other goroutines.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		Tasks:    s.mgr.statuses(),
		Queues:   make([]QueueStatus, 0, len(s.queues)),
		SubTasks: len(s.live),
		TakenAt:  s.Now(DomainRealtime),
	}
	for p := 0; p < s.cfg.phases; p++ {
		for d := 0; d < s.cfg.domains; d++ {
			snap.Queues = append(snap.Queues, QueueStatus{
				Phase:   Phase(p),
				Domain:  Domain(d),
				Pending: s.queue(Phase(p), Domain(d)).Len(),
			})
		}
	}
	return snap
}

// LastSnapshot returns the snapshot published by the most recent update (see
// WithSnapshotPublishing). It is safe for concurrent use. ok is false until the first publish.
func (s *Scheduler) LastSnapshot() (snap Snapshot, ok bool) {
	p := s.published.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}

func (s *Scheduler) queue(p Phase, d Domain) *timequeue.Queue[*timedWait] {
	if p < 0 || int(p) >= s.cfg.phases {
		panic(fmt.Sprintf("coro: phase %d out of range [0,%d)", int(p), s.cfg.phases))
	}
	s.checkDomain(d)
	return s.queues[int(p)*s.cfg.domains+int(d)]
}

func (s *Scheduler) checkDomain(d Domain) {
	if d < 0 || int(d) >= s.cfg.domains {
		panic(fmt.Sprintf("coro: domain %d out of range [0,%d)", int(d), s.cfg.domains))
	}
}

func (s *Scheduler) reportPanic(info PanicInfo) {
	s.logger.Error("task panicked", slog.Uint64("id", info.ID), slog.String("name", info.Name), slog.Any("value", info.Value))
	h := s.onPanic
	callHookNoPanic("PanicHandler", func() { h(info) })
}

// callHookNoPanic runs a user hook, reporting (not propagating) a panic from it.
func callHookNoPanic(hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			reportHookPanicToStderr(hook, r, debug.Stack())
		}
	}()
	fn()
}
