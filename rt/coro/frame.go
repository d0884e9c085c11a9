package coro

import (
	"fmt"
	"iter"
	"runtime/debug"
)

type frameState uint8

const (
	frameCreated frameState = iota
	frameRunning
	frameSuspended
	frameDone
)

// frameStop unwinds a task body that is being torn down. It is recovered by frame.run and never
// escapes the package.
type frameStop struct{}

// completer is notified when a sub-task's body finishes.
type completer interface {
	frameDone(f *frame)
}

// frame is the suspendable activation of one task body.
//
// A frame is driven through iter.Pull: resume advances it to its next suspension point, suspend
// yields back to whoever resumed it. Everything runs on the goroutine that drives the scheduler.
type frame struct {
	s    *Scheduler
	id   uint64 // registry ID; 0 for sub-tasks
	name string
	tags []Tag
	body func(co *Co) (any, error)

	next  func() (struct{}, bool)
	stop  func()
	yield func(struct{}) bool

	state    frameState
	bound    bool
	stopping bool // teardown requested
	stopped  bool // unwound by teardown instead of completing
	panicked bool
	resumes  uint64

	value any
	err   error

	waiter completer
}

func newFrame(body func(co *Co) (any, error)) *frame {
	return &frame{body: body}
}

func (f *frame) claim() {
	if f.bound {
		panic("coro: task already started or awaited")
	}
	f.bound = true
}

func (f *frame) bindRoot(s *Scheduler, id uint64, name string, tags []Tag) {
	f.s, f.id, f.name, f.tags = s, id, name, tags
}

func (f *frame) bindSub(s *Scheduler, w completer) {
	f.claim()
	f.s, f.waiter = s, w
	s.live[f] = struct{}{}
}

// resume runs the body until it suspends or finishes.
//
// When a body finishes by returning (not by teardown), its waiter is notified, or for a started
// task the registry is told so that finalization happens once control is back in the driver.
func (f *frame) resume() {
	switch f.state {
	case frameRunning:
		panic(fmt.Sprintf("coro: resume of running task (id=%d)", f.id))
	case frameDone:
		panic(fmt.Sprintf("coro: resume of finished task (id=%d)", f.id))
	}
	if f.next == nil {
		f.next, f.stop = iter.Pull(f.run)
	}
	f.state = frameRunning
	f.resumes++
	f.s.depth++
	f.next()
	f.s.depth--

	if f.state != frameDone {
		return
	}
	if f.stopping {
		f.stopped = true
		return
	}
	f.complete()
}

func (f *frame) complete() {
	if w := f.waiter; w != nil {
		delete(f.s.live, f)
		f.release()
		w.frameDone(f)
		return
	}
	if f.id != 0 {
		f.s.mgr.onCoroutineFinished(f.id)
	}
}

// run is the iter.Seq driven by iter.Pull.
func (f *frame) run(yield func(struct{}) bool) {
	f.yield = yield
	defer func() {
		r := recover()
		f.state = frameDone
		f.yield = nil
		if r == nil {
			return
		}
		if _, ok := r.(frameStop); ok {
			f.stopped = true
			return
		}
		stack := debug.Stack()
		f.value = nil
		f.err = &PanicError{Value: r, Stack: stack}
		f.panicked = true
		f.s.reportPanic(PanicInfo{ID: f.id, Name: f.name, Tags: f.tags, Value: r, Stack: stack})
	}()
	f.value, f.err = f.body(&Co{f: f})
}

// suspend yields to the resumer. It unwinds the body (via frameStop) if the frame is being torn
// down, either already or while it was suspended.
func (f *frame) suspend() {
	f.checkStopping()
	f.state = frameSuspended
	ok := f.yield(struct{}{})
	f.state = frameRunning
	if !ok {
		panic(frameStop{})
	}
	f.checkStopping()
}

func (f *frame) checkStopping() {
	if f.stopping {
		panic(frameStop{})
	}
}

// teardown destroys the frame without completing it. Waiters are not notified.
//
// A running frame (one that is on the current call stack) cannot be unwound from the outside;
// it unwinds at its next suspension point, and a value it returns is discarded.
func (f *frame) teardown() {
	f.stopping = true
	if f.id == 0 && f.s != nil {
		delete(f.s.live, f)
	}
	switch f.state {
	case frameCreated:
		f.state = frameDone
		f.stopped = true
		f.release()
	case frameSuspended:
		f.s.depth++
		f.stop()
		f.s.depth--
		f.stopped = true
		f.release()
	case frameRunning:
	case frameDone:
		f.release()
	}
}

// release drops the coroutine and the body closure.
func (f *frame) release() {
	if f.stop != nil {
		f.stop()
	}
	f.next, f.stop = nil, nil
	f.body = nil
}

// Co is the handle a task body uses to suspend. It is only valid inside the body it was passed
// to, and only on the goroutine driving the scheduler.
type Co struct {
	f *frame
}

func (co *Co) frame() *frame {
	f := co.f
	if f.state != frameRunning {
		panic("coro: Co used outside its running task")
	}
	return f
}

// Scheduler returns the scheduler running the task.
func (co *Co) Scheduler() *Scheduler { return co.f.s }

// ID returns the registry ID of a started task, or 0 for a task run by Await/All/Any.
func (co *Co) ID() uint64 { return co.f.id }

// Stopping reports whether the task is being torn down. A stopping task unwinds at its next
// suspension point.
func (co *Co) Stopping() bool { return co.f.stopping }

// Task is a not-yet-run task body producing a T.
//
// A Task is consumed by exactly one Start, Await, All, or Any call; reusing it panics.
type Task[T any] struct {
	f *frame
}

// NewTask wraps fn as a task. The body runs only once the task is started or awaited.
func NewTask[T any](fn func(co *Co) (T, error)) *Task[T] {
	if fn == nil {
		panic("coro: NewTask called with nil func")
	}
	return &Task[T]{f: newFrame(func(co *Co) (any, error) {
		v, err := fn(co)
		return v, err
	})}
}

// NewAction wraps fn as a task with no value.
func NewAction(fn func(co *Co) error) *Task[struct{}] {
	if fn == nil {
		panic("coro: NewAction called with nil func")
	}
	return &Task[struct{}]{f: newFrame(func(co *Co) (any, error) {
		return struct{}{}, fn(co)
	})}
}

func (t *Task[T]) frame() *frame {
	if t == nil || t.f == nil {
		panic("coro: nil task")
	}
	return t.f
}

func valueOf[T any](f *frame) T {
	v, _ := f.value.(T)
	return v
}
