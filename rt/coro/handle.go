package coro

import (
	"fmt"
	"runtime"
	"weak"
)

// Handle refers to a started task.
//
// A Handle does not keep its scheduler alive: once the scheduler is closed (or collected), the
// handle reports the task as down and TakeResult returns ErrNoResult.
//
// Dropping the last reference to a Handle has the same effect as Release: the task keeps running
// and its slot is freed once it finishes. Use Stop to end a task early.
//
// Handle methods must be called on the goroutine that drives the scheduler.
type Handle[T any] struct {
	id      uint64
	mgr     weak.Pointer[manager]
	cleanup runtime.Cleanup
}

type droppedHandle struct {
	inbox *releaseInbox
	id    uint64
}

func releaseDropped(d droppedHandle) { d.inbox.push(d.id) }

func newHandle[T any](m *manager, id uint64) *Handle[T] {
	h := &Handle[T]{id: id, mgr: weak.Make(m)}
	h.cleanup = runtime.AddCleanup(h, releaseDropped, droppedHandle{inbox: m.dropped, id: id})
	return h
}

// live returns the owning manager, or nil if the handle was released or the scheduler is gone.
func (h *Handle[T]) live() *manager {
	if h == nil || h.id == 0 {
		return nil
	}
	m := h.mgr.Value()
	if m == nil || m.closed {
		return nil
	}
	return m
}

// ID returns the task ID, or 0 for a released handle.
func (h *Handle[T]) ID() uint64 {
	if h == nil {
		return 0
	}
	return h.id
}

// Valid reports whether the handle has not been released.
func (h *Handle[T]) Valid() bool { return h != nil && h.id != 0 }

// State returns the task state. ok is false when the handle was released or its scheduler is
// closed or gone.
func (h *Handle[T]) State() (st State, ok bool) {
	m := h.live()
	if m == nil {
		return StateStopped, false
	}
	return m.state(h.id), true
}

// IsDown reports whether the task is no longer running, including when its scheduler is gone.
func (h *Handle[T]) IsDown() bool {
	st, ok := h.State()
	return !ok || st.Down()
}

// Status returns a point-in-time view of the task.
func (h *Handle[T]) Status() (Status, bool) {
	m := h.live()
	if m == nil {
		return Status{}, false
	}
	return m.status(h.id), true
}

// Stop tears the task down immediately: any pending wait is removed from its queue and the task
// ends in StateStopped without a result. Sub-tasks it was awaiting are not stopped.
//
// Stop on a task that already finished is a no-op, as is Stop on a nil handle or after the
// scheduler closed. A task may stop itself; it then unwinds at its next suspension point and any
// value it returns is discarded. Stop panics on a released handle.
func (h *Handle[T]) Stop() {
	if h != nil && h.id == 0 {
		panic("coro: Stop on released handle")
	}
	if m := h.live(); m != nil {
		m.stop(h.id)
	}
}

// TakeResult moves the result out of a finished task.
//
// It returns the task's value, or its failure (the returned error, or a *PanicError). The result
// can be taken once; later calls, and calls on running or stopped tasks, return an error wrapping
// ErrNoResult.
func (h *Handle[T]) TakeResult() (T, error) {
	var zero T
	if !h.Valid() {
		return zero, fmt.Errorf("%w: handle released", ErrNoResult)
	}
	m := h.mgr.Value()
	if m == nil || m.closed {
		return zero, fmt.Errorf("%w: %w", ErrNoResult, ErrClosed)
	}
	v, err := m.takeResult(h.id)
	if err != nil {
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// Release gives up the handle. The task keeps running; its slot is freed once it is down.
// Release is idempotent; after it, the handle is invalid.
func (h *Handle[T]) Release() {
	if !h.Valid() {
		return
	}
	h.cleanup.Stop()
	id := h.id
	m := h.mgr.Value()
	h.id = 0
	h.mgr = weak.Pointer[manager]{}
	if m == nil || m.closed {
		return
	}
	m.release(id)
}
