package coro

import (
	"errors"
	"runtime"
	"testing"
	"time"
)

func TestStop_WhileSuspendedRemovesWaitAndRunsDefers(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	deferred := false
	resumed := false
	h := MustStart(s, NewTask(func(co *Co) (int, error) {
		defer func() { deferred = true }()
		co.Wait(1)
		resumed = true
		return 1, nil
	}))

	h.Stop()
	if !deferred {
		t.Fatalf("deferred func did not run on Stop")
	}
	if st, ok := h.State(); !ok || st != StateStopped {
		t.Fatalf("State=(%v, %v), want stopped", st, ok)
	}
	if n := s.Snapshot().Queues[0].Pending; n != 0 {
		t.Fatalf("pending=%d after Stop, want 0", n)
	}
	if _, err := h.TakeResult(); !errors.Is(err, ErrNoResult) {
		t.Fatalf("TakeResult err=%v, want ErrNoResult", err)
	}

	clk.Advance(1)
	s.Update()
	if resumed {
		t.Fatalf("stopped task resumed")
	}

	// Stop on a finished task is a no-op.
	h.Stop()
	if st, _ := h.State(); st != StateStopped {
		t.Fatalf("State=%v after second Stop", st)
	}
}

func TestStop_FinishedTaskKeepsResult(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	h := MustStart(s, NewTask(func(*Co) (int, error) { return 3, nil }))
	h.Stop()
	if v, err := h.TakeResult(); err != nil || v != 3 {
		t.Fatalf("TakeResult=(%d, %v), want (3, nil)", v, err)
	}
}

func TestStop_SelfStopUnwindsAtNextSuspension(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	var h *Handle[int]
	reached, unreachable := false, false
	h = MustStart(s, NewTask(func(co *Co) (int, error) {
		co.Wait(1)
		h.Stop()
		reached = true
		co.Wait(1)
		unreachable = true
		return 1, nil
	}))

	clk.Advance(1)
	s.Update()
	if !reached || unreachable {
		t.Fatalf("reached=%v unreachable=%v", reached, unreachable)
	}
	if st, _ := h.State(); st != StateStopped {
		t.Fatalf("State=%v, want stopped", st)
	}
	if n := s.Snapshot().Queues[0].Pending; n != 0 {
		t.Fatalf("pending=%d, want 0", n)
	}
}

func TestStop_SelfStopThenReturnDiscardsValue(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	var h *Handle[int]
	h = MustStart(s, NewTask(func(co *Co) (int, error) {
		co.Wait(1)
		h.Stop()
		return 5, nil
	}))
	clk.Advance(1)
	s.Update()
	if _, err := h.TakeResult(); !errors.Is(err, ErrNoResult) {
		t.Fatalf("TakeResult err=%v, want ErrNoResult", err)
	}
}

func TestRelease_TaskKeepsRunning(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	done := false
	h := MustStart(s, NewAction(func(co *Co) error {
		co.Wait(1)
		done = true
		return nil
	}))
	id := h.ID()
	h.Release()
	h.Release()

	if h.Valid() || h.ID() != 0 || !h.IsDown() {
		t.Fatalf("released handle: Valid=%v ID=%d IsDown=%v", h.Valid(), h.ID(), h.IsDown())
	}
	if _, err := h.TakeResult(); !errors.Is(err, ErrNoResult) {
		t.Fatalf("TakeResult err=%v, want ErrNoResult", err)
	}
	expectPanic(t, "Stop after Release", h.Stop)

	st, ok := s.Snapshot().Get(id)
	if !ok || !st.Released || st.State != StateRunning {
		t.Fatalf("status=(%+v, %v), want released and running", st, ok)
	}

	clk.Advance(1)
	s.Update()
	if !done {
		t.Fatalf("released task did not run to completion")
	}
	if _, ok := s.Snapshot().Get(id); ok {
		t.Fatalf("slot kept after released task finished")
	}
}

func TestRelease_FinishedTaskFreesSlot(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	h := MustStart(s, NewTask(func(*Co) (int, error) { return 1, nil }))
	h.Release()
	if n := len(s.Snapshot().Tasks); n != 0 {
		t.Fatalf("tasks=%d, want 0", n)
	}
}

func startDropped(s *Scheduler) uint64 {
	h := MustStart(s, NewAction(func(co *Co) error {
		co.Wait(1)
		return nil
	}))
	return h.ID()
}

func TestHandle_DroppedIsReleased(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	id := startDropped(s)

	deadline := time.Now().Add(5 * time.Second)
	for {
		runtime.GC()
		s.Update()
		if st, ok := s.Snapshot().Get(id); ok && st.Released {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dropped handle was not released")
		}
		time.Sleep(time.Millisecond)
	}

	clk.Advance(1)
	s.Update()
	if _, ok := s.Snapshot().Get(id); ok {
		t.Fatalf("slot kept after dropped task finished")
	}
}

func TestHandle_OutlivesScheduler(t *testing.T) {
	t.Parallel()

	s := NewScheduler()
	h := MustStart(s, NewAction(func(co *Co) error {
		co.Wait(100)
		return nil
	}))
	s.Close()

	if !h.IsDown() {
		t.Fatalf("IsDown=false after Close")
	}
	if _, err := h.TakeResult(); !errors.Is(err, ErrClosed) {
		t.Fatalf("TakeResult err=%v, want ErrClosed", err)
	}
	if _, ok := h.Status(); ok {
		t.Fatalf("Status ok=true after Close")
	}
	h.Stop()
	h.Release()
	if h.Valid() {
		t.Fatalf("Valid=true after Release")
	}
}

func TestHandle_NilIsSafe(t *testing.T) {
	t.Parallel()

	var h *Handle[int]
	if h.Valid() || h.ID() != 0 || !h.IsDown() {
		t.Fatalf("nil handle misbehaves")
	}
	h.Stop()
	h.Release()
	if _, err := h.TakeResult(); !errors.Is(err, ErrNoResult) {
		t.Fatalf("TakeResult err=%v, want ErrNoResult", err)
	}
}

func TestStopTask_ByIDIncludingReleased(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	h := MustStart(s, NewAction(func(co *Co) error { co.Wait(10); return nil }), WithName("bg"))
	id := h.ID()
	h.Release()

	st, ok := s.StopTask(id)
	if !ok || st.State != StateStopped || st.Name != "bg" {
		t.Fatalf("StopTask=(%+v, %v)", st, ok)
	}
	if _, ok := s.Snapshot().Get(id); ok {
		t.Fatalf("released task kept after StopTask")
	}
	if _, ok := s.StopTask(id); ok {
		t.Fatalf("second StopTask ok=true")
	}
	if _, ok := s.StopTask(999); ok {
		t.Fatalf("StopTask(unknown) ok=true")
	}
}
