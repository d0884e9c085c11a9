package coro

import (
	"errors"
	"slices"
	"testing"
)

func waitValue[T any](sec float64, v T, log *[]string, name string) *Task[T] {
	return NewTask(func(co *Co) (T, error) {
		co.Wait(sec)
		if log != nil {
			*log = append(*log, name)
		}
		return v, nil
	})
}

func TestAwait_ChildValueAndError(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	boom := errors.New("boom")
	h := MustStart(s, NewTask(func(co *Co) (int, error) {
		v, err := Await(co, waitValue(1, 20, nil, ""))
		if err != nil {
			return 0, err
		}
		_, err = Await(co, NewTask(func(*Co) (int, error) { return 0, boom }))
		if !errors.Is(err, boom) {
			return 0, errors.New("child error lost")
		}
		return v + 22, nil
	}))
	if h.IsDown() {
		t.Fatalf("IsDown=true before child finished")
	}
	clk.Advance(1)
	s.Update()
	if v, err := h.TakeResult(); err != nil || v != 42 {
		t.Fatalf("TakeResult=(%d, %v), want (42, nil)", v, err)
	}
}

func TestAwait_NestedChainFinishesInOneUpdate(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	leaf := waitValue(1, "leaf", nil, "")
	mid := NewTask(func(co *Co) (string, error) {
		v, err := Await(co, leaf)
		return "mid/" + v, err
	})
	h := MustStart(s, NewTask(func(co *Co) (string, error) {
		v, err := Await(co, mid)
		return "root/" + v, err
	}))

	clk.Advance(1)
	s.Update()
	if v, err := h.TakeResult(); err != nil || v != "root/mid/leaf" {
		t.Fatalf("TakeResult=(%q, %v)", v, err)
	}
	if n := s.Snapshot().SubTasks; n != 0 {
		t.Fatalf("SubTasks=%d, want 0", n)
	}
}

func TestAwait_ChildPanicSurfacesAsError(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	h := MustStart(s, NewTask(func(co *Co) (bool, error) {
		_, err := Await(co, NewAction(func(*Co) error { panic("child") }))
		return errors.Is(err, ErrPanicked), nil
	}))
	if v, err := h.TakeResult(); err != nil || !v {
		t.Fatalf("TakeResult=(%v, %v), want (true, nil)", v, err)
	}
}

func TestAwait_TaskReusePanics(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	h := MustStart(s, NewAction(func(co *Co) error {
		child := NewTask(func(*Co) (int, error) { return 1, nil })
		_, _ = Await(co, child)
		_, _ = Await(co, child)
		return nil
	}))
	if _, err := h.TakeResult(); !errors.Is(err, ErrPanicked) {
		t.Fatalf("err=%v, want ErrPanicked", err)
	}
}

func TestAll_ResultsInArgumentOrder(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	var log []string
	h := MustStart(s, NewTask(func(co *Co) ([]string, error) {
		return All(co,
			waitValue(3, "a", &log, "a"),
			waitValue(1, "b", &log, "b"),
			waitValue(2, "c", &log, "c"),
		)
	}))

	for i := 0; i < 2; i++ {
		clk.Advance(1)
		s.Update()
		if h.IsDown() {
			t.Fatalf("parent resumed after %d of 3 completions", i+1)
		}
	}
	clk.Advance(1)
	s.Update()

	if want := []string{"b", "c", "a"}; !slices.Equal(log, want) {
		t.Fatalf("completion order=%v, want %v", log, want)
	}
	v, err := h.TakeResult()
	if err != nil || !slices.Equal(v, []string{"a", "b", "c"}) {
		t.Fatalf("TakeResult=(%v, %v), want ([a b c], nil)", v, err)
	}
}

func TestAll_Empty(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	h := MustStart(s, NewTask(func(co *Co) (int, error) {
		v, err := All[int](co)
		return len(v), err
	}))
	if v, err := h.TakeResult(); err != nil || v != 0 {
		t.Fatalf("TakeResult=(%d, %v), want (0, nil)", v, err)
	}
}

func TestAll_FirstErrorInArgumentOrder(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	errA := errors.New("a")
	errB := errors.New("b")
	fail := func(sec float64, err error) *Task[int] {
		return NewTask(func(co *Co) (int, error) {
			co.Wait(sec)
			return 0, err
		})
	}
	var vals []int
	h := MustStart(s, NewAction(func(co *Co) error {
		var err error
		vals, err = All(co, waitValue(1, 5, nil, ""), fail(2, errB), fail(3, errA))
		return err
	}))
	clk.Advance(3)
	s.Update()

	_, err := h.TakeResult()
	if !errors.Is(err, errB) || errors.Is(err, errA) {
		t.Fatalf("err=%v, want errB only", err)
	}
	if !slices.Equal(vals, []int{5, 0, 0}) {
		t.Fatalf("vals=%v, want [5 0 0]", vals)
	}
}

func TestAll2_MixedTypes(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	type pair struct {
		n int
		s string
	}
	h := MustStart(s, NewTask(func(co *Co) (pair, error) {
		n, str, err := All2(co, waitValue(2, 1, nil, ""), waitValue(1, "x", nil, ""))
		return pair{n, str}, err
	}))
	clk.Advance(2)
	s.Update()
	if v, err := h.TakeResult(); err != nil || v != (pair{1, "x"}) {
		t.Fatalf("TakeResult=(%+v, %v)", v, err)
	}
}

func TestAll3_WithAction(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	ran := false
	h := MustStart(s, NewTask(func(co *Co) (float64, error) {
		n, _, f, err := All3(co,
			waitValue(1, 2, nil, ""),
			NewAction(func(co *Co) error { co.Wait(1); ran = true; return nil }),
			waitValue(0, 0.5, nil, ""),
		)
		return float64(n) + f, err
	}))
	clk.Advance(1)
	s.Update()
	if v, err := h.TakeResult(); err != nil || v != 2.5 || !ran {
		t.Fatalf("TakeResult=(%v, %v) ran=%v", v, err, ran)
	}
}

func TestAny_FirstFinisherWinsAndOthersKeepRunning(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	var log []string
	var slots []Slot[int]
	h := MustStart(s, NewAction(func(co *Co) error {
		var err error
		slots, err = Any(co,
			waitValue(2, 1, &log, "slow"),
			waitValue(1, 2, &log, "fast"),
		)
		log = append(log, "parent")
		return err
	}))

	clk.Advance(1)
	s.Update()
	if !h.IsDown() {
		t.Fatalf("parent not resumed by first completion")
	}
	if Winner(slots) != 1 || slots[1].Value != 2 || slots[0].Valid {
		t.Fatalf("slots=%+v", slots)
	}
	if n := s.Snapshot().SubTasks; n != 1 {
		t.Fatalf("SubTasks=%d, want 1 (loser still running)", n)
	}

	clk.Advance(1)
	s.Update()
	if want := []string{"fast", "parent", "slow"}; !slices.Equal(log, want) {
		t.Fatalf("log=%v, want %v", log, want)
	}
	if n := s.Snapshot().SubTasks; n != 0 {
		t.Fatalf("SubTasks=%d, want 0", n)
	}
}

func TestAny_SyncWinnerStillLaunchesOthers(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	started := false
	h := MustStart(s, NewTask(func(co *Co) (int, error) {
		slots, err := Any(co,
			NewTask(func(*Co) (int, error) { return 9, nil }),
			NewTask(func(co *Co) (int, error) { started = true; co.Wait(1); return 1, nil }),
		)
		return slots[Winner(slots)].Value, err
	}))
	if !started {
		t.Fatalf("second sub-task not launched")
	}
	if v, err := h.TakeResult(); err != nil || v != 9 {
		t.Fatalf("TakeResult=(%d, %v), want (9, nil)", v, err)
	}
}

func TestAny_LosingFailureNeverSurfaces(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	h := MustStart(s, NewTask(func(co *Co) (string, error) {
		a, b, err := Any2(co,
			waitValue(1, "winner", nil, ""),
			NewTask(func(co *Co) (int, error) { co.Wait(2); return 0, errors.New("loser") }),
		)
		if !a.Valid || b.Valid {
			return "", errors.New("wrong winner")
		}
		return a.Value, err
	}))
	clk.Advance(1)
	s.Update()
	clk.Advance(1)
	s.Update()
	if v, err := h.TakeResult(); err != nil || v != "winner" {
		t.Fatalf("TakeResult=(%q, %v)", v, err)
	}
}

func TestAny_WinnerFailure(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	boom := errors.New("boom")
	h := MustStart(s, NewTask(func(co *Co) (int, error) {
		slots, err := Any(co, NewTask(func(*Co) (int, error) { return 0, boom }))
		return Winner(slots), err
	}))
	v, err := h.TakeResult()
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want boom", err)
	}
	if v != 0 {
		t.Fatalf("value=%d, want zero on failure", v)
	}
}

func TestAny_Empty(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	h := MustStart(s, NewTask(func(co *Co) (int, error) {
		slots, err := Any[int](co)
		return Winner(slots), err
	}))
	if v, err := h.TakeResult(); err != nil || v != -1 {
		t.Fatalf("TakeResult=(%d, %v), want (-1, nil)", v, err)
	}
}

func TestStop_ParentMidAllLeavesSubTasksRunning(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	var log []string
	h := MustStart(s, NewAction(func(co *Co) error {
		_, err := All(co, waitValue(1, 1, &log, "c1"), waitValue(2, 2, &log, "c2"))
		log = append(log, "parent")
		return err
	}))

	h.Stop()
	if st, _ := h.State(); st != StateStopped {
		t.Fatalf("State=%v, want stopped", st)
	}
	clk.Advance(2)
	s.Update()
	if want := []string{"c1", "c2"}; !slices.Equal(log, want) {
		t.Fatalf("log=%v, want %v", log, want)
	}
	if n := s.Snapshot().SubTasks; n != 0 {
		t.Fatalf("SubTasks=%d, want 0", n)
	}
}

func TestStop_ParentStoppedDuringLaunchStillStartsLaterSubTasks(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	var parent *Handle[struct{}]
	secondRan := false
	parent = MustStart(s, NewAction(func(co *Co) error {
		co.NextFrame()
		_, err := All(co,
			NewAction(func(co *Co) error { parent.Stop(); return nil }),
			NewAction(func(co *Co) error { secondRan = true; co.Wait(1); return nil }),
		)
		return err
	}))

	s.Update()
	if !parent.IsDown() {
		t.Fatalf("parent still running after stopping itself through a sub-task")
	}
	if st, _ := parent.State(); st != StateStopped {
		t.Fatalf("State=%v, want stopped", st)
	}
	if !secondRan {
		t.Fatalf("second sub-task never launched")
	}
	for i := 0; i < 5; i++ {
		clk.Advance(1)
		s.Update()
	}
	if n := s.Snapshot().SubTasks; n != 0 {
		t.Fatalf("SubTasks=%d, want 0", n)
	}
}

func TestAll_SameTaskTwicePanicsWithoutBinding(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	var recovered any
	h := MustStart(s, NewAction(func(co *Co) error {
		child := waitValue(1, 1, nil, "")
		func() {
			defer func() { recovered = recover() }()
			_, _ = All(co, child, child)
		}()
		return nil
	}))
	if recovered == nil {
		t.Fatalf("All with a repeated task did not panic")
	}
	if !h.IsDown() {
		t.Fatalf("parent still running")
	}
	if n := s.Snapshot().SubTasks; n != 0 {
		t.Fatalf("SubTasks=%d, want 0", n)
	}
}

func TestAll_ZeroDelaysResolveInOneUpdate(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t)
	h := MustStart(s, NewTask(func(co *Co) ([]int, error) {
		return All(co, waitValue(0, 1, nil, ""), waitValue(0, 2, nil, ""))
	}))
	if h.IsDown() {
		t.Fatalf("zero-delay waits resumed inline")
	}
	s.Update()
	v, err := h.TakeResult()
	if err != nil || !slices.Equal(v, []int{1, 2}) {
		t.Fatalf("TakeResult=(%v, %v), want ([1 2], nil)", v, err)
	}
}

func TestAny_ZeroDelayBeatsTimedWaitAndLoserFinishes(t *testing.T) {
	t.Parallel()

	s, clk := newTestScheduler(t)
	slowRan := false
	slow := NewTask(func(co *Co) (int, error) {
		co.Wait(0.02)
		slowRan = true
		return 10, nil
	})
	h := MustStart(s, NewTask(func(co *Co) ([]Slot[int], error) {
		return Any(co, slow, waitValue(0, 20, nil, ""))
	}))

	s.Update()
	slots, err := h.TakeResult()
	if err != nil {
		t.Fatalf("TakeResult err=%v", err)
	}
	if want := []Slot[int]{{}, {Value: 20, Valid: true}}; !slices.Equal(slots, want) {
		t.Fatalf("slots=%v, want %v", slots, want)
	}
	if Winner(slots) != 1 {
		t.Fatalf("Winner=%d, want 1", Winner(slots))
	}
	if n := s.Snapshot().SubTasks; n != 1 {
		t.Fatalf("SubTasks=%d, want the loser still running", n)
	}

	clk.Advance(0.02)
	s.Update()
	if !slowRan {
		t.Fatalf("losing sub-task did not finish")
	}
	if n := s.Snapshot().SubTasks; n != 0 {
		t.Fatalf("SubTasks=%d, want 0", n)
	}
}
