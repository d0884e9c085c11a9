package coro

import "fmt"

// group joins a fixed set of sub-tasks into one suspension point of a parent task.
//
// The parent resumes once need sub-tasks have finished. Completions after that, or after the
// parent left the group (resumed or torn down), are ignored.
type group struct {
	parent *frame
	frames []*frame
	need   int
	done   int
	first  int // index of the first sub-task to finish; -1 until then
	armed  bool
}

func newGroup(co *Co, frames []*frame, need int) *group {
	p := co.frame()
	g := &group{parent: p, frames: frames, need: need, first: -1}
	// Reject reuse before binding anything so a bad call leaves no frame registered.
	seen := make(map[*frame]struct{}, len(frames))
	for _, f := range frames {
		if _, dup := seen[f]; dup || f.bound {
			panic("coro: task already started or awaited")
		}
		seen[f] = struct{}{}
	}
	for _, f := range frames {
		f.bindSub(p.s, g)
	}
	return g
}

func (g *group) frameDone(f *frame) {
	if g.first < 0 {
		for i, sf := range g.frames {
			if sf == f {
				g.first = i
				break
			}
		}
	}
	g.done++
	if g.done != g.need || !g.armed {
		return
	}
	g.armed = false
	p := g.parent
	if p == nil || p.state != frameSuspended {
		return
	}
	p.resume()
}

// await launches every sub-task once, in order, then suspends the parent until the group is
// satisfied. Sub-tasks that finish during launch count immediately. A parent stopped during
// launch still launches the remaining sub-tasks before it unwinds.
func (g *group) await() {
	p := g.parent
	defer func() {
		g.armed = false
		g.parent = nil
	}()
	for _, f := range g.frames {
		f.resume()
	}
	p.checkStopping()
	if g.done >= g.need {
		return
	}
	g.armed = true
	p.suspend()
}

func framesOf[T any](tasks []*Task[T]) []*frame {
	frames := make([]*frame, len(tasks))
	for i, t := range tasks {
		frames[i] = t.frame()
	}
	return frames
}

// Await runs task as a sub-task of the calling task and suspends until it finishes.
// It returns the sub-task's value or failure.
func Await[T any](co *Co, task *Task[T]) (T, error) {
	f := task.frame()
	newGroup(co, []*frame{f}, 1).await()
	return valueOf[T](f), f.err
}

// All runs every task as a sub-task and suspends until all have finished.
//
// Values are returned in argument order regardless of completion order. If any sub-task failed,
// the error of the first failing one in argument order is returned, wrapped with its index,
// together with the values of the others. All with no tasks returns immediately.
//
// Stopping the calling task does not stop the sub-tasks.
func All[T any](co *Co, tasks ...*Task[T]) ([]T, error) {
	if len(tasks) == 0 {
		co.frame()
		return []T{}, nil
	}
	frames := framesOf(tasks)
	newGroup(co, frames, len(frames)).await()

	out := make([]T, len(frames))
	var err error
	for i, f := range frames {
		out[i] = valueOf[T](f)
		if f.err != nil && err == nil {
			err = fmt.Errorf("coro: all: task %d: %w", i, f.err)
		}
	}
	return out, err
}

// All2 is All for two tasks of different types.
func All2[A, B any](co *Co, a *Task[A], b *Task[B]) (A, B, error) {
	frames := []*frame{a.frame(), b.frame()}
	newGroup(co, frames, 2).await()
	return valueOf[A](frames[0]), valueOf[B](frames[1]), firstErr("all", frames)
}

// All3 is All for three tasks of different types.
func All3[A, B, C any](co *Co, a *Task[A], b *Task[B], c *Task[C]) (A, B, C, error) {
	frames := []*frame{a.frame(), b.frame(), c.frame()}
	newGroup(co, frames, 3).await()
	return valueOf[A](frames[0]), valueOf[B](frames[1]), valueOf[C](frames[2]), firstErr("all", frames)
}

func firstErr(op string, frames []*frame) error {
	for i, f := range frames {
		if f.err != nil {
			return fmt.Errorf("coro: %s: task %d: %w", op, i, f.err)
		}
	}
	return nil
}

// Any runs every task as a sub-task and suspends until the first one finishes.
//
// Exactly one slot of the result, the winner's, is Valid. If the winner failed, its error is
// returned, wrapped with its index, and no slot is Valid. The other sub-tasks are not stopped:
// they keep running to completion and their results (including failures) are discarded.
//
// Any with no tasks returns immediately with an empty result.
func Any[T any](co *Co, tasks ...*Task[T]) ([]Slot[T], error) {
	if len(tasks) == 0 {
		co.frame()
		return []Slot[T]{}, nil
	}
	frames := framesOf(tasks)
	g := newGroup(co, frames, 1)
	g.await()

	out := make([]Slot[T], len(frames))
	w := frames[g.first]
	if w.err != nil {
		return out, fmt.Errorf("coro: any: task %d: %w", g.first, w.err)
	}
	out[g.first] = Slot[T]{Value: valueOf[T](w), Valid: true}
	return out, nil
}

// Any2 is Any for two tasks of different types.
func Any2[A, B any](co *Co, a *Task[A], b *Task[B]) (Slot[A], Slot[B], error) {
	frames := []*frame{a.frame(), b.frame()}
	g := newGroup(co, frames, 1)
	g.await()

	var sa Slot[A]
	var sb Slot[B]
	w := frames[g.first]
	if w.err != nil {
		return sa, sb, fmt.Errorf("coro: any: task %d: %w", g.first, w.err)
	}
	switch g.first {
	case 0:
		sa = Slot[A]{Value: valueOf[A](w), Valid: true}
	case 1:
		sb = Slot[B]{Value: valueOf[B](w), Valid: true}
	}
	return sa, sb, nil
}

// Winner returns the index of the Valid slot, or -1.
func Winner[T any](slots []Slot[T]) int {
	for i, s := range slots {
		if s.Valid {
			return i
		}
	}
	return -1
}
