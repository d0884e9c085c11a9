// Package timequeue provides a time-ordered queue with stable removal handles and
// snapshot-based draining.
//
// Entries are ordered by wake time; entries with equal time keep their insertion order.
//
// Draining is two-step: SetupUpdate fixes a due threshold for one pass, then the caller loops
//
//	q.SetupUpdate(now)
//	for q.CheckUpdate() {
//		v := q.Pop()
//		// ...
//	}
//
// Entries added after SetupUpdate belong to the current pass and are never returned by it,
// even when their time is at or before the threshold. They become due on the next pass.
// This bounds one pass to the work that was due when it began.
//
// A Queue is not safe for concurrent use.
package timequeue

import (
	"cmp"
	"math"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
)

type key struct {
	at  float64
	seq uint64
}

func compareKeys(a, b key) int {
	if c := cmp.Compare(a.at, b.at); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

type item[T any] struct {
	pass uint64
	v    T
}

// Entry is a stable handle to a queued value, returned by AddTimed.
//
// The zero Entry refers to nothing; removing it is a no-op.
type Entry struct {
	k  key
	ok bool
}

// Valid reports whether e was returned by AddTimed.
// It does not report whether the entry is still queued.
func (e Entry) Valid() bool { return e.ok }

// At returns the wake time the entry was added with.
func (e Entry) At() float64 { return e.k.at }

// Queue is a time-ordered queue of values of type T.
//
// The zero value is not usable; use New.
type Queue[T any] struct {
	tree *rbt.Tree[key, item[T]]

	// seq is never reset, so a stale Entry cannot alias a newer one after Clear.
	seq  uint64
	pass uint64
	now  float64

	// cursor is where the next CheckUpdate resumes after skipping entries of the current pass.
	cursor    key
	hasCursor bool

	due    key
	hasDue bool
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{tree: rbt.NewWith[key, item[T]](compareKeys)}
}

// AddTimed queues v to become due at time at and returns a handle for Remove.
//
// at must not be NaN (panics).
func (q *Queue[T]) AddTimed(at float64, v T) Entry {
	if math.IsNaN(at) {
		panic("timequeue: AddTimed called with NaN time")
	}
	k := key{at: at, seq: q.seq}
	q.seq++
	q.tree.Put(k, item[T]{pass: q.pass, v: v})
	return Entry{k: k, ok: true}
}

// Remove removes a pending entry. It reports whether the entry was still queued.
func (q *Queue[T]) Remove(e Entry) bool {
	if !e.ok {
		return false
	}
	if _, found := q.tree.Get(e.k); !found {
		return false
	}
	q.tree.Remove(e.k)
	if q.hasDue && q.due == e.k {
		q.hasDue = false
	}
	return true
}

// SetupUpdate starts a drain pass with the given due threshold.
func (q *Queue[T]) SetupUpdate(now float64) {
	q.pass++
	q.now = now
	q.hasCursor = false
	q.hasDue = false
}

// CheckUpdate reports whether an entry due in the current pass remains.
// When it returns true, Pop returns that entry.
func (q *Queue[T]) CheckUpdate() bool {
	q.hasDue = false

	var n *rbt.Node[key, item[T]]
	if q.hasCursor {
		n, _ = q.tree.Ceiling(q.cursor)
	} else {
		n = q.tree.Left()
	}
	for n != nil {
		if n.Key.at > q.now {
			return false
		}
		if n.Value.pass != q.pass {
			q.due, q.hasDue = n.Key, true
			return true
		}
		// Added during this pass: skip it. seq+1 is the smallest key ordered after n.
		q.cursor = key{at: n.Key.at, seq: n.Key.seq + 1}
		q.hasCursor = true
		n, _ = q.tree.Ceiling(q.cursor)
	}
	return false
}

// Pop removes and returns the entry found by the last successful CheckUpdate.
//
// Calling Pop without a preceding successful CheckUpdate panics.
func (q *Queue[T]) Pop() T {
	if !q.hasDue {
		panic("timequeue: Pop called without a due entry (call CheckUpdate first)")
	}
	it, found := q.tree.Get(q.due)
	if !found {
		panic("timequeue: due entry vanished")
	}
	q.tree.Remove(q.due)
	q.hasDue = false
	return it.v
}

// Now returns the threshold of the latest pass (0 before the first SetupUpdate).
func (q *Queue[T]) Now() float64 { return q.now }

// Len returns the number of queued entries.
func (q *Queue[T]) Len() int { return q.tree.Size() }

// Clear removes all entries. Outstanding Entry handles become no-ops for Remove.
func (q *Queue[T]) Clear() {
	q.tree.Clear()
	q.hasCursor = false
	q.hasDue = false
}
