package coro

import "github.com/evan-idocoding/ztick/rt/timequeue"

// timedWait is a frame parked in a time queue.
type timedWait struct {
	f      *frame
	q      *timequeue.Queue[*timedWait]
	entry  timequeue.Entry
	queued bool
}

// fire is called by the drain loop after the queue removed the entry.
func (w *timedWait) fire() {
	w.queued = false
	w.f.resume()
}

func (w *timedWait) dispose() {
	if w.queued {
		w.q.Remove(w.entry)
		w.queued = false
	}
}

// Wait suspends the task for sec seconds, measured on the domain clock (DomainRealtime unless
// InDomain is given), and resumes it from UpdateOn for the wait's phase (PhaseUpdate unless
// OnPhase is given).
//
// A zero delay resumes the task on the next drain of that queue. Waiting never resumes a task
// inline: even an elapsed wait needs an update.
func (co *Co) Wait(sec float64, opts ...WaitOption) {
	f := co.frame()
	var cfg waitConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	q := f.s.queue(cfg.phase, cfg.domain)
	at := q.Now()
	if sec != 0 {
		at = f.s.Now(cfg.domain) + sec
	}

	w := &timedWait{f: f, q: q}
	w.entry = q.AddTimed(at, w)
	w.queued = true
	defer w.dispose()
	f.suspend()
}

// NextFrame suspends the task until the next drain of the wait's queue.
func (co *Co) NextFrame(opts ...WaitOption) {
	co.Wait(0, opts...)
}

// WaitUntil suspends the task, checking cond once per drain, until cond returns true.
// cond is checked immediately first; if it already holds, WaitUntil returns without suspending.
func (co *Co) WaitUntil(cond func() bool, opts ...WaitOption) {
	for !cond() {
		co.Wait(0, opts...)
	}
}

// WaitWhile suspends the task, checking cond once per drain, while cond returns true.
func (co *Co) WaitWhile(cond func() bool, opts ...WaitOption) {
	for cond() {
		co.Wait(0, opts...)
	}
}
