package coro

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// manager is the registry of started tasks.
//
// Completion is two-phase. When a started task's body returns, the frame only records the ID
// (onCoroutineFinished); the result is moved into the slot and the frame is released later, by
// finalizeFinished, once control is back in Update or Start. This keeps a frame from being
// released while it is still unwinding.
type manager struct {
	s *Scheduler

	nextID  uint64
	slots   map[uint64]*slot
	pending uint64
	closed  bool

	// dropped receives IDs of handles collected by the garbage collector. It is the only part of
	// the manager touched off the loop goroutine.
	dropped *releaseInbox
}

type slot struct {
	id   uint64
	name string
	tags []Tag
	f    *frame

	state    State
	released bool
	taken    bool
	panicked bool
	resumes  uint64

	value any
	err   error

	startedAt  float64
	finishedAt float64
}

type releaseInbox struct {
	mu  sync.Mutex
	ids []uint64
}

func (b *releaseInbox) push(id uint64) {
	b.mu.Lock()
	b.ids = append(b.ids, id)
	b.mu.Unlock()
}

func (b *releaseInbox) take() []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := b.ids
	b.ids = nil
	return ids
}

func newManager(s *Scheduler) *manager {
	return &manager{
		s:       s,
		slots:   make(map[uint64]*slot),
		dropped: &releaseInbox{},
	}
}

func (m *manager) start(f *frame, opts []StartOption) (uint64, error) {
	if m.closed {
		return 0, ErrClosed
	}
	var cfg startConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	name := normalizeName(cfg.name)
	if err := validateName(name); err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidName, name, err)
	}
	var tags []Tag
	if len(cfg.tags) > 0 {
		tags = slices.Clone(cfg.tags)
	}

	f.claim()
	m.drainDropped()

	m.nextID++
	id := m.nextID
	f.bindRoot(m.s, id, name, tags)
	sl := &slot{
		id:        id,
		name:      name,
		tags:      tags,
		f:         f,
		state:     StateRunning,
		startedAt: m.s.Now(DomainRealtime),
	}
	m.slots[id] = sl

	m.s.logger.Debug("task started", slog.Uint64("id", id), slog.String("name", name))
	if h := m.s.cfg.onTaskStart; h != nil {
		info := StartInfo{ID: id, Name: name, Tags: tags, StartedAt: sl.startedAt}
		callHookNoPanic("OnTaskStart", func() { h(info) })
	}

	f.resume()
	m.finalizeFinished()
	return id, nil
}

func (m *manager) lookup(id uint64, op string) *slot {
	sl := m.slots[id]
	if sl == nil {
		panic(fmt.Sprintf("coro: %s of unknown task (id=%d)", op, id))
	}
	if sl.released {
		panic(fmt.Sprintf("coro: %s of released task (id=%d)", op, id))
	}
	return sl
}

// stop tears the task down. A task that already reached a final state is left as is.
func (m *manager) stop(id uint64) {
	m.stopSlot(m.lookup(id, "Stop"))
}

func (m *manager) stopSlot(sl *slot) {
	if m.pending == sl.id {
		m.finalizeFinished()
	}
	if sl.state != StateRunning {
		return
	}
	f := sl.f
	sl.f = nil
	sl.state = StateStopped
	sl.resumes = f.resumes
	sl.finishedAt = m.s.Now(DomainRealtime)
	f.teardown()

	m.s.logger.Debug("task stopped", slog.Uint64("id", sl.id), slog.String("name", sl.name))
	m.notifyFinish(sl)
	if sl.released {
		delete(m.slots, sl.id)
	}
}

func (m *manager) state(id uint64) State {
	return m.lookup(id, "State").state
}

func (m *manager) status(id uint64) Status {
	return m.lookup(id, "Status").status()
}

// release marks the handle side as gone. The slot is dropped now if the task is down, or at
// finalization otherwise. The task keeps running either way.
func (m *manager) release(id uint64) {
	sl := m.lookup(id, "Release")
	sl.released = true
	if sl.state != StateRunning {
		delete(m.slots, id)
	}
}

func (m *manager) drainDropped() {
	for _, id := range m.dropped.take() {
		sl := m.slots[id]
		if sl == nil || sl.released {
			continue
		}
		sl.released = true
		if sl.state != StateRunning {
			delete(m.slots, id)
		}
	}
}

func (m *manager) takeResult(id uint64) (any, error) {
	sl := m.lookup(id, "TakeResult")
	if m.pending == id {
		m.finalizeFinished()
	}
	switch {
	case sl.state == StateRunning:
		return nil, fmt.Errorf("%w: task %d is running", ErrNoResult, id)
	case sl.state == StateStopped:
		return nil, fmt.Errorf("%w: task %d was stopped", ErrNoResult, id)
	case sl.taken:
		return nil, fmt.Errorf("%w: task %d result already taken", ErrNoResult, id)
	}
	sl.taken = true
	v := sl.value
	sl.value = nil
	return v, sl.err
}

func (m *manager) onCoroutineFinished(id uint64) {
	if m.pending != 0 {
		panic(fmt.Sprintf("coro: task %d finished while task %d awaits finalization", id, m.pending))
	}
	m.pending = id
}

func (m *manager) finalizeFinished() {
	id := m.pending
	if id == 0 {
		return
	}
	m.pending = 0

	sl := m.slots[id]
	if sl == nil || sl.state != StateRunning || sl.f == nil {
		panic(fmt.Sprintf("coro: finalize of task %d in unexpected state", id))
	}
	f := sl.f
	sl.f = nil
	sl.value, sl.err = f.value, f.err
	sl.panicked = f.panicked
	sl.resumes = f.resumes
	sl.finishedAt = m.s.Now(DomainRealtime)
	if f.err != nil {
		sl.state = StateFailed
	} else {
		sl.state = StateSucceeded
	}
	f.release()

	if sl.state == StateFailed {
		m.s.logger.Warn("task failed", slog.Uint64("id", id), slog.String("name", sl.name), slog.Any("err", sl.err))
	} else {
		m.s.logger.Debug("task succeeded", slog.Uint64("id", id), slog.String("name", sl.name))
	}
	m.notifyFinish(sl)

	if sl.released {
		delete(m.slots, id)
	}
}

func (m *manager) notifyFinish(sl *slot) {
	h := m.s.cfg.onTaskFinish
	if h == nil {
		return
	}
	info := FinishInfo{
		ID:         sl.id,
		Name:       sl.name,
		Tags:       sl.tags,
		State:      sl.state,
		Resumes:    sl.resumes,
		StartedAt:  sl.startedAt,
		FinishedAt: sl.finishedAt,
		Err:        sl.err,
		Panicked:   sl.panicked,
	}
	callHookNoPanic("OnTaskFinish", func() { h(info) })
}

// close stops every running task and drops all slots.
func (m *manager) close() {
	if m.closed {
		return
	}
	m.finalizeFinished()
	m.closed = true

	ids := slices.Sorted(maps.Keys(m.slots))
	for _, id := range ids {
		sl := m.slots[id]
		if sl.state != StateRunning {
			continue
		}
		f := sl.f
		sl.f = nil
		sl.state = StateStopped
		sl.resumes = f.resumes
		sl.finishedAt = m.s.Now(DomainRealtime)
		f.teardown()
		m.notifyFinish(sl)
	}
	clear(m.slots)
}

func (m *manager) statuses() []Status {
	ids := slices.Sorted(maps.Keys(m.slots))
	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.slots[id].status())
	}
	return out
}

func (sl *slot) status() Status {
	st := Status{
		ID:         sl.id,
		Name:       sl.name,
		Tags:       slices.Clone(sl.tags),
		State:      sl.state,
		Released:   sl.released,
		Resumes:    sl.resumes,
		StartedAt:  sl.startedAt,
		FinishedAt: sl.finishedAt,
	}
	if sl.f != nil {
		st.Resumes = sl.f.resumes
	}
	if sl.state == StateFailed && sl.err != nil {
		st.Err = sl.err.Error()
	}
	return st
}
