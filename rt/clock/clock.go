// Package clock provides time sources for the coro scheduler.
//
// A source is a niladic function returning elapsed seconds as a float64. Sources must be
// monotonically non-decreasing.
//
// Steady is the default realtime source. Manual and Scaled are intended for simulation time
// domains and deterministic tests:
//
//	game := clock.NewScaled(clock.Steady)
//	s := coro.NewScheduler(coro.WithClock(coro.DomainGame, game.Now))
//	game.SetScale(0) // pause everything waiting on the game domain
package clock

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Func returns elapsed seconds.
type Func func() float64

var (
	steadyOnce  sync.Once
	steadyStart time.Time
)

// Steady returns monotonic seconds elapsed since the first call to Steady in this process.
func Steady() float64 {
	steadyOnce.Do(func() { steadyStart = time.Now() })
	return time.Since(steadyStart).Seconds()
}

// Manual is a clock that only moves when told to.
//
// It is safe for concurrent use. The zero value reads 0.
type Manual struct {
	bits atomic.Uint64
}

// NewManual returns a Manual clock set to start.
func NewManual(start float64) *Manual {
	m := &Manual{}
	m.Set(start)
	return m
}

// Now returns the current reading.
func (m *Manual) Now() float64 {
	return math.Float64frombits(m.bits.Load())
}

// Set sets the reading. Moving backwards panics (sources must not decrease).
func (m *Manual) Set(t float64) {
	for {
		old := m.bits.Load()
		if t < math.Float64frombits(old) {
			panic("clock: Manual.Set moves time backwards")
		}
		if m.bits.CompareAndSwap(old, math.Float64bits(t)) {
			return
		}
	}
}

// Advance moves the reading forward by dt seconds and returns the new reading.
// Negative dt panics.
func (m *Manual) Advance(dt float64) float64 {
	if dt < 0 {
		panic("clock: Manual.Advance with negative delta")
	}
	for {
		old := m.bits.Load()
		next := math.Float64frombits(old) + dt
		if m.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}

// Scaled derives a clock from a base source with an adjustable rate.
//
// Changing the scale keeps the reading continuous: elapsed time before the change is kept,
// and only time after it runs at the new rate. A scale of 0 pauses the clock.
//
// It is safe for concurrent use.
type Scaled struct {
	base Func

	mu       sync.Mutex
	scale    float64
	baseMark float64 // base reading at the last scale change
	mark     float64 // scaled reading at the last scale change
	last     float64
}

// NewScaled returns a Scaled clock over base, starting at 0 with scale 1.
// A nil base uses Steady.
func NewScaled(base Func) *Scaled {
	if base == nil {
		base = Steady
	}
	return &Scaled{base: base, scale: 1, baseMark: base()}
}

// Now returns the scaled reading.
func (s *Scaled) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowLocked()
}

func (s *Scaled) nowLocked() float64 {
	t := s.mark + (s.base()-s.baseMark)*s.scale
	// Guard against a base source that jitters backwards.
	if t < s.last {
		t = s.last
	}
	s.last = t
	return t
}

// Scale returns the current rate.
func (s *Scaled) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

// SetScale changes the rate. Negative or NaN scales panic.
func (s *Scaled) SetScale(scale float64) {
	if scale < 0 || math.IsNaN(scale) {
		panic("clock: Scaled.SetScale with negative or NaN scale")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mark = s.nowLocked()
	s.baseMark = s.base()
	s.scale = scale
}
