package clock

import (
	"sync"
	"testing"
)

func TestSteady_NonDecreasing(t *testing.T) {
	t.Parallel()

	prev := Steady()
	for i := 0; i < 1000; i++ {
		now := Steady()
		if now < prev {
			t.Fatalf("Steady went backwards: %v < %v", now, prev)
		}
		prev = now
	}
}

func TestManual_SetAdvance(t *testing.T) {
	t.Parallel()

	var zero Manual
	if zero.Now() != 0 {
		t.Fatalf("zero Now=%v, want 0", zero.Now())
	}

	m := NewManual(1.5)
	if m.Now() != 1.5 {
		t.Fatalf("Now=%v, want 1.5", m.Now())
	}
	if got := m.Advance(0.5); got != 2 {
		t.Fatalf("Advance=%v, want 2", got)
	}
	m.Set(3)
	if m.Now() != 3 {
		t.Fatalf("Now=%v, want 3", m.Now())
	}
}

func TestManual_BackwardsPanics(t *testing.T) {
	t.Parallel()

	m := NewManual(2)
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("Set backwards: expected panic")
			}
		}()
		m.Set(1)
	}()
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("Advance negative: expected panic")
			}
		}()
		m.Advance(-1)
	}()
}

func TestManual_ConcurrentAdvance(t *testing.T) {
	t.Parallel()

	m := NewManual(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Advance(1)
			}
		}()
	}
	wg.Wait()
	if m.Now() != 800 {
		t.Fatalf("Now=%v, want 800", m.Now())
	}
}

func TestScaled(t *testing.T) {
	t.Parallel()

	base := NewManual(10)
	s := NewScaled(base.Now)
	if s.Now() != 0 {
		t.Fatalf("Now=%v, want 0", s.Now())
	}

	base.Advance(1)
	if s.Now() != 1 {
		t.Fatalf("Now=%v, want 1", s.Now())
	}

	s.SetScale(2)
	base.Advance(1)
	if s.Now() != 3 {
		t.Fatalf("Now=%v, want 3", s.Now())
	}

	s.SetScale(0)
	base.Advance(5)
	if s.Now() != 3 {
		t.Fatalf("paused Now=%v, want 3", s.Now())
	}
	if s.Scale() != 0 {
		t.Fatalf("Scale=%v, want 0", s.Scale())
	}

	s.SetScale(0.5)
	base.Advance(2)
	if s.Now() != 4 {
		t.Fatalf("Now=%v, want 4", s.Now())
	}
}

func TestScaled_InvalidScalePanics(t *testing.T) {
	t.Parallel()

	s := NewScaled(NewManual(0).Now)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	s.SetScale(-1)
}
