package ztick

import (
	"testing"

	"github.com/evan-idocoding/ztick/rt/clock"
	"github.com/evan-idocoding/ztick/rt/coro"
)

// Tests in this file share the process-wide scheduler and must not run in parallel.

func TestDefault_LazyAndRecreatedAfterClose(t *testing.T) {
	clk := clock.NewManual(0)
	SetDefaultOptions(coro.WithClock(coro.DomainRealtime, clk.Now))
	t.Cleanup(func() {
		CloseDefault()
		SetDefaultOptions()
	})

	s := Default()
	if Default() != s {
		t.Fatalf("Default returned a different scheduler")
	}

	h, err := Start(coro.NewTask(func(co *coro.Co) (int, error) {
		co.Wait(0.1)
		return 42, nil
	}))
	if err != nil {
		t.Fatalf("Start err=%v", err)
	}
	clk.Advance(0.1)
	Update()
	if v, err := h.TakeResult(); err != nil || v != 42 {
		t.Fatalf("TakeResult=(%d, %v), want (42, nil)", v, err)
	}
	if Now(coro.DomainRealtime) != 0.1 {
		t.Fatalf("Now=%v, want 0.1", Now(coro.DomainRealtime))
	}

	CloseDefault()
	if !s.Closed() {
		t.Fatalf("old default not closed")
	}
	if Default() == s {
		t.Fatalf("Default not recreated after CloseDefault")
	}
}

func TestDefault_UpdateOnAndCustomTimer(t *testing.T) {
	t.Cleanup(CloseDefault)

	game := clock.NewManual(0)
	SetCustomTimer(coro.DomainGame, game.Now)
	done := false
	h, err := Start(coro.NewAction(func(co *coro.Co) error {
		co.Wait(1, coro.InDomain(coro.DomainGame), coro.OnPhase(coro.PhaseLateUpdate))
		done = true
		return nil
	}))
	if err != nil {
		t.Fatalf("Start err=%v", err)
	}
	game.Advance(1)
	UpdateOn(coro.PhaseLateUpdate, coro.DomainGame)
	if !done || !h.IsDown() {
		t.Fatalf("done=%v IsDown=%v", done, h.IsDown())
	}
}
