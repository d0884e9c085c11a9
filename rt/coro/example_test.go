package coro_test

import (
	"fmt"

	"github.com/evan-idocoding/ztick/rt/clock"
	"github.com/evan-idocoding/ztick/rt/coro"
)

func ExampleStart() {
	clk := clock.NewManual(0)
	s := coro.NewScheduler(coro.WithClock(coro.DomainRealtime, clk.Now))
	defer s.Close()

	h := coro.MustStart(s, coro.NewTask(func(co *coro.Co) (int, error) {
		co.Wait(0.1)
		return 42, nil
	}), coro.WithName("answer"))

	for !h.IsDown() {
		clk.Advance(1.0 / 60)
		s.Update()
	}
	v, err := h.TakeResult()
	fmt.Println(v, err)

	// Output:
	// 42 <nil>
}

func ExampleAll() {
	clk := clock.NewManual(0)
	s := coro.NewScheduler(coro.WithClock(coro.DomainRealtime, clk.Now))
	defer s.Close()

	after := func(sec float64, v string) *coro.Task[string] {
		return coro.NewTask(func(co *coro.Co) (string, error) {
			co.Wait(sec)
			fmt.Println("finished", v)
			return v, nil
		})
	}
	h := coro.MustStart(s, coro.NewTask(func(co *coro.Co) ([]string, error) {
		return coro.All(co, after(2, "slow"), after(1, "fast"))
	}))

	for !h.IsDown() {
		clk.Advance(1)
		s.Update()
	}
	v, _ := h.TakeResult()
	fmt.Println(v)

	// Output:
	// finished fast
	// finished slow
	// [slow fast]
}

func ExampleAny() {
	clk := clock.NewManual(0)
	s := coro.NewScheduler(coro.WithClock(coro.DomainRealtime, clk.Now))
	defer s.Close()

	h := coro.MustStart(s, coro.NewTask(func(co *coro.Co) (string, error) {
		timeout, reply, err := coro.Any2(co,
			coro.NewAction(func(co *coro.Co) error { co.Wait(5); return nil }),
			coro.NewTask(func(co *coro.Co) (string, error) { co.Wait(1); return "pong", nil }),
		)
		if timeout.Valid {
			return "timed out", err
		}
		return reply.Value, err
	}))

	for !h.IsDown() {
		clk.Advance(1)
		s.Update()
	}
	v, _ := h.TakeResult()
	fmt.Println(v)

	// Output:
	// pong
}

func ExampleHandle_Stop() {
	s := coro.NewScheduler()
	defer s.Close()

	h := coro.MustStart(s, coro.NewAction(func(co *coro.Co) error {
		defer fmt.Println("cleanup")
		co.Wait(3600)
		return nil
	}))
	h.Stop()
	st, _ := h.State()
	fmt.Println(st)

	// Output:
	// cleanup
	// stopped
}
