// Package ztick provides assembly helpers for running cooperative tasks inside a host loop.
//
// The engine lives in rt/coro: a single-goroutine scheduler whose tasks suspend on timed waits,
// on sub-task completion, and on the All/Any combinators. This package adds:
//   - Default: a process-wide scheduler for callers that want one shared instance.
//   - Loop: a fixed-interval host loop that drives a scheduler from its own goroutine and lets
//     other goroutines reach it through Do.
//
// You can start using ztick with the default scheduler and your own loop:
//
//	h, _ := ztick.Start(coro.NewTask(func(co *coro.Co) (int, error) {
//		co.Wait(0.1)
//		return 42, nil
//	}))
//	defer ztick.CloseDefault()
//	for !h.IsDown() {
//		ztick.Update()
//		time.Sleep(time.Second / 60)
//	}
//
// Or hand a scheduler to a Loop:
//
//	s := coro.NewScheduler()
//	loop := ztick.NewLoop(s, ztick.DefaultLoopConfig())
//	go func() { _ = loop.Run(ctx) }()
//
//	_ = loop.Do(ctx, func(s *coro.Scheduler) {
//		coro.MustStart(s, coro.NewAction(spawnWave), coro.WithName("wave")).Release()
//	})
//
// # Subpackages
//
//   - rt/coro: scheduler, tasks, handles, combinators
//   - rt/timequeue: the time-ordered wake-up queue
//   - rt/clock: steady, manual, and scaled clocks
//   - ops: net/http handlers exposing scheduler snapshots (tasks, queues) and a chi router
package ztick
