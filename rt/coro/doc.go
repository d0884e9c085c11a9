// Package coro provides a single-goroutine cooperative task scheduler for host loops
// (game ticks, simulations, frame-driven tools).
//
// # Design highlights
//
//   - Task: a body that can suspend at explicit points (Co.Wait, Await, All, Any) without
//     occupying a goroutine while it waits.
//   - Scheduler: owns one time-ordered wake-up queue per (Phase, Domain) pair and a registry of
//     started tasks. The host loop drives it by calling Update/UpdateOn.
//   - Handle: refers to a started task; used to stop it or take its result.
//   - Combinators: All (join) and Any (race) compose sub-tasks into one suspension point.
//   - Panic reporting: a panicking body fails its task with a *PanicError; by default the panic is
//     also reported to stderr.
//
// # Lifecycle
//
//	s := coro.NewScheduler()
//	defer s.Close()
//
//	h, _ := coro.Start(s, coro.NewTask(func(co *coro.Co) (int, error) {
//		co.Wait(0.1)
//		return 42, nil
//	}), coro.WithName("answer"))
//
//	for !h.IsDown() {
//		s.Update()
//	}
//	v, err := h.TakeResult() // 42, nil
//
// Start runs the body eagerly, up to its first suspension point. A body that never suspends is
// finished when Start returns.
//
// # Phases and domains
//
// A wait registers in the queue selected by OnPhase (default PhaseUpdate) and InDomain (default
// DomainRealtime). UpdateOn(phase, domain) drains only that queue; Update drains the default one.
// Each domain has its own clock (SetCustomTimer / WithClock), so a paused simulation clock holds
// every wait measured on it without affecting others.
//
// A drain reads the domain clock once and resumes, in wake-time order (ties in registration
// order), every wait that was registered before the drain began and is due. Waits registered
// during the drain, including zero-delay ones, are left for the next drain, so a task that waits
// in a loop can never starve its queue.
//
// # Stop and Release
//
// Handle.Stop tears a task down at once: its pending wait leaves the queue, deferred functions in
// the body run, and the task ends in StateStopped with no result. Sub-tasks the task was awaiting
// are not stopped.
//
// Releasing (or dropping) a Handle does not stop the task; it only lets the scheduler free the
// task's slot once it finishes.
//
// # All and Any
//
//	vals, err := coro.All(co, taskA, taskB) // resumes after both finished
//	slots, err := coro.Any(co, taskA, taskB) // resumes after the first finished
//
// Sub-tasks are launched in argument order when the combinator is reached. Any does not stop the
// sub-tasks that lost the race: they run to completion and their results are discarded.
//
// # Errors
//
// A task fails when its body returns a non-nil error or panics. Failures surface where results are
// read: Handle.TakeResult, Await, All, and the winner of Any.
//
// Misuse (resuming a running task, starting a task twice, Update from inside a task, stopping a
// released handle) panics.
//
// # Concurrency
//
// Everything except Scheduler.LastSnapshot and the clocks must be used from the goroutine that
// drives the scheduler.
package coro
