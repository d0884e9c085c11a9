package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/evan-idocoding/ztick/internal/config"
	"github.com/evan-idocoding/ztick/rt/coro"
)

// scene is the set of demo tasks: the All/Any/Await showcases, a patrol that runs until stopped,
// and a few enemy waves on the game clock.
type scene struct {
	out    io.Writer
	stopAt uint64

	patrol *coro.Handle[struct{}]
	finite []interface{ IsDown() bool }
}

func delayedValue(v int, sec float64) *coro.Task[int] {
	return coro.NewTask(func(co *coro.Co) (int, error) {
		co.Wait(sec)
		return v, nil
	})
}

func delayed(sec float64) *coro.Task[struct{}] {
	return coro.NewAction(func(co *coro.Co) error {
		co.Wait(sec)
		return nil
	})
}

func startScene(s *coro.Scheduler, cfg config.SceneConfig, out io.Writer) (*scene, error) {
	sc := &scene{out: out, stopAt: cfg.StopAt}
	var errs []error
	track := func(h interface{ IsDown() bool }, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		sc.finite = append(sc.finite, h)
	}

	track(coro.Start(s, coro.NewAction(func(co *coro.Co) error {
		fmt.Fprintln(sc.out, "all: start")
		vs, err := coro.All(co, delayedValue(1, 0.1), delayedValue(2, 0.05), delayedValue(3, 0.2))
		if err != nil {
			return err
		}
		fmt.Fprintf(sc.out, "all: values %v\n", vs)
		return nil
	}), coro.WithName("demo.all")))

	track(coro.Start(s, coro.NewAction(func(co *coro.Co) error {
		fmt.Fprintln(sc.out, "any: start")
		slots, err := coro.Any(co, delayedValue(10, 0.15), delayedValue(20, 0.1), delayedValue(30, 0.25))
		if err != nil {
			return err
		}
		fmt.Fprintf(sc.out, "any: winner %d\n", slots[coro.Winner(slots)].Value)
		return nil
	}), coro.WithName("demo.any")))

	track(coro.Start(s, coro.NewAction(func(co *coro.Co) error {
		fmt.Fprintln(sc.out, "await: start")
		v, err := coro.Await(co, delayedValue(2, 0.05))
		if err != nil {
			return err
		}
		if _, err := coro.Await(co, delayed(0.05)); err != nil {
			return err
		}
		fmt.Fprintf(sc.out, "await: finished %d\n", v)
		return nil
	}), coro.WithName("demo.await")))

	if cfg.Waves > 0 {
		track(coro.Start(s, coro.NewAction(func(co *coro.Co) error {
			return sc.runWaves(co, cfg.Waves)
		}), coro.WithName("demo.waves"), coro.WithTag("clock", "game")))
	}

	patrol, err := coro.Start(s, coro.NewAction(func(co *coro.Co) error {
		defer fmt.Fprintln(sc.out, "patrol: stopped")
		for i := 0; ; i++ {
			if i%30 == 0 {
				fmt.Fprintf(sc.out, "patrol: iteration %d\n", i)
			}
			co.NextFrame(coro.InDomain(coro.DomainGame))
		}
	}), coro.WithName("demo.patrol"), coro.WithTag("clock", "game"))
	if err != nil {
		errs = append(errs, err)
	}
	sc.patrol = patrol
	return sc, errors.Join(errs...)
}

// runWaves spawns each wave as a group of enemies that must all be defeated, with a short
// late-update pause between waves.
func (sc *scene) runWaves(co *coro.Co, waves int) error {
	for w := 1; w <= waves; w++ {
		enemies := make([]*coro.Task[int], 3)
		for i := range enemies {
			hp := i + 1
			enemies[i] = coro.NewTask(func(co *coro.Co) (int, error) {
				co.Wait(0.1*float64(hp), coro.InDomain(coro.DomainGame))
				return hp * w, nil
			})
		}
		scores, err := coro.All(co, enemies...)
		if err != nil {
			return fmt.Errorf("wave %d: %w", w, err)
		}
		total := 0
		for _, v := range scores {
			total += v
		}
		fmt.Fprintf(sc.out, "wave: %s cleared, score %d\n", humanize.Ordinal(w), total)
		co.Wait(0.5, coro.InDomain(coro.DomainGame), coro.OnPhase(coro.PhaseLateUpdate))
	}
	return nil
}

// onFrame is the loop frame hook.
func (sc *scene) onFrame(frame uint64, _ *coro.Scheduler) {
	if sc.stopAt == 0 || frame != sc.stopAt || sc.patrol.IsDown() {
		return
	}
	fmt.Fprintf(sc.out, "patrol: stopping at frame %d\n", frame)
	sc.patrol.Stop()
}

// done reports whether every task except the patrol has finished.
func (sc *scene) done() bool {
	for _, h := range sc.finite {
		if !h.IsDown() {
			return false
		}
	}
	return true
}
