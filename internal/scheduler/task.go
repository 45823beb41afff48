// Package scheduler provides a conditional interval task: a loop that runs a
// function on a fixed period, but only while a condition holds. The condition
// is re-evaluated on every tick and can be re-checked immediately via Poke,
// so eligibility changes take effect without waiting out an interval.
package scheduler

import (
	"context"
	"time"
)

// Task runs fn every interval while cond() is true. While cond() is false the
// task sleeps until poked or the context ends.
type Task struct {
	interval time.Duration
	cond     func() bool
	fn       func(context.Context)
	poke     chan struct{}
}

// New creates a Task. It does not start running until Start is called.
func New(interval time.Duration, cond func() bool, fn func(context.Context)) *Task {
	return &Task{
		interval: interval,
		cond:     cond,
		fn:       fn,
		poke:     make(chan struct{}, 1),
	}
}

// Start begins the task loop. Call in a goroutine; returns when ctx ends.
func (t *Task) Start(ctx context.Context) {
	timer := time.NewTimer(t.interval)
	defer timer.Stop()

	for {
		if !t.cond() {
			// Ineligible: park until poked.
			select {
			case <-ctx.Done():
				return
			case <-t.poke:
			}
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(t.interval)

		select {
		case <-ctx.Done():
			return
		case <-t.poke:
			// Re-evaluate eligibility right away.
		case <-timer.C:
			if t.cond() {
				t.fn(ctx)
			}
		}
	}
}

// Poke wakes the task to re-evaluate its condition immediately. Safe to call
// from any goroutine; coalesces if the task is already awake.
func (t *Task) Poke() {
	select {
	case t.poke <- struct{}{}:
	default:
	}
}
