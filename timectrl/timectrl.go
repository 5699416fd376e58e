package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock is an interface for reading simulation time, so consumers
// can depend on a clock abstraction rather than a concrete runner.
type SimClock interface {
	// Now returns elapsed simulated seconds.
	Now() float64
}

// Mode describes how the Runner paces its steps.
type Mode int

const (
	// Accelerated steps as quickly as the loop can run.
	Accelerated Mode = iota
	// Paced waits Interval of wall-clock time between steps.
	Paced
)

// StepFunc advances the simulation by dt simulated seconds.
type StepFunc func(dt float64) error

// Runner drives a step function on a fixed simulated-time cadence
// and notifies registered listeners after every step. It implements
// SimClock.
type Runner struct {
	mu sync.RWMutex

	Dt       float64 // simulated seconds per step
	Steps    int     // total steps to run; 0 means run until error
	Mode     Mode
	Interval time.Duration // wall-clock pacing, Paced mode only

	simTime   float64
	listeners []func(step int, simTime float64)
}

// NewRunner constructs a runner advancing dt simulated seconds per
// step for the given number of steps.
func NewRunner(dt float64, steps int, mode Mode) *Runner {
	return &Runner{Dt: dt, Steps: steps, Mode: mode}
}

// Now returns elapsed simulated seconds. Implements SimClock.
func (r *Runner) Now() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.simTime
}

// AddListener registers a callback invoked after every completed step.
func (r *Runner) AddListener(fn func(step int, simTime float64)) {
	r.listeners = append(r.listeners, fn)
}

// Run executes the step function until the configured step count is
// reached, the step function returns an error, or the context is
// cancelled between steps. It returns the number of completed steps
// and the first error encountered, if any. A step that has started
// always runs to completion; cancellation is only honoured at step
// boundaries.
func (r *Runner) Run(ctx context.Context, step StepFunc) (int, error) {
	var ticker *time.Ticker
	if r.Mode == Paced {
		interval := r.Interval
		if interval <= 0 {
			interval = time.Second
		}
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	completed := 0
	for r.Steps == 0 || completed < r.Steps {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return completed, ctx.Err()
			}
		}

		if err := step(r.Dt); err != nil {
			return completed, err
		}
		completed++

		r.mu.Lock()
		r.simTime += r.Dt
		simTime := r.simTime
		r.mu.Unlock()

		for _, fn := range r.listeners {
			fn(completed, simTime)
		}
	}
	return completed, nil
}
