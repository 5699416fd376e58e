package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunnerRunsConfiguredSteps(t *testing.T) {
	r := NewRunner(60, 5, Accelerated)

	calls := 0
	completed, err := r.Run(context.Background(), func(dt float64) error {
		if dt != 60 {
			t.Fatalf("step dt = %g, want 60", dt)
		}
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if completed != 5 || calls != 5 {
		t.Fatalf("completed %d steps with %d calls, want 5/5", completed, calls)
	}
	if got := r.Now(); got != 300 {
		t.Fatalf("Now() = %g, want 300", got)
	}
}

func TestRunnerStopsOnStepError(t *testing.T) {
	r := NewRunner(60, 10, Accelerated)
	boom := errors.New("boom")

	completed, err := r.Run(context.Background(), func(dt float64) error {
		if r.Now() >= 120 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want boom", err)
	}
	if completed != 2 {
		t.Fatalf("completed = %d, want 2", completed)
	}
}

func TestRunnerNotifiesListeners(t *testing.T) {
	r := NewRunner(30, 3, Accelerated)

	var steps []int
	var times []float64
	r.AddListener(func(step int, simTime float64) {
		steps = append(steps, step)
		times = append(times, simTime)
	})

	if _, err := r.Run(context.Background(), func(dt float64) error { return nil }); err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantSteps := []int{1, 2, 3}
	wantTimes := []float64{30, 60, 90}
	for i := range wantSteps {
		if steps[i] != wantSteps[i] || times[i] != wantTimes[i] {
			t.Fatalf("listener saw steps %v times %v, want %v %v", steps, times, wantSteps, wantTimes)
		}
	}
}

func TestRunnerHonoursCancellation(t *testing.T) {
	r := NewRunner(60, 0, Accelerated)

	ctx, cancel := context.WithCancel(context.Background())
	completed, err := r.Run(ctx, func(dt float64) error {
		if r.Now() >= 120 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if completed != 3 {
		t.Fatalf("completed = %d, want 3 (cancellation lands at the next boundary)", completed)
	}
}

func TestRunnerPacedWaitsForTicks(t *testing.T) {
	r := NewRunner(60, 3, Paced)
	r.Interval = 5 * time.Millisecond

	start := time.Now()
	completed, err := r.Run(context.Background(), func(dt float64) error { return nil })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if completed != 3 {
		t.Fatalf("completed = %d, want 3", completed)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("paced run finished in %v, want at least 15ms", elapsed)
	}
}
