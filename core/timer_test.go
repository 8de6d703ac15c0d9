package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// TestRepeatingTimer_Fires verifies periodic firing onto the pool.
func TestRepeatingTimer_Fires(t *testing.T) {
	pool := startTestPool(t, 2)

	var fired atomic.Int32
	timer := NewRepeatingTimer(pool, 10*time.Millisecond, func(ctx context.Context) {
		fired.Add(1)
	})
	timer.Start()
	defer timer.Stop()

	deadline := time.After(2 * time.Second)
	for fired.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("fired: got = %d, want >= 3", fired.Load())
		case <-time.After(time.Millisecond):
		}
	}
}

// TestRepeatingTimer_Stop verifies no firings after Stop.
func TestRepeatingTimer_Stop(t *testing.T) {
	pool := startTestPool(t, 1)

	var fired atomic.Int32
	timer := NewRepeatingTimer(pool, 5*time.Millisecond, func(ctx context.Context) {
		fired.Add(1)
	})
	timer.Start()

	deadline := time.After(2 * time.Second)
	for fired.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("timer never fired")
		case <-time.After(time.Millisecond):
		}
	}

	timer.Stop()
	if !timer.IsStopped() {
		t.Fatal("IsStopped false after Stop")
	}
	waitPoolIdle(t, pool)

	count := fired.Load()
	time.Sleep(30 * time.Millisecond)
	if got := fired.Load(); got != count {
		t.Errorf("firings after Stop: got = %d extra", got-count)
	}
}

// TestRepeatingTimer_PauseResume verifies firings are skipped while paused.
func TestRepeatingTimer_PauseResume(t *testing.T) {
	pool := startTestPool(t, 1)

	var fired atomic.Int32
	timer := NewRepeatingTimer(pool, 5*time.Millisecond, func(ctx context.Context) {
		fired.Add(1)
	})
	timer.Pause()
	timer.Start()
	defer timer.Stop()

	time.Sleep(30 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Fatalf("firings while paused: got = %d, want 0", got)
	}

	timer.Resume()
	deadline := time.After(2 * time.Second)
	for fired.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("timer never fired after Resume")
		case <-time.After(time.Millisecond):
		}
	}
}
