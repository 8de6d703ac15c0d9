package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// TestWaitSignal_ReleasesAfterCount verifies Wait blocks until the signal
// count is reached.
func TestWaitSignal_ReleasesAfterCount(t *testing.T) {
	ws := NewWaitSignal(3)

	var released atomic.Bool
	done := make(chan error, 1)
	go func() {
		err := ws.Wait(2 * time.Second)
		released.Store(true)
		done <- err
	}()

	ws.Signal()
	ws.Signal()
	time.Sleep(20 * time.Millisecond)
	if released.Load() {
		t.Fatal("waiter released after 2 of 3 signals")
	}

	ws.Signal()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never released after 3 signals")
	}
}

// TestWaitSignal_Timeout verifies ErrTimeout on an unsignalled wait.
func TestWaitSignal_Timeout(t *testing.T) {
	ws := NewWaitSignal(1)

	if err := ws.Wait(20 * time.Millisecond); err != ErrTimeout {
		t.Fatalf("Wait: got = %v, want ErrTimeout", err)
	}
}

// TestWaitSignal_ZeroCountNeverBlocks verifies a zero count is released
// immediately.
func TestWaitSignal_ZeroCountNeverBlocks(t *testing.T) {
	ws := NewWaitSignal(0)

	if err := ws.Wait(time.Second); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}

// TestWaitSignal_OverSignalIsNoOp verifies extra signals are harmless.
func TestWaitSignal_OverSignalIsNoOp(t *testing.T) {
	ws := NewWaitSignal(1)
	ws.Signal()
	ws.Signal()
	ws.Signal()

	if err := ws.Wait(time.Second); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}

// TestWaitSignal_WaitContext verifies context cancellation unblocks waiters.
func TestWaitSignal_WaitContext(t *testing.T) {
	ws := NewWaitSignal(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := ws.WaitContext(ctx); err != context.DeadlineExceeded {
		t.Fatalf("WaitContext: got = %v, want DeadlineExceeded", err)
	}

	ws.Signal()
	if err := ws.WaitContext(context.Background()); err != nil {
		t.Fatalf("WaitContext after signal failed: %v", err)
	}
}

// TestWaitSignal_MultipleWaiters verifies all waiters are released together.
func TestWaitSignal_MultipleWaiters(t *testing.T) {
	ws := NewWaitSignal(1)

	var released atomic.Int32
	for i := 0; i < 4; i++ {
		go func() {
			if err := ws.Wait(2 * time.Second); err == nil {
				released.Add(1)
			}
		}()
	}

	ws.Signal()
	deadline := time.After(2 * time.Second)
	for released.Load() < 4 {
		select {
		case <-deadline:
			t.Fatalf("released: got = %d, want 4", released.Load())
		case <-time.After(time.Millisecond):
		}
	}
}
