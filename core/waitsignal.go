package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned by WaitSignal.Wait when the timeout elapses before
// the signal count is reached.
var ErrTimeout = errors.New("wait signal timeout")

// WaitSignal is a counting rendezvous primitive. A caller blocks in Wait
// until Signal has been called the number of times the WaitSignal was
// created with. It is the synchronization primitive behind sync-blocking
// task execution, where a worker goroutine parks until the task's own
// completion call releases it.
//
// Signalling past zero is a no-op, so a WaitSignal is safe to over-signal.
type WaitSignal struct {
	mu        sync.Mutex
	remaining int
	done      chan struct{}
}

// NewWaitSignal creates a WaitSignal that releases waiters after count
// signals. A count of zero or less never blocks.
func NewWaitSignal(count int) *WaitSignal {
	ws := &WaitSignal{
		remaining: count,
		done:      make(chan struct{}),
	}
	if count <= 0 {
		close(ws.done)
	}
	return ws
}

// Signal decrements the remaining count. When the count reaches zero all
// current and future waiters are released.
func (ws *WaitSignal) Signal() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.remaining <= 0 {
		return
	}
	ws.remaining--
	if ws.remaining == 0 {
		close(ws.done)
	}
}

// Wait blocks until the signal count is reached or the timeout elapses.
// A timeout of zero or less waits forever.
func (ws *WaitSignal) Wait(timeout time.Duration) error {
	if timeout <= 0 {
		<-ws.done
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ws.done:
		return nil
	case <-timer.C:
		return ErrTimeout
	}
}

// WaitContext blocks until the signal count is reached or the context is
// cancelled.
func (ws *WaitSignal) WaitContext(ctx context.Context) error {
	select {
	case <-ws.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
