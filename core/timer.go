package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// RepeatingTimer fires a unit of work onto a pool at a fixed interval. Firing
// continues until Stop; a firing whose work is still running when the next
// interval elapses simply queues another unit, so slow work plus a short
// interval can pile up subject to the pool's concurrency cap.
type RepeatingTimer struct {
	pool     WorkerPool
	work     Work
	interval time.Duration
	class    QualityClass

	stopped   atomic.Bool
	suspended atomic.Bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewRepeatingTimer creates a timer that submits work to the pool every
// interval at QualityDefault. The timer starts stopped; call Start.
func NewRepeatingTimer(pool WorkerPool, interval time.Duration, work Work) *RepeatingTimer {
	return &RepeatingTimer{
		pool:     pool,
		work:     work,
		interval: interval,
		class:    QualityDefault,
		stopCh:   make(chan struct{}),
	}
}

// SetQualityClass sets the class used for each firing. Call before Start.
func (rt *RepeatingTimer) SetQualityClass(class QualityClass) {
	rt.class = class
}

// Start begins firing. Starting a stopped timer is a no-op.
func (rt *RepeatingTimer) Start() {
	if rt.stopped.Load() {
		return
	}

	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		ticker := time.NewTicker(rt.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if rt.suspended.Load() {
					continue
				}
				rt.pool.Submit(rt.fire, rt.class)
			case <-rt.stopCh:
				return
			}
		}
	}()
}

// Stop halts firing permanently. Work already submitted still runs.
func (rt *RepeatingTimer) Stop() {
	rt.stopped.Store(true)
	rt.stopOnce.Do(func() { close(rt.stopCh) })
	rt.wg.Wait()
}

// IsStopped reports whether the timer has been stopped.
func (rt *RepeatingTimer) IsStopped() bool {
	return rt.stopped.Load()
}

// Pause skips firings without stopping the ticker.
func (rt *RepeatingTimer) Pause() {
	rt.suspended.Store(true)
}

// Resume re-enables firings.
func (rt *RepeatingTimer) Resume() {
	rt.suspended.Store(false)
}

var _ Pausable = (*RepeatingTimer)(nil)

func (rt *RepeatingTimer) fire(ctx context.Context) {
	if rt.stopped.Load() || rt.suspended.Load() {
		return
	}
	rt.work(ctx)
}
