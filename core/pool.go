package core

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Work is the unit of execution handed to a WorkerPool (Closure)
type Work func(ctx context.Context)

// =============================================================================
// QualityClass: Scheduling hint forwarded to the pool
// =============================================================================

type QualityClass int

const (
	// QualityBackground: Lowest class, work the user is not waiting on
	QualityBackground QualityClass = iota

	// QualityDefault: Default class
	QualityDefault

	// QualityUserInitiated: Highest class
	// `UserInitiated` means the user is actively waiting on the result;
	// the pool serves this class first when multiple units are eligible.
	QualityUserInitiated
)

// String returns the label used in logs and metrics.
func (c QualityClass) String() string {
	switch c {
	case QualityBackground:
		return "background"
	case QualityDefault:
		return "default"
	case QualityUserInitiated:
		return "user_initiated"
	default:
		return "unknown"
	}
}

// =============================================================================
// WorkerPool: Define work execution interface
// =============================================================================

// WorkerPool executes units of work with a concurrency cap. TaskQueue treats
// the pool as an external collaborator; the only ordering it provides is the
// quality-class hint (higher classes are served first, FIFO within a class).
type WorkerPool interface {
	Submit(work Work, class QualityClass)
	SetMaxConcurrency(n int)
	Suspend()
	Resume()
	CancelAll()
	WaitIdle(ctx context.Context) error

	Start(ctx context.Context)
	Stop()

	IsRunning() bool
	QueuedCount() int
	RunningCount() int
}

// =============================================================================
// GoroutinePool: WorkerPool backed by goroutines
// =============================================================================

// GoroutinePool dispatches queued work onto goroutines, at most
// maxConcurrency at a time (0 means unbounded). A single dispatcher
// goroutine pops eligible work; each unit runs on its own goroutine.
type GoroutinePool struct {
	id string

	mu     sync.Mutex
	queues [3][]Work // index by QualityClass

	signal chan struct{}

	maxConcurrency atomic.Int32
	running        atomic.Int32
	queued         atomic.Int32
	suspended      atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	started   bool
	startedMu sync.RWMutex

	panicHandler PanicHandler
	metrics      Metrics
	logger       Logger
}

var _ WorkerPool = (*GoroutinePool)(nil)

// NewGoroutinePool creates a pool with the given concurrency cap.
// maxConcurrency of 0 or less means unbounded.
func NewGoroutinePool(id string, maxConcurrency int) *GoroutinePool {
	return NewGoroutinePoolWithConfig(id, maxConcurrency, DefaultConfig())
}

// NewGoroutinePoolWithConfig creates a pool with custom collaborators.
func NewGoroutinePoolWithConfig(id string, maxConcurrency int, config *Config) *GoroutinePool {
	config = config.withDefaults()
	p := &GoroutinePool{
		id:           id,
		signal:       make(chan struct{}, 64),
		panicHandler: config.PanicHandler,
		metrics:      config.Metrics,
		logger:       config.Logger,
	}
	if maxConcurrency < 0 {
		maxConcurrency = 0
	}
	p.maxConcurrency.Store(int32(maxConcurrency))
	return p
}

// ID returns the ID of the pool
func (p *GoroutinePool) ID() string {
	return p.id
}

// Start launches the dispatcher goroutine. Starting twice is a no-op.
func (p *GoroutinePool) Start(ctx context.Context) {
	p.startedMu.Lock()
	defer p.startedMu.Unlock()

	if p.started {
		return // Already running
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.runCtx, p.runCancel = context.WithCancel(p.ctx)
	p.started = true

	p.wg.Add(1)
	go p.dispatchLoop()
	p.logger.Debug("pool started", F("pool", p.id), F("maxConcurrency", p.MaxConcurrency()))
}

// Stop drops queued work and stops the dispatcher. Work already running is
// cancelled via its context but not preempted.
func (p *GoroutinePool) Stop() {
	p.startedMu.Lock()
	if !p.started {
		p.startedMu.Unlock()
		return
	}
	p.startedMu.Unlock()

	p.clearQueues()
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.startedMu.Lock()
	p.started = false
	p.startedMu.Unlock()
	p.logger.Debug("pool stopped", F("pool", p.id))
}

// IsRunning returns whether the pool dispatcher is running
func (p *GoroutinePool) IsRunning() bool {
	p.startedMu.RLock()
	defer p.startedMu.RUnlock()
	return p.started
}

// Submit enqueues work for execution at the given quality class.
// Work submitted while the pool is suspended stays queued.
func (p *GoroutinePool) Submit(work Work, class QualityClass) {
	if work == nil {
		return
	}
	if class < QualityBackground || class > QualityUserInitiated {
		class = QualityDefault
	}

	p.mu.Lock()
	p.queues[class] = append(p.queues[class], work)
	p.mu.Unlock()
	p.queued.Add(1)

	p.wake()
}

// SetMaxConcurrency changes the concurrency cap. Lowering the cap does not
// interrupt work already running; it only throttles future dispatch.
func (p *GoroutinePool) SetMaxConcurrency(n int) {
	if n < 0 {
		n = 0
	}
	p.maxConcurrency.Store(int32(n))
	p.wake()
}

// Suspend halts dispatch of queued work. Running work continues.
func (p *GoroutinePool) Suspend() {
	p.suspended.Store(true)
}

// Resume re-enables dispatch.
func (p *GoroutinePool) Resume() {
	p.suspended.Store(false)
	p.wake()
}

// CancelAll drops all queued work and cancels the context passed to work
// currently running. Cancellation is cooperative: running work that ignores
// its context runs to completion.
func (p *GoroutinePool) CancelAll() {
	p.logger.Info("pool cancel requested", F("pool", p.id))
	p.clearQueues()

	p.startedMu.Lock()
	if p.runCancel != nil {
		p.runCancel()
	}
	if p.started {
		p.runCtx, p.runCancel = context.WithCancel(p.ctx)
	}
	p.startedMu.Unlock()
}

// WaitIdle blocks until no work is queued or running, or ctx is done.
func (p *GoroutinePool) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if p.QueuedCount() == 0 && p.RunningCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// QueuedCount returns the number of queued units not yet dispatched.
func (p *GoroutinePool) QueuedCount() int {
	return int(p.queued.Load())
}

// RunningCount returns the number of units currently executing.
func (p *GoroutinePool) RunningCount() int {
	return int(p.running.Load())
}

// MaxConcurrency returns the current concurrency cap (0 = unbounded).
func (p *GoroutinePool) MaxConcurrency() int {
	return int(p.maxConcurrency.Load())
}

func (p *GoroutinePool) wake() {
	select {
	case p.signal <- struct{}{}:
	default:
		// Signal channel full; dispatcher will recheck anyway
	}
}

func (p *GoroutinePool) clearQueues() {
	p.mu.Lock()
	dropped := 0
	for i := range p.queues {
		dropped += len(p.queues[i])
		p.queues[i] = nil
	}
	p.mu.Unlock()
	p.queued.Add(int32(-dropped))
}

// pop returns the next eligible unit, highest quality class first.
func (p *GoroutinePool) pop() (Work, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for class := QualityUserInitiated; class >= QualityBackground; class-- {
		q := p.queues[class]
		if len(q) == 0 {
			continue
		}
		work := q[0]
		q[0] = nil // release the closure reference
		p.queues[class] = q[1:]
		p.queued.Add(-1)
		return work, true
	}
	return nil, false
}

// dispatchLoop is the dispatcher's main loop.
func (p *GoroutinePool) dispatchLoop() {
	defer p.wg.Done()
	stopCh := p.ctx.Done()

	for {
		for p.canDispatch() {
			work, ok := p.pop()
			if !ok {
				break
			}
			p.running.Add(1)

			p.startedMu.RLock()
			runCtx := p.runCtx
			p.startedMu.RUnlock()

			p.wg.Add(1)
			go p.run(work, runCtx)
		}

		select {
		case <-p.signal:
			continue
		case <-stopCh:
			return
		}
	}
}

func (p *GoroutinePool) canDispatch() bool {
	if p.suspended.Load() {
		return false
	}
	max := p.maxConcurrency.Load()
	if max > 0 && p.running.Load() >= max {
		return false
	}
	return p.queued.Load() > 0
}

// run executes one unit and captures panics.
func (p *GoroutinePool) run(work Work, ctx context.Context) {
	defer p.wg.Done()
	defer func() {
		p.running.Add(-1)
		p.wake()
		if r := recover(); r != nil {
			p.metrics.RecordTaskPanic(p.id, r)
			p.panicHandler.HandlePanic(ctx, p.id, "", r, debug.Stack())
		}
	}()
	work(ctx)
}
