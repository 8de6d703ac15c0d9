package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueClosed is returned when tasks are added to a closed queue.
var ErrQueueClosed = errors.New("task queue is closed")

// TaskQueue is an ordered collection of tasks with dependency-chain
// construction, pause/resume/cancel propagation and state snapshotting.
// Execution is delegated to a WorkerPool; the queue's own job is
// eligibility: a task is dispatched once the queue is not suspended and
// every dependency has reached Finished.
//
// Dependency edges are the only ordering guarantee. A dependent of a
// cancelled task is never eligible and stays Pending indefinitely; this is
// intended behavior, not a deadlock bug. Callers needing liveness must
// impose their own watchdog.
type TaskQueue struct {
	name  string
	class QualityClass

	pool     WorkerPool
	ownsPool bool

	mu        sync.Mutex
	tasks     []*Task
	finished  map[string]struct{}
	suspended bool
	closed    bool

	logger  Logger
	metrics Metrics
}

// NewTaskQueue creates a queue backed by the given pool. A nil pool gets a
// private unbounded GoroutinePool, started immediately and owned by the
// queue (stopped by Close).
func NewTaskQueue(name string, pool WorkerPool) *TaskQueue {
	return NewTaskQueueWithConfig(name, pool, DefaultConfig())
}

// NewTaskQueueWithConfig creates a queue with custom collaborators.
func NewTaskQueueWithConfig(name string, pool WorkerPool, config *Config) *TaskQueue {
	config = config.withDefaults()

	q := &TaskQueue{
		name:     name,
		class:    QualityDefault,
		finished: make(map[string]struct{}),
		logger:   config.Logger,
		metrics:  config.Metrics,
	}

	if pool == nil {
		own := NewGoroutinePoolWithConfig(name+"-pool", 0, config)
		own.Start(context.Background())
		pool = own
		q.ownsPool = true
	}
	q.pool = pool
	return q
}

// Name returns the queue's human-readable identifier (not required unique).
func (q *TaskQueue) Name() string { return q.name }

// SetQualityClass sets the scheduling hint forwarded with every dispatch.
func (q *TaskQueue) SetQualityClass(class QualityClass) {
	q.mu.Lock()
	q.class = class
	q.mu.Unlock()
}

// QualityClass returns the current scheduling hint.
func (q *TaskQueue) QualityClass() QualityClass {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.class
}

// SetMaxConcurrency forwards the concurrency cap to the underlying pool.
// With a shared pool the cap applies pool-wide, not per queue.
func (q *TaskQueue) SetMaxConcurrency(n int) {
	q.pool.SetMaxConcurrency(n)
}

// IsSuspended reports whether dispatch is currently halted.
func (q *TaskQueue) IsSuspended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suspended
}

// =============================================================================
// Adding work
// =============================================================================

// Add enqueues a task for scheduling subject to suspension, dependencies and
// the pool's concurrency cap.
func (q *TaskQueue) Add(t *Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}

	t.observer = q
	t.dispatch = func(w Work) { q.pool.Submit(w, q.class) }
	q.tasks = append(q.tasks, t)
	depth := len(q.tasks)
	q.mu.Unlock()

	q.metrics.RecordQueueDepth(q.name, depth)
	q.logger.Debug("task added", F("queue", q.name), F("task", t.ID()))

	q.dispatchEligible()
	return nil
}

// AddFunc wraps a bare closure in an anonymous task and enqueues it.
func (q *TaskQueue) AddFunc(work WorkFunc) (*Task, error) {
	t := NewTask("", work)
	if err := q.Add(t); err != nil {
		return nil, err
	}
	return t, nil
}

// AddChain enqueues tasks [t0..tn] as a strict linear chain: each task
// depends on its predecessor and cannot start until the predecessor reaches
// Finished. If onComplete is non-nil, a terminal no-op task depending on tn
// invokes it once the whole chain has finished.
//
// If any task in the chain never finishes (e.g. parked awaiting a manual
// retry that never comes, or cancelled), the chain stalls at that point.
func (q *TaskQueue) AddChain(tasks []*Task, onComplete func()) error {
	for i, t := range tasks {
		if i > 0 {
			t.AddDependency(tasks[i-1].ID())
		}
	}

	var tail *Task
	if onComplete != nil && len(tasks) > 0 {
		last := tasks[len(tasks)-1]
		tail = NewTask("", func(ctx context.Context, _ *Task) error {
			onComplete()
			return nil
		})
		tail.AddDependency(last.ID())
	}

	for _, t := range tasks {
		if err := q.Add(t); err != nil {
			return err
		}
	}
	if tail != nil {
		return q.Add(tail)
	}
	return nil
}

// =============================================================================
// Pause / Resume / Cancel
// =============================================================================

// Pause halts Pending->Running dispatch and invokes Pause on every tracked
// task. Tasks already running are not interrupted; the hooks are how a task
// chooses to interpret the pause.
func (q *TaskQueue) Pause() {
	q.mu.Lock()
	q.suspended = true
	tracked := q.trackedLocked()
	q.mu.Unlock()

	q.logger.Info("queue paused", F("queue", q.name))
	for _, t := range tracked {
		t.Pause()
	}
}

// Resume clears the suspension, invokes Resume on every tracked task and
// restores dispatch eligibility. It never re-dispatches tasks already handed
// to the pool.
func (q *TaskQueue) Resume() {
	q.mu.Lock()
	q.suspended = false
	tracked := q.trackedLocked()
	q.mu.Unlock()

	q.logger.Info("queue resumed", F("queue", q.name))
	for _, t := range tracked {
		t.Resume()
	}
	q.dispatchEligible()
}

// CancelAll requests cancellation of every tracked task. Pending tasks
// transition to Cancelled immediately; running tasks transition once their
// work cooperatively observes the cancellation.
func (q *TaskQueue) CancelAll() {
	q.mu.Lock()
	tracked := q.trackedLocked()
	q.mu.Unlock()

	q.logger.Info("cancelling all tasks", F("queue", q.name), F("count", len(tracked)))
	for _, t := range tracked {
		t.Cancel()
	}
}

// =============================================================================
// Introspection
// =============================================================================

// AwaitIdle blocks until every tracked task reaches a terminal state or ctx
// is done. Used primarily for deterministic testing and shutdown.
func (q *TaskQueue) AwaitIdle(ctx context.Context) error {
	for {
		var waitOn *Task
		q.mu.Lock()
		for _, t := range q.tasks {
			if !t.IsFinished() {
				waitOn = t
				break
			}
		}
		q.mu.Unlock()

		if waitOn == nil {
			return nil
		}

		select {
		case <-waitOn.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Snapshot returns a restoration record for every tracked task that exposes
// a name, in tracking order, reflecting the queue at the instant of the
// call. Snapshots are not kept in sync; re-snapshot for fresh data.
func (q *TaskQueue) Snapshot() []TaskSnapshot {
	q.mu.Lock()
	snaps := make([]TaskSnapshot, 0, len(q.tasks))
	for _, t := range q.tasks {
		if t.Name() == "" {
			continue
		}
		snaps = append(snaps, newTaskSnapshot(t))
	}
	q.mu.Unlock()

	q.metrics.RecordSnapshot(q.name, len(snaps))
	return snaps
}

// TrackedCount returns the number of tasks the queue currently tracks.
func (q *TaskQueue) TrackedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close cancels all tracked tasks and, if the queue owns its pool, stops it.
// Adding to a closed queue returns ErrQueueClosed.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	tracked := q.trackedLocked()
	q.mu.Unlock()

	for _, t := range tracked {
		t.Cancel()
	}
	if q.ownsPool {
		q.pool.Stop()
	}
}

// =============================================================================
// Dispatch
// =============================================================================

// dispatchEligible hands every eligible Pending task to the pool. The
// dependency list is read here, at dispatch time only.
func (q *TaskQueue) dispatchEligible() {
	q.mu.Lock()
	var ready []*Task
	if !q.suspended && !q.closed {
		for _, t := range q.tasks {
			if t.State() != TaskPending || t.dispatched.Load() {
				continue
			}
			if !q.depsMetLocked(t) {
				continue
			}
			t.dispatched.Store(true)
			ready = append(ready, t)
		}
	}
	class := q.class
	q.mu.Unlock()

	for _, t := range ready {
		task := t
		q.logger.Debug("task dispatched", F("queue", q.name), F("task", task.ID()))
		q.pool.Submit(func(ctx context.Context) { task.run(ctx) }, class)
	}
}

func (q *TaskQueue) depsMetLocked(t *Task) bool {
	for _, dep := range t.dependencies {
		if _, ok := q.finished[dep]; !ok {
			return false
		}
	}
	return true
}

func (q *TaskQueue) trackedLocked() []*Task {
	out := make([]*Task, len(q.tasks))
	copy(out, q.tasks)
	return out
}

// =============================================================================
// taskObserver
// =============================================================================

func (q *TaskQueue) taskRetried(t *Task) {
	q.metrics.RecordTaskRetry(q.name, t.ID())
	q.logger.Debug("task retrying",
		F("queue", q.name), F("task", t.ID()), F("attempt", t.Attempt()))
}

func (q *TaskQueue) attemptDone(t *Task, d time.Duration) {
	q.mu.Lock()
	class := q.class
	q.mu.Unlock()
	q.metrics.RecordTaskDuration(q.name, class, d)
}

// taskTerminal prunes the finished task and unblocks its dependents.
func (q *TaskQueue) taskTerminal(t *Task) {
	q.mu.Lock()
	if t.State() == TaskFinished {
		// Failure-finished tasks unblock dependents too; only a cancelled
		// dependency leaves dependents stuck.
		q.finished[t.ID()] = struct{}{}
	}
	for i, tracked := range q.tasks {
		if tracked == t {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			break
		}
	}
	depth := len(q.tasks)
	q.mu.Unlock()

	if t.State() == TaskCancelled {
		q.metrics.RecordTaskCancelled(q.name)
	}
	q.metrics.RecordQueueDepth(q.name, depth)
	q.logger.Debug("task terminal",
		F("queue", q.name), F("task", t.ID()),
		F("state", t.State()), F("outcome", t.Outcome()))

	q.dispatchEligible()
}
