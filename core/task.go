package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkFunc is the unit of work owned by a Task. It receives the task itself
// so it can report progress, observe cooperative cancellation through ctx,
// and (in sync-blocking mode) arrange for Finish to be called later.
// A nil error is a successful outcome; any error is retried per the task's
// retry policy.
type WorkFunc func(ctx context.Context, t *Task) error

// =============================================================================
// Task lifecycle enums
// =============================================================================

// TaskState is the lifecycle state of a task.
type TaskState int32

const (
	// TaskPending: Known to a queue but not yet dispatched
	TaskPending TaskState = iota

	// TaskRunning: Work dispatched; also covers a manual-retry task parked
	// between attempts, which is still mid-execution from the queue's view
	TaskRunning

	// TaskFinished: Terminal; outcome tells success from retry exhaustion
	TaskFinished

	// TaskCancelled: Terminal; the task will never execute or retry again
	TaskCancelled
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskFinished:
		return "finished"
	case TaskCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// TaskOutcome is the tri-state result of a task, mutated only by the task's
// own completion path.
type TaskOutcome int32

const (
	OutcomeUnresolved TaskOutcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o TaskOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unresolved"
	}
}

// RetryMode controls what happens when work fails.
type RetryMode int

const (
	// RetryAutomatic re-invokes failed work immediately and synchronously on
	// the same goroutine, with no backoff, until success or exhaustion.
	RetryAutomatic RetryMode = iota

	// RetryManual parks a failed task until Retry is called explicitly.
	RetryManual
)

// ExecutionMode selects how a dispatched attempt completes.
type ExecutionMode int

const (
	// ExecAsync: The attempt completes when WorkFunc returns.
	ExecAsync ExecutionMode = iota

	// ExecSyncBlocking: After WorkFunc returns nil, the worker goroutine
	// blocks on a WaitSignal until Finish is called. This deliberately
	// consumes a pool slot for the task's entire duration.
	ExecSyncBlocking
)

// Pausable is the capability interface a queue uses to propagate pause and
// resume. Any tracked task implementing it receives the calls; there is no
// downcasting to concrete task types.
type Pausable interface {
	Pause()
	Resume()
}

// DefaultMaxAttempts is the retry ceiling applied when none is set.
const DefaultMaxAttempts = 3

// taskObserver receives task lifecycle events. Implemented by TaskQueue to
// drive dispatch of dependents and record metrics.
type taskObserver interface {
	taskRetried(t *Task)
	taskTerminal(t *Task)
	attemptDone(t *Task, d time.Duration)
}

// =============================================================================
// Task
// =============================================================================

// Task is a unit of schedulable work with identity, progress, a retry policy
// and a lifecycle state machine. Uniqueness of IDs is the caller's
// responsibility; the type does not enforce it.
type Task struct {
	id   string
	name string

	mode        ExecutionMode
	retryMode   RetryMode
	maxAttempts int

	work WorkFunc

	onPause  func()
	onResume func()

	progress atomic.Int32
	attempt  atomic.Int32
	state    atomic.Int32
	outcome  atomic.Int32

	cancelled atomic.Bool
	cancelMu  sync.Mutex
	cancelRun context.CancelFunc

	// dependencies is owned by the queue; written only before dispatch.
	dependencies []string

	awaitingRetry  atomic.Bool
	retryRequested atomic.Bool
	dispatched     atomic.Bool

	// sync-blocking completion gate, replaced per attempt.
	syncMu    sync.Mutex
	finishSig *WaitSignal
	finishErr error

	done     chan struct{}
	doneOnce sync.Once

	observer taskObserver
	dispatch func(Work)
}

// NewTask creates a task with the given id and work. An empty id gets a
// generated UUID.
func NewTask(id string, work WorkFunc) *Task {
	if id == "" {
		id = uuid.NewString()
	}
	t := &Task{
		id:          id,
		work:        work,
		maxAttempts: DefaultMaxAttempts,
		done:        make(chan struct{}),
	}
	t.attempt.Store(1)
	return t
}

// NewNamedTask creates a task whose name (used in snapshots) equals its id.
func NewNamedTask(name string, work WorkFunc) *Task {
	t := NewTask(name, work)
	t.name = name
	return t
}

// ID returns the task identifier.
func (t *Task) ID() string { return t.id }

// Name returns the snapshot name; tasks without a name are not snapshotted.
func (t *Task) Name() string { return t.name }

// SetName sets the snapshot name.
func (t *Task) SetName(name string) { t.name = name }

// SetMaxAttempts sets the retry ceiling. Values below 1 are clamped to 1.
func (t *Task) SetMaxAttempts(n int) {
	if n < 1 {
		n = 1
	}
	t.maxAttempts = n
}

// MaxAttempts returns the retry ceiling.
func (t *Task) MaxAttempts() int { return t.maxAttempts }

// SetRetryMode selects automatic or manual retry.
func (t *Task) SetRetryMode(m RetryMode) { t.retryMode = m }

// RetryMode returns the retry mode.
func (t *Task) RetryMode() RetryMode { return t.retryMode }

// SetExecutionMode selects async or sync-blocking completion.
func (t *Task) SetExecutionMode(m ExecutionMode) { t.mode = m }

// ExecutionMode returns the execution mode.
func (t *Task) ExecutionMode() ExecutionMode { return t.mode }

// SetPauseHooks installs the hooks invoked by Pause and Resume. The
// framework never suspends work itself; the hooks are how a task interprets
// a queue-wide pause (e.g. halting a sub-loop).
func (t *Task) SetPauseHooks(onPause, onResume func()) {
	t.onPause = onPause
	t.onResume = onResume
}

// Pause invokes the pause hook, if any.
func (t *Task) Pause() {
	if t.onPause != nil {
		t.onPause()
	}
}

// Resume invokes the resume hook, if any.
func (t *Task) Resume() {
	if t.onResume != nil {
		t.onResume()
	}
}

var _ Pausable = (*Task)(nil)

// Attempt returns the current attempt, starting at 1.
func (t *Task) Attempt() int { return int(t.attempt.Load()) }

// State returns the lifecycle state.
func (t *Task) State() TaskState { return TaskState(t.state.Load()) }

// Outcome returns the tri-state result.
func (t *Task) Outcome() TaskOutcome { return TaskOutcome(t.outcome.Load()) }

// IsExecuting reports whether the task is mid-execution.
func (t *Task) IsExecuting() bool { return t.State() == TaskRunning }

// IsFinished reports whether the task reached a terminal state.
func (t *Task) IsFinished() bool {
	s := t.State()
	return s == TaskFinished || s == TaskCancelled
}

// Done returns a channel closed when the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// SetProgress records observational progress, clamped to [0,100].
func (t *Task) SetProgress(p int) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	t.progress.Store(int32(p))
}

// Progress returns the clamped progress value.
func (t *Task) Progress() int { return int(t.progress.Load()) }

// Dependencies returns a copy of the dependency id list.
func (t *Task) Dependencies() []string {
	if len(t.dependencies) == 0 {
		return nil
	}
	out := make([]string, len(t.dependencies))
	copy(out, t.dependencies)
	return out
}

// AddDependency appends a dependency id. Must not be called after the task
// has been dispatched; the queue reads the list at dispatch time only.
func (t *Task) AddDependency(id string) {
	t.dependencies = append(t.dependencies, id)
}

// =============================================================================
// Completion and cancellation
// =============================================================================

// Finish completes the current sync-blocking attempt. It is a no-op for
// async tasks and for attempts that are not currently blocked.
func (t *Task) Finish(err error) {
	t.syncMu.Lock()
	sig := t.finishSig
	if sig != nil {
		t.finishErr = err
		t.finishSig = nil
	}
	t.syncMu.Unlock()

	if sig != nil {
		sig.Signal()
	}
}

// Cancel requests cooperative cancellation. A Pending task becomes Cancelled
// immediately; a Running task is cancelled via its context and transitions
// once its work observes the cancellation. A cancelled task never retries.
func (t *Task) Cancel() {
	t.cancelled.Store(true)

	if t.state.CompareAndSwap(int32(TaskPending), int32(TaskCancelled)) {
		t.markDone()
		t.notifyTerminal()
		return
	}

	// Unpark a manual-retry task so it terminates instead of waiting forever.
	if t.awaitingRetry.CompareAndSwap(true, false) {
		t.terminate(TaskCancelled)
		return
	}

	t.cancelMu.Lock()
	cancel := t.cancelRun
	t.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	// Unblock a sync-blocking attempt waiting on Finish.
	t.Finish(context.Canceled)
}

// Retry re-dispatches a manual-retry task parked after a failed attempt.
// Calling it when the task is not eligible (terminal, cancelled, automatic
// mode, or no failed attempt pending) is a no-op.
func (t *Task) Retry() {
	if t.retryMode != RetryManual {
		return
	}
	if !t.claimParkedAttempt() {
		return
	}
	if t.cancelled.Load() {
		t.terminate(TaskCancelled)
		return
	}

	t.attempt.Add(1)
	if t.observer != nil {
		t.observer.taskRetried(t)
	}

	next := func(ctx context.Context) { t.resumeAttempts(ctx) }
	if t.dispatch != nil {
		t.dispatch(next)
	} else {
		next(context.Background())
	}
}

// claimParkedAttempt takes ownership of a parked failed attempt. If the
// failing attempt has not parked yet, the request is recorded and consumed
// by the attempt loop at park time, so a Retry racing with the park is not
// lost.
func (t *Task) claimParkedAttempt() bool {
	if t.awaitingRetry.CompareAndSwap(true, false) {
		return true
	}
	if t.State() != TaskRunning || t.cancelled.Load() {
		return false
	}
	t.retryRequested.Store(true)
	if t.awaitingRetry.CompareAndSwap(true, false) {
		t.retryRequested.Store(false)
		return true
	}
	return false
}

// =============================================================================
// Execution
// =============================================================================

// run is the dispatch entry point; invoked on a pool goroutine.
func (t *Task) run(poolCtx context.Context) {
	if t.cancelled.Load() {
		if t.state.CompareAndSwap(int32(TaskPending), int32(TaskCancelled)) {
			t.markDone()
			t.notifyTerminal()
		}
		return
	}
	if !t.state.CompareAndSwap(int32(TaskPending), int32(TaskRunning)) {
		return
	}
	t.resumeAttempts(poolCtx)
}

// resumeAttempts drives the attempt loop from the current attempt onward.
// Also the re-entry point after a manual Retry.
func (t *Task) resumeAttempts(poolCtx context.Context) {
	ctx, cancel := context.WithCancel(poolCtx)
	t.cancelMu.Lock()
	t.cancelRun = cancel
	t.cancelMu.Unlock()
	defer func() {
		t.cancelMu.Lock()
		t.cancelRun = nil
		t.cancelMu.Unlock()
		cancel()
	}()

	if t.cancelled.Load() {
		t.terminate(TaskCancelled)
		return
	}

	for {
		err := t.invoke(ctx)

		if t.cancelled.Load() || ctx.Err() != nil {
			if err == nil {
				// Work completed before observing the cancellation.
				t.finishWith(OutcomeSuccess)
			} else {
				t.terminate(TaskCancelled)
			}
			return
		}

		if err == nil {
			t.finishWith(OutcomeSuccess)
			return
		}

		if t.Attempt() >= t.maxAttempts {
			// Retry exhaustion is a silent terminal failure.
			t.finishWith(OutcomeFailure)
			return
		}

		if t.retryMode == RetryManual {
			// A Retry issued before the park is consumed here directly.
			if t.retryRequested.CompareAndSwap(true, false) {
				t.attempt.Add(1)
				if t.observer != nil {
					t.observer.taskRetried(t)
				}
				continue
			}

			// Park mid-execution until Retry or Cancel.
			t.awaitingRetry.Store(true)

			// Cancel may have raced with the park; re-check.
			if t.cancelled.Load() && t.awaitingRetry.CompareAndSwap(true, false) {
				t.terminate(TaskCancelled)
				return
			}

			// Likewise a Retry may have landed between the check above and
			// the park. If it claimed the park, it drives the next attempt.
			if t.retryRequested.CompareAndSwap(true, false) {
				if t.awaitingRetry.CompareAndSwap(true, false) {
					t.attempt.Add(1)
					if t.observer != nil {
						t.observer.taskRetried(t)
					}
					continue
				}
			}
			return
		}

		// Automatic: immediate synchronous re-invocation, no backoff and no
		// round-trip through the pool.
		t.attempt.Add(1)
		if t.observer != nil {
			t.observer.taskRetried(t)
		}
	}
}

// invoke executes exactly one attempt, converting panics into errors.
func (t *Task) invoke(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("work panic: %v", r)
		}
		if t.observer != nil {
			t.observer.attemptDone(t, time.Since(start))
		}
	}()

	if t.work == nil {
		return nil
	}

	if t.mode == ExecSyncBlocking {
		sig := NewWaitSignal(1)
		t.syncMu.Lock()
		t.finishSig = sig
		t.finishErr = nil
		t.syncMu.Unlock()

		if werr := t.work(ctx, t); werr != nil {
			t.syncMu.Lock()
			t.finishSig = nil
			t.syncMu.Unlock()
			return werr
		}

		if werr := sig.WaitContext(ctx); werr != nil {
			return werr
		}

		t.syncMu.Lock()
		ferr := t.finishErr
		t.syncMu.Unlock()
		return ferr
	}

	return t.work(ctx, t)
}

func (t *Task) finishWith(outcome TaskOutcome) {
	t.outcome.Store(int32(outcome))
	t.state.Store(int32(TaskFinished))
	t.markDone()
	t.notifyTerminal()
}

func (t *Task) terminate(state TaskState) {
	t.state.Store(int32(state))
	t.markDone()
	t.notifyTerminal()
}

func (t *Task) markDone() {
	t.doneOnce.Do(func() { close(t.done) })
}

func (t *Task) notifyTerminal() {
	if t.observer != nil {
		t.observer.taskTerminal(t)
	}
}
