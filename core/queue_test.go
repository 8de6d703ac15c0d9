package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestTaskQueue_ChainOrdering tests strict linear chain execution
// Given: chain [A, B, C] with a completion handler on a multi-worker pool
// When: the chain runs
// Then: B never starts before A finishes, C never starts before B finishes,
// and the handler runs only after C finishes
func TestTaskQueue_ChainOrdering(t *testing.T) {
	q := newTestQueue(t, "chain", 4)

	var mu sync.Mutex
	var order []string
	record := func(label string) {
		mu.Lock()
		order = append(order, label)
		mu.Unlock()
	}

	makeTask := func(name string) *Task {
		return NewNamedTask(name, func(ctx context.Context, _ *Task) error {
			record(name + ":start")
			time.Sleep(10 * time.Millisecond)
			record(name + ":end")
			return nil
		})
	}

	a, b, c := makeTask("A"), makeTask("B"), makeTask("C")
	done := make(chan struct{})
	err := q.AddChain([]*Task{a, b, c}, func() {
		record("complete")
		close(done)
	})
	if err != nil {
		t.Fatalf("AddChain failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("completion handler never ran")
	}
	awaitIdle(t, q)

	mu.Lock()
	defer mu.Unlock()
	want := []string{"A:start", "A:end", "B:start", "B:end", "C:start", "C:end", "complete"}
	if len(order) != len(want) {
		t.Fatalf("events: got = %v, want %v", order, want)
	}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("event %d: got = %v, want %v (full: %v)", i, order[i], w, order)
		}
	}
}

// TestTaskQueue_IndependentTasksRunConcurrently verifies tasks without a
// dependency relationship may overlap up to the pool's cap.
func TestTaskQueue_IndependentTasksRunConcurrently(t *testing.T) {
	q := newTestQueue(t, "concurrent", 4)

	var inFlight, maxInFlight atomic.Int32
	gate := make(chan struct{})
	for i := 0; i < 4; i++ {
		task := NewTask("", func(ctx context.Context, _ *Task) error {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := maxInFlight.Load()
				if n <= old || maxInFlight.CompareAndSwap(old, n) {
					break
				}
			}
			<-gate
			return nil
		})
		if err := q.Add(task); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	// Let all four reach the gate, then release them.
	deadline := time.After(2 * time.Second)
	for inFlight.Load() < 4 {
		select {
		case <-deadline:
			t.Fatalf("only %d tasks running, want 4", inFlight.Load())
		case <-time.After(time.Millisecond):
		}
	}
	close(gate)
	awaitIdle(t, q)

	if got := maxInFlight.Load(); got != 4 {
		t.Errorf("max concurrent: got = %d, want 4", got)
	}
}

// TestTaskQueue_MaxConcurrencyRespected verifies the pool cap bounds overlap.
func TestTaskQueue_MaxConcurrencyRespected(t *testing.T) {
	q := newTestQueue(t, "capped", 2)

	var inFlight, maxInFlight atomic.Int32
	for i := 0; i < 6; i++ {
		task := NewTask("", func(ctx context.Context, _ *Task) error {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := maxInFlight.Load()
				if n <= old || maxInFlight.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return nil
		})
		if err := q.Add(task); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	awaitIdle(t, q)

	if got := maxInFlight.Load(); got > 2 {
		t.Errorf("max concurrent: got = %d, want <= 2", got)
	}
}

// TestTaskQueue_Snapshot tests point-in-time snapshotting
// Given: tasks A(progress=30, deps=[]) and B(progress=0, deps=[A])
// When: Snapshot is called
// Then: the result lists both tasks in tracking order with their
// progress and dependency names
func TestTaskQueue_Snapshot(t *testing.T) {
	q := newTestQueue(t, "snapshot", 1)
	q.Pause() // keep both tasks tracked and unstarted

	a := NewNamedTask("A", nil)
	a.SetProgress(30)
	b := NewNamedTask("B", nil)
	b.AddDependency(a.ID())

	if err := q.Add(a); err != nil {
		t.Fatalf("Add A failed: %v", err)
	}
	if err := q.Add(b); err != nil {
		t.Fatalf("Add B failed: %v", err)
	}

	snaps := q.Snapshot()
	if len(snaps) != 2 {
		t.Fatalf("snapshot count: got = %d, want 2", len(snaps))
	}

	if snaps[0].Name != "A" || snaps[0].Progress != 30 || len(snaps[0].Dependencies) != 0 {
		t.Errorf("snapshot A: got = %+v", snaps[0])
	}
	if snaps[1].Name != "B" || snaps[1].Progress != 0 {
		t.Errorf("snapshot B: got = %+v", snaps[1])
	}
	if len(snaps[1].Dependencies) != 1 || snaps[1].Dependencies[0] != "A" {
		t.Errorf("snapshot B dependencies: got = %v, want [A]", snaps[1].Dependencies)
	}
}

// TestTaskQueue_SnapshotSkipsUnnamedTasks verifies anonymous tasks are not
// snapshotted.
func TestTaskQueue_SnapshotSkipsUnnamedTasks(t *testing.T) {
	q := newTestQueue(t, "snapshot-unnamed", 1)
	q.Pause()

	if _, err := q.AddFunc(func(ctx context.Context, _ *Task) error { return nil }); err != nil {
		t.Fatalf("AddFunc failed: %v", err)
	}
	named := NewNamedTask("visible", nil)
	if err := q.Add(named); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	snaps := q.Snapshot()
	if len(snaps) != 1 || snaps[0].Name != "visible" {
		t.Fatalf("snapshots: got = %+v, want only 'visible'", snaps)
	}
}

// TestTaskQueue_PauseBlocksDispatch tests suspension semantics
// Given: a paused queue
// When: a task is added
// Then: it stays Pending until Resume
func TestTaskQueue_PauseBlocksDispatch(t *testing.T) {
	q := newTestQueue(t, "paused", 1)
	q.Pause()

	ran := make(chan struct{})
	task := NewTask("held", func(ctx context.Context, _ *Task) error {
		close(ran)
		return nil
	})
	if err := q.Add(task); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	select {
	case <-ran:
		t.Fatal("task dispatched while queue paused")
	case <-time.After(50 * time.Millisecond):
	}
	if task.State() != TaskPending {
		t.Fatalf("state while paused: got = %v, want pending", task.State())
	}

	q.Resume()
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task never dispatched after Resume")
	}
	awaitIdle(t, q)
}

// TestTaskQueue_CancelAll tests cooperative cancellation
// Given: one running task polling its context and one pending task
// When: CancelAll is called
// Then: the pending task transitions directly to Cancelled and the running
// task transitions to Cancelled once it observes the cancellation
func TestTaskQueue_CancelAll(t *testing.T) {
	q := newTestQueue(t, "cancel", 1)

	running := make(chan struct{})
	runningTask := NewTask("running", func(ctx context.Context, _ *Task) error {
		close(running)
		// Cooperatively poll for cancellation.
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
	})
	pendingTask := NewTask("pending", nil)
	pendingTask.AddDependency("never-finishes")

	if err := q.Add(runningTask); err != nil {
		t.Fatalf("Add running failed: %v", err)
	}
	if err := q.Add(pendingTask); err != nil {
		t.Fatalf("Add pending failed: %v", err)
	}

	select {
	case <-running:
	case <-time.After(2 * time.Second):
		t.Fatal("running task never started")
	}

	q.CancelAll()

	if pendingTask.State() != TaskCancelled {
		t.Errorf("pending task state: got = %v, want cancelled", pendingTask.State())
	}

	awaitIdle(t, q)
	if runningTask.State() != TaskCancelled {
		t.Errorf("running task state: got = %v, want cancelled", runningTask.State())
	}
	if runningTask.Outcome() != OutcomeUnresolved {
		t.Errorf("running task outcome: got = %v, want unresolved", runningTask.Outcome())
	}
}

// TestTaskQueue_CancelledTaskNeverRetries verifies cancellation wins over the
// retry policy.
func TestTaskQueue_CancelledTaskNeverRetries(t *testing.T) {
	q := newTestQueue(t, "cancel-retry", 1)

	var calls atomic.Int32
	started := make(chan struct{})
	task := NewTask("cancelled-mid-work", func(ctx context.Context, _ *Task) error {
		calls.Add(1)
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	task.SetMaxAttempts(5)

	if err := q.Add(task); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	<-started
	q.CancelAll()
	awaitIdle(t, q)

	if got := calls.Load(); got != 1 {
		t.Errorf("work invocations: got = %d, want 1", got)
	}
	if task.State() != TaskCancelled {
		t.Errorf("state: got = %v, want cancelled", task.State())
	}
}

// TestTaskQueue_DependentOfFailedTaskRuns verifies retry-exhausted failure
// still unblocks dependents: Finished includes the Failure outcome.
func TestTaskQueue_DependentOfFailedTaskRuns(t *testing.T) {
	q := newTestQueue(t, "failed-dep", 1)

	failing := NewNamedTask("failing", func(ctx context.Context, _ *Task) error {
		return errWorkFailed
	})
	failing.SetMaxAttempts(2)

	ran := make(chan struct{})
	dependent := NewNamedTask("dependent", func(ctx context.Context, _ *Task) error {
		close(ran)
		return nil
	})

	if err := q.AddChain([]*Task{failing, dependent}, nil); err != nil {
		t.Fatalf("AddChain failed: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("dependent never ran after dependency failure-finished")
	}
	awaitIdle(t, q)

	if failing.Outcome() != OutcomeFailure {
		t.Errorf("failing outcome: got = %v, want failure", failing.Outcome())
	}
	if dependent.Outcome() != OutcomeSuccess {
		t.Errorf("dependent outcome: got = %v, want success", dependent.Outcome())
	}
}

// TestTaskQueue_DependentOfCancelledTaskStalls verifies a cancelled
// dependency leaves dependents stuck Pending (intended stall, no timeout).
func TestTaskQueue_DependentOfCancelledTaskStalls(t *testing.T) {
	q := newTestQueue(t, "cancelled-dep", 1)
	q.Pause()

	head := NewNamedTask("head", nil)
	ran := make(chan struct{})
	dependent := NewNamedTask("stuck", func(ctx context.Context, _ *Task) error {
		close(ran)
		return nil
	})
	dependent.AddDependency(head.ID())

	if err := q.Add(head); err != nil {
		t.Fatalf("Add head failed: %v", err)
	}
	if err := q.Add(dependent); err != nil {
		t.Fatalf("Add dependent failed: %v", err)
	}

	head.Cancel()
	q.Resume()

	select {
	case <-ran:
		t.Fatal("dependent ran despite cancelled dependency")
	case <-time.After(100 * time.Millisecond):
	}
	if dependent.State() != TaskPending {
		t.Errorf("dependent state: got = %v, want pending", dependent.State())
	}
}

// TestTaskQueue_AddAfterClose verifies ErrQueueClosed.
func TestTaskQueue_AddAfterClose(t *testing.T) {
	pool := NewGoroutinePool("closed-pool", 1)
	pool.Start(context.Background())
	defer pool.Stop()

	q := NewTaskQueue("closed", pool)
	q.Close()

	if err := q.Add(NewTask("late", nil)); err != ErrQueueClosed {
		t.Fatalf("Add after Close: got = %v, want ErrQueueClosed", err)
	}
}

// TestTaskQueue_AwaitIdle_Timeout verifies AwaitIdle honors its context.
func TestTaskQueue_AwaitIdle_Timeout(t *testing.T) {
	q := newTestQueue(t, "await-timeout", 1)
	q.Pause()

	if err := q.Add(NewTask("never-runs", nil)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := q.AwaitIdle(ctx); err != context.DeadlineExceeded {
		t.Fatalf("AwaitIdle: got = %v, want DeadlineExceeded", err)
	}
}

// TestTaskQueue_TerminalTasksDropped verifies finished tasks leave tracking.
func TestTaskQueue_TerminalTasksDropped(t *testing.T) {
	q := newTestQueue(t, "pruned", 1)

	for i := 0; i < 3; i++ {
		if _, err := q.AddFunc(func(ctx context.Context, _ *Task) error { return nil }); err != nil {
			t.Fatalf("AddFunc failed: %v", err)
		}
	}
	awaitIdle(t, q)

	if got := q.TrackedCount(); got != 0 {
		t.Errorf("tracked after idle: got = %d, want 0", got)
	}
}
