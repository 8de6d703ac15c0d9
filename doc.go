// Package queue provides retryable, chainable, pausable units of work on top
// of a goroutine worker pool.
//
// Callers submit Tasks (bare closures or Task objects) to a TaskQueue; the
// queue enforces dependency ordering and concurrency caps via the pool, each
// task runs its work and retries on failure per its policy, and the queue can
// be interrogated at any time for a snapshot list usable to reconstruct
// pending work.
//
// # Quick Start
//
//	q := queue.NewTaskQueue("downloads", nil) // private unbounded pool
//	defer q.Close()
//
//	t := queue.NewNamedTask("fetch", func(ctx context.Context, t *queue.Task) error {
//		t.SetProgress(50)
//		return fetch(ctx) // non-nil error is retried, 3 attempts by default
//	})
//	q.Add(t)
//	q.AwaitIdle(context.Background())
//
// # Key Concepts
//
// Task: a unit of schedulable work with identity, progress, a retry policy
// and a lifecycle state machine (Pending, Running, Finished, Cancelled).
// Automatic retries re-invoke failed work immediately and synchronously on
// the same goroutine, with no backoff; manual-retry tasks park until Retry.
//
// Chain: AddChain links tasks into a strict linear dependency sequence. A
// dependent starts only once its predecessor reaches Finished (success or
// retry-exhausted failure alike); a cancelled predecessor leaves dependents
// Pending indefinitely.
//
// TaskSnapshot: an immutable {name, progress, dependencies} record, the sole
// serializable artifact. Snapshot lists can be persisted through a
// SnapshotStore and used by the caller to rebuild an equivalent chain.
//
// # Cancellation
//
// Cancellation is cooperative. CancelAll signals intent through each task's
// context; work that never checks its context runs to completion. This is a
// known limitation of the contract, not a bug.
//
// For metrics integration see the observability/prometheus package.
package queue
