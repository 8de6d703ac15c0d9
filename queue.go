package queue

import "github.com/ngominhtrint/queue/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the queue package for most use cases.

// Task is a unit of schedulable work with identity, retry policy and state
type Task = core.Task

// WorkFunc is the callable unit of execution owned by a Task
type WorkFunc = core.WorkFunc

// TaskQueue is an ordered collection of tasks with dependency chaining
type TaskQueue = core.TaskQueue

// TaskSnapshot is an immutable restoration record for one task
type TaskSnapshot = core.TaskSnapshot

// WaitSignal is a counting rendezvous primitive
type WaitSignal = core.WaitSignal

// WorkerPool executes units of work with a concurrency cap
type WorkerPool = core.WorkerPool

// GoroutinePool is the goroutine-backed WorkerPool implementation
type GoroutinePool = core.GoroutinePool

// RepeatingTimer fires work onto a pool at a fixed interval
type RepeatingTimer = core.RepeatingTimer

// Pausable is the capability interface for queue-wide pause propagation
type Pausable = core.Pausable

// Lifecycle and policy enums
type (
	TaskState     = core.TaskState
	TaskOutcome   = core.TaskOutcome
	RetryMode     = core.RetryMode
	ExecutionMode = core.ExecutionMode
	QualityClass  = core.QualityClass
)

const (
	TaskPending   TaskState = core.TaskPending
	TaskRunning   TaskState = core.TaskRunning
	TaskFinished  TaskState = core.TaskFinished
	TaskCancelled TaskState = core.TaskCancelled

	OutcomeUnresolved TaskOutcome = core.OutcomeUnresolved
	OutcomeSuccess    TaskOutcome = core.OutcomeSuccess
	OutcomeFailure    TaskOutcome = core.OutcomeFailure

	RetryAutomatic RetryMode = core.RetryAutomatic
	RetryManual    RetryMode = core.RetryManual

	ExecAsync        ExecutionMode = core.ExecAsync
	ExecSyncBlocking ExecutionMode = core.ExecSyncBlocking

	QualityBackground    QualityClass = core.QualityBackground
	QualityDefault       QualityClass = core.QualityDefault
	QualityUserInitiated QualityClass = core.QualityUserInitiated
)

// Constructors
var (
	NewTask           = core.NewTask
	NewNamedTask      = core.NewNamedTask
	NewTaskQueue      = core.NewTaskQueue
	NewWaitSignal     = core.NewWaitSignal
	NewGoroutinePool  = core.NewGoroutinePool
	NewRepeatingTimer = core.NewRepeatingTimer
)

// NewTaskQueueWithConfig creates a queue with custom logging, metrics and
// panic handling. This is re-exported for users wiring observability.
func NewTaskQueueWithConfig(name string, pool WorkerPool, config *core.Config) *TaskQueue {
	return core.NewTaskQueueWithConfig(name, pool, config)
}

// Config and collaborators for observability wiring
type (
	Config       = core.Config
	Logger       = core.Logger
	Metrics      = core.Metrics
	PanicHandler = core.PanicHandler
)

// DefaultConfig returns a Config with default collaborators
var DefaultConfig = core.DefaultConfig
