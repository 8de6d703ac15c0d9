package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling panics inside task work
// =============================================================================

// PanicHandler is called when a unit of work panics during execution.
// A recovered panic counts as a failed attempt for the owning task; the
// handler exists for logging and diagnostics, not for altering the outcome.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a unit of work panics.
	//
	// Parameters:
	// - ctx: The context the work was running under
	// - queueName: The name of the queue that dispatched the work
	// - taskID: The ID of the task whose work panicked
	// - panicInfo: The panic value recovered from the work
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, queueName string, taskID string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, queueName string, taskID string, panicInfo any, stackTrace []byte) {
	fmt.Printf("[Task %s @ %s] Panic: %v\nStack trace:\n%s",
		taskID, queueName, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution.
type Metrics interface {
	// RecordTaskDuration records how long one attempt of a task took.
	RecordTaskDuration(queueName string, class QualityClass, duration time.Duration)

	// RecordTaskRetry records a single retry of a failed task, automatic or manual.
	RecordTaskRetry(queueName string, taskID string)

	// RecordTaskPanic records that a unit of work panicked during execution.
	RecordTaskPanic(queueName string, panicInfo any)

	// RecordTaskCancelled records that a task reached the Cancelled state.
	RecordTaskCancelled(queueName string)

	// RecordQueueDepth records the number of tracked non-terminal tasks.
	RecordQueueDepth(queueName string, depth int)

	// RecordSnapshot records that a snapshot of the queue was taken.
	RecordSnapshot(queueName string, taskCount int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(queueName string, class QualityClass, duration time.Duration) {
}

// RecordTaskRetry is a no-op.
func (m *NilMetrics) RecordTaskRetry(queueName string, taskID string) {
}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(queueName string, panicInfo any) {
}

// RecordTaskCancelled is a no-op.
func (m *NilMetrics) RecordTaskCancelled(queueName string) {
}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(queueName string, depth int) {
}

// RecordSnapshot is a no-op.
func (m *NilMetrics) RecordSnapshot(queueName string, taskCount int) {
}

// =============================================================================
// Config: Shared configuration for pools and queues
// =============================================================================

// Config holds the ambient collaborators used by GoroutinePool and TaskQueue.
// All fields are optional; if not provided, default implementations are used.
type Config struct {
	// PanicHandler is called when a unit of work panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics records execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// Logger receives lifecycle events. Defaults to NoOpLogger.
	Logger Logger
}

// DefaultConfig returns a config with default collaborators.
func DefaultConfig() *Config {
	return &Config{
		PanicHandler: &DefaultPanicHandler{},
		Metrics:      &NilMetrics{},
		Logger:       NewNoOpLogger(),
	}
}

func (c *Config) withDefaults() *Config {
	out := &Config{}
	if c != nil {
		*out = *c
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{}
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.Logger == nil {
		out.Logger = NewNoOpLogger()
	}
	return out
}
