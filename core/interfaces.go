package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution, after the panic has been
// recovered and recorded on the task's completion port.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context of the panicked task
	// - managerName: The name of the task manager where the panic occurred
	// - workerID: The ID of the worker that ran the task
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, managerName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through Logger, or to stdout when Logger is nil.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs panic information.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, managerName string, workerID int, panicInfo any, stackTrace []byte) {
	if h.Logger != nil {
		h.Logger.Error("task panicked",
			F("manager", managerName),
			F("worker", workerID),
			F("panic", panicInfo),
			F("stack", string(stackTrace)))
		return
	}
	fmt.Printf("[Worker %d @ %s] Panic: %v\nStack trace:\n%s",
		workerID, managerName, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution performance.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(managerName string, priority Priority, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(managerName string, panicInfo any)

	// RecordTaskFailure records a task that returned an error or panicked.
	RecordTaskFailure(managerName string, priority Priority)

	// RecordQueueDepth records the current depth of one priority queue.
	RecordQueueDepth(managerName string, priority Priority, depth int)

	// RecordTaskRejected records that a submission was rejected (e.g., during shutdown).
	RecordTaskRejected(managerName string, reason string)

	// RecordTaskDiscarded records queued tasks dropped by shutdown.
	RecordTaskDiscarded(managerName string, count int)

	// RecordPortCompleted records a completion port reaching zero.
	RecordPortCompleted(managerName string, failed bool)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(managerName string, priority Priority, duration time.Duration) {
}
func (m *NilMetrics) RecordTaskPanic(managerName string, panicInfo any)                 {}
func (m *NilMetrics) RecordTaskFailure(managerName string, priority Priority)           {}
func (m *NilMetrics) RecordQueueDepth(managerName string, priority Priority, depth int) {}
func (m *NilMetrics) RecordTaskRejected(managerName string, reason string)              {}
func (m *NilMetrics) RecordTaskDiscarded(managerName string, count int)                 {}
func (m *NilMetrics) RecordPortCompleted(managerName string, failed bool)               {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a submission is rejected by the scheduler because it
// is shutting down. The submitter also receives ErrShutdown.
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	HandleRejectedTask(managerName string, reason string)
}

// DefaultRejectedTaskHandler logs rejected tasks through Logger, or to stdout when nil.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

// HandleRejectedTask logs the rejected task.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(managerName string, reason string) {
	if h.Logger != nil {
		h.Logger.Warn("task rejected", F("manager", managerName), F("reason", reason))
		return
	}
	fmt.Printf("[Manager %s] Task rejected: %s\n", managerName, reason)
}

// =============================================================================
// FailureHandler: Interface for failures of fire-and-forget tasks
// =============================================================================

// FailureHandler receives failures of tasks submitted without a completion port. Failures
// of batched tasks are recorded on their port instead.
type FailureHandler interface {
	HandleTaskFailure(managerName string, err *TaskError)
}

// DefaultFailureHandler logs failures through Logger, or to stdout when nil.
type DefaultFailureHandler struct {
	Logger Logger
}

func (h *DefaultFailureHandler) HandleTaskFailure(managerName string, err *TaskError) {
	if h.Logger != nil {
		h.Logger.Warn("fire-and-forget task failed",
			F("manager", managerName),
			F("task", err.Task),
			F("worker", err.WorkerID),
			F("error", err.Err))
		return
	}
	fmt.Printf("[Manager %s] Task %s failed: %v\n", managerName, err.Task, err.Err)
}

// =============================================================================
// SchedulerConfig: Configuration for TaskScheduler
// =============================================================================

// SchedulerConfig holds configuration options for TaskScheduler.
// All handlers are optional; if not provided, default implementations will be used.
type SchedulerConfig struct {
	// Name labels logs and metrics. Defaults to "taskmanager".
	Name string

	// Evaluator selects the next priority class. Defaults to NewDefaultEvaluator().
	Evaluator TaskEvaluator

	// Logger receives lifecycle and worker-loop diagnostics. Defaults to DefaultLogger.
	Logger Logger

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record task execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a task is rejected. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler

	// FailureHandler receives failures of fire-and-forget tasks. Defaults to DefaultFailureHandler.
	FailureHandler FailureHandler

	// HistorySize is the capacity of the execution history ring buffer.
	HistorySize int
}

// DefaultSchedulerConfig returns a config with default handlers.
func DefaultSchedulerConfig() *SchedulerConfig {
	logger := NewDefaultLogger()
	return &SchedulerConfig{
		Name:                "taskmanager",
		Evaluator:           NewDefaultEvaluator(),
		Logger:              logger,
		PanicHandler:        &DefaultPanicHandler{Logger: logger},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{Logger: logger},
		FailureHandler:      &DefaultFailureHandler{Logger: logger},
		HistorySize:         defaultTaskHistoryCapacity,
	}
}
