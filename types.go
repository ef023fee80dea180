package taskmanager

import "github.com/Swind/go-task-manager/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskmanager package for most use cases.

// Task is the unit of work
type Task = core.Task

// TaskFunc is the body of a task
type TaskFunc = core.TaskFunc

// TaskContext is passed to a running task
type TaskContext = core.TaskContext

// Priority defines the priority classes for tasks
type Priority = core.Priority

// CompletionPort is the join handle of a submitted batch
type CompletionPort = core.CompletionPort

// TaskError describes a failed task
type TaskError = core.TaskError

// TaskEvaluator selects the next priority class to dequeue from
type TaskEvaluator = core.TaskEvaluator

// TaskRunner is a concurrency-limited lane on the worker pool
type TaskRunner = core.TaskRunner

// Priority constants. PriorityInternal is reserved for the scheduler and not re-exported.
const (
	PriorityHigh   Priority = core.PriorityHigh
	PriorityNormal Priority = core.PriorityNormal
	PriorityLow    Priority = core.PriorityLow
)

// Errors
var (
	ErrInitialization  = core.ErrInitialization
	ErrInvalidArgument = core.ErrInvalidArgument
	ErrPortCompleted   = core.ErrPortCompleted
	ErrShutdown        = core.ErrShutdown
	ErrWaitOnWorker    = core.ErrWaitOnWorker
	ErrTaskDiscarded   = core.ErrTaskDiscarded
	ErrTaskPanic       = core.ErrTaskPanic
)

// Convenience constructors
var (
	NewTask      = core.NewTask
	NewNamedTask = core.NewNamedTask
)
