package core

import (
	"context"
	"fmt"
)

// TaskContext is handed to a running task. It embeds the manager's context, which is
// cancelled at shutdown, so bodies may pass it to blocking calls.
//
// A TaskContext is only valid for the duration of a single invocation and must not be
// retained after the body returns.
type TaskContext struct {
	context.Context

	scheduler *TaskScheduler
	worker    *TaskWorker
	port      *CompletionPort
	item      TaskItem
}

// Evaluator returns a copy of the scheduler's selection policy, taken under the scheduler
// lock. Calling Select on it does not change what the workers dequeue. Evaluators other
// than the built-in ones are returned as is and must only be inspected.
func (tc *TaskContext) Evaluator() TaskEvaluator {
	s := tc.scheduler
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.evaluator.(interface{ clone() TaskEvaluator }); ok {
		return c.clone()
	}
	return s.evaluator
}

// Worker returns the worker executing this task.
func (tc *TaskContext) Worker() *TaskWorker {
	return tc.worker
}

// Port returns the completion port of the batch this task belongs to, or nil for a
// fire-and-forget task.
func (tc *TaskContext) Port() *CompletionPort {
	return tc.port
}

// TaskID returns the identifier of the running task.
func (tc *TaskContext) TaskID() TaskID {
	return tc.item.ID
}

// Priority returns the priority class the running task was dequeued from.
func (tc *TaskContext) Priority() Priority {
	return tc.item.Task.Priority
}

// Fork submits tasks that join back to this task's completion port. The port counts them
// before Fork returns, so the submitter's Wait cannot return until they have finished too.
// Tasks of a fire-and-forget parent are themselves fire-and-forget.
func (tc *TaskContext) Fork(tasks ...Task) error {
	if len(tasks) == 0 {
		return fmt.Errorf("%w: fork with no tasks", ErrInvalidArgument)
	}
	for _, t := range tasks {
		if err := validateTask(t); err != nil {
			return err
		}
	}
	return tc.scheduler.enqueue(tc.port, tasks)
}

// ForkFunc forks a single anonymous task.
func (tc *TaskContext) ForkFunc(priority Priority, body TaskFunc) error {
	return tc.Fork(NewTask(priority, body))
}
