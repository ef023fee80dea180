package core

import "fmt"

// SubmitAfter registers tasks on port immediately and queues them once dep completes.
// Waiting on port is valid as soon as SubmitAfter returns. dep must already have tasks
// registered or be complete.
//
// Release happens through an Internal-priority bookkeeping task so that continuations are
// never delayed behind ordinary work. If the scheduler shuts down before release, the
// continuation tasks are discarded and port is still released.
func (s *TaskScheduler) SubmitAfter(dep, port *CompletionPort, tasks ...Task) error {
	if dep == nil || port == nil {
		return fmt.Errorf("%w: nil completion port", ErrInvalidArgument)
	}
	if dep == port {
		return fmt.Errorf("%w: continuation cannot depend on its own port", ErrInvalidArgument)
	}
	if dep.Outstanding() == 0 && !dep.IsCompleted() {
		// Nothing registered on dep, so it would never complete
		return fmt.Errorf("%w: dependency port has no registered tasks", ErrInvalidArgument)
	}
	if len(tasks) == 0 {
		return fmt.Errorf("%w: no tasks submitted", ErrInvalidArgument)
	}
	for _, t := range tasks {
		if err := validateTask(t); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.rejectedTaskHandler.HandleRejectedTask(s.name, "shutting down")
		s.metrics.RecordTaskRejected(s.name, "shutting down")
		return ErrShutdown
	}
	if err := port.Register(len(tasks)); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	items := make([]TaskItem, len(tasks))
	for i, t := range tasks {
		items[i] = TaskItem{ID: GenerateTaskID(), Task: t, Port: port}
	}

	dep.whenComplete(func() {
		s.releaseContinuation(dep, items)
	})
	return nil
}

func (s *TaskScheduler) releaseContinuation(dep *CompletionPort, items []TaskItem) {
	release := TaskItem{
		ID: GenerateTaskID(),
		Task: NewNamedTask("release-continuation", PriorityInternal, func(tc *TaskContext) error {
			s.pushRegistered(items)
			return nil
		}),
		onDiscard: func() { s.discard(items) },
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.discard(items)
		return
	}
	s.queues.Push(release)
	signal := s.signal
	s.mu.Unlock()

	s.logger.Debug("continuation released",
		F("dependency", dep.ID()),
		F("tasks", len(items)))

	if signal != nil {
		select {
		case signal <- struct{}{}:
		default:
		}
	}
}

// pushRegistered queues items whose ports already count them.
func (s *TaskScheduler) pushRegistered(items []TaskItem) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.discard(items)
		return
	}
	for _, item := range items {
		s.queues.Push(item)
	}
	depths := s.queues.Depths()
	signal := s.signal
	s.mu.Unlock()

	tasks := make([]Task, len(items))
	for i, item := range items {
		tasks[i] = item.Task
	}
	s.recordDepths(depths, tasks)

	if signal == nil {
		return
	}
	for range items {
		select {
		case signal <- struct{}{}:
		default:
		}
	}
}
