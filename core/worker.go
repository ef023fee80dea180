package core

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerState is the lifecycle state of a TaskWorker:
// Idle -> Running -> Idle -> ... -> Draining -> Stopped.
type WorkerState int32

const (
	WorkerIdle WorkerState = iota
	WorkerRunning
	WorkerDraining
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	case WorkerDraining:
		return "draining"
	case WorkerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// TaskWorker is one goroutine of the fixed pool. It lives from Start to Shutdown.
type TaskWorker struct {
	id        int
	scheduler *TaskScheduler

	state    atomic.Int32
	goid     atomic.Uint64
	executed atomic.Int64
	failed   atomic.Int64

	exit sync.Once
}

func newTaskWorker(id int, s *TaskScheduler) *TaskWorker {
	return &TaskWorker{id: id, scheduler: s}
}

// ID returns the worker's index in the pool.
func (w *TaskWorker) ID() int {
	return w.id
}

// State returns the worker's current lifecycle state.
func (w *TaskWorker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Stats returns a snapshot of the worker's counters.
func (w *TaskWorker) Stats() WorkerStats {
	return WorkerStats{
		ID:       w.id,
		State:    w.State(),
		Executed: w.executed.Load(),
		Failed:   w.failed.Load(),
	}
}

// drain moves the worker to Draining unless it already stopped.
func (w *TaskWorker) drain() {
	for {
		cur := w.state.Load()
		if cur == int32(WorkerDraining) || cur == int32(WorkerStopped) {
			return
		}
		if w.state.CompareAndSwap(cur, int32(WorkerDraining)) {
			return
		}
	}
}

// leave releases the worker's slot in the scheduler's join group. It runs when the loop
// exits, or earlier when a task on this worker shuts the scheduler down.
func (w *TaskWorker) leave() {
	w.exit.Do(w.scheduler.wg.Done)
}

// run is the worker loop. It returns once the scheduler stops handing out work.
func (w *TaskWorker) run() {
	s := w.scheduler
	defer w.leave()

	w.goid.Store(getGoroutineID())
	s.workerGoroutines.Store(w.goid.Load(), w)
	defer func() {
		s.workerGoroutines.Delete(w.goid.Load())
		w.state.Store(int32(WorkerStopped))
	}()

	for {
		// Pull tasks from the evaluator; blocks while Idle
		item, ok := s.GetWork(s.stopCh)
		if !ok {
			return
		}

		// A draining worker still finishes tasks it already dequeued
		w.state.CompareAndSwap(int32(WorkerIdle), int32(WorkerRunning))
		s.OnTaskStart()
		w.execute(item)
		s.OnTaskEnd()
		w.state.CompareAndSwap(int32(WorkerRunning), int32(WorkerIdle))
	}
}

// execute runs one task and reports its outcome to the task's completion port. The port
// is decremented last so joiners observe every side effect of the task.
func (w *TaskWorker) execute(item TaskItem) {
	s := w.scheduler
	tc := &TaskContext{
		Context:   s.ctx,
		scheduler: s,
		worker:    w,
		port:      item.Port,
		item:      item,
	}

	startedAt := time.Now()
	panicInfo, stack, err := w.invoke(tc)
	finishedAt := time.Now()
	duration := finishedAt.Sub(startedAt)

	w.executed.Add(1)
	s.executed.Add(1)
	s.metrics.RecordTaskDuration(s.name, item.Task.Priority, duration)

	record := TaskExecutionRecord{
		TaskID:      item.ID,
		Name:        resolveTaskName(item.Task),
		ManagerName: s.name,
		Priority:    item.Task.Priority,
		WorkerID:    w.id,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		Duration:    duration,
		Failed:      err != nil,
		Panicked:    stack != nil,
	}
	if item.Port != nil {
		record.PortID = item.Port.ID()
	}

	if err != nil {
		w.failed.Add(1)
		s.failed.Add(1)
		s.metrics.RecordTaskFailure(s.name, item.Task.Priority)

		taskErr := &TaskError{
			TaskID:   item.ID,
			Task:     record.Name,
			Priority: item.Task.Priority,
			WorkerID: w.id,
			Err:      err,
			Panic:    panicInfo,
			Stack:    stack,
		}
		if stack != nil {
			s.metrics.RecordTaskPanic(s.name, panicInfo)
			s.panicHandler.HandlePanic(tc, s.name, w.id, panicInfo, stack)
		}
		if item.Port != nil {
			item.Port.recordFailure(taskErr)
		} else {
			s.failureHandler.HandleTaskFailure(s.name, taskErr)
		}
	}

	s.history.Add(record)

	if item.Port != nil && item.Port.Decrement() {
		s.metrics.RecordPortCompleted(s.name, item.Port.HasFailed())
	}
	if item.onDone != nil {
		item.onDone()
	}
}

// invoke calls the task body, converting a panic into an error.
func (w *TaskWorker) invoke(tc *TaskContext) (panicInfo any, stack []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			panicInfo = rec
			stack = debug.Stack()
			err = newPanicError(rec)
		}
	}()
	return nil, nil, tc.item.Task.Body(tc)
}
