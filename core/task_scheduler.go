package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// TaskScheduler owns the four priority queues, the evaluator and the worker pool.
// One mutex guards the queues, the evaluator and the closed flag; completion ports carry
// their own synchronization.
type TaskScheduler struct {
	name string

	mu        sync.Mutex
	queues    *PriorityQueues
	evaluator TaskEvaluator
	closed    bool

	signal chan struct{}
	stopCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	workers          []*TaskWorker
	workerGoroutines sync.Map // goroutine id -> *TaskWorker
	wg               sync.WaitGroup

	metricActive atomic.Int32 // Executing in Worker
	executed     atomic.Int64
	failed       atomic.Int64
	discarded    atomic.Int64

	// Handlers and Metrics
	logger              Logger
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler
	failureHandler      FailureHandler

	history *executionHistory
	delays  *delayManager
}

// NewTaskScheduler creates a scheduler that is ready to accept work. Workers are spawned
// by Start.
func NewTaskScheduler(config *SchedulerConfig) *TaskScheduler {
	s := &TaskScheduler{
		queues: NewPriorityQueues(),
		stopCh: make(chan struct{}),
	}

	historySize := defaultTaskHistoryCapacity

	// Apply config
	if config != nil {
		s.name = config.Name
		s.evaluator = config.Evaluator
		s.logger = config.Logger
		s.panicHandler = config.PanicHandler
		s.metrics = config.Metrics
		s.rejectedTaskHandler = config.RejectedTaskHandler
		s.failureHandler = config.FailureHandler
		if config.HistorySize > 0 {
			historySize = config.HistorySize
		}
	}

	// Use defaults if not provided
	if s.name == "" {
		s.name = "taskmanager"
	}
	if s.evaluator == nil {
		s.evaluator = NewDefaultEvaluator()
	}
	if s.logger == nil {
		s.logger = NewDefaultLogger()
	}
	if s.panicHandler == nil {
		s.panicHandler = &DefaultPanicHandler{Logger: s.logger}
	}
	if s.metrics == nil {
		s.metrics = &NilMetrics{}
	}
	if s.rejectedTaskHandler == nil {
		s.rejectedTaskHandler = &DefaultRejectedTaskHandler{Logger: s.logger}
	}
	if s.failureHandler == nil {
		s.failureHandler = &DefaultFailureHandler{Logger: s.logger}
	}
	s.history = newExecutionHistory(historySize)
	s.delays = newDelayManager(s.pushRegistered)

	return s
}

// Start spawns workerCount workers. The scheduler can be started once; the context is
// handed to every TaskContext and cancelled by Shutdown.
func (s *TaskScheduler) Start(ctx context.Context, workerCount int) error {
	if workerCount <= 0 {
		return fmt.Errorf("%w: worker count must be positive, got %d", ErrInitialization, workerCount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: scheduler already shut down", ErrInitialization)
	}
	if s.workers != nil {
		return fmt.Errorf("%w: scheduler already started", ErrInitialization)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.signal = make(chan struct{}, workerCount*2)
	s.workers = make([]*TaskWorker, workerCount)
	for i := range workerCount {
		w := newTaskWorker(i, s)
		s.workers[i] = w
		s.wg.Add(1)
		go w.run()
	}

	// Tasks submitted before Start are already queued
	for range min(s.queues.Depths().Total(), cap(s.signal)) {
		s.signal <- struct{}{}
	}

	s.logger.Info("task scheduler started", F("name", s.name), F("workers", workerCount))
	return nil
}

// Name returns the label used for logs and metrics.
func (s *TaskScheduler) Name() string {
	return s.name
}

// Logger returns the scheduler's logger.
func (s *TaskScheduler) Logger() Logger {
	return s.logger
}

// Submit enqueues tasks reporting to port, which may be nil for fire-and-forget work.
// Every task is validated first; Internal priority is rejected.
func (s *TaskScheduler) Submit(port *CompletionPort, tasks ...Task) error {
	if len(tasks) == 0 {
		return fmt.Errorf("%w: no tasks submitted", ErrInvalidArgument)
	}
	for _, t := range tasks {
		if err := validateTask(t); err != nil {
			return err
		}
	}
	return s.enqueue(port, tasks)
}

// PostInternal enqueues scheduler bookkeeping work at Internal priority.
func (s *TaskScheduler) PostInternal(name string, body TaskFunc) error {
	return s.enqueue(nil, []Task{NewNamedTask(name, PriorityInternal, body)})
}

// enqueue registers tasks on the port and pushes them atomically with respect to Shutdown:
// either every task is queued and counted, or none is.
func (s *TaskScheduler) enqueue(port *CompletionPort, tasks []Task) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.rejectedTaskHandler.HandleRejectedTask(s.name, "shutting down")
		s.metrics.RecordTaskRejected(s.name, "shutting down")
		return ErrShutdown
	}
	if port != nil {
		if err := port.Register(len(tasks)); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	for _, t := range tasks {
		s.queues.Push(TaskItem{ID: GenerateTaskID(), Task: t, Port: port})
	}
	depths := s.queues.Depths()
	signal := s.signal
	s.mu.Unlock()

	s.recordDepths(depths, tasks)

	// Not started yet; Start signals for the backlog
	if signal == nil {
		return nil
	}
	for range tasks {
		select {
		case signal <- struct{}{}:
		default:
			// Signal channel full, but task is already queued
			// This is not an error, just a optimization hint
		}
	}
	return nil
}

func (s *TaskScheduler) recordDepths(depths QueueDepths, tasks []Task) {
	var seen [numPriorities]bool
	for _, t := range tasks {
		if seen[t.Priority] {
			continue
		}
		seen[t.Priority] = true
		s.metrics.RecordQueueDepth(s.name, t.Priority, depths[t.Priority])
	}
}

// GetWork (Called by Worker) blocks until the evaluator selects a task or stopCh closes.
func (s *TaskScheduler) GetWork(stopCh <-chan struct{}) (TaskItem, bool) {
	for {
		if item, depth, ok := s.next(); ok {
			s.metrics.RecordQueueDepth(s.name, item.Task.Priority, depth)
			return item, true
		}

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return TaskItem{}, false
		}
	}
}

// TryGetWork is the non-blocking form of GetWork.
func (s *TaskScheduler) TryGetWork() (TaskItem, bool) {
	item, _, ok := s.next()
	return item, ok
}

func (s *TaskScheduler) next() (TaskItem, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	depths := s.queues.Depths()
	p, ok := s.evaluator.Select(depths)
	if !ok {
		return TaskItem{}, 0, false
	}
	if !p.Valid() || depths[p] == 0 {
		// Misbehaving evaluator; fall back to strict order rather than stall the pool
		s.logger.Warn("evaluator selected an empty queue",
			F("priority", p.String()),
			F("evaluator", fmt.Sprintf("%T", s.evaluator)))
		p, ok = StrictEvaluator{}.Select(depths)
		if !ok {
			return TaskItem{}, 0, false
		}
	}
	item, _ := s.queues.Pop(p)
	return item, depths[p] - 1, true
}

// Shutdown stops accepting submissions, discards queued tasks, lets running tasks finish
// and joins all workers. Repeated calls are no-ops.
//
// Called from a task, Shutdown joins every other worker; the calling worker stops once
// the task returns.
func (s *TaskScheduler) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	discarded := s.queues.Clear()
	workers := s.workers
	cancel := s.cancel
	s.mu.Unlock()

	for _, w := range workers {
		w.drain()
	}

	// Discarding may release continuations; they see the closed flag and are discarded too
	s.discard(discarded)
	s.discard(s.delays.stop())

	if cancel != nil {
		cancel()
	}
	close(s.stopCh)
	if v, ok := s.workerGoroutines.Load(getGoroutineID()); ok {
		v.(*TaskWorker).leave()
	}
	s.wg.Wait()

	s.logger.Info("task scheduler stopped",
		F("name", s.name),
		F("executed", s.executed.Load()),
		F("failed", s.failed.Load()),
		F("discarded", s.discarded.Load()))
}

// discard force-decrements the ports of tasks that will never run so their waiters are
// released. Each discarded task is recorded as a failure with ErrTaskDiscarded.
func (s *TaskScheduler) discard(items []TaskItem) {
	if len(items) == 0 {
		return
	}
	s.discarded.Add(int64(len(items)))
	s.metrics.RecordTaskDiscarded(s.name, len(items))
	s.logger.Warn("discarding queued tasks", F("name", s.name), F("count", len(items)))

	for _, item := range items {
		if item.onDiscard != nil {
			item.onDiscard()
		}
		if item.Port != nil {
			item.Port.recordFailure(&TaskError{
				TaskID:   item.ID,
				Task:     resolveTaskName(item.Task),
				Priority: item.Task.Priority,
				WorkerID: -1,
				Err:      ErrTaskDiscarded,
			})
			if item.Port.Decrement() {
				s.metrics.RecordPortCompleted(s.name, true)
			}
		}
		if item.onDone != nil {
			item.onDone()
		}
	}
}

// IsClosed reports whether Shutdown has been called.
func (s *TaskScheduler) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// IsWorkerGoroutine reports whether the caller runs on one of this scheduler's workers.
func (s *TaskScheduler) IsWorkerGoroutine() bool {
	_, ok := s.workerGoroutines.Load(getGoroutineID())
	return ok
}

// Metrics
func (s *TaskScheduler) WorkerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

func (s *TaskScheduler) QueuedTaskCount() int {
	return s.QueueDepths().Total()
}

func (s *TaskScheduler) QueueDepths() QueueDepths {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queues.Depths()
}

func (s *TaskScheduler) ActiveTaskCount() int { return int(s.metricActive.Load()) }

func (s *TaskScheduler) OnTaskStart() {
	s.metricActive.Add(1)
}

func (s *TaskScheduler) OnTaskEnd() {
	s.metricActive.Add(-1)
}

// Workers returns snapshots of every worker.
func (s *TaskScheduler) Workers() []WorkerStats {
	s.mu.Lock()
	workers := s.workers
	s.mu.Unlock()

	out := make([]WorkerStats, len(workers))
	for i, w := range workers {
		out[i] = w.Stats()
	}
	return out
}

// Stats returns current observability data for the pool.
func (s *TaskScheduler) Stats() PoolStats {
	s.mu.Lock()
	depths := s.queues.Depths()
	workers := len(s.workers)
	running := workers > 0 && !s.closed
	s.mu.Unlock()

	return PoolStats{
		Name:      s.name,
		Workers:   workers,
		Queued:    depths,
		Active:    s.ActiveTaskCount(),
		Executed:  s.executed.Load(),
		Failed:    s.failed.Load(),
		Discarded: s.discarded.Load(),
		Delayed:   s.delays.count(),
		Running:   running,
	}
}

// RecentTasks returns completed task execution records in newest-first order.
func (s *TaskScheduler) RecentTasks(limit int) []TaskExecutionRecord {
	return s.history.Recent(limit)
}

// GetPanicHandler returns the panic handler for this scheduler
func (s *TaskScheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}

// GetMetrics returns the metrics collector for this scheduler
func (s *TaskScheduler) GetMetrics() Metrics {
	return s.metrics
}
