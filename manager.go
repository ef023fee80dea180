package taskmanager

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Swind/go-task-manager/core"
)

const (
	// AutoWorkers asks Start for the default worker count.
	AutoWorkers = -1

	// DefaultReservedThreads is the number of hardware threads left to the main goroutine
	// when the worker count is derived from GOMAXPROCS.
	DefaultReservedThreads = 1
)

// DefaultWorkerCount returns GOMAXPROCS minus reserved, never less than one.
func DefaultWorkerCount(reserved int) int {
	return max(runtime.GOMAXPROCS(0)-reserved, 1)
}

// TaskManager owns a worker pool and its four priority queues. It is the entry point for
// submission and joining. Construct one at startup and pass it to submitters.
type TaskManager struct {
	config   core.SchedulerConfig
	reserved int

	mu        sync.RWMutex
	scheduler *core.TaskScheduler
	running   bool
}

// New creates a stopped TaskManager. Tasks submitted before Start are queued and run once
// workers exist.
func New(opts ...Option) *TaskManager {
	m := &TaskManager{
		config:   *core.DefaultSchedulerConfig(),
		reserved: DefaultReservedThreads,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.scheduler = core.NewTaskScheduler(&m.config)
	return m
}

// Start spawns workerCount workers; AutoWorkers selects DefaultWorkerCount. It fails with
// ErrInitialization when workerCount is zero or the manager is already running.
// A manager that was shut down may be started again.
func (m *TaskManager) Start(workerCount int) error {
	return m.StartContext(context.Background(), workerCount)
}

// StartContext is Start with a parent context for every TaskContext.
func (m *TaskManager) StartContext(ctx context.Context, workerCount int) error {
	if workerCount == 0 {
		return fmt.Errorf("%w: worker count must not be zero", core.ErrInitialization)
	}
	if workerCount < 0 {
		workerCount = DefaultWorkerCount(m.reserved)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("%w: task manager %q already running", core.ErrInitialization, m.config.Name)
	}
	if m.scheduler.IsClosed() {
		m.scheduler = core.NewTaskScheduler(&m.config)
	}
	if err := m.scheduler.Start(ctx, workerCount); err != nil {
		return err
	}
	m.running = true
	return nil
}

// Shutdown stops accepting submissions, discards still-queued tasks (releasing their
// waiters), lets running tasks finish and joins every worker. Calling it again is a no-op.
func (m *TaskManager) Shutdown() {
	m.mu.Lock()
	s := m.scheduler
	m.running = false
	m.mu.Unlock()

	s.Shutdown()
}

func (m *TaskManager) current() *core.TaskScheduler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scheduler
}

// Submit enqueues a fire-and-forget task. Its failure, if any, is only logged.
func (m *TaskManager) Submit(task Task) error {
	return m.current().Submit(nil, task)
}

// SubmitFunc enqueues a fire-and-forget anonymous task.
func (m *TaskManager) SubmitFunc(priority Priority, body TaskFunc) error {
	return m.Submit(core.NewTask(priority, body))
}

// SubmitBatch enqueues tasks on a fresh completion port at the given priority and returns
// the port for joining. An empty batch fails with ErrInvalidArgument.
func (m *TaskManager) SubmitBatch(priority Priority, tasks ...Task) (*CompletionPort, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: empty batch", core.ErrInvalidArgument)
	}
	batch := make([]Task, len(tasks))
	for i, t := range tasks {
		t.Priority = priority
		batch[i] = t
	}

	port := core.NewCompletionPort()
	if err := m.current().Submit(port, batch...); err != nil {
		return nil, err
	}
	return port, nil
}

// SubmitBatchFuncs is SubmitBatch for anonymous bodies.
func (m *TaskManager) SubmitBatchFuncs(priority Priority, bodies ...TaskFunc) (*CompletionPort, error) {
	tasks := make([]Task, len(bodies))
	for i, body := range bodies {
		tasks[i] = core.NewTask(priority, body)
	}
	return m.SubmitBatch(priority, tasks...)
}

// SubmitAfter queues tasks once dep completes and returns a port for the continuation.
// The returned port can be waited on immediately.
func (m *TaskManager) SubmitAfter(dep *CompletionPort, priority Priority, tasks ...Task) (*CompletionPort, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: empty batch", core.ErrInvalidArgument)
	}
	batch := make([]Task, len(tasks))
	for i, t := range tasks {
		t.Priority = priority
		batch[i] = t
	}

	port := core.NewCompletionPort()
	if err := m.current().SubmitAfter(dep, port, batch...); err != nil {
		return nil, err
	}
	return port, nil
}

// SubmitDelayed is SubmitBatch with the tasks queued only after delay has elapsed.
// The returned port can be waited on immediately.
func (m *TaskManager) SubmitDelayed(delay time.Duration, priority Priority, tasks ...Task) (*CompletionPort, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: empty batch", core.ErrInvalidArgument)
	}
	batch := make([]Task, len(tasks))
	for i, t := range tasks {
		t.Priority = priority
		batch[i] = t
	}

	port := core.NewCompletionPort()
	if err := m.current().SubmitDelayed(delay, port, batch...); err != nil {
		return nil, err
	}
	return port, nil
}

// NewSequencedRunner returns a lane on the current pool that runs its tasks one at a time
// in submission order. The runner stops accepting tasks when the manager shuts down.
func (m *TaskManager) NewSequencedRunner(name string) *TaskRunner {
	return core.NewSequencedTaskRunner(m.current(), name)
}

// NewParallelRunner returns a lane on the current pool that runs at most maxConcurrency
// of its tasks at a time.
func (m *TaskManager) NewParallelRunner(name string, maxConcurrency int) *TaskRunner {
	return core.NewParallelTaskRunner(m.current(), name, maxConcurrency)
}

// Wait blocks until port's outstanding count reaches zero. Task failures are not returned
// here; inspect port.HasFailed, port.FirstError or port.Err.
//
// Wait must be called by the submitting goroutine, never by a worker: a task that needs
// the results of other tasks forks them and returns, or is submitted with SubmitAfter.
// Calling Wait from a worker of this manager fails with ErrWaitOnWorker.
func (m *TaskManager) Wait(port *CompletionPort) error {
	if port == nil {
		return fmt.Errorf("%w: nil completion port", core.ErrInvalidArgument)
	}
	if m.current().IsWorkerGoroutine() {
		return core.ErrWaitOnWorker
	}
	port.Wait()
	return nil
}

// Run submits a batch and waits for it, returning the combined task failures.
func (m *TaskManager) Run(priority Priority, tasks ...Task) error {
	port, err := m.SubmitBatch(priority, tasks...)
	if err != nil {
		return err
	}
	if err := m.Wait(port); err != nil {
		return err
	}
	return port.Err()
}

// Name returns the manager's label.
func (m *TaskManager) Name() string {
	return m.config.Name
}

// IsRunning returns whether workers are running.
func (m *TaskManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// WorkerCount returns the number of workers of the current pool.
func (m *TaskManager) WorkerCount() int {
	return m.current().WorkerCount()
}

// DelayedTaskCount returns the number of delayed tasks not yet queued.
func (m *TaskManager) DelayedTaskCount() int {
	return m.current().DelayedTaskCount()
}

// QueuedTaskCount returns the number of tasks waiting in all queues.
func (m *TaskManager) QueuedTaskCount() int {
	return m.current().QueuedTaskCount()
}

// ActiveTaskCount returns the number of tasks currently executing.
func (m *TaskManager) ActiveTaskCount() int {
	return m.current().ActiveTaskCount()
}

// Stats returns current observability data for the pool.
func (m *TaskManager) Stats() core.PoolStats {
	return m.current().Stats()
}

// Workers returns per-worker snapshots.
func (m *TaskManager) Workers() []core.WorkerStats {
	return m.current().Workers()
}

// RecentTasks returns completed task execution records in newest-first order.
func (m *TaskManager) RecentTasks(limit int) []core.TaskExecutionRecord {
	return m.current().RecentTasks(limit)
}

// GetScheduler returns the scheduler backing the current pool.
func (m *TaskManager) GetScheduler() *core.TaskScheduler {
	return m.current()
}

// =============================================================================
// Default Task Manager Helper (Singleton)
// =============================================================================

var (
	defaultManager *TaskManager
	defaultMu      sync.Mutex
)

// InitDefault creates and starts the process-wide default manager. Calling it again
// before ShutdownDefault is a no-op.
func InitDefault(workers int, opts ...Option) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager != nil {
		return nil
	}

	m := New(append([]Option{WithName("default")}, opts...)...)
	if err := m.Start(workers); err != nil {
		return err
	}
	defaultManager = m
	return nil
}

// Default returns the process-wide manager.
// It panics if InitDefault has not been called.
func Default() *TaskManager {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager == nil {
		panic("default TaskManager not initialized. Call InitDefault() first.")
	}
	return defaultManager
}

// ShutdownDefault stops the process-wide manager.
func ShutdownDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultManager != nil {
		defaultManager.Shutdown()
		defaultManager = nil
	}
}
