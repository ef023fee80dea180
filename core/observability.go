package core

import "time"

// TaskExecutionRecord captures a completed task execution event.
type TaskExecutionRecord struct {
	TaskID      TaskID
	Name        string
	ManagerName string
	Priority    Priority
	PortID      string
	WorkerID    int
	StartedAt   time.Time
	FinishedAt  time.Time
	Duration    time.Duration
	Failed      bool
	Panicked    bool
}

// PoolStats represents runtime observability state for a task manager's worker pool.
type PoolStats struct {
	Name      string
	Workers   int
	Queued    QueueDepths
	Active    int
	Executed  int64
	Failed    int64
	Discarded int64
	Delayed   int
	Running   bool
}

// WorkerStats is a snapshot of one worker.
type WorkerStats struct {
	ID       int
	State    WorkerState
	Executed int64
	Failed   int64
}
