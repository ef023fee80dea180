package core

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestSequencedTaskRunner_RunsInOrder verifies sequenced execution
// Given: a sequenced runner on a pool of four workers
// When: twenty tasks are submitted with mixed priorities
// Then: they run one at a time in submission order
func TestSequencedTaskRunner_RunsInOrder(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, 4)
	r := NewSequencedTaskRunner(s, "seq")
	var (
		mu       sync.Mutex
		order    []int
		inFlight atomic.Int32
		overlap  atomic.Bool
	)
	priorities := []Priority{PriorityLow, PriorityHigh, PriorityNormal}
	tasks := make([]Task, 20)
	for i := range tasks {
		tasks[i] = NewTask(priorities[i%len(priorities)], func(tc *TaskContext) error {
			if inFlight.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			inFlight.Add(-1)
			return nil
		})
	}

	// Act
	port, err := r.SubmitBatch(tasks...)
	if err != nil {
		t.Fatalf("SubmitBatch failed: %v", err)
	}
	waitPort(t, port, 5*time.Second)

	// Assert
	if overlap.Load() {
		t.Error("sequenced tasks overlapped")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(tasks) {
		t.Fatalf("ran %d tasks, want %d", len(order), len(tasks))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestParallelTaskRunner_RespectsLimit(t *testing.T) {
	s := newTestScheduler(t, 6)
	r := NewParallelTaskRunner(s, "par", 2)
	var inFlight, peak atomic.Int32

	tasks := make([]Task, 12)
	for i := range tasks {
		tasks[i] = NewTask(PriorityNormal, func(tc *TaskContext) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		})
	}

	port, err := r.SubmitBatch(tasks...)
	if err != nil {
		t.Fatalf("SubmitBatch failed: %v", err)
	}
	waitPort(t, port, 5*time.Second)

	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
	if r.RunningTaskCount() != 0 || r.PendingTaskCount() != 0 {
		t.Errorf("runner not idle: running=%d pending=%d", r.RunningTaskCount(), r.PendingTaskCount())
	}
}

func TestParallelTaskRunner_Defaults(t *testing.T) {
	s := newTestScheduler(t, 0)
	r := NewParallelTaskRunner(s, "", 0)

	if r.MaxConcurrency() != 1 {
		t.Errorf("MaxConcurrency() = %d, want 1", r.MaxConcurrency())
	}
	if want := s.Name() + "-runner"; r.Name() != want {
		t.Errorf("Name() = %q, want %q", r.Name(), want)
	}
}

// TestTaskRunner_ShutdownDiscardsPending verifies runner shutdown
// Given: a sequenced runner whose first task blocks
// When: the runner shuts down
// Then: pending tasks are discarded, the running task finishes and later submissions fail
func TestTaskRunner_ShutdownDiscardsPending(t *testing.T) {
	// Arrange
	s := newTestScheduler(t, 2)
	r := NewSequencedTaskRunner(s, "seq")
	started := make(chan struct{})
	release := make(chan struct{})
	var ran atomic.Int32
	port, err := r.SubmitBatch(
		NewTask(PriorityNormal, func(tc *TaskContext) error {
			close(started)
			<-release
			return nil
		}),
		NewTask(PriorityNormal, func(tc *TaskContext) error { ran.Add(1); return nil }),
		NewTask(PriorityNormal, func(tc *TaskContext) error { ran.Add(1); return nil }),
	)
	if err != nil {
		t.Fatalf("SubmitBatch failed: %v", err)
	}
	waitClosed(t, started, 2*time.Second, "first task start")

	// Act
	r.Shutdown()
	close(release)
	waitPort(t, port, 2*time.Second)

	// Assert
	if ran.Load() != 0 {
		t.Errorf("%d pending tasks ran after runner shutdown", ran.Load())
	}
	if !r.IsClosed() {
		t.Error("IsClosed() = false after Shutdown")
	}
	if err := r.Submit(nil, NewTask(PriorityNormal, noop)); !errors.Is(err, ErrShutdown) {
		t.Errorf("Submit after Shutdown error = %v, want ErrShutdown", err)
	}
	if got := s.Stats().Discarded; got != 2 {
		t.Errorf("Discarded = %d, want 2", got)
	}
}

func TestTaskRunner_ClosedWithScheduler(t *testing.T) {
	s := newTestScheduler(t, 1)
	r := NewSequencedTaskRunner(s, "seq")
	s.Shutdown()

	if !r.IsClosed() {
		t.Error("IsClosed() = false after scheduler shutdown")
	}
	if err := r.Submit(nil, NewTask(PriorityNormal, noop)); !errors.Is(err, ErrShutdown) {
		t.Errorf("Submit error = %v, want ErrShutdown", err)
	}
}

func TestTaskRunner_RejectsInvalidTasks(t *testing.T) {
	s := newTestScheduler(t, 0)
	r := NewSequencedTaskRunner(s, "seq")

	if err := r.Submit(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty Submit error = %v", err)
	}
	if err := r.Submit(nil, NewTask(PriorityInternal, noop)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("internal Submit error = %v", err)
	}
}
