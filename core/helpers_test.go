package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T, workers int, configure ...func(*SchedulerConfig)) *TaskScheduler {
	t.Helper()
	config := DefaultSchedulerConfig()
	config.Name = t.Name()
	config.Logger = NewNoOpLogger()
	config.PanicHandler = &DefaultPanicHandler{Logger: config.Logger}
	config.RejectedTaskHandler = &DefaultRejectedTaskHandler{Logger: config.Logger}
	config.FailureHandler = &DefaultFailureHandler{Logger: config.Logger}
	for _, fn := range configure {
		fn(config)
	}

	s := NewTaskScheduler(config)
	if workers > 0 {
		if err := s.Start(context.Background(), workers); err != nil {
			t.Fatalf("Start(%d) failed: %v", workers, err)
		}
	}
	t.Cleanup(s.Shutdown)
	return s
}

func waitPort(t *testing.T, port *CompletionPort, timeout time.Duration) {
	t.Helper()
	select {
	case <-port.Done():
	case <-time.After(timeout):
		t.Fatalf("port not completed within %v (outstanding=%d)", timeout, port.Outstanding())
	}
}

func waitClosed(t *testing.T, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("%s did not happen within %v", what, timeout)
	}
}

func noop(tc *TaskContext) error { return nil }

// recordingPanicHandler captures HandlePanic calls.
type recordingPanicHandler struct {
	mu     sync.Mutex
	panics []any
}

func (h *recordingPanicHandler) HandlePanic(ctx context.Context, managerName string, workerID int, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.panics = append(h.panics, panicInfo)
}

func (h *recordingPanicHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.panics)
}

// recordingFailureHandler captures fire-and-forget failures.
type recordingFailureHandler struct {
	ch chan *TaskError
}

func (h *recordingFailureHandler) HandleTaskFailure(managerName string, err *TaskError) {
	h.ch <- err
}

// recordingRejectedHandler counts rejected submissions.
type recordingRejectedHandler struct {
	mu      sync.Mutex
	reasons []string
}

func (h *recordingRejectedHandler) HandleRejectedTask(managerName string, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reasons = append(h.reasons, reason)
}

func (h *recordingRejectedHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.reasons)
}
