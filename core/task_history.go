package core

import (
	"path"
	"reflect"
	"runtime"
	"sync"

	"github.com/eapache/queue"
)

const defaultTaskHistoryCapacity = 100

// executionHistory keeps the last capacity execution records, oldest at the head.
type executionHistory struct {
	mu       sync.Mutex
	records  *queue.Queue
	capacity int
}

func newExecutionHistory(capacity int) *executionHistory {
	if capacity < 1 {
		capacity = defaultTaskHistoryCapacity
	}
	return &executionHistory{records: queue.New(), capacity: capacity}
}

func (h *executionHistory) Add(record TaskExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.records.Length() == h.capacity {
		h.records.Remove()
	}
	h.records.Add(record)
}

// Recent returns up to limit records, newest first. limit <= 0 means all.
func (h *executionHistory) Recent(limit int) []TaskExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.records.Length()
	if n == 0 {
		return nil
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]TaskExecutionRecord, limit)
	for i := range out {
		out[i] = h.records.Get(-1 - i).(TaskExecutionRecord)
	}
	return out
}

func (h *executionHistory) Last() (TaskExecutionRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.records.Length() == 0 {
		return TaskExecutionRecord{}, false
	}
	return h.records.Get(-1).(TaskExecutionRecord), true
}

// resolveTaskName labels a task for history, errors and logs: its Name, or the symbol of
// its body with the import path trimmed ("core.TestFoo.func1").
func resolveTaskName(task Task) string {
	if task.Name != "" {
		return task.Name
	}
	if task.Body == nil {
		return "anonymous"
	}
	fn := runtime.FuncForPC(reflect.ValueOf(task.Body).Pointer())
	if fn == nil || fn.Name() == "" {
		return "anonymous"
	}
	return path.Base(fn.Name())
}
