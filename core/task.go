package core

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TaskFunc is the body of a task. A returned error or a panic marks the task as failed;
// neither escapes the worker that runs it.
type TaskFunc func(tc *TaskContext) error

// =============================================================================
// Priority: dequeue precedence of a task
// =============================================================================

type Priority int

const (
	// PriorityHigh: latency-sensitive work, e.g. render command generation for the next frame
	PriorityHigh Priority = iota

	// PriorityNormal: Default priority
	PriorityNormal

	// PriorityLow: background work such as asset processing
	PriorityLow

	// PriorityInternal is reserved for scheduler bookkeeping. It is drained before every
	// other class and is rejected by all public submission entry points.
	PriorityInternal
)

// numPriorities is the number of priority classes, Internal included.
const numPriorities = 4

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityInternal:
		return "internal"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether p names one of the four priority classes.
func (p Priority) Valid() bool {
	return p >= PriorityHigh && p <= PriorityInternal
}

// ParsePriority parses the caller-visible classes "high", "normal" and "low". An empty
// string means normal. "internal" is rejected since callers cannot submit at that class.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "high":
		return PriorityHigh, nil
	case "normal", "":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	}
	return 0, fmt.Errorf("%w: unknown priority %q", ErrInvalidArgument, s)
}

// =============================================================================
// Task: immutable unit of work
// =============================================================================

// Task is a single schedulable unit of work. Once submitted it is never mutated and never
// executed more than once.
type Task struct {
	// Name is used for logs, metrics and execution history. Optional.
	Name     string
	Priority Priority
	Body     TaskFunc
}

// NewTask creates a Task with the given priority and body.
func NewTask(priority Priority, body TaskFunc) Task {
	return Task{Priority: priority, Body: body}
}

// NewNamedTask creates a named Task.
func NewNamedTask(name string, priority Priority, body TaskFunc) Task {
	return Task{Name: name, Priority: priority, Body: body}
}

// validateTask checks a task supplied by a caller outside the scheduler.
func validateTask(t Task) error {
	if t.Body == nil {
		return fmt.Errorf("%w: task %q has a nil body", ErrInvalidArgument, t.Name)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: task %q has invalid priority %d", ErrInvalidArgument, t.Name, int(t.Priority))
	}
	if t.Priority == PriorityInternal {
		return fmt.Errorf("%w: internal priority is reserved for the scheduler", ErrInvalidArgument)
	}
	return nil
}

// =============================================================================
// TaskID
// =============================================================================

// TaskID identifies one submitted task in execution history and logs.
type TaskID ulid.ULID

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// GenerateTaskID returns a new, time-ordered TaskID.
func GenerateTaskID() TaskID {
	return TaskID(newULID())
}

func newULID() ulid.ULID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

func (id TaskID) String() string {
	return ulid.ULID(id).String()
}

func (id TaskID) IsZero() bool {
	return ulid.ULID(id) == ulid.ULID{}
}
