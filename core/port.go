package core

import (
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid/v2"
)

// CompletionPort is a single-use join primitive for one batch of tasks and everything
// forked from it. Outstanding reaches zero exactly once, when every registered task has
// finished running or has been discarded by shutdown; waiters are released at that point.
//
// The port is shared by the submitter and every task in the batch; the garbage collector
// frees it once the last of them drops its reference.
type CompletionPort struct {
	id ulid.ULID

	// outstanding mirrors the count for lock-free reads; mutations happen under mu so
	// that Register can never revive a completed port.
	outstanding atomic.Int64
	failed      atomic.Bool

	mu         sync.Mutex
	completed  bool
	done       chan struct{}
	first      *TaskError
	errs       *multierror.Error
	onComplete []func()
}

// NewCompletionPort creates an empty port. Register must be called before the port is
// waited on; a port that never had tasks registered never completes.
func NewCompletionPort() *CompletionPort {
	return &CompletionPort{
		id:   newULID(),
		done: make(chan struct{}),
	}
}

func (p *CompletionPort) ID() string {
	return p.id.String()
}

// Register adds n outstanding tasks. It fails with ErrPortCompleted once the port has
// reached zero.
func (p *CompletionPort) Register(n int) error {
	if n <= 0 {
		return ErrInvalidArgument
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.completed {
		return ErrPortCompleted
	}
	p.outstanding.Add(int64(n))
	return nil
}

// Decrement marks one registered task as finished. When the count reaches zero all
// waiters are released, completion hooks run on the calling goroutine and true is returned.
func (p *CompletionPort) Decrement() bool {
	p.mu.Lock()
	if p.outstanding.Load() <= 0 {
		p.mu.Unlock()
		panic("CompletionPort: Decrement called with no outstanding tasks")
	}
	var hooks []func()
	reachedZero := p.outstanding.Add(-1) == 0
	if reachedZero {
		p.completed = true
		close(p.done)
		hooks = p.onComplete
		p.onComplete = nil
	}
	p.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
	return reachedZero
}

// Wait blocks until the outstanding count reaches zero. Any number of goroutines may wait.
// It must not be called from a worker on a port that worker might have to help complete;
// TaskManager.Wait enforces this.
func (p *CompletionPort) Wait() {
	<-p.done
}

// Done returns a channel closed when the port completes.
func (p *CompletionPort) Done() <-chan struct{} {
	return p.done
}

// Outstanding returns the number of registered tasks that have not finished.
func (p *CompletionPort) Outstanding() int64 {
	return p.outstanding.Load()
}

// IsCompleted reports whether the count has reached zero.
func (p *CompletionPort) IsCompleted() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// HasFailed reports whether any task of the batch recorded a failure.
func (p *CompletionPort) HasFailed() bool {
	return p.failed.Load()
}

// FirstError returns the first failure recorded on the port, or nil.
func (p *CompletionPort) FirstError() *TaskError {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.first
}

// Err returns every recorded failure combined into one error, or nil.
func (p *CompletionPort) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errs.ErrorOrNil()
}

func (p *CompletionPort) recordFailure(err *TaskError) {
	err.PortID = p.ID()
	p.mu.Lock()
	if p.first == nil {
		p.first = err
	}
	p.errs = multierror.Append(p.errs, err)
	p.failed.Store(true)
	p.mu.Unlock()
}

// whenComplete runs fn once the port completes; immediately if it already has.
func (p *CompletionPort) whenComplete(fn func()) {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		fn()
		return
	}
	p.onComplete = append(p.onComplete, fn)
	p.mu.Unlock()
}
