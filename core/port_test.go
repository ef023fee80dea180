package core

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// TestCompletionPort_CountsToZero verifies the basic join protocol
// Given: a port with three registered tasks
// When: it is decremented three times
// Then: only the last decrement completes it and Wait returns
func TestCompletionPort_CountsToZero(t *testing.T) {
	// Arrange
	p := NewCompletionPort()
	if err := p.Register(3); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Act & Assert
	if p.Decrement() || p.Decrement() {
		t.Fatal("Decrement reported completion early")
	}
	if p.IsCompleted() {
		t.Fatal("IsCompleted() = true with one task outstanding")
	}
	if got := p.Outstanding(); got != 1 {
		t.Fatalf("Outstanding() = %d, want 1", got)
	}
	if !p.Decrement() {
		t.Fatal("last Decrement did not report completion")
	}
	waitPort(t, p, time.Second)
	if p.Outstanding() != 0 || !p.IsCompleted() {
		t.Errorf("after completion: outstanding=%d completed=%v", p.Outstanding(), p.IsCompleted())
	}
	if p.HasFailed() || p.FirstError() != nil || p.Err() != nil {
		t.Error("clean port reports failure")
	}
}

func TestCompletionPort_RegisterErrors(t *testing.T) {
	p := NewCompletionPort()
	if err := p.Register(0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Register(0) error = %v, want ErrInvalidArgument", err)
	}

	if err := p.Register(1); err != nil {
		t.Fatalf("Register(1) failed: %v", err)
	}
	p.Decrement()

	err := p.Register(1)
	if !errors.Is(err, ErrPortCompleted) {
		t.Errorf("Register after completion error = %v, want ErrPortCompleted", err)
	}
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ErrPortCompleted should wrap ErrInvalidArgument")
	}
}

func TestCompletionPort_DecrementBelowZeroPanics(t *testing.T) {
	p := NewCompletionPort()
	defer func() {
		if recover() == nil {
			t.Error("Decrement on empty port did not panic")
		}
	}()
	p.Decrement()
}

// TestCompletionPort_ManyWaiters verifies every waiter is released
// Given: five goroutines waiting on one port
// When: the port completes
// Then: all five return
func TestCompletionPort_ManyWaiters(t *testing.T) {
	// Arrange
	p := NewCompletionPort()
	_ = p.Register(1)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Wait()
		}()
	}

	// Act
	p.Decrement()

	// Assert
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	waitClosed(t, done, time.Second, "release of all waiters")
}

func TestCompletionPort_RecordsFailures(t *testing.T) {
	p := NewCompletionPort()
	_ = p.Register(2)

	first := &TaskError{Task: "first", Err: errors.New("one")}
	second := &TaskError{Task: "second", Err: errors.New("two")}
	p.recordFailure(first)
	p.recordFailure(second)

	if !p.HasFailed() {
		t.Fatal("HasFailed() = false")
	}
	if p.FirstError() != first {
		t.Errorf("FirstError() = %v, want the first failure", p.FirstError())
	}
	if first.PortID != p.ID() {
		t.Errorf("PortID = %q, want %q", first.PortID, p.ID())
	}
	err := p.Err()
	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("Err() = %v, want a TaskError inside", err)
	}
	if !errors.Is(err, second.Err) {
		t.Error("Err() does not include the second failure")
	}
}

func TestCompletionPort_WhenComplete(t *testing.T) {
	p := NewCompletionPort()
	_ = p.Register(1)

	var calls []string
	p.whenComplete(func() { calls = append(calls, "registered early") })
	p.Decrement()
	p.whenComplete(func() { calls = append(calls, "registered late") })

	if len(calls) != 2 || calls[0] != "registered early" || calls[1] != "registered late" {
		t.Errorf("hooks ran as %v", calls)
	}
}

func TestCompletionPort_UniqueIDs(t *testing.T) {
	a, b := NewCompletionPort(), NewCompletionPort()
	if a.ID() == b.ID() {
		t.Errorf("two ports share id %s", a.ID())
	}
}
