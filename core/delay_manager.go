package core

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"
)

// delayedBatch holds registered items waiting for their release time.
type delayedBatch struct {
	runAt time.Time
	items []TaskItem
	index int // for heap interface
}

// delayedHeap implements heap.Interface ordered by release time.
type delayedHeap []*delayedBatch

func (h delayedHeap) Len() int           { return len(h) }
func (h delayedHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }
func (h delayedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedHeap) Push(x any) {
	n := len(*h)
	item := x.(*delayedBatch)
	item.index = n
	*h = append(*h, item)
}

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h delayedHeap) peek() *delayedBatch {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// delayManager releases delayed batches into the scheduler from a single timer goroutine.
// The goroutine starts with the first delayed submission.
type delayManager struct {
	release func(items []TaskItem)

	mu      sync.Mutex
	pq      delayedHeap
	pending int
	stopped bool

	wakeup chan struct{}
	start  sync.Once
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newDelayManager(release func(items []TaskItem)) *delayManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &delayManager{
		release: release,
		wakeup:  make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// add schedules items for release after delay. It returns false once stopped.
func (dm *delayManager) add(delay time.Duration, items []TaskItem) bool {
	dm.mu.Lock()
	if dm.stopped {
		dm.mu.Unlock()
		return false
	}
	b := &delayedBatch{runAt: time.Now().Add(delay), items: items}
	heap.Push(&dm.pq, b)
	dm.pending += len(items)
	first := b.index == 0
	dm.mu.Unlock()

	dm.start.Do(func() { go dm.loop() })

	if first {
		select {
		case dm.wakeup <- struct{}{}:
		default:
		}
	}
	return true
}

func (dm *delayManager) loop() {
	defer close(dm.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		next, ok := dm.nextRun()
		if !ok {
			// No batches, wait for a wakeup
			next = 1000 * time.Hour
		}
		timer.Reset(next)

		select {
		case <-dm.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			dm.releaseExpired()
		case <-dm.wakeup:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// nextRun returns how long to wait for the earliest batch; zero when it is due.
func (dm *delayManager) nextRun() (time.Duration, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	b := dm.pq.peek()
	if b == nil {
		return 0, false
	}
	return max(time.Until(b.runAt), 0), true
}

func (dm *delayManager) releaseExpired() {
	dm.mu.Lock()
	now := time.Now()
	var expired []*delayedBatch
	for dm.pq.Len() > 0 {
		b := dm.pq.peek()
		if b.runAt.After(now) {
			break
		}
		heap.Pop(&dm.pq)
		dm.pending -= len(b.items)
		expired = append(expired, b)
	}
	dm.mu.Unlock()

	// Release outside the lock
	for _, b := range expired {
		dm.release(b.items)
	}
}

// stop halts the timer goroutine and returns every item that was never released.
func (dm *delayManager) stop() []TaskItem {
	dm.mu.Lock()
	if dm.stopped {
		dm.mu.Unlock()
		return nil
	}
	dm.stopped = true
	var items []TaskItem
	for _, b := range dm.pq {
		items = append(items, b.items...)
	}
	dm.pq = nil
	dm.pending = 0
	dm.mu.Unlock()

	dm.cancel()
	started := true
	dm.start.Do(func() { started = false })
	if started {
		<-dm.done
	}
	return items
}

// count returns the number of delayed tasks not yet released.
func (dm *delayManager) count() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.pending
}

// SubmitDelayed registers tasks on port immediately and queues them after delay.
// Waiting on port is valid as soon as SubmitDelayed returns; if the scheduler shuts down
// first, the tasks are discarded and port is still released.
func (s *TaskScheduler) SubmitDelayed(delay time.Duration, port *CompletionPort, tasks ...Task) error {
	if delay <= 0 {
		return s.Submit(port, tasks...)
	}
	if len(tasks) == 0 {
		return fmt.Errorf("%w: no tasks submitted", ErrInvalidArgument)
	}
	for _, t := range tasks {
		if err := validateTask(t); err != nil {
			return err
		}
	}

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
	s.mu.Unlock()

	items := make([]TaskItem, len(tasks))
	for i, t := range tasks {
		items[i] = TaskItem{ID: GenerateTaskID(), Task: t, Port: port}
	}
	if !s.delays.add(delay, items) {
		// Shutdown won the race after registration
		s.discard(items)
		return ErrShutdown
	}
	return nil
}

// DelayedTaskCount returns the number of delayed tasks not yet queued.
func (s *TaskScheduler) DelayedTaskCount() int {
	return s.delays.count()
}
