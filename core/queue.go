package core

import (
	"github.com/eapache/queue"
)

// TaskItem is a task waiting in a queue together with the port it reports to.
// Port is nil for fire-and-forget submissions.
type TaskItem struct {
	ID   TaskID
	Task Task
	Port *CompletionPort

	// onDiscard runs when Shutdown drops the item before it ran.
	onDiscard func()
	// onDone runs after the item ran or was discarded, once its port was decremented.
	onDone func()
}

// QueueDepths holds the number of pending tasks per priority class, indexed by Priority.
type QueueDepths [numPriorities]int

// Total returns the number of pending tasks over all classes.
func (d QueueDepths) Total() int {
	n := 0
	for _, v := range d {
		n += v
	}
	return n
}

// =============================================================================
// PriorityQueues: one FIFO ring buffer per priority class
// =============================================================================

// PriorityQueues holds the four pending-task queues. It is not safe for concurrent use;
// TaskScheduler guards it with its own mutex so that the evaluator sees a consistent view
// of all four depths.
type PriorityQueues struct {
	queues [numPriorities]*queue.Queue
}

func NewPriorityQueues() *PriorityQueues {
	q := &PriorityQueues{}
	for i := range q.queues {
		q.queues[i] = queue.New()
	}
	return q
}

func (q *PriorityQueues) Push(item TaskItem) {
	q.queues[item.Task.Priority].Add(item)
}

// Pop removes the head of the given class. FIFO within a class.
func (q *PriorityQueues) Pop(p Priority) (TaskItem, bool) {
	if !p.Valid() {
		return TaskItem{}, false
	}
	pq := q.queues[p]
	if pq.Length() == 0 {
		return TaskItem{}, false
	}
	return pq.Remove().(TaskItem), true
}

// Peek returns the head of the given class without removing it.
func (q *PriorityQueues) Peek(p Priority) (TaskItem, bool) {
	if !p.Valid() {
		return TaskItem{}, false
	}
	pq := q.queues[p]
	if pq.Length() == 0 {
		return TaskItem{}, false
	}
	return pq.Peek().(TaskItem), true
}

func (q *PriorityQueues) Len(p Priority) int {
	if !p.Valid() {
		return 0
	}
	return q.queues[p].Length()
}

func (q *PriorityQueues) Depths() QueueDepths {
	var d QueueDepths
	for i, pq := range q.queues {
		d[i] = pq.Length()
	}
	return d
}

func (q *PriorityQueues) IsEmpty() bool {
	return q.Depths().Total() == 0
}

// Clear empties every queue and returns the removed items in priority order,
// FIFO within each class.
func (q *PriorityQueues) Clear() []TaskItem {
	var out []TaskItem
	for i, pq := range q.queues {
		for pq.Length() > 0 {
			out = append(out, pq.Remove().(TaskItem))
		}
		// Fresh buffer to release the grown backing array
		q.queues[i] = queue.New()
	}
	return out
}
