package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	taskmanager "github.com/Swind/go-task-manager"
	"github.com/Swind/go-task-manager/core"
)

// treeShape describes one fork/join tree: every inner node forks Width children until
// Depth is reached, and every leaf spins for Spin iterations.
type treeShape struct {
	Depth int
	Width int
	Spin  int
}

func (s treeShape) validate() error {
	if s.Depth < 0 {
		return fmt.Errorf("depth must not be negative, got %d", s.Depth)
	}
	if s.Width <= 0 {
		return fmt.Errorf("width must be positive, got %d", s.Width)
	}
	if s.Spin < 0 {
		return fmt.Errorf("spin must not be negative, got %d", s.Spin)
	}
	return nil
}

// nodes returns the number of tasks one tree runs.
func (s treeShape) nodes() int {
	total, level := 0, 1
	for range s.Depth + 1 {
		total += level
		level *= s.Width
	}
	return total
}

// priorityMix holds relative weights of the three caller-visible priority classes.
type priorityMix map[core.Priority]int

// parseMix parses "high=1,normal=4,low=2". Missing classes get weight zero.
func parseMix(s string) (priorityMix, error) {
	mix := priorityMix{}
	total := 0
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, weight, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("mix entry %q: want name=weight", part)
		}
		p, err := core.ParsePriority(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("mix entry %q: %w", part, err)
		}
		w, err := strconv.Atoi(strings.TrimSpace(weight))
		if err != nil || w < 0 {
			return nil, fmt.Errorf("mix entry %q: weight must be a non-negative integer", part)
		}
		mix[p] += w
		total += w
	}
	if total == 0 {
		return nil, fmt.Errorf("mix %q has no positive weight", s)
	}
	return mix, nil
}

// sequence expands the mix into n priorities, interleaved in weight proportion.
func (m priorityMix) sequence(n int) []core.Priority {
	classes := make([]core.Priority, 0, len(m))
	total := 0
	for p, w := range m {
		if w > 0 {
			classes = append(classes, p)
			total += w
		}
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	// Smooth weighted round-robin
	current := make(map[core.Priority]int, len(classes))
	out := make([]core.Priority, n)
	for i := range out {
		best := classes[0]
		for _, p := range classes {
			current[p] += m[p]
			if current[p] > current[best] {
				best = p
			}
		}
		current[best] -= total
		out[i] = best
	}
	return out
}

type benchReport struct {
	Trees    int
	Tasks    int64
	Failed   int
	Elapsed  time.Duration
	PerClass map[core.Priority]time.Duration
}

// runWorkload submits trees root batches and joins every one of them.
func runWorkload(ctx context.Context, tm *taskmanager.TaskManager, shape treeShape, mix priorityMix, trees int) (benchReport, error) {
	report := benchReport{Trees: trees, PerClass: map[core.Priority]time.Duration{}}
	if trees <= 0 {
		return report, nil
	}

	var executed atomic.Int64
	type rootBatch struct {
		priority core.Priority
		port     *taskmanager.CompletionPort
		latency  time.Duration
	}

	start := time.Now()
	roots := make([]*rootBatch, 0, trees)
	var wg sync.WaitGroup
	for _, p := range mix.sequence(trees) {
		port, err := tm.SubmitBatch(p, newTreeTask(shape, shape.Depth, &executed))
		if err != nil {
			return report, fmt.Errorf("submit tree: %w", err)
		}
		r := &rootBatch{priority: p, port: port}
		roots = append(roots, r)

		submitted := time.Now()
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-r.port.Done():
				r.latency = time.Since(submitted)
			case <-ctx.Done():
			}
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for _, r := range roots {
		if r.port.HasFailed() {
			report.Failed++
		}
		if r.latency > report.PerClass[r.priority] {
			report.PerClass[r.priority] = r.latency
		}
	}

	report.Elapsed = time.Since(start)
	report.Tasks = executed.Load()
	return report, nil
}

func newTreeTask(shape treeShape, depth int, executed *atomic.Int64) taskmanager.Task {
	return taskmanager.NewNamedTask("tree-node", taskmanager.PriorityNormal, func(tc *taskmanager.TaskContext) error {
		executed.Add(1)
		if depth == 0 {
			spin(shape.Spin)
			return nil
		}
		children := make([]taskmanager.Task, shape.Width)
		for i := range children {
			child := newTreeTask(shape, depth-1, executed)
			child.Priority = tc.Priority()
			children[i] = child
		}
		return tc.Fork(children...)
	})
}

var spinSink atomic.Uint64

func spin(n int) {
	h := fnv.New64a()
	var buf [8]byte
	for i := range n {
		buf[0] = byte(i)
		_, _ = h.Write(buf[:])
	}
	spinSink.Add(h.Sum64())
}

func (r benchReport) write(w io.Writer, stats core.PoolStats) {
	fmt.Fprintf(w, "trees:      %d (%d failed)\n", r.Trees, r.Failed)
	fmt.Fprintf(w, "tasks:      %d\n", r.Tasks)
	fmt.Fprintf(w, "elapsed:    %s\n", r.Elapsed.Round(time.Microsecond))
	if secs := r.Elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(w, "throughput: %.0f tasks/s\n", float64(r.Tasks)/secs)
	}
	for _, p := range []core.Priority{core.PriorityHigh, core.PriorityNormal, core.PriorityLow} {
		if d, ok := r.PerClass[p]; ok {
			fmt.Fprintf(w, "slowest %-6s tree: %s\n", p, d.Round(time.Microsecond))
		}
	}
	fmt.Fprintf(w, "pool:       %d workers, %d executed, %d failed, %d discarded\n",
		stats.Workers, stats.Executed, stats.Failed, stats.Discarded)
}
