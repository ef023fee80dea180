package core

const (
	// DefaultHighQuota is the number of consecutive High picks after which a pending
	// Normal (or Low) task is picked once.
	DefaultHighQuota = 8

	// DefaultNormalQuota is the number of consecutive Normal picks after which a pending
	// Low task is picked once.
	DefaultNormalQuota = 4
)

// TaskEvaluator decides which priority class a worker dequeues from next.
//
// Select is always called with the scheduler lock held, so implementations are never
// called concurrently and may keep unsynchronized state. It must return a class whose depth
// is non-zero, or false when every queue is empty.
type TaskEvaluator interface {
	Select(depths QueueDepths) (Priority, bool)
}

// =============================================================================
// StrictEvaluator
// =============================================================================

// StrictEvaluator always picks the highest non-empty class. Lower classes may starve.
type StrictEvaluator struct{}

func (StrictEvaluator) Select(depths QueueDepths) (Priority, bool) {
	for _, p := range []Priority{PriorityInternal, PriorityHigh, PriorityNormal, PriorityLow} {
		if depths[p] > 0 {
			return p, true
		}
	}
	return 0, false
}

// =============================================================================
// WeightedEvaluator
// =============================================================================

// WeightedEvaluator is strict priority with bounded starvation.
//
// Internal tasks always go first. After HighQuota consecutive High picks the next pick is
// Normal (or Low when Normal is empty), provided one of them has work. Independently, after
// NormalQuota consecutive Normal picks the next non-High pick is Low when Low has work.
// A quota <= 0 disables the corresponding yield.
type WeightedEvaluator struct {
	HighQuota   int
	NormalQuota int

	highRun   int
	normalRun int
}

// NewWeightedEvaluator creates an evaluator with the given quotas.
func NewWeightedEvaluator(highQuota, normalQuota int) *WeightedEvaluator {
	return &WeightedEvaluator{HighQuota: highQuota, NormalQuota: normalQuota}
}

// NewDefaultEvaluator returns a WeightedEvaluator with the default quotas.
func NewDefaultEvaluator() *WeightedEvaluator {
	return NewWeightedEvaluator(DefaultHighQuota, DefaultNormalQuota)
}

func (e *WeightedEvaluator) Select(depths QueueDepths) (Priority, bool) {
	if depths[PriorityInternal] > 0 {
		return PriorityInternal, true
	}

	lowerPending := depths[PriorityNormal] > 0 || depths[PriorityLow] > 0
	if depths[PriorityHigh] > 0 {
		if !(e.HighQuota > 0 && e.highRun >= e.HighQuota && lowerPending) {
			e.highRun++
			return PriorityHigh, true
		}
	}
	e.highRun = 0

	if depths[PriorityNormal] > 0 {
		if !(e.NormalQuota > 0 && e.normalRun >= e.NormalQuota && depths[PriorityLow] > 0) {
			e.normalRun++
			return PriorityNormal, true
		}
	}
	if depths[PriorityLow] > 0 {
		e.normalRun = 0
		return PriorityLow, true
	}
	return 0, false
}

func (e *WeightedEvaluator) clone() TaskEvaluator {
	c := *e
	return &c
}

// Reset clears the consecutive-pick counters.
func (e *WeightedEvaluator) Reset() {
	e.highRun = 0
	e.normalRun = 0
}
