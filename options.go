package taskmanager

import "github.com/Swind/go-task-manager/core"

// Option configures a TaskManager.
type Option func(*TaskManager)

// WithName labels logs and metrics.
func WithName(name string) Option {
	return func(m *TaskManager) { m.config.Name = name }
}

// WithEvaluator replaces the default weighted evaluator.
func WithEvaluator(e core.TaskEvaluator) Option {
	return func(m *TaskManager) { m.config.Evaluator = e }
}

// WithQuotas uses a WeightedEvaluator with the given anti-starvation quotas.
func WithQuotas(highQuota, normalQuota int) Option {
	return func(m *TaskManager) { m.config.Evaluator = core.NewWeightedEvaluator(highQuota, normalQuota) }
}

// WithLogger sets the logger. The default panic, rejection and failure handlers log
// through it unless they are replaced.
func WithLogger(l core.Logger) Option {
	return func(m *TaskManager) {
		m.config.Logger = l
		if _, ok := m.config.PanicHandler.(*core.DefaultPanicHandler); ok {
			m.config.PanicHandler = &core.DefaultPanicHandler{Logger: l}
		}
		if _, ok := m.config.RejectedTaskHandler.(*core.DefaultRejectedTaskHandler); ok {
			m.config.RejectedTaskHandler = &core.DefaultRejectedTaskHandler{Logger: l}
		}
		if _, ok := m.config.FailureHandler.(*core.DefaultFailureHandler); ok {
			m.config.FailureHandler = &core.DefaultFailureHandler{Logger: l}
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics core.Metrics) Option {
	return func(m *TaskManager) { m.config.Metrics = metrics }
}

// WithPanicHandler sets the panic handler.
func WithPanicHandler(h core.PanicHandler) Option {
	return func(m *TaskManager) { m.config.PanicHandler = h }
}

// WithRejectedTaskHandler sets the handler for submissions rejected during shutdown.
func WithRejectedTaskHandler(h core.RejectedTaskHandler) Option {
	return func(m *TaskManager) { m.config.RejectedTaskHandler = h }
}

// WithFailureHandler sets the handler for failures of fire-and-forget tasks.
func WithFailureHandler(h core.FailureHandler) Option {
	return func(m *TaskManager) { m.config.FailureHandler = h }
}

// WithReservedThreads sets how many hardware threads AutoWorkers leaves free.
func WithReservedThreads(n int) Option {
	return func(m *TaskManager) {
		if n >= 0 {
			m.reserved = n
		}
	}
}

// WithHistorySize sets the capacity of the execution history.
func WithHistorySize(n int) Option {
	return func(m *TaskManager) { m.config.HistorySize = n }
}
