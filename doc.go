// Package taskmanager provides a fork/join task scheduler over a fixed pool of worker
// goroutines.
//
// Work is submitted as tasks with one of three priority classes (High, Normal, Low). Idle
// workers ask a TaskEvaluator which class to dequeue from next; the default evaluator is
// strict priority with bounded starvation of lower classes. A batch submitted with
// SubmitBatch reports to a CompletionPort, which the submitter joins with Wait.
//
// # Quick Start
//
//	tm := taskmanager.New()
//	if err := tm.Start(taskmanager.AutoWorkers); err != nil {
//		return err
//	}
//	defer tm.Shutdown()
//
//	port, err := tm.SubmitBatchFuncs(taskmanager.PriorityNormal,
//		func(tc *taskmanager.TaskContext) error { return loadMeshes(tc) },
//		func(tc *taskmanager.TaskContext) error { return loadTextures(tc) },
//	)
//	if err != nil {
//		return err
//	}
//	if err := tm.Wait(port); err != nil {
//		return err
//	}
//	if port.HasFailed() {
//		return port.FirstError()
//	}
//
// # Fork/Join
//
// A running task may fork sub-tasks onto its own completion port with TaskContext.Fork.
// The port counts them before Fork returns, so the submitter's Wait returns only after the
// whole tree has finished:
//
//	var build taskmanager.TaskFunc
//	build = func(tc *taskmanager.TaskContext) error {
//		if leaf() {
//			return compile(tc)
//		}
//		return tc.Fork(
//			taskmanager.NewTask(taskmanager.PriorityNormal, build),
//			taskmanager.NewTask(taskmanager.PriorityNormal, build),
//		)
//	}
//
// Tasks never block on other tasks. Calling Wait from a worker fails with ErrWaitOnWorker;
// fork and return, or chain work with SubmitAfter.
//
// # Failures
//
// A task fails by returning an error or panicking. The failure is recorded on its
// completion port and never stops the worker or sibling tasks; HasFailed, FirstError and
// Err report it after the join. Shutdown discards queued tasks and records
// ErrTaskDiscarded for each, so waiters are always released.
//
// For more details, see https://github.com/Swind/go-task-manager
package taskmanager
