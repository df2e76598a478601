// Package threadpool provides a general-purpose worker pool that
// executes opaque units of work on a fixed set of long-lived workers,
// with per-task cancellation and drain-to-quiescence.
//
// Design goals
//
// The package is designed around the following principles:
//
//   - A small, explicit task state machine as the correctness backbone
//     of cancellation
//   - Strict FIFO ordering with no scheduling policy on top
//   - Deterministic shutdown: stop, drain, join
//   - A thin adapter surface so an external asynchronous-I/O runtime can
//     route its blocking work through this pool
//
// Rather than optimizing for throughput of short-lived jobs, threadpool
// optimizes for predictable lifecycle semantics: every posted task
// settles in a terminal state exactly once, and every observer can tell
// which side of the cancellation race it is on.
//
// Architecture overview
//
// The pool is composed of three tightly coupled layers:
//
//   1. Task state (TaskState)
//      A mutex-protected state machine shared by the producer, which
//      holds it as a cancellation handle, and the pool, which advances
//      it through execution. Valid transitions are
//      Initial -> Queued -> Assigned -> Completed, with Cancelled as a
//      diversion from any non-terminal state and Completed as the only
//      terminal state.
//
//   2. Queue (internal)
//      A single-mutex FIFO with a blocking pop, a stop flag, and an
//      outstanding-task counter covering both queued and in-flight
//      work. BlockingDrain waits on that counter, so "drained" means
//      completed, not merely dequeued.
//
//   3. Execution (Threadpool / workers)
//      Each worker loops: blocking-pop, try to move the task to
//      Assigned, run it if the transition won (skip if a cancellation
//      won), settle the state as Completed, notify the drain counter.
//      Panics inside tasks are recovered so one bad task cannot kill a
//      worker.
//
// Cancellation model
//
// Cancel is a compare-and-divert on the state machine, never an
// interrupt. If a worker reaches Assigned first, the task runs to
// completion regardless: Cancel still reports true while Run is in
// progress and false once the task has completed. If the canceller
// reaches Cancelled first, the worker skips Run. Both paths settle as Completed
// and notify the drain counter, so exactly one of {ran, skipped}
// happens per posted task.
//
// Host-runtime adapter
//
// Executor wraps a host runtime's work requests (work callback, done
// callback, opaque payload) as tasks. The done callback fires on the
// worker goroutine after the task has fully settled, which is the
// host's signal to marshal completion back onto its own event loop.
// DelayedScheduler complements it for timer-driven work: a single
// goroutine holds not-yet-due tasks in a min-heap and posts them to the
// pool when their time comes.
//
// Sizing
//
// The worker count is fixed at construction: an explicit positive size
// wins, then the POOL_SIZE environment variable, then the CPU count.
//
// Observability
//
// The pool reports queueing and execution events through the
// MetricsPolicy interface. AtomicMetrics collects counters with no
// locking, NoopMetrics discards everything, and PrometheusMetrics
// exports the same events as Prometheus collectors.
package threadpool
