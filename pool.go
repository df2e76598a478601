package threadpool

import (
	"context"
	"sync"

	lg "github.com/Andrej220/go-utils/zlog"
)

// Threadpool executes opaque tasks on a fixed set of long-lived workers.
// The size is fixed at construction; the queue between producers and
// workers is unbounded and strictly FIFO.
type Threadpool struct {
	queue    *taskQueue
	workers  []*worker
	ctx      context.Context
	stopOnce sync.Once
}

// New creates a pool with the given size. A non-positive size falls back
// to the POOL_SIZE environment variable, then the CPU count, then
// DefaultPoolSize.
func New(size int) *Threadpool {
	return NewWithOptions(Options{Size: size})
}

// NewWithOptions creates a pool from opts. Zero-valued fields are filled
// with defaults; see Options.
func NewWithOptions(opts Options) *Threadpool {
	opts.FillDefaults()

	tp := &Threadpool{
		queue: newTaskQueue(opts.Metrics),
		ctx:   opts.Ctx,
	}
	for i := 0; i < opts.Size; i++ {
		w := newWorker(i, opts.PinWorkers, opts.Ctx)
		w.start(tp.queue)
		tp.workers = append(tp.workers, w)
	}

	lg.FromContext(tp.ctx).Info("threadpool started",
		lg.Int("workers", len(tp.workers)),
	)
	return tp
}

// Post submits the task and returns its cancellation handle.
//
// Post never fails from the caller's perspective. After Stop the task is
// silently dropped and the returned handle stays Initial; callers that
// need to detect this check the handle's state.
func (tp *Threadpool) Post(task Task) *TaskState {
	state, ok := tp.post(task)
	if !ok {
		lg.FromContext(tp.ctx).Warn("post after stop; task dropped",
			lg.String("type", detailsOf(task).Type.String()),
		)
	}
	return state
}

// post is Post with an explicit success result, for callers that have a
// way to report rejection (the executor does; event-loop hosts often
// don't).
func (tp *Threadpool) post(task Task) (*TaskState, bool) {
	state := NewTaskState()
	ok := tp.queue.push(&pending{task: task, state: state})
	return state, ok
}

// QueueLength returns the number of queued tasks, excluding in-flight.
func (tp *Threadpool) QueueLength() int {
	return tp.queue.length()
}

// NWorkers returns the fixed worker count.
func (tp *Threadpool) NWorkers() int {
	return len(tp.workers)
}

// BlockingDrain blocks until every outstanding task, queued or
// in-flight, has completed.
func (tp *Threadpool) BlockingDrain() {
	tp.queue.blockingDrain()
}

// Stop rejects further posts, lets the workers drain the queue and joins
// them. It blocks until every worker has exited; already-queued tasks
// run to completion (or are cancel-skipped) first. Safe to call more
// than once.
func (tp *Threadpool) Stop() {
	tp.stopOnce.Do(func() {
		tp.queue.stop()
	})
	for _, w := range tp.workers {
		w.join()
	}
	lg.FromContext(tp.ctx).Info("threadpool stopped")
}

// Shutdown is Stop with a deadline: it stops the queue and waits for the
// workers until ctx expires, returning ctx.Err() on timeout. The workers
// keep draining either way; a later Stop or Shutdown can finish the
// join.
func (tp *Threadpool) Shutdown(ctx context.Context) error {
	tp.stopOnce.Do(func() {
		tp.queue.stop()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, w := range tp.workers {
			w.join()
		}
	}()

	select {
	case <-done:
		lg.FromContext(tp.ctx).Info("threadpool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
