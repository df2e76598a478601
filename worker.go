package threadpool

import (
	"context"
	"fmt"
	"runtime"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
)

// worker owns one consumer goroutine. It loops on blockingPop until the
// queue reports empty-and-stopped, then exits; join reaps it.
type worker struct {
	id   int
	pin  bool
	ctx  context.Context
	done chan struct{}
}

func newWorker(id int, pin bool, ctx context.Context) *worker {
	return &worker{
		id:   id,
		pin:  pin,
		ctx:  ctx,
		done: make(chan struct{}),
	}
}

func (w *worker) start(q *taskQueue) {
	go w.run(q)
}

// join blocks until the worker goroutine has exited.
func (w *worker) join() {
	<-w.done
}

func (w *worker) run(q *taskQueue) {
	defer close(w.done)

	if w.pin {
		// Pinning requires a stable OS thread for the worker's lifetime.
		runtime.LockOSThread()
		if err := PinToCPU(w.id % runtime.NumCPU()); err != nil {
			lg.FromContext(w.ctx).Warn("worker: cpu pinning failed",
				lg.Int("worker", w.id),
				lg.Any("error", err),
			)
		}
	}

	for {
		p, ok := q.blockingPop()
		if !ok {
			return
		}
		w.execute(q, p)
	}
}

// execute drives one task through the assigned-or-skip path. Exactly one
// of run-to-completion and cancel-skip happens; both paths settle the
// state as Completed and notify the queue.
func (w *worker) execute(q *taskQueue, p *pending) {
	// May have been cancelled while queued.
	switch st := p.state.TryUpdateState(Assigned); st {
	case Assigned:
		w.runTask(q, p)
	case Cancelled:
		q.metrics.IncCancelled()
	default:
		panic(fmt.Sprintf("threadpool: task in state %v on assignment", st))
	}

	if st := p.state.TryUpdateState(Completed); st != Completed {
		panic(fmt.Sprintf("threadpool: task in state %v on completion", st))
	}
	q.notifyOfCompletion()

	// The completion hook fires last, after the drain counter has been
	// notified, so the host side observes a fully settled task.
	if f, ok := p.task.(Finalizer); ok {
		f.Finalize()
	}
}

func (w *worker) runTask(q *taskQueue, p *pending) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			lg.FromContext(w.ctx).Error("task panicked",
				lg.Int("worker", w.id),
				lg.Any("panic", r),
			)
		}
		q.metrics.IncExecuted()
		q.metrics.ObserveRun(time.Since(start))
	}()
	p.task.Run()
}
