package threadpool

import (
	"context"
	"sync/atomic"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/google/uuid"
)

// WorkKind classifies host work requests. Any kind the pool does not
// recognize maps to TaskUnknown.
type WorkKind int

const (
	WorkUnknown WorkKind = iota
	WorkFS
	WorkDNS
	WorkUserIO
	WorkUserCPU
)

// WorkOptions mirror the host's per-request options. Priority and
// Cancelable are pass-throughs; the pool records them but does not act
// on them.
type WorkOptions struct {
	Kind       WorkKind
	Priority   int
	Cancelable bool
}

// WorkRequest is the host runtime's unit of blocking work.
//
// Work runs on a pool worker. Done is invoked on the same worker
// goroutine once the request has fully completed, whether Work ran or
// the request was cancel-skipped; the host is responsible for forwarding
// that signal back to its own event loop. The host must keep the request
// alive and must not cancel it after Done has fired.
type WorkRequest struct {
	Work func(*WorkRequest)
	Done func(*WorkRequest)

	// Data is an opaque host payload carried through untouched.
	Data any

	id     string
	handle atomic.Pointer[TaskState] // reserved slot, set by Submit
}

// ID returns the request id assigned at submit time, for log
// correlation. Empty until submitted.
func (r *WorkRequest) ID() string {
	return r.id
}

// executorTask adapts one WorkRequest to the Task interface.
type executorTask struct {
	req     *WorkRequest
	details TaskDetails
}

func (t *executorTask) Run() {
	t.req.Work(t.req)
}

func (t *executorTask) Details() TaskDetails {
	return t.details
}

// Finalize releases the reserved handle slot, then informs the host.
func (t *executorTask) Finalize() {
	t.req.handle.Store(nil)
	if t.req.Done != nil {
		t.req.Done(t.req)
	}
}

// Executor routes a host event-loop runtime's work requests through the
// pool, replacing the runtime's built-in worker threads. It implements
// the host's submit/cancel/done contract on top of Post and the
// TaskState handle.
type Executor struct {
	tp  *Threadpool
	ctx context.Context
}

func NewExecutor(tp *Threadpool) *Executor {
	return &Executor{tp: tp, ctx: tp.ctx}
}

// Submit wraps req as a task and posts it, storing the returned handle
// in the request's reserved slot so Cancel can retrieve it. It returns
// ErrInvalidRequest for a nil request or work callback and
// ErrPoolStopped when the pool no longer accepts work; in the latter
// case Done will never fire.
func (e *Executor) Submit(req *WorkRequest, opts *WorkOptions) error {
	if req == nil || req.Work == nil {
		return ErrInvalidRequest
	}
	req.id = uuid.NewString()

	task := &executorTask{req: req, details: detailsFromOptions(opts)}
	state, ok := e.tp.post(task)
	if !ok {
		req.id = ""
		return ErrPoolStopped
	}
	req.handle.Store(state)
	// A fast task may have completed and released the slot before the
	// store above; do not leave its stale handle behind.
	if state.GetState() == Completed {
		req.handle.CompareAndSwap(state, nil)
	}

	lg.FromContext(e.ctx).Info("work request submitted",
		lg.String("id", req.id),
		lg.String("kind", task.details.Type.String()),
	)
	return nil
}

// Cancel recovers the handle stored by Submit and attempts cancellation.
// nil means the task's state moved to Cancelled: Work is skipped if it
// had not started, and a Work already running is not interrupted; Done
// still fires on a worker. ErrCancelBusy means the task has already
// completed; once Done has fired the slot is released and Cancel
// returns ErrInvalidRequest.
func (e *Executor) Cancel(req *WorkRequest) error {
	if req == nil {
		return ErrInvalidRequest
	}
	handle := req.handle.Load()
	if handle == nil {
		return ErrInvalidRequest
	}

	if !handle.Cancel() {
		return ErrCancelBusy
	}
	lg.FromContext(e.ctx).Info("work request cancelled",
		lg.String("id", req.id),
	)
	return nil
}

func detailsFromOptions(opts *WorkOptions) TaskDetails {
	if opts == nil {
		return TaskDetails{Type: TaskUnknown, Priority: -1}
	}
	d := TaskDetails{
		Priority:   opts.Priority,
		Cancelable: opts.Cancelable,
	}
	switch opts.Kind {
	case WorkFS:
		d.Type = TaskFS
	case WorkDNS:
		d.Type = TaskDNS
	case WorkUserIO:
		d.Type = TaskIO
	case WorkUserCPU:
		d.Type = TaskCPU
	default:
		d.Type = TaskUnknown
	}
	return d
}
