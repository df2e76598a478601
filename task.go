package threadpool

// TaskType classifies the kind of work a task performs. It is metadata
// only: scheduling is strictly FIFO regardless of type.
type TaskType int

const (
	TaskUnknown TaskType = iota
	TaskFS
	TaskDNS
	TaskIO
	TaskCPU
	TaskV8
)

func (t TaskType) String() string {
	switch t {
	case TaskFS:
		return "fs"
	case TaskDNS:
		return "dns"
	case TaskIO:
		return "io"
	case TaskCPU:
		return "cpu"
	case TaskV8:
		return "v8"
	default:
		return "unknown"
	}
}

// TaskDetails is the immutable metadata attached to a task at
// construction time. Priority (-1 when unset) and Cancelable are carried
// through for the submitter's benefit; the pool does not act on them.
type TaskDetails struct {
	Type       TaskType
	Priority   int
	Cancelable bool
}

// Task is one unit of work. Run is invoked by a worker at most once, and
// only if the task reached Assigned before a cancellation landed. Run
// must not assume any particular goroutine.
type Task interface {
	Run()
}

// Detailed is implemented by tasks that carry metadata. Tasks without it
// are treated as TaskUnknown with unset priority.
type Detailed interface {
	Details() TaskDetails
}

// Finalizer is implemented by tasks that need a completion hook, e.g. to
// tell an external runtime the work is done. Finalize runs on the worker
// goroutine after the task has reached Completed and the queue's
// completion notification has been issued, never earlier, so it observes
// all worker-side effects of Run.
type Finalizer interface {
	Finalize()
}

// TaskFunc adapts a plain function to the Task interface.
type TaskFunc func()

func (f TaskFunc) Run() { f() }

func detailsOf(t Task) TaskDetails {
	if d, ok := t.(Detailed); ok {
		return d.Details()
	}
	return TaskDetails{Type: TaskUnknown, Priority: -1}
}

// pending couples a task with its state machine for the queue and the
// workers. The queue owns it while queued, the executing worker
// afterwards.
type pending struct {
	task  Task
	state *TaskState
}
