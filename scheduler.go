package threadpool

import (
	"container/heap"
	"context"
	"sync"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
)

// delayedTask is a task waiting for its due time.
type delayedTask struct {
	runAt time.Time
	task  Task
	index int // maintained by the heap
}

// delayedHeap implements heap.Interface ordered by due time.
type delayedHeap []*delayedTask

func (h delayedHeap) Len() int           { return len(h) }
func (h delayedHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }
func (h delayedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedHeap) Push(x any) {
	item := x.(*delayedTask)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// DelayedScheduler posts tasks into a Threadpool after a delay.
//
// A single goroutine owns a min-heap of due times and a resettable
// timer; tasks whose time has come are handed to Threadpool.Post and
// from there follow the normal task lifecycle. Stop terminates the
// goroutine and drops tasks that are not yet due.
type DelayedScheduler struct {
	tp *Threadpool

	mu sync.Mutex
	pq delayedHeap

	wakeup chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDelayedScheduler(tp *Threadpool) *DelayedScheduler {
	ctx, cancel := context.WithCancel(tp.ctx)
	ds := &DelayedScheduler{
		tp:     tp,
		pq:     make(delayedHeap, 0),
		wakeup: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	heap.Init(&ds.pq)
	go ds.loop()
	return ds
}

// Post hands the task straight to the pool.
func (ds *DelayedScheduler) Post(task Task) *TaskState {
	return ds.tp.Post(task)
}

// PostDelayed schedules the task to be posted after delay. The handle
// only exists once the task reaches the pool, so delayed tasks cannot be
// cancelled while they wait.
func (ds *DelayedScheduler) PostDelayed(task Task, delay time.Duration) {
	if delay <= 0 {
		ds.tp.Post(task)
		return
	}

	ds.mu.Lock()
	item := &delayedTask{runAt: time.Now().Add(delay), task: task}
	heap.Push(&ds.pq, item)
	first := item.index == 0
	ds.mu.Unlock()

	// Only a new earliest deadline requires a timer reset.
	if first {
		select {
		case ds.wakeup <- struct{}{}:
		default:
		}
	}
}

// DelayedCount returns the number of tasks still waiting for their due
// time.
func (ds *DelayedScheduler) DelayedCount() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return len(ds.pq)
}

// Stop terminates the scheduler goroutine and drops tasks that are not
// yet due. Tasks already posted to the pool are unaffected.
func (ds *DelayedScheduler) Stop() {
	ds.cancel()
	<-ds.done

	ds.mu.Lock()
	dropped := len(ds.pq)
	ds.pq = nil
	ds.mu.Unlock()

	lg.FromContext(ds.ctx).Info("delayed scheduler stopped",
		lg.Int("dropped", dropped),
	)
}

func (ds *DelayedScheduler) loop() {
	defer close(ds.done)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		next, ok := ds.nextDelay()
		if !ok {
			select {
			case <-ds.ctx.Done():
				return
			case <-ds.wakeup:
				continue
			}
		}

		timer.Reset(next)
		select {
		case <-ds.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			ds.postDue()
		case <-ds.wakeup:
			// Earlier deadline arrived; recompute.
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

func (ds *DelayedScheduler) nextDelay() (time.Duration, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if len(ds.pq) == 0 {
		return 0, false
	}
	d := time.Until(ds.pq[0].runAt)
	if d < 0 {
		d = 0
	}
	return d, true
}

func (ds *DelayedScheduler) postDue() {
	now := time.Now()
	for {
		ds.mu.Lock()
		if len(ds.pq) == 0 || ds.pq[0].runAt.After(now) {
			ds.mu.Unlock()
			return
		}
		item := heap.Pop(&ds.pq).(*delayedTask)
		ds.mu.Unlock()

		ds.tp.Post(item.task)
	}
}
