package threadpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBasicCounting(t *testing.T) {
	tp := New(2)
	defer tp.Stop()

	var counter atomic.Int64
	handles := make([]*TaskState, 0, 100)
	for i := 0; i < 100; i++ {
		handles = append(handles, tp.Post(TaskFunc(func() {
			counter.Add(1)
		})))
	}

	tp.BlockingDrain()

	if got := counter.Load(); got != 100 {
		t.Fatalf("counter = %d; want 100", got)
	}
	for i, h := range handles {
		if got := h.GetState(); got != Completed {
			t.Fatalf("handle %d state = %v; want completed", i, got)
		}
	}
	if got := tp.QueueLength(); got != 0 {
		t.Fatalf("queue length after drain = %d; want 0", got)
	}
}

func TestCancelBeforeRun(t *testing.T) {
	tp := New(1)
	defer tp.Stop()

	gate := make(chan struct{})
	started := make(chan struct{})
	tp.Post(TaskFunc(func() {
		close(started)
		<-gate
	}))
	<-started // the single worker is now blocked

	var ran atomic.Bool
	h2 := tp.Post(TaskFunc(func() {
		ran.Store(true)
	}))
	if !h2.Cancel() {
		t.Fatal("Cancel of queued task = false; want true")
	}

	close(gate)
	tp.BlockingDrain()

	if ran.Load() {
		t.Fatal("cancelled task ran")
	}
	if got := h2.GetState(); got != Completed {
		t.Fatalf("cancelled task state = %v; want completed", got)
	}
}

func TestCancelAfterRun(t *testing.T) {
	tp := New(1)
	defer tp.Stop()

	var ran atomic.Bool
	h := tp.Post(TaskFunc(func() {
		ran.Store(true)
	}))
	tp.BlockingDrain()

	if h.Cancel() {
		t.Fatal("Cancel of completed task = true; want false")
	}
	if !ran.Load() {
		t.Fatal("task did not run")
	}
}

func TestStopDrainsQueue(t *testing.T) {
	tp := New(2)

	var counter atomic.Int64
	for i := 0; i < 50; i++ {
		tp.Post(TaskFunc(func() {
			time.Sleep(10 * time.Millisecond)
			counter.Add(1)
		}))
	}

	// Stop blocks until the workers have drained the queue and exited.
	tp.Stop()

	if got := counter.Load(); got != 50 {
		t.Fatalf("completed = %d; want 50", got)
	}
	if got := tp.QueueLength(); got != 0 {
		t.Fatalf("queue length = %d; want 0", got)
	}
}

func TestPostAfterStop(t *testing.T) {
	tp := New(1)
	tp.Stop()

	var ran atomic.Bool
	h := tp.Post(TaskFunc(func() {
		ran.Store(true)
	}))
	if h == nil {
		t.Fatal("Post returned a nil handle")
	}
	if got := h.GetState(); got != Initial {
		t.Fatalf("handle state after stop = %v; want initial", got)
	}
	if ran.Load() {
		t.Fatal("task ran after stop")
	}
}

func TestPushAfterStopDirect(t *testing.T) {
	tp := New(2)
	tp.queue.stop()

	p := newPending()
	if tp.queue.push(p) {
		t.Fatal("push after stop succeeded")
	}
	tp.queue.mu.Lock()
	outstanding := tp.queue.outstanding
	tp.queue.mu.Unlock()
	if outstanding != 0 {
		t.Fatalf("outstanding = %d; want 0", outstanding)
	}

	tp.Stop()
}

func TestConcurrentCancelRace(t *testing.T) {
	tp := New(4)
	defer tp.Stop()

	const n = 1000
	var ran atomic.Int64

	handles := make([]*TaskState, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := tp.Post(TaskFunc(func() {
				ran.Add(1)
			}))
			handles[i] = h
			h.Cancel()
		}(i)
	}
	wg.Wait()
	tp.BlockingDrain()

	// Every task either ran or was skipped, never both; all settled.
	executed := ran.Load()
	if executed < 0 || executed > n {
		t.Fatalf("ran = %d; want within [0,%d]", executed, n)
	}
	for i, h := range handles {
		if got := h.GetState(); got != Completed {
			t.Fatalf("handle %d state = %v; want completed", i, got)
		}
	}
}

func TestSingleWorkerSerializesFIFO(t *testing.T) {
	tp := New(1)
	defer tp.Stop()

	const n = 200
	var mu sync.Mutex
	var order []int
	for i := 0; i < n; i++ {
		i := i
		tp.Post(TaskFunc(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	tp.BlockingDrain()

	if len(order) != n {
		t.Fatalf("executed %d tasks; want %d", len(order), n)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("execution order broken at %d: got task %d", i, got)
		}
	}
}

func TestWorkerSurvivesPanic(t *testing.T) {
	tp := New(1)
	defer tp.Stop()

	h := tp.Post(TaskFunc(func() {
		panic("boom")
	}))

	done := make(chan struct{})
	tp.Post(TaskFunc(func() {
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("worker did not survive a panicking task")
	}
	if got := h.GetState(); got != Completed {
		t.Fatalf("panicked task state = %v; want completed", got)
	}
}

func TestShutdownTimeout(t *testing.T) {
	tp := New(1)

	started := make(chan struct{})
	release := make(chan struct{})
	tp.Post(TaskFunc(func() {
		close(started)
		<-release
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := tp.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown err = %v; want deadline exceeded", err)
	}

	close(release)
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown err = %v; want nil", err)
	}
}

func TestSizingPolicy(t *testing.T) {
	tp := New(3)
	if got := tp.NWorkers(); got != 3 {
		t.Fatalf("NWorkers = %d; want 3", got)
	}
	tp.Stop()

	t.Setenv(poolSizeEnv, "5")
	tp = New(0)
	if got := tp.NWorkers(); got != 5 {
		t.Fatalf("NWorkers with POOL_SIZE=5 = %d; want 5", got)
	}
	tp.Stop()

	// Explicit size wins over the environment.
	tp = New(2)
	if got := tp.NWorkers(); got != 2 {
		t.Fatalf("NWorkers = %d; want 2", got)
	}
	tp.Stop()

	t.Setenv(poolSizeEnv, "not-a-number")
	tp = New(0)
	if got := tp.NWorkers(); got <= 0 {
		t.Fatalf("NWorkers = %d; want > 0", got)
	}
	tp.Stop()
}

func TestQueueLengthExcludesInFlight(t *testing.T) {
	tp := New(1)
	defer tp.Stop()

	gate := make(chan struct{})
	started := make(chan struct{})
	tp.Post(TaskFunc(func() {
		close(started)
		<-gate
	}))
	<-started

	tp.Post(TaskFunc(func() {}))
	if got := tp.QueueLength(); got != 1 {
		t.Fatalf("QueueLength = %d; want 1 (in-flight task excluded)", got)
	}

	close(gate)
	tp.BlockingDrain()
	if got := tp.QueueLength(); got != 0 {
		t.Fatalf("QueueLength after drain = %d; want 0", got)
	}
}

func TestPoolMetrics(t *testing.T) {
	m := &AtomicMetrics{}
	tp := NewWithOptions(Options{Size: 2, Metrics: m})
	defer tp.Stop()

	gate := make(chan struct{})
	started := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		tp.Post(TaskFunc(func() {
			started <- struct{}{}
			<-gate
		}))
	}
	<-started
	<-started

	// Both workers busy; queue one task and cancel another.
	tp.Post(TaskFunc(func() {}))
	h := tp.Post(TaskFunc(func() {}))
	h.Cancel()

	close(gate)
	tp.BlockingDrain()

	if got := m.Executed(); got != 3 {
		t.Fatalf("executed = %d; want 3", got)
	}
	if got := m.Cancelled(); got != 1 {
		t.Fatalf("cancelled = %d; want 1", got)
	}
	if got := m.Queued(); got != 0 {
		t.Fatalf("queued = %d; want 0", got)
	}
}
