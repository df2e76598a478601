package threadpool

import (
	"context"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	lg "github.com/Andrej220/go-utils/zlog"
)

const (
	defaultAttempts     = 3
	defaultInitialRetry = 200 * time.Millisecond
	defaultMaxRetry     = 5 * time.Second
)

// RetryPolicy describes how many times and how often a RetryTask retries
// its function. Zero values are treated as "use defaults".
type RetryPolicy struct {
	// Attempts is the maximum number of tries.
	Attempts int

	// Initial is the first backoff duration.
	Initial time.Duration

	// Max is the cap for backoff duration.
	Max time.Duration
}

// GetDefaultRP returns a pointer to the default retry policy.
// Useful in tests or when constructing tasks with the same defaults.
func GetDefaultRP() *RetryPolicy {
	rp := RetryPolicy{
		Attempts: defaultAttempts,
		Initial:  defaultInitialRetry,
		Max:      defaultMaxRetry,
	}
	return &rp
}

func (rp *RetryPolicy) fillDefaults() {
	if rp.Attempts <= 0 {
		rp.Attempts = defaultAttempts
	}
	if rp.Initial <= 0 {
		rp.Initial = defaultInitialRetry
	}
	if rp.Max <= 0 {
		rp.Max = defaultMaxRetry
	}
}

// RetryTask wraps a fallible function as a Task that retries with
// exponential backoff. The pool still runs the task exactly once;
// retrying happens inside Run. Cancelling ctx aborts the wait between
// attempts, never a running attempt.
type RetryTask struct {
	fn     func() error
	policy RetryPolicy
	ctx    context.Context
}

// NewRetryTask builds a RetryTask around fn. A nil policy or zero-valued
// fields fall back to the package defaults; a nil ctx means the task
// cannot be aborted between attempts.
func NewRetryTask(ctx context.Context, fn func() error, policy *RetryPolicy) *RetryTask {
	var rp RetryPolicy
	if policy != nil {
		rp = *policy
	}
	rp.fillDefaults()
	if ctx == nil {
		ctx = context.Background()
	}
	return &RetryTask{fn: fn, policy: rp, ctx: ctx}
}

func (t *RetryTask) Run() {
	logger := lg.FromContext(t.ctx)
	bo := boff.New(t.policy.Initial, t.policy.Max, time.Now().UnixNano())

	for attempt := 1; attempt <= t.policy.Attempts; attempt++ {
		err := t.fn()
		if err == nil {
			return
		}
		if attempt == t.policy.Attempts {
			logger.Error("retry task failed",
				lg.Int("attempt", attempt),
				lg.Any("error", err),
			)
			return
		}

		delay := bo.Next()
		logger.Warn("retry task attempt failed; backing off",
			lg.Int("attempt", attempt),
			lg.String("sleep", delay.String()),
			lg.Any("error", err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-t.ctx.Done():
			if !timer.Stop() {
				<-timer.C // drain if timer is fired
			}
			logger.Info("retry task canceled", lg.Any("reason", t.ctx.Err()))
			return
		}
	}
}
