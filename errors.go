package threadpool

import (
	"errors"
)

var (
	// ErrPoolStopped is returned when work is submitted after the pool
	// stopped accepting tasks.
	ErrPoolStopped = errors.New("threadpool: pool is stopped")

	// ErrCancelBusy is returned by Executor.Cancel when the request's
	// task has already completed but its Done callback has not fired yet.
	ErrCancelBusy = errors.New("threadpool: task already completed")

	// ErrInvalidRequest is returned by Executor methods for a nil
	// request, a request without a work callback, a request that was
	// never submitted, or (by Cancel) a request whose Done callback has
	// already fired.
	ErrInvalidRequest = errors.New("threadpool: invalid work request")
)
