package threadpool

import (
	"context"
	"os"
	"runtime"
	"strconv"
)

const (
	// DefaultPoolSize is the last-resort worker count, used when neither
	// an explicit size, nor POOL_SIZE, nor the CPU count is usable.
	DefaultPoolSize = 4

	poolSizeEnv = "POOL_SIZE"
)

// Options configure a Threadpool.
//
// All zero values are replaced with sensible defaults in FillDefaults.
type Options struct {
	// Size is the number of workers, fixed for the pool's lifetime.
	// When zero or negative the pool consults the POOL_SIZE environment
	// variable, then the CPU count, then DefaultPoolSize.
	Size int

	// Metrics receives queueing and execution events.
	// Defaults to NoopMetrics.
	Metrics MetricsPolicy

	// PinWorkers pins each worker's OS thread to a CPU core (linux
	// only; a no-op elsewhere).
	PinWorkers bool

	// Ctx carries the logger used by the pool and its workers.
	// Defaults to context.Background().
	Ctx context.Context
}

func (o *Options) FillDefaults() {
	if o.Size <= 0 {
		if v, err := strconv.Atoi(os.Getenv(poolSizeEnv)); err == nil && v > 0 {
			o.Size = v
		}
	}
	if o.Size <= 0 {
		o.Size = runtime.NumCPU()
	}
	if o.Size <= 0 {
		o.Size = DefaultPoolSize
	}
	if o.Metrics == nil {
		o.Metrics = &NoopMetrics{}
	}
	if o.Ctx == nil {
		o.Ctx = context.Background()
	}
}
