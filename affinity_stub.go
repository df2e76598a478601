//go:build !linux

package threadpool

// PinToCPU is a no-op on platforms without sched_setaffinity.
func PinToCPU(cpu int) error {
	return nil
}
