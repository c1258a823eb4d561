//go:build !linux

package runner

// setAffinity is a no-op on platforms without sched_setaffinity(2).
func setAffinity(cpu int) error { return nil }
