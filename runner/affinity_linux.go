//go:build linux

package runner

import "golang.org/x/sys/unix"

// setAffinity pins the calling thread to cpu.
func setAffinity(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
