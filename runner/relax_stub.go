//go:build (!amd64 && !arm64) || noasm || !cgo

package runner

// cpuRelax is a no-op where no spin-wait hint is available.
func cpuRelax() {}
