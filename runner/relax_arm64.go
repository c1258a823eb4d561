//go:build arm64 && !noasm && cgo

package runner

/*
static inline void cpu_yield() {
    __asm__ __volatile__("yield" ::: "memory");
}
*/
import "C"

// cpuRelax emits YIELD in an idle poll loop.
func cpuRelax() {
	C.cpu_yield()
}
