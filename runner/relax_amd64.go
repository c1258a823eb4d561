//go:build amd64 && !noasm && cgo

package runner

/*
static inline void cpu_pause() {
    __asm__ __volatile__("pause" ::: "memory");
}
*/
import "C"

// cpuRelax emits PAUSE so an idle poll loop yields pipeline resources to
// its hyperthread sibling.
func cpuRelax() {
	C.cpu_pause()
}
