// control.go — Global control flags and activity management for side poll loops
// ============================================================================
// POLL LOOP COORDINATION
// ============================================================================
//
// Control package provides the process-wide signals shared by the master and
// slave poll loops: a stop flag for shutdown, a hot flag raised by traffic
// producers, and a wait group every loop registers with.
//
// Threading model:
//   • Producers call SignalActivity() when they queue traffic
//   • Poll loops read the flags through Flags() and PollCooldown()
//   • main waits on ShutdownWG after Shutdown()
//
// All flag access goes through sync/atomic; the loops run on separate
// OS threads and the race detector must stay quiet.

package control

import (
	"sync"
	"sync/atomic"
	"time"
)

// ============================================================================
// GLOBAL STATE MANAGEMENT
// ============================================================================

var (
	hot  uint32 // 1 while producers are feeding traffic
	stop uint32 // 1 once shutdown is requested

	lastHot    int64                    // UnixNano of the last SignalActivity
	cooldownNs = int64(1 * time.Second) // idle period before hot drops

	// ShutdownWG tracks every running poll loop.
	ShutdownWG sync.WaitGroup
)

// ============================================================================
// ACTIVITY SIGNALING
// ============================================================================

// SignalActivity raises the hot flag and stamps the activity time.
//
//go:nosplit
//go:inline
func SignalActivity() {
	atomic.StoreInt64(&lastHot, time.Now().UnixNano())
	atomic.StoreUint32(&hot, 1)
}

// PollCooldown drops the hot flag once no activity was signalled for the
// cooldown period.
//
//go:nosplit
//go:inline
func PollCooldown() {
	if atomic.LoadUint32(&hot) == 1 &&
		time.Now().UnixNano()-atomic.LoadInt64(&lastHot) > atomic.LoadInt64(&cooldownNs) {
		atomic.StoreUint32(&hot, 0)
	}
}

// SetCooldown changes the idle period PollCooldown waits for.
func SetCooldown(d time.Duration) {
	atomic.StoreInt64(&cooldownNs, int64(d))
}

// ============================================================================
// SHUTDOWN
// ============================================================================

// Shutdown asks every poll loop to return.
func Shutdown() {
	atomic.StoreUint32(&stop, 1)
}

// Reset clears both flags so a new set of loops can start.
func Reset() {
	atomic.StoreUint32(&stop, 0)
	atomic.StoreUint32(&hot, 0)
	atomic.StoreInt64(&lastHot, 0)
}

// ============================================================================
// FLAG ACCESS
// ============================================================================

// Flags returns (*stop, *hot). Readers must use atomic loads.
func Flags() (*uint32, *uint32) {
	return &stop, &hot
}

func IsActive() bool { return atomic.LoadUint32(&hot) == 1 }

func IsShuttingDown() bool { return atomic.LoadUint32(&stop) == 1 }
