// ════════════════════════════════════════════════════════════════════════════════════════════════
// ⚡ PINNED SIDE POLL LOOP
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Per-side mailbox driver loop
//
// Description:
//   Drives one side of the mailbox once per tick on a dedicated OS thread, optionally bound
//   to a CPU core. Spins while traffic flows and relaxes the CPU once the side has been idle
//   past the hot window.
//
// Adaptive Behavior:
//   - Hot mode: continuous ticks while the side makes progress or producers are active
//   - Cool mode: CPU relaxation every spinBudget idle ticks after the hot window
//   - Both modes yield the processor every spinBudget idle ticks
//   - Optional ownership of control.PollCooldown for the global hot flag
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package runner

import (
	"runtime"
	"sync/atomic"
	"time"

	"mailbox/constants"
	"mailbox/control"
	"mailbox/debug"
)

// Driver is one side of a session as seen by the loop.
type Driver interface {
	Drive() error
	Progress() uint64
}

// Options configures a poll loop.
type Options struct {
	Core       int           // CPU to pin to; -1 leaves the thread unpinned
	SpinBudget int           // idle ticks between CPU relax hints
	HotWindow  time.Duration // keep spinning this long after the last progress
	Stop       *uint32       // loop returns once *Stop != 0
	Hot        *uint32       // producers raise *Hot to keep the loop spinning
	Cooldown   bool          // this loop calls control.PollCooldown
	OnTick     func()        // runs after every Drive, on the loop's thread
}

// DefaultOptions returns an unpinned loop bound to the control flags.
func DefaultOptions() Options {
	stop, hot := control.Flags()
	return Options{
		Core:       -1,
		SpinBudget: constants.DefaultSpinBudget,
		HotWindow:  constants.DefaultHotWindowMs * time.Millisecond,
		Stop:       stop,
		Hot:        hot,
	}
}

// Run drives d until *o.Stop is raised or Drive fails. It blocks the calling
// goroutine, which stays locked to its OS thread for the whole run. Nil flag
// pointers fall back to control.Flags and a non-positive SpinBudget to the
// default.
func Run(d Driver, o Options) error {
	if o.Stop == nil || o.Hot == nil {
		stop, hot := control.Flags()
		if o.Stop == nil {
			o.Stop = stop
		}
		if o.Hot == nil {
			o.Hot = hot
		}
	}
	if o.SpinBudget <= 0 {
		o.SpinBudget = constants.DefaultSpinBudget
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if o.Core >= 0 {
		if err := setAffinity(o.Core); err != nil {
			debug.DropError("runner: affinity", err)
		}
	}

	var miss int
	last := d.Progress()
	lastHit := time.Now()

	for {
		if atomic.LoadUint32(o.Stop) != 0 {
			return nil
		}

		if err := d.Drive(); err != nil {
			return err
		}
		if o.OnTick != nil {
			o.OnTick()
		}

		if p := d.Progress(); p != last {
			last = p
			miss = 0
			lastHit = time.Now()
			continue
		}

		if o.Cooldown {
			control.PollCooldown()
		}

		// Yield in both modes: the peer may share this CPU.
		if miss++; miss >= o.SpinBudget {
			miss = 0
			if atomic.LoadUint32(o.Hot) == 0 && time.Since(lastHit) > o.HotWindow {
				cpuRelax()
			}
			runtime.Gosched()
		}
	}
}
