// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — Cold-path logging helpers backed by zap
//
// Purpose:
//   - Logs infrequent events: session transitions, fatal errors, startup.
//   - Hands components a logr.Logger over the same zap core.
//
// Notes:
//   - Console encoder with development config, written to stderr.
//   - V(n) on the logr side maps to zap level -n; SetVerbosity opens it up.
//
// ⚠️ Never invoke in hot loops. Use only in failure diagnostics.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import (
	"os"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	current atomic.Pointer[zap.Logger]
)

func init() {
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	current.Store(zap.New(zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)))
}

// SetLogger replaces the backing zap logger. Tests pass zaptest loggers.
func SetLogger(l *zap.Logger) {
	if l != nil {
		current.Store(l)
	}
}

// SetVerbosity enables logr V-levels up to v on the default logger.
func SetVerbosity(v int) {
	level.SetLevel(zapcore.Level(-v))
}

// Zap returns the backing zap logger.
func Zap() *zap.Logger { return current.Load() }

// Logger returns a logr view of the backing logger.
func Logger() logr.Logger { return zapr.NewLogger(current.Load()) }

// DropError logs prefix and err at error level. A nil err logs the prefix
// alone as a warning.
func DropError(prefix string, err error) {
	if err != nil {
		current.Load().Error(prefix, zap.Error(err))
		return
	}
	current.Load().Warn(prefix)
}

// DropMessage logs a cold-path diagnostic.
func DropMessage(prefix, message string) {
	current.Load().Info(prefix + ": " + message)
}
