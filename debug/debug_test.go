package debug

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func capture(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Zap()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })
	return logs
}

func TestDropError(t *testing.T) {
	logs := capture(t)

	DropError("slave", errors.New("boom"))
	DropError("gc", nil)

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel || entries[0].Message != "slave" {
		t.Errorf("entry 0 = %+v", entries[0].Entry)
	}
	if entries[0].ContextMap()["error"] != "boom" {
		t.Errorf("error field = %v", entries[0].ContextMap()["error"])
	}
	if entries[1].Level != zapcore.WarnLevel || entries[1].Message != "gc" {
		t.Errorf("entry 1 = %+v", entries[1].Entry)
	}
}

func TestDropMessage(t *testing.T) {
	logs := capture(t)
	DropMessage("master", "WAITING_FOR_SLAVE")
	if logs.FilterMessage("master: WAITING_FOR_SLAVE").Len() != 1 {
		t.Fatalf("entries = %+v", logs.AllUntimed())
	}
}

func TestLoggerVerbosity(t *testing.T) {
	logs := capture(t)
	log := Logger()

	log.Info("transition")
	log.V(1).Info("channel")
	if logs.Len() != 2 {
		t.Fatalf("debug-level observer should see both V(0) and V(1), got %d", logs.Len())
	}
}
