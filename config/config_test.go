package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mailbox/constants"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.LowPriorityBudget != constants.DefaultLowPriorityBudget {
		t.Fatalf("budget = %d", cfg.LowPriorityBudget)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"region": "/dev/shm/mbox",
		"messages": 10,
		"low_priority_budget": 0,
		"reset": true
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Region != "/dev/shm/mbox" || cfg.Messages != 10 || !cfg.Reset {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.LowPriorityBudget != 0 {
		t.Fatal("explicit zero budget must disable lo-pri servicing")
	}
	if cfg.SpinBudget != constants.DefaultSpinBudget || cfg.MasterCore != -1 {
		t.Fatalf("absent fields lost their defaults: %+v", cfg)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"negative messages", `{"messages": -1}`},
		{"negative budget", `{"low_priority_budget": -3}`},
		{"zero spin budget", `{"spin_budget": 0}`},
		{"bad core", `{"slave_core": -2}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, c.body)); !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}

	if _, err := Load(writeConfig(t, `{"messages": `)); err == nil || errors.Is(err, ErrInvalid) {
		t.Fatalf("malformed JSON: err = %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file: err = %v", err)
	}
}
