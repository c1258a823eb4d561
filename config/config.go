// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: config.go — Runtime configuration for the mailbox simulator
//
// Purpose:
//   - Loads a JSON file over built-in defaults. Fields absent from the file
//     keep their default; CLI flags are applied on top by main.
//
// Notes:
//   - Layout values are not configurable; they live in constants.
// ─────────────────────────────────────────────────────────────────────────────

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/sugawarayuuta/sonnet"

	"mailbox/constants"
)

// ErrInvalid is returned when a loaded value is out of range.
var ErrInvalid = errors.New("config: invalid value")

// Config drives one simulator run.
type Config struct {
	// Region is the file mapped as the shared image. Empty means a heap
	// image shared in-process.
	Region string `json:"region"`
	// Journal is the SQLite journal path. Empty disables journalling.
	Journal string `json:"journal"`
	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr string `json:"metrics_addr"`

	// Messages is the number of hi-pri and of lo-pri requests each side
	// sends.
	Messages int `json:"messages"`
	// Reset makes the slave request a mailbox reset halfway through.
	Reset bool `json:"reset"`

	LowPriorityBudget int `json:"low_priority_budget"`
	SpinBudget        int `json:"spin_budget"`
	HotWindowMs       int `json:"hot_window_ms"`

	// MasterCore and SlaveCore pin the poll loops; -1 leaves them unpinned.
	MasterCore int `json:"master_core"`
	SlaveCore  int `json:"slave_core"`

	// Verbosity enables logr V-levels up to this value.
	Verbosity int `json:"verbosity"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Messages:          64,
		LowPriorityBudget: constants.DefaultLowPriorityBudget,
		SpinBudget:        constants.DefaultSpinBudget,
		HotWindowMs:       constants.DefaultHotWindowMs,
		MasterCore:        -1,
		SlaveCore:         -1,
	}
}

// Load reads path over Default and validates the result. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := sonnet.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the simulator cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Messages < 0:
		return fmt.Errorf("%w: messages %d", ErrInvalid, c.Messages)
	case c.LowPriorityBudget < 0:
		return fmt.Errorf("%w: low_priority_budget %d", ErrInvalid, c.LowPriorityBudget)
	case c.SpinBudget <= 0:
		return fmt.Errorf("%w: spin_budget %d", ErrInvalid, c.SpinBudget)
	case c.HotWindowMs < 0:
		return fmt.Errorf("%w: hot_window_ms %d", ErrInvalid, c.HotWindowMs)
	case c.MasterCore < -1 || c.SlaveCore < -1:
		return fmt.Errorf("%w: cores %d/%d", ErrInvalid, c.MasterCore, c.SlaveCore)
	}
	return nil
}
