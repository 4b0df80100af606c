package config

import (
	"fmt"
	"time"
)

const maxHotReloadDebounce = 30 * time.Second

// HotReloadConfig controls watching of the agent instructions file
type HotReloadConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Debounce coalesces editor write bursts into one reload.
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// DefaultHotReloadConfig returns default hot reload configuration
func DefaultHotReloadConfig() HotReloadConfig {
	return HotReloadConfig{
		Enabled:  true,
		Debounce: 500 * time.Millisecond,
	}
}

func (h HotReloadConfig) Validate() error {
	if h.Debounce < 0 || h.Debounce > maxHotReloadDebounce {
		return fmt.Errorf("debounce must be between 0 and %s, got %s", maxHotReloadDebounce, h.Debounce)
	}
	return nil
}

// WatchesInstructions reports whether the instructions file should be hot-reloaded
func (c *Config) WatchesInstructions() bool {
	return c.HotReload.Enabled && c.Agent.InstructionsFile != ""
}
