package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config carries every knob the exporter and CLI use. Zero values mean
// "use the default"; ApplyDefaults fills them in.
type Config struct {
	InputPath    string  `toml:"input"`
	ScriptPath   string  `toml:"script"`
	OutputVideo  string  `toml:"output"`
	AudioPath    string  `toml:"audio"`
	Width        int     `toml:"width"`
	Height       int     `toml:"height"`
	FPS          int     `toml:"fps"`
	Scale        float64 `toml:"scale"`
	Density      float64 `toml:"density"`
	Workers      int     `toml:"workers"`
	Quality      int     `toml:"quality"`
	VideoEncoder string  `toml:"encoder"`
	OutroURL     string  `toml:"outro_url"`
	OutroSeconds float64 `toml:"outro_seconds"`
	ShowStats    bool    `toml:"stats"`
	BuildVersion string  `toml:"-"`
}

// ApplyDefaults fills unset fields with working defaults.
func (c *Config) ApplyDefaults() {
	if c.FPS <= 0 {
		c.FPS = 30
	}
	if c.Scale <= 0 {
		c.Scale = 2.0
	}
	if c.Density <= 0 {
		c.Density = 1.0
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Quality <= 0 {
		c.Quality = 23
	}
	if c.OutroSeconds <= 0 {
		c.OutroSeconds = 3.0
	}
}

// Load reads a TOML config file into cfg. Fields already set by flags stay
// untouched only if the file omits them; flag handling runs after Load in
// the CLI, so the file provides the base and flags override.
func Load(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
