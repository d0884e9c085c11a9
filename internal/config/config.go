// Package config holds the ztick-demo configuration and its YAML loader.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Demo is the configuration of the ztick-demo command.
type Demo struct {
	Loop  LoopConfig  `yaml:"loop"`
	Log   LogConfig   `yaml:"log"`
	Ops   OpsConfig   `yaml:"ops"`
	Scene SceneConfig `yaml:"scene"`
}

// LoopConfig configures the host loop.
type LoopConfig struct {
	FPS       int    `yaml:"fps"`        // frames per second (default 60)
	MaxFrames uint64 `yaml:"max_frames"` // 0: run until interrupted
	Phases    int    `yaml:"phases"`     // default 3
	Domains   int    `yaml:"domains"`    // default 2
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// OpsConfig configures the optional ops HTTP server.
type OpsConfig struct {
	Addr  string `yaml:"addr"` // empty: no server
	Token string `yaml:"token"`
}

// SceneConfig tunes the demo tasks.
type SceneConfig struct {
	// StopAt is the frame at which the long-running patrol task is stopped. 0 never stops it.
	StopAt uint64 `yaml:"stop_at"`
	// GameScale is the speed of the game clock relative to real time.
	GameScale float64 `yaml:"game_scale"`
	// Waves is how many spawn waves the demo runs.
	Waves int `yaml:"waves"`
}

// DefaultDemo returns sensible defaults.
func DefaultDemo() Demo {
	return Demo{
		Loop:  LoopConfig{FPS: 60, MaxFrames: 600, Phases: 3, Domains: 2},
		Log:   LogConfig{Level: "info", Format: "text"},
		Scene: SceneConfig{StopAt: 240, GameScale: 1, Waves: 3},
	}
}

// Interval is the frame interval derived from FPS.
func (c LoopConfig) Interval() time.Duration {
	if c.FPS <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.FPS)
}

// Validate reports every invalid field at once.
func (d Demo) Validate() error {
	var errs []error
	if d.Loop.FPS <= 0 || d.Loop.FPS > 1000 {
		errs = append(errs, fmt.Errorf("loop.fps: %d out of range (1..1000)", d.Loop.FPS))
	}
	if d.Loop.Phases <= 0 {
		errs = append(errs, fmt.Errorf("loop.phases: %d must be positive", d.Loop.Phases))
	}
	if d.Loop.Domains < 2 {
		errs = append(errs, fmt.Errorf("loop.domains: %d, the demo needs realtime and game", d.Loop.Domains))
	}
	switch d.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: %q (want text or json)", d.Log.Format))
	}
	if d.Scene.GameScale < 0 {
		errs = append(errs, fmt.Errorf("scene.game_scale: %v must not be negative", d.Scene.GameScale))
	}
	if d.Scene.Waves < 0 {
		errs = append(errs, fmt.Errorf("scene.waves: %d must not be negative", d.Scene.Waves))
	}
	return errors.Join(errs...)
}

// Load decodes YAML from r over DefaultDemo. Unknown keys are an error. An empty document yields
// the defaults.
func Load(r io.Reader) (Demo, error) {
	d := DefaultDemo()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return Demo{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Demo{}, fmt.Errorf("config: %w", err)
	}
	return d, nil
}

// LoadFile reads and decodes the YAML file at path.
func LoadFile(path string) (Demo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Demo{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Load(bytes.NewReader(data))
}

// Marshal renders d as YAML.
func (d Demo) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}
