// Package config loads the deployment-wide engine settings from a YAML
// file, with command-line flags taking precedence over it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModuleSpec declares one module instance in a chain or DAG deployment.
type ModuleSpec struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
}

// EdgeSpec declares one PatchRouter connection; ignored in chain mode.
type EdgeSpec struct {
	Src string `yaml:"src"`
	Dst string `yaml:"dst"`
}

// TrackSpec declares one sequencer track.
type TrackSpec struct {
	Name              string             `yaml:"name"`
	BPM               float64            `yaml:"bpm"`
	Division          int                `yaml:"division"`
	Pattern           string             `yaml:"pattern"`
	GateLengthFrac    float64            `yaml:"gate_length_fraction"`
	TargetModuleID    string             `yaml:"target_module_id"`
	ParamLanes        map[string][]float64 `yaml:"param_lanes"`
	Playing           bool               `yaml:"playing"`
}

// Config is the full deployment configuration: the ambient engine
// parameters plus the module/chain-or-DAG and sequencer declarations
// that describe one concrete synth patch.
type Config struct {
	SampleRate int `yaml:"sample_rate"`
	BufferLen  int `yaml:"buffer_len"`
	RingDepth  int `yaml:"ring_depth"`
	CmdDepth   int `yaml:"cmd_depth"`

	HeartbeatTimeoutMS   int `yaml:"heartbeat_timeout_ms"`
	StartupGracePeriodMS int `yaml:"startup_grace_period_ms"`
	MonitorPeriodMS      int `yaml:"monitor_period_ms"`
	LeadTargetBuffers    int `yaml:"lead_target_buffers"`
	MaxCatchupBuffers    int `yaml:"max_catchup_buffers"`
	KeepAfterRead        int `yaml:"keep_after_read"`

	ShmDir string `yaml:"shm_dir"`
	Device string `yaml:"device"` // "portaudio" or "null"
	LogLevel string `yaml:"log_level"`

	Graph struct {
		Mode    string       `yaml:"mode"` // "chain" or "dag"
		Modules []ModuleSpec `yaml:"modules"`
		Edges   []EdgeSpec   `yaml:"edges"` // dag mode only
		Sink    string       `yaml:"sink"`  // dag mode only
	} `yaml:"graph"`

	Tracks []TrackSpec `yaml:"tracks"`

	GPIOChip string            `yaml:"gpio_chip"`
	GPIOGates map[string]int   `yaml:"gpio_gates"` // module id -> line offset
}

// Default returns the reference configuration: SR=44100, B=512,
// N=16, S=32, a 50ms heartbeat timeout, a 1s startup grace period, a
// ~10ms monitor cadence, LEAD_TARGET=2, MAX_CATCHUP=2,
// KEEP_AFTER_READ=2.
func Default() Config {
	var c Config
	c.SampleRate = 44100
	c.BufferLen = 512
	c.RingDepth = 16
	c.CmdDepth = 32
	c.HeartbeatTimeoutMS = 50
	c.StartupGracePeriodMS = 1000
	c.MonitorPeriodMS = 10
	c.LeadTargetBuffers = 2
	c.MaxCatchupBuffers = 2
	c.KeepAfterRead = 2
	c.ShmDir = "/dev/shm/modsynth"
	c.Device = "portaudio"
	c.LogLevel = "info"
	c.Graph.Mode = "chain"
	return c
}

// Load reads path (if non-empty and it exists) over the defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

// Validate rejects a handful of configuration shapes the rest of the
// system assumes are impossible by construction.
func (c Config) Validate() error {
	if c.BufferLen <= 0 || c.SampleRate <= 0 {
		return fmt.Errorf("config: sample_rate and buffer_len must be positive")
	}
	if c.RingDepth < 2 {
		return fmt.Errorf("config: ring_depth must be at least 2")
	}
	if c.Graph.Mode != "chain" && c.Graph.Mode != "dag" {
		return fmt.Errorf("config: graph.mode must be \"chain\" or \"dag\", got %q", c.Graph.Mode)
	}
	return nil
}
