// Command modsynth-supervisor is the top-level process: it owns the
// sound device, spawns the two modsynth-worker subprocesses into their
// slots, runs the failover monitor, and fans every control-input
// source (sequencer, OSC-style UDP, GPIO) into both slots' command
// rings.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/soundworks/modsynth/internal/audiodev"
	"github.com/soundworks/modsynth/internal/config"
	"github.com/soundworks/modsynth/internal/gpioctl"
	"github.com/soundworks/modsynth/internal/oscctl"
	"github.com/soundworks/modsynth/internal/sequencer"
	"github.com/soundworks/modsynth/internal/supervisor"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "Deployment YAML config file.")
		sampleRate = pflag.Int("sample-rate", 0, "Override the config file's sample rate.")
		bufferLen  = pflag.Int("buffer-size", 0, "Override the config file's buffer length, in frames.")
		logLevel   = pflag.String("log-level", "", "Override the config file's log level.")
		shmDir     = pflag.String("shm-dir", "", "Override the config file's shared-memory directory.")
		device     = pflag.String("device", "", `Sound device backend: "portaudio" or "null".`)
		oscAddr    = pflag.String("osc-listen", "", "Address to listen for OSC-style control datagrams on, e.g. :5005. Empty disables it.")
		workerPath = pflag.String("worker-bin", "", "Path to the modsynth-worker binary. Defaults to the binary alongside this one.")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: modsynth-supervisor [options]\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "modsynth-supervisor:", err)
		os.Exit(1)
	}
	if *sampleRate != 0 {
		cfg.SampleRate = *sampleRate
	}
	if *bufferLen != 0 {
		cfg.BufferLen = *bufferLen
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *shmDir != "" {
		cfg.ShmDir = *shmDir
	}
	if *device != "" {
		cfg.Device = *device
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "modsynth-supervisor:", err)
		os.Exit(1)
	}

	logger := log.Default()
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	binPath := *workerPath
	if binPath == "" {
		self, err := os.Executable()
		if err != nil {
			logger.Error("resolve own executable path", "err", err)
			os.Exit(1)
		}
		binPath = filepath.Join(filepath.Dir(self), "modsynth-worker")
	}

	svCfg := supervisor.Config{
		SampleRate:         cfg.SampleRate,
		BufferLen:          cfg.BufferLen,
		RingDepth:          cfg.RingDepth,
		CmdDepth:           cfg.CmdDepth,
		KeepAfterRead:      cfg.KeepAfterRead,
		HeartbeatTimeout:   time.Duration(cfg.HeartbeatTimeoutMS) * time.Millisecond,
		StartupGracePeriod: time.Duration(cfg.StartupGracePeriodMS) * time.Millisecond,
		MonitorPeriod:      time.Duration(cfg.MonitorPeriodMS) * time.Millisecond,
		StopGrace:          500 * time.Millisecond,
		DedupWindow:        time.Second,
		ShmDir:             cfg.ShmDir,
	}
	sv := supervisor.New(svCfg, supervisor.ExecSpawner{Path: binPath}, logger)

	if err := os.MkdirAll(cfg.ShmDir, 0o700); err != nil {
		logger.Error("create shm dir", "err", err)
		os.Exit(1)
	}
	if err := sv.Start(); err != nil {
		logger.Error("start supervisor", "err", err)
		os.Exit(1)
	}

	var dev audiodev.Device
	switch cfg.Device {
	case "null":
		dev = audiodev.NewNull(cfg.SampleRate, cfg.BufferLen, sv.AudioCallback)
	default:
		dev, err = audiodev.OpenPortAudio(cfg.SampleRate, cfg.BufferLen, sv.AudioCallback)
		if err != nil {
			logger.Error("open sound device", "err", err)
			sv.Stop()
			os.Exit(1)
		}
	}
	if err := dev.Start(); err != nil {
		logger.Error("start sound device", "err", err)
		sv.Stop()
		os.Exit(1)
	}

	seq := buildSequencer(cfg, sv)
	seq.Start()

	var osc *oscctl.Listener
	if *oscAddr != "" {
		osc, err = oscctl.Listen(*oscAddr, sv.SendCommand, logger)
		if err != nil {
			logger.Error("start osc listener", "err", err)
		}
	}

	var gpio *gpioctl.Listener
	if cfg.GPIOChip != "" && len(cfg.GPIOGates) > 0 {
		var gates []gpioctl.Gate
		for moduleID, line := range cfg.GPIOGates {
			gates = append(gates, gpioctl.Gate{Line: line, ModuleID: moduleID})
		}
		gpio, err = gpioctl.Open(cfg.GPIOChip, gates, 5*time.Millisecond, sv.SendCommand)
		if err != nil {
			logger.Error("start gpio listener", "err", err)
		}
	}

	logger.Info("modsynth-supervisor running", "sample_rate", cfg.SampleRate, "buffer_len", cfg.BufferLen, "device", cfg.Device)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	seq.Stop()
	if osc != nil {
		osc.Close()
	}
	if gpio != nil {
		gpio.Close()
	}
	dev.Stop()
	dev.Close()
	sv.Stop()
}

// buildSequencer wires a SequencerManager from the deployment's track
// declarations, emitting into both of the supervisor's slots via
// Supervisor.SendCommand.
func buildSequencer(cfg config.Config, sv *supervisor.Supervisor) *sequencer.SequencerManager {
	m := sequencer.NewManager(cfg.SampleRate, cfg.BufferLen, sendCommandWriter{sv})
	for _, ts := range cfg.Tracks {
		lanes := make([]sequencer.ParamLane, 0, len(ts.ParamLanes))
		for name, values := range ts.ParamLanes {
			lanes = append(lanes, sequencer.ParamLane{ParamName: name, Values: values})
		}
		m.AddTrack(sequencer.TrackSpec{
			Name:           ts.Name,
			BPM:            ts.BPM,
			Division:       ts.Division,
			Pattern:        ts.Pattern,
			GateLengthFrac: ts.GateLengthFrac,
			TargetModuleID: ts.TargetModuleID,
			ParamLanes:     lanes,
			Playing:        ts.Playing,
		})
	}
	return m
}

// sendCommandWriter adapts Supervisor.SendCommand to sequencer.CmdWriter.
type sendCommandWriter struct{ sv *supervisor.Supervisor }

func (w sendCommandWriter) Write(raw []byte) { w.sv.SendCommand(raw) }
