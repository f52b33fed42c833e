// Command modsynth-worker is the isolated DSP subprocess the
// supervisor spawns into one of its two slots. It never owns the
// sound device or a module registry decision of its own — its module
// chain (or DAG) comes from the same config file the supervisor loaded,
// and its shared-memory rings are opened, never created, at the paths
// passed on the command line.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/soundworks/modsynth/internal/config"
	"github.com/soundworks/modsynth/internal/host"
	"github.com/soundworks/modsynth/internal/module"
	"github.com/soundworks/modsynth/internal/ring"
	"github.com/soundworks/modsynth/internal/router"
	"github.com/soundworks/modsynth/internal/shm"
	"github.com/soundworks/modsynth/internal/worker"
)

func main() {
	var (
		slot          = pflag.Int("slot", -1, "Slot index (0 or 1).")
		audioPath     = pflag.String("audio-path", "", "Path to this slot's audio ring shared-memory file.")
		cmdPath       = pflag.String("cmd-path", "", "Path to this slot's command ring shared-memory file.")
		heartbeatPath = pflag.String("heartbeat-path", "", "Path to this slot's heartbeat shared-memory file.")
		wakeupPath    = pflag.String("wakeup-path", "", "Path to this slot's wakeup signal shared-memory file.")
		shutdownPath  = pflag.String("shutdown-path", "", "Path to this slot's shutdown signal shared-memory file.")
		configPath    = pflag.StringP("config", "c", "", "Deployment YAML config file.")
		logLevel      = pflag.String("log-level", "", "Override the config file's log level.")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: modsynth-worker --slot N --audio-path P --cmd-path P ... [options]\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *slot != 0 && *slot != 1 {
		fmt.Fprintln(os.Stderr, "modsynth-worker: --slot must be 0 or 1")
		os.Exit(2)
	}
	if *audioPath == "" || *cmdPath == "" || *heartbeatPath == "" || *wakeupPath == "" || *shutdownPath == "" {
		fmt.Fprintln(os.Stderr, "modsynth-worker: --audio-path, --cmd-path, --heartbeat-path, --wakeup-path and --shutdown-path are all required")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "modsynth-worker:", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "modsynth-worker:", err)
		os.Exit(1)
	}

	logger := log.Default()
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	logger = logger.With("component", "worker", "slot", *slot)

	audioSeg, err := shm.Open(*audioPath, ring.AudioSize(cfg.RingDepth, cfg.BufferLen))
	if err != nil {
		logger.Error("open audio segment", "err", err)
		os.Exit(1)
	}
	cmdSeg, err := shm.Open(*cmdPath, ring.CmdSize(cfg.CmdDepth))
	if err != nil {
		logger.Error("open cmd segment", "err", err)
		os.Exit(1)
	}
	hbSeg, err := shm.Open(*heartbeatPath, ring.HeartbeatSize)
	if err != nil {
		logger.Error("open heartbeat segment", "err", err)
		os.Exit(1)
	}
	wakeSeg, err := shm.Open(*wakeupPath, ring.SignalSize)
	if err != nil {
		logger.Error("open wakeup segment", "err", err)
		os.Exit(1)
	}
	shutSeg, err := shm.Open(*shutdownPath, ring.SignalSize)
	if err != nil {
		logger.Error("open shutdown segment", "err", err)
		os.Exit(1)
	}

	processor, err := buildProcessor(cfg)
	if err != nil {
		logger.Error("build module graph", "err", err)
		os.Exit(1)
	}

	w := worker.New(worker.Config{
		SlotID:     fmt.Sprintf("%d", *slot),
		SampleRate: cfg.SampleRate,
		BufferLen:  cfg.BufferLen,
		Audio:      ring.NewAudio(audioSeg.Data, cfg.RingDepth, cfg.BufferLen),
		Cmd:        ring.NewCmd(cmdSeg.Data, cfg.CmdDepth),
		Heartbeat:  ring.NewHeartbeat(hbSeg.Data),
		Wakeup:     ring.NewSignal(wakeSeg.Data),
		Shutdown:   ring.NewSignal(shutSeg.Data),
		LeadTarget: cfg.LeadTargetBuffers,
	}, processor)

	logger.Info("worker starting", "modules", len(cfg.Graph.Modules), "mode", cfg.Graph.Mode)
	w.Run()
	logger.Info("worker exiting")
}

// buildProcessor instantiates either a ModuleHost or a PatchRouter from
// the deployment's graph declaration, both satisfying worker.Processor.
func buildProcessor(cfg config.Config) (worker.Processor, error) {
	reg := module.NewRegistry()

	switch cfg.Graph.Mode {
	case "dag":
		r := router.New(len(cfg.Graph.Edges), cfg.BufferLen)
		for _, ms := range cfg.Graph.Modules {
			m, err := reg.Create(ms.Type, cfg.SampleRate, cfg.BufferLen)
			if err != nil {
				return nil, fmt.Errorf("module %q: %w", ms.ID, err)
			}
			r.AddModule(ms.ID, m)
		}
		for _, es := range cfg.Graph.Edges {
			if err := r.Connect(es.Src, es.Dst); err != nil {
				return nil, fmt.Errorf("edge %s->%s: %w", es.Src, es.Dst, err)
			}
		}
		if cfg.Graph.Sink != "" {
			r.SetSink(cfg.Graph.Sink)
		}
		return r, nil
	default:
		h := host.NewHost(len(cfg.Graph.Modules), cfg.BufferLen)
		for _, ms := range cfg.Graph.Modules {
			m, err := reg.Create(ms.Type, cfg.SampleRate, cfg.BufferLen)
			if err != nil {
				return nil, fmt.Errorf("module %q: %w", ms.ID, err)
			}
			if err := h.AddModule(ms.ID, m); err != nil {
				return nil, fmt.Errorf("module %q: %w", ms.ID, err)
			}
		}
		return h, nil
	}
}
