package supervisor

import (
	"fmt"

	"github.com/soundworks/modsynth/internal/procsup"
)

// ExecSpawner spawns the worker binary at Path, passing it the slot
// index and shared-memory paths as flags it re-reads on startup (the
// worker process reopens these via shm.Open, never inheriting the
// supervisor's *shm.Segment directly).
type ExecSpawner struct {
	Path string
}

// Spawn implements Spawner.
func (e ExecSpawner) Spawn(slotIndex int, paths SlotPaths) (ProcHandle, error) {
	args := []string{
		"--slot", fmt.Sprintf("%d", slotIndex),
		"--audio-path", paths.AudioPath,
		"--cmd-path", paths.CmdPath,
		"--heartbeat-path", paths.HeartbeatPath,
		"--wakeup-path", paths.WakeupPath,
		"--shutdown-path", paths.ShutdownPath,
	}
	return procsup.Spawn(e.Path, args...)
}
