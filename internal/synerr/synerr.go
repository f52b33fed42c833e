// Package synerr defines the sentinel error kinds of the control and
// data plane. Nothing on the hot path returns these directly — they back
// cold-path status and the handful of calls that may legitimately fail
// (PatchRouter.Connect, device/process startup).
package synerr

import "errors"

var (
	// ErrWouldCycle is returned by PatchRouter.Connect when the edge would
	// introduce a cycle. The graph is left unchanged.
	ErrWouldCycle = errors.New("synerr: connect would introduce a cycle")

	// ErrUnknownModule is returned internally when a command or edge names
	// a module id the host/router doesn't have. Callers on the command
	// path drop silently instead of surfacing this.
	ErrUnknownModule = errors.New("synerr: unknown module id")

	// ErrChainFull is returned by ModuleHost.AddModule when the chain is
	// already at its construction-time bound.
	ErrChainFull = errors.New("synerr: module chain at capacity")

	// ErrEdgeCapacity is returned by PatchRouter.Connect when adding the
	// edge would exceed MaxEdges.
	ErrEdgeCapacity = errors.New("synerr: edge buffer capacity exceeded")

	// ErrDeviceUnavailable surfaces a sound-device acquisition failure to
	// the caller of audiodev.OpenPortAudio.
	ErrDeviceUnavailable = errors.New("synerr: sound device unavailable")

	// ErrSpawnFailed surfaces a worker process spawn failure to the caller
	// of Supervisor.Start.
	ErrSpawnFailed = errors.New("synerr: worker process spawn failed")
)
