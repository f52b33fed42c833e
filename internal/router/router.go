// Package router implements PatchRouter, the optional DAG-mode module
// host: a directed acyclic graph over modules with pre-allocated
// per-edge buffers and Kahn-ordered processing.
package router

import (
	"github.com/soundworks/modsynth/internal/control"
	"github.com/soundworks/modsynth/internal/module"
	"github.com/soundworks/modsynth/internal/statz"
	"github.com/soundworks/modsynth/internal/synerr"
)

type node struct {
	id [16]byte
	m  module.Module
	// mix is the pre-allocated input buffer formed by summing every
	// incoming edge.
	mix []float32
	out []float32
}

type edge struct {
	src, dst [16]byte
	buf      []float32
}

// Router is the PatchRouter: AddModule/Connect/Disconnect are
// cold-path calls made only while reconfiguring between failovers,
// never from inside the audio callback. Process is the hot path and
// allocates nothing once the graph is built.
type Router struct {
	maxEdges  int
	bufLen    int
	nodes     []node
	edges     []edge
	sink      [16]byte
	hasSink   bool
	order     []int
	orderValid bool

	stats statz.WorkerStats
}

// New constructs an empty Router bounded to maxEdges connections,
// processing buffers of length bufLen.
func New(maxEdges, bufLen int) *Router {
	return &Router{
		maxEdges: maxEdges,
		bufLen:   bufLen,
		edges:    make([]edge, 0, maxEdges),
	}
}

func idOf(s string) [16]byte {
	var id [16]byte
	n := len(s)
	if n > 16 {
		n = 16
	}
	copy(id[:], s[:n])
	return id
}

// AddModule registers m under id as a router node.
func (r *Router) AddModule(id string, m module.Module) {
	r.nodes = append(r.nodes, node{
		id:  idOf(id),
		m:   m,
		mix: make([]float32, r.bufLen),
		out: make([]float32, r.bufLen),
	})
	r.orderValid = false
}

// SetSink designates the module whose output Process returns.
func (r *Router) SetSink(id string) {
	r.sink = idOf(id)
	r.hasSink = true
}

func (r *Router) indexOf(id [16]byte) int {
	for i := range r.nodes {
		if r.nodes[i].id == id {
			return i
		}
	}
	return -1
}

// Connect adds a directed edge src->dst. It fails with
// synerr.ErrWouldCycle if the edge would introduce a cycle, leaving
// the graph unchanged. It fails with synerr.ErrEdgeCapacity past
// maxEdges, and synerr.ErrUnknownModule if either endpoint is not a
// registered node.
func (r *Router) Connect(src, dst string) error {
	s, d := idOf(src), idOf(dst)
	if r.indexOf(s) < 0 || r.indexOf(d) < 0 {
		return synerr.ErrUnknownModule
	}
	if len(r.edges) >= r.maxEdges {
		return synerr.ErrEdgeCapacity
	}
	if r.wouldCycle(s, d) {
		return synerr.ErrWouldCycle
	}
	r.edges = append(r.edges, edge{src: s, dst: d, buf: make([]float32, r.bufLen)})
	r.orderValid = false
	return nil
}

// Disconnect removes the edge src->dst if present.
func (r *Router) Disconnect(src, dst string) {
	s, d := idOf(src), idOf(dst)
	for i := range r.edges {
		if r.edges[i].src == s && r.edges[i].dst == d {
			r.edges = append(r.edges[:i], r.edges[i+1:]...)
			r.orderValid = false
			return
		}
	}
}

// wouldCycle reports whether adding src->dst creates a path back from
// dst to src, via DFS over the edges as they currently stand.
func (r *Router) wouldCycle(src, dst [16]byte) bool {
	if src == dst {
		return true
	}
	visited := make(map[[16]byte]bool)
	var dfs func(n [16]byte) bool
	dfs = func(n [16]byte) bool {
		if n == src {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		for _, e := range r.edges {
			if e.src == n && dfs(e.dst) {
				return true
			}
		}
		return false
	}
	return dfs(dst)
}

// ValidateGraph reports whether the current graph is acyclic.
func (r *Router) ValidateGraph() bool {
	_, ok := r.kahn()
	return ok
}

// kahn computes a topological order via Kahn's algorithm. ok is false
// iff the graph contains a cycle (should not happen given Connect's
// rejection, but kept as a defensive check).
func (r *Router) kahn() ([]int, bool) {
	n := len(r.nodes)
	indeg := make([]int, n)
	idxByID := make(map[[16]byte]int, n)
	for i, nd := range r.nodes {
		idxByID[nd.id] = i
	}
	adj := make([][]int, n)
	for _, e := range r.edges {
		si, sok := idxByID[e.src]
		di, dok := idxByID[e.dst]
		if !sok || !dok {
			continue
		}
		adj[si] = append(adj[si], di)
		indeg[di]++
	}
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, n)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, j := range adj[i] {
			indeg[j]--
			if indeg[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	return order, len(order) == n
}

func (r *Router) ensureOrder() {
	if r.orderValid {
		return
	}
	order, ok := r.kahn()
	if !ok {
		// Connect already rejects cycle-introducing edges; if we get
		// here the graph was left in an inconsistent state elsewhere.
		order = nil
	}
	r.order = order
	r.orderValid = true
}

func (r *Router) incomingEdges(nodeIdx int) []*edge {
	id := r.nodes[nodeIdx].id
	var out []*edge
	for i := range r.edges {
		if r.edges[i].dst == id {
			out = append(out, &r.edges[i])
		}
	}
	return out
}

func (r *Router) outgoingEdges(nodeIdx int) []*edge {
	id := r.nodes[nodeIdx].id
	var out []*edge
	for i := range r.edges {
		if r.edges[i].src == id {
			out = append(out, &r.edges[i])
		}
	}
	return out
}

// Process runs every module once in cached topological order, summing
// incoming edges into each node's mix buffer and fanning each node's
// output out to its outgoing edges. It
// returns the designated sink's output buffer — or, with no sink set,
// the last node visited in topological order.
func (r *Router) Process() []float32 {
	r.ensureOrder()
	var sinkOut []float32
	for _, idx := range r.order {
		nd := &r.nodes[idx]
		for i := range nd.mix {
			nd.mix[i] = 0
		}
		for ei := range r.edges {
			if e := &r.edges[ei]; e.dst == nd.id {
				for i, v := range e.buf {
					nd.mix[i] += v
				}
			}
		}
		nd.m.Prepare()
		nd.m.ProcessBuffer(nd.mix, nd.out)
		for ei := range r.edges {
			if e := &r.edges[ei]; e.src == nd.id {
				copy(e.buf, nd.out)
			}
		}
		if (r.hasSink && nd.id == r.sink) || (!r.hasSink) {
			sinkOut = nd.out
		}
	}
	return sinkOut
}

// ApplyCommand applies a decoded command to the named module,
// immediately — the Router is driven from the same buffer-boundary
// point as ModuleHost. Worker wires this the same way it wires
// Host.ProcessCommands: drained once per buffer, before Process. It
// reports whether the command actually reached a module.
func (r *Router) ApplyCommand(target [16]byte, paramOrGate string, value float64, immediate bool, isGate bool) bool {
	idx := r.indexOf(target)
	if idx < 0 {
		return false
	}
	if isGate {
		g, ok := r.nodes[idx].m.(module.Gater)
		if !ok {
			return false
		}
		g.SetGate(value != 0)
		return true
	}
	return r.nodes[idx].m.SetParameter(paramOrGate, value, immediate)
}

// QueueCommand decodes a raw 64-byte Command Packet and applies it
// immediately, giving Router the same entry point Worker's drain loop
// uses for ModuleHost.QueueCommand. Malformed packets and unknown
// targets are dropped silently.
func (r *Router) QueueCommand(raw []byte) {
	var p control.Packet
	if !control.Decode(raw, &p) {
		return
	}
	switch p.Op {
	case control.OpSetParameter:
		if r.ApplyCommand(p.Target, p.ParamString(), p.Float(), p.Immediate, false) {
			r.stats.CommandsApplied.Inc()
		}
	case control.OpGate:
		gateVal := 0.0
		if p.Bool() {
			gateVal = 1
		}
		if r.ApplyCommand(p.Target, "", gateVal, false, true) {
			r.stats.CommandsApplied.Inc()
		}
	}
}

// ProcessCommands is a no-op: QueueCommand already applies immediately,
// so there is nothing left to drain. It exists only so Router
// satisfies the same buffer-boundary command-application shape as
// ModuleHost.
func (r *Router) ProcessCommands() {}

// ProcessChain runs Process, ignoring external — DAG mode has no
// single external input slot; every node's input comes from its
// incoming edges (or silence, for a node with none).
func (r *Router) ProcessChain(external []float32) []float32 {
	return r.Process()
}

// Stats is the cold-path counter snapshot.
func (r *Router) Stats() statz.WorkerStatsSnapshot { return r.stats.Snapshot() }

// EdgeCount reports the number of active connections.
func (r *Router) EdgeCount() int { return len(r.edges) }
