package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"roiflow/vol"
)

// OutPort is the conventional name of an operator's primary output port.
const OutPort = "out"

// NodeID is the stable identifier of an operator node within a graph.
type NodeID string

// PortROI pairs an output port with a region, used to report dirty regions.
type PortROI struct {
	Port string
	ROI  vol.ROI
}

// Sentinel errors for contract violations.  These indicate programming
// errors in graph wiring or operator implementations, not recoverable
// runtime conditions.
var (
	ErrNotConfigured = errors.New("graph is not configured")
	ErrOutOfBounds   = errors.New("requested ROI exceeds declared bounds")
	ErrShapeMismatch = errors.New("computed result shape differs from requested ROI")
)

// Operator is the contract every graph node implements.
type Operator interface {
	// Name identifies the operator kind for logging.
	Name() string

	// SetInput attaches an upstream handle to the named input port.
	// Called by Graph.Connect; operators without the port return an error.
	SetInput(port string, in *Input) error

	// Configure validates inputs and parameters and computes output
	// metadata.  It must be idempotent and safe to call repeatedly.
	Configure() error

	// Metadata returns the descriptor for the named output port.
	Metadata(port string) (Metadata, error)

	// Execute returns exactly the requested sub-volume for the named
	// output port, fully populated.
	Execute(ctx context.Context, port string, roi vol.ROI) (*vol.Array, error)

	// PropagateDirty maps an invalidated region on the named input port to
	// the minimal dirty regions on this operator's outputs.
	PropagateDirty(input string, roi vol.ROI) ([]PortROI, error)
}

type edge struct {
	src     NodeID
	srcPort string
	dst     NodeID
	dstPort string
}

type node struct {
	id         NodeID
	op         Operator
	upstream   map[string]edge // keyed by this node's input port
	downstream []edge
}

// Graph is an explicit DAG of operator nodes.  Wiring (Add, Connect) and
// Configure are expected during setup or reconfiguration; Pull and
// SetDirty may then be issued concurrently.
type Graph struct {
	mu         sync.RWMutex
	nodes      map[NodeID]*node
	configured bool
}

func NewGraph() *Graph {
	return &Graph{nodes: make(map[NodeID]*node)}
}

// Add registers an operator under a stable id.
func (g *Graph) Add(id NodeID, op Operator) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, found := g.nodes[id]; found {
		return fmt.Errorf("node %q already exists in graph", id)
	}
	g.nodes[id] = &node{id: id, op: op, upstream: make(map[string]edge)}
	g.configured = false
	return nil
}

// Operator returns the operator registered under the given id.
func (g *Graph) Operator(id NodeID) (Operator, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, found := g.nodes[id]
	if !found {
		return nil, false
	}
	return n.op, true
}

// Connect wires the src node's output port to the dst node's input port.
// The edge must not close a cycle and the input port must be free.
func (g *Graph) Connect(src NodeID, srcPort string, dst NodeID, dstPort string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	srcNode, found := g.nodes[src]
	if !found {
		return fmt.Errorf("unknown source node %q", src)
	}
	dstNode, found := g.nodes[dst]
	if !found {
		return fmt.Errorf("unknown destination node %q", dst)
	}
	if prev, connected := dstNode.upstream[dstPort]; connected {
		return fmt.Errorf("input %q of node %q is already fed by %q", dstPort, dst, prev.src)
	}
	if src == dst || g.reachable(dst, src) {
		return fmt.Errorf("connecting %q -> %q would close a cycle", src, dst)
	}

	e := edge{src: src, srcPort: srcPort, dst: dst, dstPort: dstPort}
	if err := dstNode.op.SetInput(dstPort, &Input{g: g, src: src, port: srcPort}); err != nil {
		return fmt.Errorf("node %q rejects input %q: %v", dst, dstPort, err)
	}
	dstNode.upstream[dstPort] = e
	srcNode.downstream = append(srcNode.downstream, e)
	g.configured = false
	return nil
}

// reachable reports whether `to` can be reached from `from` via downstream
// edges.  Caller holds g.mu.
func (g *Graph) reachable(from, to NodeID) bool {
	seen := make(map[NodeID]bool)
	stack := []NodeID{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, e := range g.nodes[id].downstream {
			stack = append(stack, e.dst)
		}
	}
	return false
}

// Configure runs every operator's Configure in topological order so each
// node sees up-to-date upstream metadata.  Must be called after wiring
// changes or parameter changes and before any Pull.  Wiring calls (Add,
// Connect) must not run concurrently with Configure.
func (g *Graph) Configure() error {
	g.mu.Lock()
	order, err := g.topoOrder()
	if err != nil {
		g.mu.Unlock()
		return err
	}
	ops := make([]Operator, len(order))
	for i, id := range order {
		ops[i] = g.nodes[id].op
	}
	g.mu.Unlock()

	// Operators read upstream metadata through the graph during their own
	// Configure, so the lock must not be held across these calls.
	for i, op := range ops {
		if err := op.Configure(); err != nil {
			return fmt.Errorf("configuring node %q: %w", order[i], err)
		}
	}

	g.mu.Lock()
	g.configured = true
	g.mu.Unlock()
	return nil
}

// Invalidate marks the graph's metadata stale, forcing a Configure before
// the next Pull.  Call after changing operator parameters directly.
func (g *Graph) Invalidate() {
	g.mu.Lock()
	g.configured = false
	g.mu.Unlock()
}

// topoOrder returns node ids in dependency order.  Caller holds g.mu.
func (g *Graph) topoOrder() ([]NodeID, error) {
	indegree := make(map[NodeID]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = 0
	}
	for _, n := range g.nodes {
		indegree[n.id] = len(n.upstream)
	}
	var ready []NodeID
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	var order []NodeID
	for len(ready) > 0 {
		id := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		order = append(order, id)
		for _, e := range g.nodes[id].downstream {
			indegree[e.dst]--
			if indegree[e.dst] == 0 {
				ready = append(ready, e.dst)
			}
		}
	}
	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("graph contains a cycle")
	}
	return order, nil
}

// Pull requests a sub-volume from a node's output port, enforcing the
// execute contract: the graph must be configured, the ROI must lie within
// the declared shape, and the result must match the ROI's shape exactly.
func (g *Graph) Pull(ctx context.Context, id NodeID, port string, roi vol.ROI) (*vol.Array, error) {
	g.mu.RLock()
	n, found := g.nodes[id]
	configured := g.configured
	g.mu.RUnlock()

	if !found {
		return nil, fmt.Errorf("unknown node %q", id)
	}
	if !configured {
		return nil, fmt.Errorf("pull of %q.%s: %w", id, port, ErrNotConfigured)
	}
	meta, err := n.op.Metadata(port)
	if err != nil {
		return nil, fmt.Errorf("pull of %q.%s: %v", id, port, err)
	}
	if !roi.Within(meta.Shape) {
		return nil, fmt.Errorf("pull of %q.%s with ROI %s, shape %s: %w",
			id, port, roi, meta.Shape, ErrOutOfBounds)
	}
	result, err := n.op.Execute(ctx, port, roi)
	if err != nil {
		return nil, err
	}
	if !result.Shape().Equals(roi.Shape()) {
		return nil, fmt.Errorf("node %q.%s returned shape %s for ROI %s: %w",
			id, port, result.Shape(), roi, ErrShapeMismatch)
	}
	if result.DataType() != meta.DType {
		return nil, fmt.Errorf("node %q.%s returned %s data, declared %s: %w",
			id, port, result.DataType(), meta.DType, ErrShapeMismatch)
	}
	return result, nil
}

// SetDirty notifies all transitive consumers of (id, port) that the given
// region is invalid.  Each consumer translates the region through its own
// PropagateDirty before the walk continues downstream.
func (g *Graph) SetDirty(id NodeID, port string, roi vol.ROI) error {
	type pending struct {
		id   NodeID
		port string
		roi  vol.ROI
	}
	queue := []pending{{id, port, roi}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		g.mu.RLock()
		n, found := g.nodes[cur.id]
		var consumers []edge
		if found {
			consumers = append(consumers, n.downstream...)
		}
		g.mu.RUnlock()
		if !found {
			return fmt.Errorf("unknown node %q in dirty propagation", cur.id)
		}

		for _, e := range consumers {
			if e.srcPort != cur.port {
				continue
			}
			g.mu.RLock()
			consumer := g.nodes[e.dst]
			g.mu.RUnlock()
			dirtied, err := consumer.op.PropagateDirty(e.dstPort, cur.roi)
			if err != nil {
				return fmt.Errorf("dirty propagation through node %q: %v", e.dst, err)
			}
			for _, d := range dirtied {
				queue = append(queue, pending{e.dst, d.Port, d.ROI})
			}
		}
	}
	return nil
}

// Input is the handle an operator holds for one connected upstream output.
type Input struct {
	g    *Graph
	src  NodeID
	port string
}

// Connected returns true if the input has been wired to a producer.
func (in *Input) Connected() bool {
	return in != nil && in.g != nil
}

// Source identifies the producer node and port feeding this input.
func (in *Input) Source() (NodeID, string) {
	return in.src, in.port
}

// Metadata returns the producer's current output descriptor.
func (in *Input) Metadata() (Metadata, error) {
	if !in.Connected() {
		return Metadata{}, fmt.Errorf("input is not connected")
	}
	op, found := in.g.Operator(in.src)
	if !found {
		return Metadata{}, fmt.Errorf("input producer %q vanished from graph", in.src)
	}
	return op.Metadata(in.port)
}

// Pull fetches a sub-volume from the producer, with full contract checks.
func (in *Input) Pull(ctx context.Context, roi vol.ROI) (*vol.Array, error) {
	if !in.Connected() {
		return nil, fmt.Errorf("input is not connected")
	}
	return in.g.Pull(ctx, in.src, in.port, roi)
}
