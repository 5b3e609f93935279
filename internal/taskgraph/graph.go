// Package taskgraph implements a generic concurrent DAG task executor:
// atomic per-node state, WaitGroup-based completion tracking, ready-channel
// dispatch, dependency-count decrementing to unlock dependents, and
// sync.Once-guarded skip propagation on failure. Adapted from a worker-pool
// DAG executor (dag.go/executor.go/nodes.go) keyed on a fixed
// ResourceNode/StepNode typing, generalized to an arbitrary NodeKind so
// internal/engine can parametrize it with backward/forward sweep node
// kinds.
package taskgraph

import (
	"sync"
	"sync/atomic"
)

// State is a node's lifecycle state.
type State int32

const (
	Pending State = iota
	Running
	Done
	FailedState
)

// NodeKind lets a caller distinguish node categories (e.g. resource vs.
// step) without taskgraph needing to know about them; Run dispatches purely
// on the Node's Run function, Kind is informational/used by callers post-hoc.
type NodeKind int

// Node is one vertex in the graph. Run is supplied by the caller and
// executed exactly once if the node is reached; a failing Run short-circuits
// all of the node's dependents via skip propagation. Skip, if set, is
// invoked instead of Run for a node that skip propagation reaches before it
// was ever dispatched, giving the caller a chance to observe the skip
// (e.g. emit its own start/finish events) without actually running it.
type Node struct {
	ID   string
	Kind NodeKind

	Dependencies []*Node
	Dependents   []*Node

	Run  func() error
	Skip func()

	state    atomic.Int32
	depCount atomic.Int32
	Error    error
	skipOnce sync.Once
}

// State returns the node's current lifecycle state.
func (n *Node) State() State {
	return State(n.state.Load())
}

// Graph is a set of Nodes connected by Dependencies/Dependents edges,
// built by the caller (typically via AddNode + Connect) before Run.
type Graph struct {
	Nodes []*Node
}

// NewGraph returns an empty Graph.
func NewGraph() *Graph {
	return &Graph{}
}

// AddNode registers a node with the graph and returns it.
func (g *Graph) AddNode(id string, kind NodeKind, run func() error) *Node {
	n := &Node{ID: id, Kind: kind, Run: run}
	g.Nodes = append(g.Nodes, n)
	return n
}

// Connect records that `to` depends on `from`: `from` must complete before
// `to` becomes eligible to run.
func (g *Graph) Connect(from, to *Node) {
	from.Dependents = append(from.Dependents, to)
	to.Dependencies = append(to.Dependencies, from)
	to.depCount.Add(1)
}
