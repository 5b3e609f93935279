// Package engine implements the two-sweep DAG scheduler: a backward
// resource-gathering sweep followed by a forward execution sweep, ported
// from spine_engine.py. The original's Dagster-based pipeline
// (_make_pipeline/_make_backward_solid_def/_make_forward_solid_def) is
// replaced by internal/taskgraph, an in-house topological scheduler.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ncruces/go-strftime"

	"github.com/specialistvlad/spine-engine-go/internal/connection"
	"github.com/specialistvlad/spine-engine-go/internal/event"
	"github.com/specialistvlad/spine-engine-go/internal/item"
	"github.com/specialistvlad/spine-engine-go/internal/queuelogger"
	"github.com/specialistvlad/spine-engine-go/internal/resource"
	"github.com/specialistvlad/spine-engine-go/internal/taskgraph"
)

// timestamp formats "now" the way SpineEngine's run-scoped timestamp is
// created, for embedding in ExecutionFilterDescriptor.
func timestamp() string {
	return strftime.Format("%Y-%m-%dT%H:%M:%S", nowFunc())
}

// Engine coordinates a fixed set of items and connections through one
// two-sweep execution, mirroring SpineEngine.
type Engine struct {
	items       map[string]item.ExecutableItem
	connections []*connection.Connection
	// permits mirrors execution_permits: whether a given item is actually
	// allowed to run (vs. excluded-but-passed-through).
	permits map[string]bool

	predecessors map[string][]string
	successors   map[string][]string
	inbound      map[string][]*connection.Connection // connections keyed by Destination
	outbound     map[string][]*connection.Connection // connections keyed by Source

	state  *event.State
	events chan event.Event

	mu          sync.Mutex
	backwardRes map[string][]resource.Resource
	forwardOut  map[string][]resource.Resource // per item, flattened across its sub-executions; filter_id metadata disambiguates
	stopping    bool
	stopOnce    sync.Once
	stopCh      chan struct{}
	workerCount int

	promptsMu sync.Mutex
	prompts   map[string]*pendingPrompt
}

// defaultPackSuffix is the file-name suffix ConvertResources folds into a
// pack when a connection has UseDatapackage set, mirroring the original's
// hardcoded ".csv" handling.
const defaultPackSuffix = ".csv"

// Config bundles an Engine's construction inputs, mirroring SpineEngine's
// constructor parameters (items, connections, execution_permits).
type Config struct {
	Items            map[string]item.ExecutableItem
	Connections      []*connection.Connection
	ExecutionPermits map[string]bool
	WorkerCount      int
	EventBuffer      int
	// Events, when non-nil, is used as the engine's event stream instead of
	// a freshly allocated channel, letting a caller build ExecutableItems
	// against a queuelogger.QueueLogger pointed at the same channel before
	// the Engine itself exists (see cmd/enginectl).
	Events chan event.Event
}

// New validates and constructs an Engine, mirroring SpineEngine.__init__'s
// validation steps (_validate_dag, _validate_and_sort_connections,
// _check_write_index).
func New(cfg Config) (*Engine, error) {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 4
	}
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = 256
	}

	e := &Engine{
		items:        cfg.Items,
		connections:  cfg.Connections,
		permits:      cfg.ExecutionPermits,
		predecessors: make(map[string][]string),
		successors:   make(map[string][]string),
		inbound:      make(map[string][]*connection.Connection),
		outbound:     make(map[string][]*connection.Connection),
		state:        event.NewState(),
		events:       cfg.Events,
		backwardRes:  make(map[string][]resource.Resource),
		forwardOut:   make(map[string][]resource.Resource),
		stopCh:       make(chan struct{}),
		workerCount:  cfg.WorkerCount,
		prompts:      make(map[string]*pendingPrompt),
	}
	if e.permits == nil {
		e.permits = make(map[string]bool)
	}
	if e.events == nil {
		e.events = make(chan event.Event, cfg.EventBuffer)
	}

	for _, c := range cfg.Connections {
		if _, ok := e.items[c.Source]; !ok {
			return nil, fmt.Errorf("engine: connection %q references unknown source item", c.Name())
		}
		if _, ok := e.items[c.Destination]; !ok {
			return nil, fmt.Errorf("engine: connection %q references unknown destination item", c.Name())
		}
		e.successors[c.Source] = append(e.successors[c.Source], c.Destination)
		e.predecessors[c.Destination] = append(e.predecessors[c.Destination], c.Source)
		e.inbound[c.Destination] = append(e.inbound[c.Destination], c)
		e.outbound[c.Source] = append(e.outbound[c.Source], c)
	}
	for _, it := range e.items {
		if _, ok := e.permits[it.Name()]; !ok {
			e.permits[it.Name()] = true
		}
	}

	if err := e.validateAcyclic(); err != nil {
		return nil, err
	}
	if err := e.validateWriteIndex(); err != nil {
		return nil, err
	}

	return e, nil
}

// validateAcyclic mirrors _validate_dag's networkx DAG check: builds one
// taskgraph over the forward edges with no Run functions and runs it, so
// taskgraph.Run's cycle check is the only work done.
func (e *Engine) validateAcyclic() error {
	g := taskgraph.NewGraph()
	nodes := make(map[string]*taskgraph.Node, len(e.items))
	for name := range e.items {
		nodes[name] = g.AddNode(name, 0, nil)
	}
	for dst, srcs := range e.predecessors {
		for _, src := range srcs {
			g.Connect(nodes[src], nodes[dst])
		}
	}
	return taskgraph.Run(context.Background(), g, 1, nil)
}

// validateWriteIndex mirrors SpineEngine._check_write_index: rejects a DAG
// where two sibling connections into the same destination disagree about
// write ordering relative to their position in the graph. Our simplified
// model: every connection into a destination must come from a distinct
// source, i.e. no duplicate edges, since a duplicate edge has no
// well-defined write order.
func (e *Engine) validateWriteIndex() error {
	seen := make(map[string]map[string]bool)
	for _, c := range e.connections {
		byDest, ok := seen[c.Destination]
		if !ok {
			byDest = make(map[string]bool)
			seen[c.Destination] = byDest
		}
		if byDest[c.Source] {
			return fmt.Errorf("engine: duplicate connection %s -> %s has no well-defined write order", c.Source, c.Destination)
		}
		byDest[c.Source] = true
	}
	return nil
}

// Events returns the engine's event stream.
func (e *Engine) Events() <-chan event.Event {
	return e.events
}

// NewLogger returns a QueueLogger writing onto this engine's event stream,
// for callers (e.g. cmd/enginectl) that want to build ExecutableItems
// before the Engine itself is constructed by pre-allocating the channel via
// Config.Events and handing each item a logger pointed at it.
func (e *Engine) NewLogger(author, filterID string) *queuelogger.QueueLogger {
	return queuelogger.New(e.events, author, filterID)
}

// State returns the current engine state.
func (e *Engine) State() event.EngineState {
	return e.state.Load()
}

// Stop requests that the engine halt as soon as possible, mirroring the
// original's USER_STOPPED transition plus stop_execution() fan-out to every
// currently-running item.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopping = true
	e.mu.Unlock()
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.state.SetIfNotTerminal(event.UserStopped)
	for _, it := range e.items {
		it.StopExecution()
	}
}

func (e *Engine) isStopping() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopping
}

// sortedNames returns item names sorted, for deterministic iteration where
// ordering doesn't otherwise matter.
func (e *Engine) sortedNames() []string {
	names := make([]string, 0, len(e.items))
	for name := range e.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
