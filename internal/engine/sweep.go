package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/spine-engine-go/internal/connection"
	"github.com/specialistvlad/spine-engine-go/internal/event"
	"github.com/specialistvlad/spine-engine-go/internal/queuelogger"
	"github.com/specialistvlad/spine-engine-go/internal/resource"
	"github.com/specialistvlad/spine-engine-go/internal/taskgraph"
)

// scenarioFilterPrefix marks a filter id component as naming a scenario,
// mirroring the original's scenario_name_from_dict convention.
const scenarioFilterPrefix = "scenario_filter:"

// activeScenarioNames extracts the scenario names folded into a composite
// filter id (resource.CompositeFilterID's " & "/ ", "-joined form),
// mirroring _execute_item's scenarios set comprehension.
func activeScenarioNames(filterID string) []string {
	if filterID == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(filterID, " & ") {
		for _, id := range strings.Split(part, ", ") {
			if name, ok := strings.CutPrefix(id, scenarioFilterPrefix); ok {
				names = append(names, name)
			}
		}
	}
	return names
}

// expandByConnectionFilters clones each of c's resources once per active
// filter-stack combination the connection has configured for that
// resource's label (via SetOnline/FetchDatabaseItems), tagging each clone
// with the composite filter_id FanOut groups sub-executions by. A resource
// with no active filter stacks for its label passes through unchanged,
// mirroring _expand_resource_stack's role in _filtered_resources_iterator.
func expandByConnectionFilters(c *connection.Connection, resources []resource.Resource) []resource.Resource {
	out := make([]resource.Resource, 0, len(resources))
	for _, r := range resources {
		label, err := r.Label()
		if err != nil {
			out = append(out, r)
			continue
		}
		stacks := c.FilterStacks(label)
		if len(stacks) == 0 {
			out = append(out, r)
			continue
		}
		for _, stack := range stacks {
			out = append(out, r.Clone(map[string]string{filterIDKey: resource.FilterID(stack)}))
		}
	}
	return out
}

// Run executes one full pass: a backward resource-gathering sweep followed
// by a forward execution sweep, mirroring SpineEngine.run's two pipeline
// passes (_make_backward_solid_def then _make_forward_solid_def), replacing
// Dagster's PipelineDefinition/execute_pipeline_iterator with two
// internal/taskgraph runs.
func (e *Engine) Run(ctx context.Context) error {
	if !e.state.SetIfNotTerminal(event.Running) {
		return fmt.Errorf("engine: run called on a terminated engine (state %s)", e.state.Load())
	}
	e.events <- event.Event{Type: event.DagExecStarted, Payload: timestamp()}

	if err := e.runBackwardSweep(ctx); err != nil {
		e.finish(event.Failed)
		return err
	}
	err := e.runForwardSweep(ctx)

	final := event.Completed
	switch {
	case e.isStopping():
		final = event.UserStopped
	case err != nil:
		final = event.Failed
	}
	e.finish(final)
	return err
}

func (e *Engine) finish(final event.EngineState) {
	e.state.SetIfNotTerminal(final)
	e.events <- event.Event{Type: event.DagExecFinished, Payload: final}
}

// runBackwardSweep mirrors _make_backward_solid_def: one
// item.output_resources(BACKWARD) call per item, independent of every other
// item (no solid-to-solid dependency, per _make_dependencies's absence of
// backward-to-backward edges). A failing item contributes no backward
// resources and is logged at Warn rather than aborting the run (backward-sweep
// failures are treated as non-fatal).
func (e *Engine) runBackwardSweep(ctx context.Context) error {
	g := taskgraph.NewGraph()
	for _, name := range e.sortedNames() {
		name := name
		it := e.items[name]
		g.AddNode(name, 0, func() error {
			logger := queuelogger.New(e.events, name, "")
			defer func() {
				if r := recover(); r != nil {
					logger.MsgWarning(fmt.Sprintf("backward sweep panic: %v", r))
				}
			}()
			resources := it.OutputResources(ctx)
			e.mu.Lock()
			e.backwardRes[name] = resources
			e.mu.Unlock()
			return nil
		})
	}
	return taskgraph.Run(ctx, g, e.workerCount, nil)
}

// runForwardSweep mirrors _make_forward_solid_def/_execute_item: items run
// in forward-edge order, each one fanned out over every valid
// filter-stack combination of its predecessors' forward resources, then
// executed (or excluded) once per combination.
func (e *Engine) runForwardSweep(ctx context.Context) error {
	g := taskgraph.NewGraph()
	nodes := make(map[string]*taskgraph.Node, len(e.items))
	for _, name := range e.sortedNames() {
		nodes[name] = g.AddNode(name, 0, nil)
	}
	for dst, srcs := range e.predecessors {
		for _, src := range srcs {
			g.Connect(nodes[src], nodes[dst])
		}
	}
	for _, name := range e.sortedNames() {
		name := name
		nodes[name].Run = func() error { return e.executeItemForward(ctx, name) }
		nodes[name].Skip = func() { e.emitSkippedItem(name) }
	}
	return taskgraph.Run(ctx, g, e.workerCount, nil)
}

// emitSkippedItem emits the ItemExecStarted/ItemExecFinished pair for an
// item the forward sweep never dispatched to executeItemForward because an
// upstream predecessor failed, preserving the "exactly one start, exactly
// one finish" invariant for every item even when it never actually runs.
func (e *Engine) emitSkippedItem(name string) {
	e.events <- event.Event{Type: event.ItemExecStarted, Payload: itemFinish{Name: name}}
	e.events <- event.Event{Type: event.ItemExecFinished, Payload: itemFinish{Name: name, State: event.Skipped}}
}

// executeItemForward runs a single item's forward solid: gathers forward
// resources from predecessors (through their connection's ConvertResources),
// gathers backward resources from successors (computed in the prior
// backward sweep), fans the forward resources out over every filter
// combination, tags a copy of the backward resources for each combination,
// and executes (or excludes) each combination, mirroring _execute_item.
func (e *Engine) executeItemForward(ctx context.Context, name string) error {
	it := e.items[name]
	e.events <- event.Event{Type: event.ItemExecStarted, Payload: itemFinish{Name: name}}

	if e.isStopping() {
		e.events <- event.Event{Type: event.ItemExecFinished, Payload: itemFinish{Name: name, State: event.Stopped}}
		return nil
	}

	forwardByPredecessor := make(map[string][]resource.Resource)
	for _, c := range e.inbound[name] {
		e.mu.Lock()
		src := e.forwardOut[c.Source]
		e.mu.Unlock()
		converted, err := c.ConvertResources(resource.Provider{Name: c.Source}, src, defaultPackSuffix)
		if err != nil {
			return fmt.Errorf("engine: convert forward resources for %s: %w", c.Name(), err)
		}
		forwardByPredecessor[c.Source] = append(forwardByPredecessor[c.Source], expandByConnectionFilters(c, converted)...)
	}

	e.mu.Lock()
	var backward []resource.Resource
	for _, succ := range e.successors[name] {
		backward = append(backward, e.backwardRes[succ]...)
	}
	e.mu.Unlock()

	subExecutions := FanOut(forwardByPredecessor)
	if len(subExecutions) == 0 {
		subExecutions = []subExecution{{}}
	}

	var (
		mu      sync.Mutex
		outputs []resource.Resource
		worst   = event.NeverFinished
	)
	permitted := e.permits[name]

	g, gctx := errgroup.WithContext(ctx)
	for _, sub := range subExecutions {
		sub := sub
		g.Go(func() error {
			subLogger := queuelogger.New(e.events, name, sub.filterID)

			descriptor := connection.ExecutionFilterDescriptor{
				ItemName:        name,
				ActiveScenarios: activeScenarioNames(sub.filterID),
				Timestamp:       timestamp(),
			}
			meta := descriptor.ToMetadata()
			taggedBackward := make([]resource.Resource, len(backward))
			for i, r := range backward {
				taggedBackward[i] = r.Clone(meta)
			}

			var finish event.ItemExecutionFinishState
			switch {
			case e.isStopping():
				finish = event.Stopped
			case !it.ReadyToExecute(gctx):
				finish = event.Skipped
			case !permitted:
				it.ExcludeExecution(gctx, sub.forward, taggedBackward)
				finish = event.Excluded
			default:
				finish = it.Execute(gctx, sub.forward, taggedBackward)
			}

			if finish == event.Failure {
				subLogger.MsgError(fmt.Sprintf("%s failed", name))
			}

			produced := it.OutputResources(gctx)
			tagged := make([]resource.Resource, len(produced))
			for i, r := range produced {
				if sub.filterID == "" {
					tagged[i] = r
					continue
				}
				tagged[i] = r.Clone(map[string]string{filterIDKey: sub.filterID})
			}

			mu.Lock()
			outputs = append(outputs, tagged...)
			if worse(finish, worst) {
				worst = finish
			}
			mu.Unlock()
			return nil
		})
	}
	// errgroup.Wait's error is always nil here: sub-execution failures are
	// reported through ItemExecutionFinishState, not an error return, so
	// every g.Go func above always returns nil.
	_ = g.Wait()

	e.mu.Lock()
	e.forwardOut[name] = outputs
	e.mu.Unlock()

	for _, c := range e.outbound[name] {
		c.ReceiveResourcesFromSource(outputs)
	}

	e.events <- event.Event{Type: event.ItemExecFinished, Payload: itemFinish{Name: name, State: worst}}

	if worst == event.Failure {
		return fmt.Errorf("engine: item %q failed", name)
	}
	return nil
}

// itemFinish is the payload carried by ItemExecStarted/ItemExecFinished
// events.
type itemFinish struct {
	Name  string
	State event.ItemExecutionFinishState
}

// worse reports whether candidate outranks current in severity, used to
// fold per-sub-execution finish states into one item-level outcome:
// Failure > Stopped > Excluded > Skipped > Success > NeverFinished.
func worse(candidate, current event.ItemExecutionFinishState) bool {
	return rank(candidate) > rank(current)
}

func rank(s event.ItemExecutionFinishState) int {
	switch s {
	case event.Failure:
		return 5
	case event.Stopped:
		return 4
	case event.Excluded:
		return 3
	case event.Skipped:
		return 2
	case event.Success:
		return 1
	default:
		return 0
	}
}
