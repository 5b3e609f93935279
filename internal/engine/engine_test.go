package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/spine-engine-go/internal/connection"
	"github.com/specialistvlad/spine-engine-go/internal/event"
	"github.com/specialistvlad/spine-engine-go/internal/item"
	"github.com/specialistvlad/spine-engine-go/internal/resource"
	"github.com/specialistvlad/spine-engine-go/internal/taskgraph"
)

// fixtureItem is a minimal in-memory ExecutableItem used only by this
// package's own tests; test-fixture items live alongside the engine's test
// suite rather than in internal/item's production code.
type fixtureItem struct {
	name string

	mu           sync.Mutex
	executeCalls []execCall
	outputs      []resource.Resource
	finishState  event.ItemExecutionFinishState
}

type execCall struct {
	forward  []resource.Resource
	backward []resource.Resource
}

func newFixtureItem(name string, outputs []resource.Resource) *fixtureItem {
	return &fixtureItem{name: name, outputs: outputs, finishState: event.Success}
}

func (f *fixtureItem) Name() string    { return f.name }
func (f *fixtureItem) GroupID() string { return "" }
func (f *fixtureItem) ReadyToExecute(ctx context.Context) bool { return true }

func (f *fixtureItem) Execute(ctx context.Context, forward, backward []resource.Resource) event.ItemExecutionFinishState {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executeCalls = append(f.executeCalls, execCall{forward: forward, backward: backward})
	return f.finishState
}

func (f *fixtureItem) ExcludeExecution(ctx context.Context, forward, backward []resource.Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executeCalls = append(f.executeCalls, execCall{forward: forward, backward: backward})
}

func (f *fixtureItem) OutputResources(ctx context.Context) []resource.Resource { return f.outputs }
func (f *fixtureItem) StopExecution()                                          {}

func (f *fixtureItem) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.executeCalls)
}

func drainEvents(t *testing.T, e *Engine, done chan error) []event.Event {
	t.Helper()
	var got []event.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-e.Events():
			got = append(got, ev)
		case err := <-done:
			require.NoError(t, err)
			// drain anything left in the buffer non-blockingly.
			for {
				select {
				case ev := <-e.Events():
					got = append(got, ev)
				default:
					return got
				}
			}
		case <-timeout:
			t.Fatal("timed out waiting for engine run to finish")
		}
	}
}

func TestRunSimpleTwoItemChain(t *testing.T) {
	a := newFixtureItem("A", []resource.Resource{
		resource.New(resource.Provider{Name: "A"}, resource.File, "file:///tmp/a.txt", nil),
	})
	b := newFixtureItem("B", nil)

	e, err := New(Config{
		Items:       map[string]item.ExecutableItem{"A": a, "B": b},
		Connections: []*connection.Connection{connection.New("A", "B")},
		WorkerCount: 2,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	events := drainEvents(t, e, done)
	assert.Equal(t, event.Completed, e.State())
	assert.Equal(t, 1, b.callCount())
	assert.Len(t, b.executeCalls[0].forward, 1)

	var sawStart, sawFinish bool
	for _, ev := range events {
		switch ev.Type {
		case event.DagExecStarted:
			sawStart = true
		case event.DagExecFinished:
			sawFinish = true
		}
	}
	assert.True(t, sawStart)
	assert.True(t, sawFinish)
}

func TestRunFansOutOverDistinctFilterIDs(t *testing.T) {
	a := newFixtureItem("A", []resource.Resource{
		resource.New(resource.Provider{Name: "A"}, resource.File, "file:///tmp/base.txt",
			map[string]string{"filter_id": "scenario_filter:base"}),
		resource.New(resource.Provider{Name: "A"}, resource.File, "file:///tmp/alt.txt",
			map[string]string{"filter_id": "scenario_filter:alt"}),
	})
	b := newFixtureItem("B", nil)

	e, err := New(Config{
		Items:       map[string]item.ExecutableItem{"A": a, "B": b},
		Connections: []*connection.Connection{connection.New("A", "B")},
		WorkerCount: 2,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	drainEvents(t, e, done)

	assert.Equal(t, 2, b.callCount())
	for _, call := range b.executeCalls {
		assert.Len(t, call.forward, 1)
	}
}

func TestDiamondFailureSkipsOnlyDownstreamDependent(t *testing.T) {
	a := newFixtureItem("A", []resource.Resource{
		resource.New(resource.Provider{Name: "A"}, resource.File, "file:///tmp/a.txt", nil),
	})
	b := newFixtureItem("B", nil)
	b.finishState = event.Failure
	c := newFixtureItem("C", []resource.Resource{
		resource.New(resource.Provider{Name: "C"}, resource.File, "file:///tmp/c.txt", nil),
	})
	d := newFixtureItem("D", nil)

	e, err := New(Config{
		Items: map[string]item.ExecutableItem{"A": a, "B": b, "C": c, "D": d},
		Connections: []*connection.Connection{
			connection.New("A", "B"),
			connection.New("A", "C"),
			connection.New("B", "D"),
			connection.New("C", "D"),
		},
		WorkerCount: 1,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	events := drainEvents(t, e, done)

	assert.Equal(t, event.Failed, e.State())
	assert.Equal(t, 1, c.callCount(), "C has no dependency on B and must still run")
	assert.Equal(t, 0, d.callCount(), "D must never actually execute once its predecessor failed")

	var dStarted, dFinishedSkipped int
	for _, ev := range events {
		fin, ok := ev.Payload.(itemFinish)
		if !ok || fin.Name != "D" {
			continue
		}
		switch ev.Type {
		case event.ItemExecStarted:
			dStarted++
		case event.ItemExecFinished:
			if fin.State == event.Skipped {
				dFinishedSkipped++
			}
		}
	}
	assert.Equal(t, 1, dStarted, "D must still get exactly one exec_started event")
	assert.Equal(t, 1, dFinishedSkipped, "D must get exactly one exec_finished(Skipped) event")
}

func TestRunFansOutViaConnectionFilterStacks(t *testing.T) {
	a := newFixtureItem("A", []resource.Resource{
		resource.New(resource.Provider{Name: "A"}, resource.File, "file:///tmp/base.txt", nil),
	})
	b := newFixtureItem("B", nil)

	c := connection.New("A", "B")
	c.SetOnline("/tmp/base.txt", "scenario_filter", "base", true)
	c.SetOnline("/tmp/base.txt", "scenario_filter", "urban", true)

	e, err := New(Config{
		Items:       map[string]item.ExecutableItem{"A": a, "B": b},
		Connections: []*connection.Connection{c},
		WorkerCount: 2,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	drainEvents(t, e, done)

	assert.Equal(t, 2, b.callCount(), "each online scenario filter on the connection must yield its own sub-execution")
}

func TestStopBeforeRunRefusesToStart(t *testing.T) {
	a := newFixtureItem("A", nil)
	e, err := New(Config{Items: map[string]item.ExecutableItem{"A": a}})
	require.NoError(t, err)

	e.Stop()
	assert.Equal(t, event.UserStopped, e.State())

	err = e.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, event.UserStopped, e.State())
	assert.Equal(t, 0, a.callCount())
}

func TestNewRejectsConnectionToUnknownItem(t *testing.T) {
	a := newFixtureItem("A", nil)
	_, err := New(Config{
		Items:       map[string]item.ExecutableItem{"A": a},
		Connections: []*connection.Connection{connection.New("A", "missing")},
	})
	assert.Error(t, err)
}

func TestNewDetectsCycle(t *testing.T) {
	a := newFixtureItem("A", nil)
	b := newFixtureItem("B", nil)
	_, err := New(Config{
		Items: map[string]item.ExecutableItem{"A": a, "B": b},
		Connections: []*connection.Connection{
			connection.New("A", "B"),
			connection.New("B", "A"),
		},
	})
	assert.ErrorIs(t, err, taskgraph.ErrCycle)
}
