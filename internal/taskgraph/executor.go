package taskgraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrCycle is returned by Run when the graph contains a cycle: repeatedly
// stripping nodes whose dependencies have all been stripped leaves nodes
// behind. Run checks this before dispatching any node.
var ErrCycle = errors.New("taskgraph: cycle detected")

// Run executes the entire graph concurrently with the given worker count,
// returning an error if any node fails. A node's own failure only ever
// short-circuits its own dependents (see skipDependents); it never cancels
// ctx, so independent branches keep running to completion. ctx cancellation
// itself (the caller's own deadline or an explicit Stop) still stops
// dispatch of any node not yet picked up by a worker. Generalized over an
// arbitrary Node.Run function instead of a fixed ResourceNode/StepNode
// switch, and over OnNodeDone for descendant-count driven cleanup (the
// original's "efficient resource destruction").
func Run(ctx context.Context, g *Graph, numWorkers int, onNodeDone func(*Node)) error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if len(g.Nodes) == 0 {
		return nil
	}

	readyChan := make(chan *Node, len(g.Nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	remaining := make(map[*Node]int32, len(g.Nodes))
	var stripped []*Node
	for _, n := range g.Nodes {
		remaining[n] = n.depCount.Load()
		if remaining[n] == 0 {
			readyChan <- n
			stripped = append(stripped, n)
		}
	}
	for i := 0; i < len(stripped); i++ {
		for _, dep := range stripped[i].Dependents {
			if remaining[dep]--; remaining[dep] == 0 {
				stripped = append(stripped, dep)
			}
		}
	}
	if len(stripped) < len(g.Nodes) {
		return ErrCycle
	}

	var wg sync.WaitGroup
	wg.Add(len(g.Nodes))

	for i := 0; i < numWorkers; i++ {
		go worker(runCtx, readyChan, &wg, onNodeDone)
	}

	wg.Wait()
	close(readyChan)

	var failedIDs []string
	var rootCause error
	for _, n := range g.Nodes {
		if n.State() == FailedState {
			if n.Error != nil && !strings.HasPrefix(n.Error.Error(), "skipped") && !errors.Is(n.Error, context.Canceled) {
				failedIDs = append(failedIDs, n.ID)
				if rootCause == nil {
					rootCause = n.Error
				}
			}
		}
	}

	if rootCause != nil {
		return fmt.Errorf("taskgraph: execution failed for %s: %w", strings.Join(failedIDs, ", "), rootCause)
	}
	return nil
}

// skipDependents marks every transitive dependent of a failed node as
// failed-by-skip, without ever touching the shared context: the failure
// stays scoped to n's own dependent chain and never reaches an independent
// branch. Each dependent's Skip callback, if set, still runs so a caller
// (e.g. internal/engine) gets a chance to observe the skip instead of the
// node silently vanishing from its event stream.
func skipDependents(n *Node, wg *sync.WaitGroup) {
	for _, dep := range n.Dependents {
		dep.skipOnce.Do(func() {
			dep.state.Store(int32(FailedState))
			dep.Error = fmt.Errorf("skipped due to upstream failure of %q", n.ID)
			if dep.Skip != nil {
				dep.Skip()
			}
			wg.Done()
			skipDependents(dep, wg)
		})
	}
}

func worker(ctx context.Context, readyChan chan *Node, wg *sync.WaitGroup, onNodeDone func(*Node)) {
	for n := range readyChan {
		if ctx.Err() != nil {
			n.skipOnce.Do(func() {
				n.state.Store(int32(FailedState))
				n.Error = ctx.Err()
				wg.Done()
			})
			continue
		}

		n.state.Store(int32(Running))
		var err error
		if n.Run != nil {
			err = n.Run()
		}

		if err != nil {
			n.state.Store(int32(FailedState))
			n.Error = err
			skipDependents(n, wg)
			wg.Done()
			continue
		}

		n.state.Store(int32(Done))
		if onNodeDone != nil {
			onNodeDone(n)
		}

		for _, dependent := range n.Dependents {
			if dependent.depCount.Add(-1) == 0 {
				readyChan <- dependent
			}
		}
		wg.Done()
	}
}
