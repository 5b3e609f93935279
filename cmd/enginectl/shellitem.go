package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/specialistvlad/spine-engine-go/internal/concurrency"
	"github.com/specialistvlad/spine-engine-go/internal/event"
	"github.com/specialistvlad/spine-engine-go/internal/item"
	"github.com/specialistvlad/spine-engine-go/internal/process"
	"github.com/specialistvlad/spine-engine-go/internal/queuelogger"
	"github.com/specialistvlad/spine-engine-go/internal/resource"
)

// shellSpec is a "shell" item's resolved specification: the program and
// arguments to run, parsed out of the "command" settings key a
// SpecificationFactory is handed. Concrete item specifications (tool specs,
// interpreter specs, ...) are a Non-goal of the engine itself; shellItem
// exists only so cmd/enginectl can exercise internal/engine end to end.
type shellSpec struct {
	program string
	args    []string
}

func shellSpecFactory(settings map[string]string) (any, error) {
	fields := strings.Fields(settings["command"])
	if len(fields) == 0 {
		return nil, fmt.Errorf("shell: empty command")
	}
	return &shellSpec{program: fields[0], args: fields[1:]}, nil
}

// shellItem runs an external command to completion as its execution,
// wrapping internal/process.ExecutionManager and gating concurrent runs
// through internal/concurrency.Limiter. It mirrors how a real
// ToolSpecification-backed item would drive internal/process, without
// implementing any concrete item kind itself (those remain a Non-goal).
type shellItem struct {
	name    string
	spec    *shellSpec
	logger  *queuelogger.QueueLogger
	limiter *concurrency.Limiter

	mgr *process.ExecutionManager
}

// newShellConstructor closes over the engine's pre-allocated event channel
// and process limiter so every "shell" item built through the registry logs
// onto the same stream and shares the same concurrency cap.
func newShellConstructor(eventsCh chan event.Event, limiter *concurrency.Limiter) item.Constructor {
	return func(name string, spec any, groupID string) (item.ExecutableItem, error) {
		shSpec, ok := spec.(*shellSpec)
		if !ok {
			return nil, fmt.Errorf("shell: unexpected specification type %T", spec)
		}
		return &shellItem{
			name:    name,
			spec:    shSpec,
			logger:  queuelogger.New(eventsCh, name, ""),
			limiter: limiter,
		}, nil
	}
}

func (s *shellItem) Name() string    { return s.name }
func (s *shellItem) GroupID() string { return "" }

func (s *shellItem) ReadyToExecute(ctx context.Context) bool { return true }

func (s *shellItem) Execute(ctx context.Context, forward, backward []resource.Resource) event.ItemExecutionFinishState {
	if err := s.limiter.AcquireOneShot(ctx); err != nil {
		s.logger.MsgError(fmt.Sprintf("acquire process slot: %v", err))
		return event.Failure
	}
	defer s.limiter.ReleaseOneShot()

	s.mgr = process.New(s.logger, s.spec.program, s.spec.args, "")
	code, err := s.mgr.RunUntilComplete(ctx)
	if err != nil {
		s.logger.MsgError(fmt.Sprintf("%s: %v", s.name, err))
		return event.Failure
	}
	if code != 0 {
		s.logger.MsgError(fmt.Sprintf("%s exited %d", s.name, code))
		return event.Failure
	}
	s.logger.MsgSuccess(fmt.Sprintf("%s finished", s.name))
	return event.Success
}

func (s *shellItem) ExcludeExecution(ctx context.Context, forward, backward []resource.Resource) {
	s.logger.Msg(fmt.Sprintf("%s excluded", s.name))
}

func (s *shellItem) OutputResources(ctx context.Context) []resource.Resource { return nil }

func (s *shellItem) StopExecution() {
	if s.mgr != nil {
		s.mgr.StopExecution()
	}
}

// parseStep splits a "name=command args..." --step flag value.
func parseStep(raw string) (name, command string, err error) {
	parts := strings.SplitN(raw, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid --step %q, expected name=command", raw)
	}
	return parts[0], parts[1], nil
}
