// Package item defines the ExecutableItem contract the engine depends on
// (and nothing else), plus a registry mapping item type names to
// constructors and specification factories, replacing the original's
// dynamic module-name item loading. Grounded on a Go HCL-grid runner's
// internal/registry (RegisterRunner's panic-on-duplicate pattern,
// ValidateRegistry's parity check), re-keyed from "HCL block <-> Go
// handler" to "item type <-> constructor/spec factory".
package item

import (
	"context"
	"fmt"

	"github.com/specialistvlad/spine-engine-go/internal/event"
	"github.com/specialistvlad/spine-engine-go/internal/resource"
)

// ExecutableItem is the external contract the engine schedules against. It
// intentionally knows nothing about HCL, project files, or concrete item
// kinds (importer, exporter, tool, ...) — those are Non-goals. Mirrors
// ExecutableItemBase's external surface used by spine_engine.py.
type ExecutableItem interface {
	// Name returns the item's unique name within its DAG.
	Name() string
	// GroupID returns the persistent-manager pool group this item's
	// sub-executions share, or "" to always run in isolation.
	GroupID() string

	// ReadyToExecute reports whether the item is ready to run this
	// sub-execution; the engine records a sub-execution for which it returns
	// false as Skipped. Execution permits are checked by the engine itself,
	// not through this method.
	ReadyToExecute(ctx context.Context) bool

	// Execute runs the item against the resources gathered for it in a
	// given sub-execution (forward resources from predecessors, backward
	// resources from successors), returning its finish state.
	Execute(ctx context.Context, forward, backward []resource.Resource) event.ItemExecutionFinishState

	// ExcludeExecution is called instead of Execute when permits forbid
	// running this item; pass-through conversion of forward resources
	// still happens around it.
	ExcludeExecution(ctx context.Context, forward, backward []resource.Resource)

	// OutputResources returns the resources this item makes available
	// downstream after a (possibly excluded) execution.
	OutputResources(ctx context.Context) []resource.Resource

	// StopExecution asks a running item to stop as soon as possible.
	StopExecution()
}

// SpecificationFactory builds the Specification value an item type needs
// from engine-level configuration, analogous to how the original resolves
// an item's "specification" (tool spec, Python/Julia interpreter spec, ...)
// independent from the item itself.
type SpecificationFactory func(settings map[string]string) (any, error)

// Constructor builds an ExecutableItem of a given type from its name, a
// resolved specification, and its group id.
type Constructor func(name string, spec any, groupID string) (ExecutableItem, error)

// entry pairs a type's constructor with its specification factory.
type entry struct {
	constructor Constructor
	specFactory SpecificationFactory
}

// Registry maps item type names to constructors/spec factories.
type Registry struct {
	entries map[string]entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a new item type. It panics on a duplicate registration,
// mirroring RegisterRunner's stance that this is a programmer error, not a
// runtime condition.
func (r *Registry) Register(itemType string, constructor Constructor, specFactory SpecificationFactory) {
	if _, exists := r.entries[itemType]; exists {
		panic(fmt.Sprintf("item: type %q already registered", itemType))
	}
	r.entries[itemType] = entry{constructor: constructor, specFactory: specFactory}
}

// Build constructs an ExecutableItem of itemType, resolving its
// specification from settings first.
func (r *Registry) Build(itemType, name string, settings map[string]string, groupID string) (ExecutableItem, error) {
	e, ok := r.entries[itemType]
	if !ok {
		return nil, fmt.Errorf("item: unknown item type %q", itemType)
	}
	spec, err := e.specFactory(settings)
	if err != nil {
		return nil, fmt.Errorf("item: build specification for %q: %w", itemType, err)
	}
	built, err := e.constructor(name, spec, groupID)
	if err != nil {
		return nil, fmt.Errorf("item: construct %q: %w", name, err)
	}
	return built, nil
}

// Validate checks that every registered type has a non-nil constructor and
// a non-nil specification factory, mirroring ValidateRegistry's parity
// check adapted to this registry's simpler shape. It does not call either
// function.
func (r *Registry) Validate() error {
	for itemType, e := range r.entries {
		if e.constructor == nil {
			return fmt.Errorf("item: type %q registered with nil constructor", itemType)
		}
		if e.specFactory == nil {
			return fmt.Errorf("item: type %q registered with nil specification factory", itemType)
		}
	}
	return nil
}

// Types returns the registered item type names.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	return out
}
