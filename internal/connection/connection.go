// Package connection implements Connection, the edge between two items in
// the DAG, ported from project_item/connection.py (ConnectionBase,
// Connection). Jump (the conditional-loop connection variant) is
// deliberately not ported: it has no counterpart in this engine's scope.
package connection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/spine-engine-go/internal/dbfilter"
	"github.com/specialistvlad/spine-engine-go/internal/resource"
)

// onlineFlags maps a filter id within one filter type to whether it's
// active, mirroring one leaf of _resource_filters.
type onlineFlags map[string]bool

// Connection is an edge from Source to Destination, carrying per-resource
// filter state and pass-through options, mirroring Connection.
type Connection struct {
	Source      string
	Destination string

	// UseDatapackage mirrors options["use_datapackage"].
	UseDatapackage bool
	// PackBuilder, when UseDatapackage is set, builds the single pack
	// resource that replaces the matched file resources (a generalization
	// of the original's CSV-only datapackage.Package construction).
	PackBuilder PackBuilder

	resourceFilters map[string]map[string]onlineFlags // label -> filter type -> flags
	resources       map[string]resource.Resource        // database resources only, by label
	idToNameCache   map[string]map[int64]string          // filter type -> id -> name
}

// New returns a Connection between source and destination.
func New(source, destination string) *Connection {
	return &Connection{
		Source:          source,
		Destination:     destination,
		resourceFilters: make(map[string]map[string]onlineFlags),
		resources:       make(map[string]resource.Resource),
		idToNameCache:   make(map[string]map[int64]string),
	}
}

// Equal mirrors ConnectionBase.__eq__.
func (c *Connection) Equal(other *Connection) bool {
	return other != nil && c.Source == other.Source && c.Destination == other.Destination
}

// Name mirrors ConnectionBase.name: a "source -> destination" label.
func (c *Connection) Name() string {
	return fmt.Sprintf("%s -> %s", c.Source, c.Destination)
}

// HasFilters reports whether any filter, of any type, on any resource, is
// currently online, mirroring Connection.has_filters.
func (c *Connection) HasFilters() bool {
	for _, byType := range c.resourceFilters {
		for _, flags := range byType {
			for _, online := range flags {
				if online {
					return true
				}
			}
		}
	}
	return false
}

// ReceiveResourcesFromSource records resources flowing forward across this
// connection, keeping only database resources (the only kind the original
// tracks filters for), mirroring Connection.receive_resources_from_source.
func (c *Connection) ReceiveResourcesFromSource(resources []resource.Resource) {
	for _, r := range resources {
		if r.Kind != resource.Database {
			continue
		}
		label, err := r.Label()
		if err != nil {
			continue
		}
		c.resources[label] = r
	}
}

// ReplaceResourceFromSource atomically swaps an old resource for a new one,
// re-keying any resource filters under the old label to the new label,
// mirroring Connection.replace_resource_from_source.
func (c *Connection) ReplaceResourceFromSource(oldResource, newResource resource.Resource) error {
	oldLabel, err := oldResource.Label()
	if err != nil {
		return fmt.Errorf("connection: old resource label: %w", err)
	}
	newLabel, err := newResource.Label()
	if err != nil {
		return fmt.Errorf("connection: new resource label: %w", err)
	}

	delete(c.resources, oldLabel)
	if newResource.Kind == resource.Database {
		c.resources[newLabel] = newResource
	}
	if filters, ok := c.resourceFilters[oldLabel]; ok {
		delete(c.resourceFilters, oldLabel)
		c.resourceFilters[newLabel] = filters
	}
	return nil
}

// SetOnline sets the online flag of a specific (label, filterType, filter
// id) tuple, mirroring Connection.set_online.
func (c *Connection) SetOnline(label, filterType string, id string, online bool) {
	byType, ok := c.resourceFilters[label]
	if !ok {
		byType = make(map[string]onlineFlags)
		c.resourceFilters[label] = byType
	}
	flags, ok := byType[filterType]
	if !ok {
		flags = make(onlineFlags)
		byType[filterType] = flags
	}
	flags[id] = online
}

// FetchDatabaseItems queries every tracked database resource's scenarios and
// tools, merging newly-discovered ids in while preserving previously-set
// online flags, mirroring Connection.fetch_database_items's update_filters
// closure.
func (c *Connection) FetchDatabaseItems(ctx context.Context) error {
	for label, r := range c.resources {
		scenarios, tools, err := dbfilter.ScenarioToolLookup(ctx, r.URL)
		if err != nil {
			return fmt.Errorf("connection: fetch database items for %q: %w", label, err)
		}
		c.mergeFilterItems(label, "scenario_filter", scenarios)
		c.mergeFilterItems(label, "tool_filter", tools)
	}
	return nil
}

func (c *Connection) mergeFilterItems(label, filterType string, items []dbfilter.Item) {
	byType, ok := c.resourceFilters[label]
	if !ok {
		byType = make(map[string]onlineFlags)
		c.resourceFilters[label] = byType
	}
	flags, ok := byType[filterType]
	if !ok {
		flags = make(onlineFlags)
		byType[filterType] = flags
	}

	cache, ok := c.idToNameCache[filterType]
	if !ok {
		cache = make(map[int64]string)
		c.idToNameCache[filterType] = cache
	}

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		seen[item.Name] = true
		cache[item.ID] = item.Name
		if _, known := flags[item.Name]; !known {
			flags[item.Name] = false
		}
	}
	for name := range flags {
		if !seen[name] {
			delete(flags, name)
		}
	}
}

// FilterStacks returns every valid combination of label's currently active
// (online) filters, one FilterStack per combination, mirroring
// _filter_stacks's cross product of connection.enabled_filters: each filter
// type that has at least one online id contributes one dimension to the
// product, and a type with no online id drops out entirely rather than
// forcing a choice. A nil result means label has no active filters and
// should pass through unfiltered.
func (c *Connection) FilterStacks(label string) []resource.FilterStack {
	byType, ok := c.resourceFilters[label]
	if !ok {
		return nil
	}
	var types []string
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	var dimensions [][]resource.FilterDescriptor
	for _, t := range types {
		var ids []string
		for id, online := range byType[t] {
			if online {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)
		descriptors := make([]resource.FilterDescriptor, len(ids))
		for i, id := range ids {
			descriptors[i] = resource.FilterDescriptor{Type: t, ID: id, Online: true}
		}
		dimensions = append(dimensions, descriptors)
	}
	if len(dimensions) == 0 {
		return nil
	}

	stacks := []resource.FilterStack{nil}
	for _, descriptors := range dimensions {
		var next []resource.FilterStack
		for _, stack := range stacks {
			for _, d := range descriptors {
				extended := make(resource.FilterStack, len(stack), len(stack)+1)
				copy(extended, stack)
				next = append(next, append(extended, d))
			}
		}
		stacks = next
	}
	return stacks
}

// PackBuilder builds a single substitute resource from a batch of matched
// file resources, generalizing use_datapackage's CSV-specific
// datapackage.Package construction.
type PackBuilder interface {
	BuildPack(provider resource.Provider, matched []resource.Resource) (resource.Resource, error)
}

// matchesPackPattern reports whether a file resource's label should be
// folded into the pack, generalizing the original's hardcoded ".csv" check
// into a configurable suffix.
func matchesPackPattern(label, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(label), strings.ToLower(suffix))
}

// ConvertResources applies this connection's forward-direction conversion
// to resources flowing from Source to Destination: when UseDatapackage is
// set, resources matching the configured pattern are folded into a single
// pack resource via PackBuilder; everything else passes through unchanged.
// Mirrors Connection.convert_resources (forward direction only — the
// original has no backward conversion on Connection itself).
func (c *Connection) ConvertResources(provider resource.Provider, resources []resource.Resource, packSuffix string) ([]resource.Resource, error) {
	if !c.UseDatapackage || c.PackBuilder == nil {
		return resources, nil
	}

	var matched, rest []resource.Resource
	for _, r := range resources {
		label, err := r.Label()
		if r.Kind == resource.File && err == nil && matchesPackPattern(label, packSuffix) {
			matched = append(matched, r)
			continue
		}
		rest = append(rest, r)
	}
	if len(matched) == 0 {
		return resources, nil
	}

	pack, err := c.PackBuilder.BuildPack(provider, matched)
	if err != nil {
		return nil, fmt.Errorf("connection: build pack: %w", err)
	}
	return append(rest, pack), nil
}

// ExecutionFilterDescriptor is folded into every backward resource of a
// sub-execution, mirroring _filtered_resources_iterator's
// execution_filter_config (item name, active scenario names, run
// timestamp).
type ExecutionFilterDescriptor struct {
	ItemName       string
	ActiveScenarios []string
	Timestamp      string
}

// ToMetadata renders d the way a backward resource clone carries it,
// mirroring how execution_filter_config's dict ends up embedded in a
// resource's metadata/URL.
func (d ExecutionFilterDescriptor) ToMetadata() map[string]string {
	return map[string]string{
		"execution_item":      d.ItemName,
		"active_scenarios":    strings.Join(d.ActiveScenarios, ","),
		"execution_timestamp": d.Timestamp,
	}
}
