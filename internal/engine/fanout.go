package engine

import (
	"sort"

	"github.com/specialistvlad/spine-engine-go/internal/resource"
)

// filterIDKey is the resource metadata key used to tag a resource with the
// sub-execution that produced it, mirroring the original's
// resource.metadata["filter_id"].
const filterIDKey = "filter_id"

// subExecution is one element of the Cartesian product FanOut produces: the
// forward resources feeding one filtered run of an item, plus the composite
// filter id identifying it.
type subExecution struct {
	forward  []resource.Resource
	filterID string
}

// FanOut expands a set of per-predecessor forward resource lists into one
// sub-execution per valid filter combination, mirroring
// SpineEngine._filtered_resources_iterator/_expand_resource_stack. Resources
// that carry no filter_id (unfiltered) are included in every combination
// unchanged; predecessors contributing resources under more than one
// distinct filter_id cause the product to branch.
// group pairs a predecessor name with its resources bucketed by filter_id.
type group struct {
	predecessor string
	byFilterID  map[string][]resource.Resource // "" key == unfiltered
}

func FanOut(forwardByPredecessor map[string][]resource.Resource) []subExecution {
	var groups []group
	var names []string
	for name := range forwardByPredecessor {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		byFilterID := make(map[string][]resource.Resource)
		for _, r := range forwardByPredecessor[name] {
			id := r.Metadata[filterIDKey]
			byFilterID[id] = append(byFilterID[id], r)
		}
		groups = append(groups, group{predecessor: name, byFilterID: byFilterID})
	}

	combos := []map[string]string{{}} // predecessor -> chosen filter id key
	for _, g := range groups {
		var ids []string
		for id := range g.byFilterID {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		var next []map[string]string
		for _, combo := range combos {
			for _, id := range ids {
				extended := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					extended[k] = v
				}
				extended[g.predecessor] = id
				next = append(next, extended)
			}
		}
		combos = next
	}

	var out []subExecution
	for _, combo := range combos {
		if !checkResourceAffinity(groups, combo) {
			continue
		}
		var forward []resource.Resource
		var ids []string
		for _, g := range groups {
			chosen := combo[g.predecessor]
			forward = append(forward, g.byFilterID[chosen]...)
			if chosen != "" {
				ids = append(ids, chosen)
			}
		}
		out = append(out, subExecution{
			forward:  forward,
			filterID: resource.CompositeFilterID(ids),
		})
	}
	return out
}

// checkResourceAffinity mirrors _filtered_resources_iterator's
// check_resource_affinity: within one combination, every resource
// contributed by the same predecessor must already share a single filter
// id, which FanOut's grouping-by-predecessor guarantees by construction; the
// check is kept as an explicit, named step (rather than folded silently
// into the loop above) because affinity is a named invariant in the
// original and a future change to the grouping strategy could violate it.
func checkResourceAffinity(groups []group, combo map[string]string) bool {
	for _, g := range groups {
		resources := g.byFilterID[combo[g.predecessor]]
		id := ""
		for i, r := range resources {
			rid := r.Metadata[filterIDKey]
			if i == 0 {
				id = rid
				continue
			}
			if rid != id {
				return false
			}
		}
	}
	return true
}

