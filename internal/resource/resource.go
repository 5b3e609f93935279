// Package resource implements the data carried between items along a DAG
// edge, ported from project_item_resource.py, plus the filter-stack algebra
// (project_item/connection.py, spine_engine.py) that gives each fan-out
// sub-execution a stable, deterministic identity.
package resource

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Kind enumerates the resource kinds the original supports.
type Kind string

const (
	File          Kind = "file"
	Database      Kind = "database"
	TransientFile Kind = "transient_file"
	FilePattern   Kind = "file_pattern"
)

// Provider is a picklable-equivalent reference to the resource's producing
// item: only the name is kept, mirroring _ResourceProvider's rationale
// (avoid holding a live ExecutableItem reference across process/goroutine
// boundaries).
type Provider struct {
	Name string
}

// Resource is Go's equivalent of ProjectItemResource.
type Resource struct {
	Provider Provider
	Kind     Kind
	URL      string
	Metadata map[string]string
}

// New constructs a Resource, copying metadata defensively.
func New(provider Provider, kind Kind, rawURL string, metadata map[string]string) Resource {
	return Resource{
		Provider: provider,
		Kind:     kind,
		URL:      rawURL,
		Metadata: cloneMetadata(metadata),
	}
}

func cloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Clone returns a copy of r with additionalMetadata merged in, mirroring
// ProjectItemResource.clone.
func (r Resource) Clone(additionalMetadata map[string]string) Resource {
	merged := cloneMetadata(r.Metadata)
	for k, v := range additionalMetadata {
		merged[k] = v
	}
	return Resource{Provider: r.Provider, Kind: r.Kind, URL: r.URL, Metadata: merged}
}

// Path returns the filesystem path obtained by parsing URL, mirroring the
// `path` property (url2pathname(parsed.path)).
func (r Resource) Path() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return filepath.FromSlash(u.Path)
}

// Scheme returns the URL scheme, mirroring the `scheme` property.
func (r Resource) Scheme() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return u.Scheme
}

// Label returns the resource's textual label: the explicit metadata label if
// present, else derived from the URL/path depending on kind, mirroring the
// `label` property including its "missing both url and metadata" failure.
func (r Resource) Label() (string, error) {
	if label, ok := r.Metadata["label"]; ok && label != "" {
		return label, nil
	}
	if r.URL == "" {
		return "", fmt.Errorf("resource: missing both url and metadata label")
	}
	if r.Kind == File {
		return r.Path(), nil
	}
	return r.URL, nil
}

// HasFilePath mirrors the `hasfilepath` property.
func (r Resource) HasFilePath() bool {
	switch {
	case r.Kind == File:
		return true
	case r.Kind == Database && r.Scheme() == "sqlite":
		return true
	case r.Kind == TransientFile && r.URL != "":
		return true
	default:
		return false
	}
}

// Arg mirrors the `arg` property: the URL for database resources, the path
// otherwise.
func (r Resource) Arg() string {
	if r.Kind == Database {
		return r.URL
	}
	return r.Path()
}

// Equal reports structural equality the way ProjectItemResource.__eq__ does.
func (r Resource) Equal(other Resource) bool {
	if r.Provider != other.Provider || r.Kind != other.Kind || r.URL != other.URL {
		return false
	}
	if len(r.Metadata) != len(other.Metadata) {
		return false
	}
	for k, v := range r.Metadata {
		if other.Metadata[k] != v {
			return false
		}
	}
	return true
}

// FilterDescriptor is one filter applied along a connection: a filter type
// (e.g. "scenario_filter", "tool_filter") and an identifier within that
// type, plus whether it is currently active ("online").
type FilterDescriptor struct {
	Type   string
	ID     string
	Online bool
}

// FilterStack is an ordered sequence of filters applied together to a
// resource as it crosses one connection, mirroring the original's
// "filter_stack" concept used throughout _filtered_resources_iterator.
type FilterStack []FilterDescriptor

// activeIDs returns the sorted, type-qualified identifiers of the online
// filters in the stack, used by FilterID to build a stable fingerprint.
func (fs FilterStack) activeIDs() []string {
	var ids []string
	for _, f := range fs {
		if f.Online {
			ids = append(ids, f.Type+":"+f.ID)
		}
	}
	return ids
}

// String renders the stack in a stable, human-readable form.
func (fs FilterStack) String() string {
	ids := fs.activeIDs()
	return strings.Join(ids, ", ")
}
