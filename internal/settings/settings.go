// Package settings provides a typed key/value store for engine-wide
// configuration, backed by github.com/zclconf/go-cty so callers can supply
// strings, numbers, or bools uniformly and have them decoded with the same
// value system the rest of the ecosystem uses for typed defaults.
package settings

import (
	"fmt"
	"math/big"
	"runtime"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// AppSettings is a flat map of settings keys to cty values. The zero value
// is an empty, usable store.
type AppSettings struct {
	values map[string]cty.Value
}

// New returns an empty AppSettings.
func New() *AppSettings {
	return &AppSettings{values: make(map[string]cty.Value)}
}

// Set stores a value under key, overwriting any previous value.
func (s *AppSettings) Set(key string, value cty.Value) {
	if s.values == nil {
		s.values = make(map[string]cty.Value)
	}
	s.values[key] = value
}

// SetString is a convenience wrapper around Set for string settings.
func (s *AppSettings) SetString(key, value string) {
	s.Set(key, cty.StringVal(value))
}

// SetInt is a convenience wrapper around Set for integer settings.
func (s *AppSettings) SetInt(key string, value int) {
	s.Set(key, cty.NumberIntVal(int64(value)))
}

// Has reports whether key has been set.
func (s *AppSettings) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// StringValue returns the string-converted value for key, or def if unset.
func (s *AppSettings) StringValue(key, def string) string {
	v, ok := s.values[key]
	if !ok {
		return def
	}
	converted, err := convert.Convert(v, cty.String)
	if err != nil {
		return def
	}
	return converted.AsString()
}

// IntValue returns the integer-converted value for key, or def if unset or
// not representable as an integer.
func (s *AppSettings) IntValue(key string, def int) int {
	v, ok := s.values[key]
	if !ok {
		return def
	}
	converted, err := convert.Convert(v, cty.Number)
	if err != nil {
		return def
	}
	n, acc := converted.AsBigFloat().Int64()
	if acc != big.Exact {
		return def
	}
	return int(n)
}

// BoolValue returns the bool-converted value for key, or def if unset.
func (s *AppSettings) BoolValue(key string, def bool) bool {
	v, ok := s.values[key]
	if !ok {
		return def
	}
	converted, err := convert.Convert(v, cty.Bool)
	if err != nil {
		return def
	}
	return converted.True()
}

// ResourceLimit is the resolved value of a process/persistent-manager
// concurrency limiter. Unlimited disables the cap; otherwise N is the cap.
type ResourceLimit struct {
	Unlimited bool
	N         int
}

// ProcessLimit resolves the "process limiter" setting the way
// SpineEngine._set_resource_limits resolves its "engineSettings/processLimit"
// setting: "unlimited" disables the cap, "auto" defaults to the number of
// logical CPUs, anything else must parse as a positive integer.
func (s *AppSettings) ProcessLimit() (ResourceLimit, error) {
	return resolveLimit(s.StringValue("engineSettings/processLimit", "auto"))
}

// PersistentLimit resolves the "persistent process limiter" setting,
// mirroring the "engineSettings/persistentLimit" key in the original.
func (s *AppSettings) PersistentLimit() (ResourceLimit, error) {
	return resolveLimit(s.StringValue("engineSettings/persistentLimit", "auto"))
}

func resolveLimit(raw string) (ResourceLimit, error) {
	switch raw {
	case "unlimited":
		return ResourceLimit{Unlimited: true}, nil
	case "auto", "":
		n := runtime.NumCPU()
		if n < 1 {
			n = 1
		}
		return ResourceLimit{N: n}, nil
	default:
		var n int
		if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || n < 1 {
			return ResourceLimit{}, hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "invalid resource limit",
				Detail:   fmt.Sprintf("%q must be \"auto\", \"unlimited\", or a positive integer", raw),
			}}
		}
		return ResourceLimit{N: n}, nil
	}
}
