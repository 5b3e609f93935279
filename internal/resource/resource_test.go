package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelPrefersMetadata(t *testing.T) {
	r := New(Provider{Name: "importer"}, File, "file:///tmp/data.csv", map[string]string{"label": "data.csv"})
	label, err := r.Label()
	require.NoError(t, err)
	assert.Equal(t, "data.csv", label)
}

func TestLabelMissingBothFails(t *testing.T) {
	r := New(Provider{Name: "importer"}, File, "", nil)
	_, err := r.Label()
	assert.Error(t, err)
}

func TestArgDiffersByKind(t *testing.T) {
	db := New(Provider{Name: "db"}, Database, "sqlite:///tmp/db.sqlite", nil)
	assert.Equal(t, "sqlite:///tmp/db.sqlite", db.Arg())

	file := New(Provider{Name: "exporter"}, File, "file:///tmp/out.csv", nil)
	assert.Equal(t, "/tmp/out.csv", file.Arg())
}

func TestHasFilePath(t *testing.T) {
	assert.True(t, New(Provider{}, File, "file:///a", nil).HasFilePath())
	assert.True(t, New(Provider{}, Database, "sqlite:///a.sqlite", nil).HasFilePath())
	assert.False(t, New(Provider{}, Database, "mysql://host/db", nil).HasFilePath())
}

func TestCloneMergesMetadataWithoutMutatingOriginal(t *testing.T) {
	r := New(Provider{Name: "p"}, File, "file:///a", map[string]string{"label": "a"})
	clone := r.Clone(map[string]string{"filter_id": "scenario:base"})

	assert.Equal(t, "a", r.Metadata["label"])
	_, hasFilterOnOriginal := r.Metadata["filter_id"]
	assert.False(t, hasFilterOnOriginal)
	assert.Equal(t, "scenario:base", clone.Metadata["filter_id"])
}

func TestFilterIDSortsAndJoinsActiveOnly(t *testing.T) {
	stack := FilterStack{
		{Type: "scenario_filter", ID: "base", Online: true},
		{Type: "scenario_filter", ID: "archived", Online: false},
		{Type: "tool_filter", ID: "import", Online: true},
	}
	id := FilterID(stack)
	assert.Equal(t, "scenario_filter:base, tool_filter:import", id)
}

func TestCompositeFilterIDSortsAndJoinsWithAmpersand(t *testing.T) {
	composite := CompositeFilterID([]string{"tool_filter:import", "scenario_filter:base", ""})
	assert.Equal(t, "scenario_filter:base & tool_filter:import", composite)
}

func TestFilterStackHashIsStableAcrossOrder(t *testing.T) {
	a := FilterStack{
		{Type: "scenario_filter", ID: "base", Online: true},
		{Type: "tool_filter", ID: "import", Online: true},
	}
	b := FilterStack{
		{Type: "tool_filter", ID: "import", Online: true},
		{Type: "scenario_filter", ID: "base", Online: true},
	}
	assert.Equal(t, a.Hash(), b.Hash())
}
