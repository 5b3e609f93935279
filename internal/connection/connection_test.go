package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/spine-engine-go/internal/resource"
)

func TestNameFormatsSourceArrowDestination(t *testing.T) {
	c := New("importer", "exporter")
	assert.Equal(t, "importer -> exporter", c.Name())
}

func TestSetOnlineAndHasFilters(t *testing.T) {
	c := New("a", "b")
	assert.False(t, c.HasFilters())

	c.SetOnline("db.sqlite", "scenario_filter", "base", true)
	assert.True(t, c.HasFilters())
}

func TestFilterStacksCrossesOnlyOnlineTypes(t *testing.T) {
	c := New("a", "b")
	c.SetOnline("db.sqlite", "tool_filter", "import", true)
	c.SetOnline("db.sqlite", "scenario_filter", "archived", false)
	c.SetOnline("db.sqlite", "scenario_filter", "base", true)

	stacks := c.FilterStacks("db.sqlite")
	require.Len(t, stacks, 1)
	stack := stacks[0]
	require.Len(t, stack, 2)
	assert.Equal(t, "scenario_filter", stack[0].Type)
	assert.Equal(t, "base", stack[0].ID)
	assert.Equal(t, "tool_filter", stack[1].Type)
	assert.Equal(t, "import", stack[1].ID)
}

func TestFilterStacksCrossProductOverMultipleOnlineIDs(t *testing.T) {
	c := New("a", "b")
	c.SetOnline("db.sqlite", "scenario_filter", "base", true)
	c.SetOnline("db.sqlite", "scenario_filter", "urban", true)
	c.SetOnline("db.sqlite", "tool_filter", "import", true)

	stacks := c.FilterStacks("db.sqlite")
	require.Len(t, stacks, 2)
	for _, stack := range stacks {
		require.Len(t, stack, 2)
		assert.Equal(t, "scenario_filter", stack[0].Type)
		assert.Equal(t, "tool_filter", stack[1].Type)
		assert.Equal(t, "import", stack[1].ID)
	}
	assert.Equal(t, "base", stacks[0][0].ID)
	assert.Equal(t, "urban", stacks[1][0].ID)
}

func TestReplaceResourceFromSourceRekeysFilters(t *testing.T) {
	c := New("a", "b")
	old := resource.New(resource.Provider{Name: "a"}, resource.Database, "sqlite:///old.sqlite", nil)
	c.ReceiveResourcesFromSource([]resource.Resource{old})
	c.SetOnline("sqlite:///old.sqlite", "scenario_filter", "base", true)

	fresh := resource.New(resource.Provider{Name: "a"}, resource.Database, "sqlite:///new.sqlite", nil)
	require.NoError(t, c.ReplaceResourceFromSource(old, fresh))

	assert.Empty(t, c.FilterStacks("sqlite:///old.sqlite"))
	stacks := c.FilterStacks("sqlite:///new.sqlite")
	require.Len(t, stacks, 1)
	require.Len(t, stacks[0], 1)
	assert.Equal(t, "base", stacks[0][0].ID)
}

type fakePackBuilder struct{ called int }

func (f *fakePackBuilder) BuildPack(provider resource.Provider, matched []resource.Resource) (resource.Resource, error) {
	f.called++
	return resource.New(provider, resource.File, "file:///datapackage.json", map[string]string{"label": "datapackage@" + provider.Name}), nil
}

func TestConvertResourcesFoldsMatchedFilesIntoPack(t *testing.T) {
	c := New("a", "b")
	c.UseDatapackage = true
	builder := &fakePackBuilder{}
	c.PackBuilder = builder

	provider := resource.Provider{Name: "importer"}
	csv1 := resource.New(provider, resource.File, "file:///data1.csv", map[string]string{"label": "data1.csv"})
	csv2 := resource.New(provider, resource.File, "file:///data2.csv", map[string]string{"label": "data2.csv"})
	other := resource.New(provider, resource.File, "file:///notes.txt", map[string]string{"label": "notes.txt"})

	out, err := c.ConvertResources(provider, []resource.Resource{csv1, csv2, other}, ".csv")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 1, builder.called)
}

func TestConvertResourcesPassesThroughWhenDatapackageDisabled(t *testing.T) {
	c := New("a", "b")
	provider := resource.Provider{Name: "importer"}
	csv := resource.New(provider, resource.File, "file:///data.csv", map[string]string{"label": "data.csv"})

	out, err := c.ConvertResources(provider, []resource.Resource{csv}, ".csv")
	require.NoError(t, err)
	assert.Equal(t, []resource.Resource{csv}, out)
}
