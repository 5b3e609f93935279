package item

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/spine-engine-go/internal/event"
	"github.com/specialistvlad/spine-engine-go/internal/resource"
)

type noopItem struct {
	name    string
	groupID string
}

func (n *noopItem) Name() string    { return n.name }
func (n *noopItem) GroupID() string { return n.groupID }
func (n *noopItem) ReadyToExecute(ctx context.Context) bool { return true }
func (n *noopItem) Execute(ctx context.Context, forward, backward []resource.Resource) event.ItemExecutionFinishState {
	return event.Success
}
func (n *noopItem) ExcludeExecution(ctx context.Context, forward, backward []resource.Resource) {}
func (n *noopItem) OutputResources(ctx context.Context) []resource.Resource                      { return nil }
func (n *noopItem) StopExecution()                                                               {}

func TestRegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	r.Register("noop", func(name string, spec any, groupID string) (ExecutableItem, error) {
		return &noopItem{name: name, groupID: groupID}, nil
	}, func(settings map[string]string) (any, error) {
		return nil, nil
	})

	built, err := r.Build("noop", "step-1", nil, "group-a")
	require.NoError(t, err)
	assert.Equal(t, "step-1", built.Name())
	assert.Equal(t, "group-a", built.GroupID())
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	register := func() {
		r.Register("noop", func(name string, spec any, groupID string) (ExecutableItem, error) {
			return &noopItem{name: name}, nil
		}, func(settings map[string]string) (any, error) { return nil, nil })
	}
	register()
	assert.Panics(t, register)
}

func TestBuildUnknownTypeFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build("missing", "step-1", nil, "")
	assert.Error(t, err)
}

func TestValidateCatchesNilEntries(t *testing.T) {
	r := NewRegistry()
	r.entries["broken"] = entry{}
	assert.Error(t, r.Validate())
}
