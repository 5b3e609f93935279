package persistent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReusesManagerForSameGroup(t *testing.T) {
	p := NewPool()
	ctx := context.Background()

	m1, err := p.GetOrCreate(ctx, []string{"cat"}, "", "group-a", nil)
	require.NoError(t, err)
	m2, err := p.GetOrCreate(ctx, []string{"cat"}, "", "group-a", nil)
	require.NoError(t, err)

	assert.Equal(t, m1.ID, m2.ID)
	p.KillAll()
}

func TestGetOrCreateIsolatesEmptyGroupID(t *testing.T) {
	p := NewPool()
	ctx := context.Background()

	m1, err := p.GetOrCreate(ctx, []string{"cat"}, "", "", nil)
	require.NoError(t, err)
	m2, err := p.GetOrCreate(ctx, []string{"cat"}, "", "", nil)
	require.NoError(t, err)

	assert.NotEqual(t, m1.ID, m2.ID)
	p.KillAll()
}

func TestEvictIdlePrefersIsolatedManagers(t *testing.T) {
	p := NewPool()
	ctx := context.Background()
	_, err := p.GetOrCreate(ctx, []string{"cat"}, "", "", nil)
	require.NoError(t, err)

	evicted := p.EvictIdle()
	assert.True(t, evicted)
	assert.Empty(t, p.isolated)
}
