package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateStartsSleeping(t *testing.T) {
	s := NewState()
	assert.Equal(t, Sleeping, s.Load())
}

func TestTerminalStateIsSticky(t *testing.T) {
	s := NewState()
	assert.True(t, s.SetIfNotTerminal(Running))
	assert.True(t, s.SetIfNotTerminal(Failed))
	assert.Equal(t, Failed, s.Load())

	assert.False(t, s.SetIfNotTerminal(Completed))
	assert.Equal(t, Failed, s.Load())
}

func TestTerminalReportsCorrectly(t *testing.T) {
	assert.False(t, Sleeping.Terminal())
	assert.False(t, Running.Terminal())
	assert.True(t, Completed.Terminal())
	assert.True(t, Failed.Terminal())
	assert.True(t, UserStopped.Terminal())
}
