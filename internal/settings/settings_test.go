package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringValueDefault(t *testing.T) {
	s := New()
	assert.Equal(t, "fallback", s.StringValue("missing", "fallback"))
}

func TestStringAndIntRoundtrip(t *testing.T) {
	s := New()
	s.SetString("interpreter/python", "/usr/bin/python3")
	s.SetInt("engineSettings/retries", 3)

	assert.Equal(t, "/usr/bin/python3", s.StringValue("interpreter/python", ""))
	assert.Equal(t, 3, s.IntValue("engineSettings/retries", 0))
}

func TestProcessLimitAuto(t *testing.T) {
	s := New()
	limit, err := s.ProcessLimit()
	require.NoError(t, err)
	assert.False(t, limit.Unlimited)
	assert.GreaterOrEqual(t, limit.N, 1)
}

func TestProcessLimitUnlimited(t *testing.T) {
	s := New()
	s.SetString("engineSettings/processLimit", "unlimited")
	limit, err := s.ProcessLimit()
	require.NoError(t, err)
	assert.True(t, limit.Unlimited)
}

func TestProcessLimitExplicit(t *testing.T) {
	s := New()
	s.SetString("engineSettings/processLimit", "4")
	limit, err := s.ProcessLimit()
	require.NoError(t, err)
	assert.Equal(t, 4, limit.N)
}

func TestProcessLimitInvalid(t *testing.T) {
	s := New()
	s.SetString("engineSettings/processLimit", "banana")
	_, err := s.ProcessLimit()
	assert.Error(t, err)
}
