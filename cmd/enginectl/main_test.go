package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStep(t *testing.T) {
	name, command, err := parseStep("build=echo hello world")
	require.NoError(t, err)
	assert.Equal(t, "build", name)
	assert.Equal(t, "echo hello world", command)
}

func TestParseStepRejectsMissingEquals(t *testing.T) {
	_, _, err := parseStep("echo hello")
	assert.Error(t, err)
}

func TestParseStepRejectsEmptyCommand(t *testing.T) {
	_, _, err := parseStep("build=")
	assert.Error(t, err)
}

func TestShellSpecFactoryParsesCommand(t *testing.T) {
	spec, err := shellSpecFactory(map[string]string{"command": "echo one two"})
	require.NoError(t, err)
	shSpec, ok := spec.(*shellSpec)
	require.True(t, ok)
	assert.Equal(t, "echo", shSpec.program)
	assert.Equal(t, []string{"one", "two"}, shSpec.args)
}

func TestShellSpecFactoryRejectsEmptyCommand(t *testing.T) {
	_, err := shellSpecFactory(map[string]string{"command": "   "})
	assert.Error(t, err)
}

func TestRunRequiresAtLeastOneStep(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, nil)
	require.Error(t, err)
	exitErr, ok := err.(*ExitError)
	require.True(t, ok)
	assert.Equal(t, 2, exitErr.Code)
}

func TestRunExecutesSingleShellStep(t *testing.T) {
	var out bytes.Buffer
	err := run(&out, []string{"--step", "greet=echo hello-enginectl"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "hello-enginectl")
	assert.True(t, strings.Contains(out.String(), "greet"))
}
