package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunnerRunSuccess(t *testing.T) {
	err := ExecRunner{}.Run(context.Background(), "sh", "-c", "exit 0")
	assert.NoError(t, err)
}

func TestExecRunnerRunFailure(t *testing.T) {
	err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	require.Error(t, err)

	var invErr *InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, 3, invErr.ExitCode)
	assert.Contains(t, invErr.Stderr, "oops")
	assert.Contains(t, invErr.Error(), "exit 3")
}

func TestExecRunnerOutput(t *testing.T) {
	out, err := ExecRunner{}.Output(context.Background(), "sh", "-c", "echo '  42.5  '")
	require.NoError(t, err)
	assert.Equal(t, "42.5", out)
}

func TestExecRunnerOutputFailure(t *testing.T) {
	_, err := ExecRunner{}.Output(context.Background(), "sh", "-c", "exit 1")
	require.Error(t, err)

	var invErr *InvocationError
	assert.True(t, errors.As(err, &invErr))
}

func TestInvocationErrorMessageUsesLastStderrLine(t *testing.T) {
	err := &InvocationError{
		Name:     "spleeter",
		ExitCode: 137,
		Stderr:   "loading model\nallocating buffers\nKilled",
	}
	assert.Equal(t, "spleeter failed (exit 137): Killed", err.Error())
}

func TestErrMissingOutputIsDistinct(t *testing.T) {
	wrapped := errors.Join(ErrMissingOutput)
	assert.True(t, errors.Is(wrapped, ErrMissingOutput))

	var invErr *InvocationError
	assert.False(t, errors.As(ErrMissingOutput, &invErr))
}
