// Package engine runs the external processing binaries (ffmpeg, ffprobe,
// the separation engine, the recognition engine) and normalizes their
// failures into a small error taxonomy.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrMissingOutput marks a run where the engine exited zero but its
// documented output artifact is absent. Callers treat it like a non-zero
// exit for fallback purposes.
var ErrMissingOutput = errors.New("engine output artifact missing")

// InvocationError is a non-zero exit from an external engine process.
type InvocationError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("%s failed (exit %d)", e.Name, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Runner executes external commands. The production implementation is
// ExecRunner; tests substitute stubs.
type Runner interface {
	// Run executes the command and waits for it. A non-zero exit is
	// returned as *InvocationError.
	Run(ctx context.Context, name string, args ...string) error
	// Output executes the command and returns trimmed stdout.
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands via os/exec with stderr capture.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return wrapRunErr(err, name, args, stderr.String())
	}
	return nil
}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", wrapRunErr(err, name, args, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func wrapRunErr(err error, name string, args []string, stderr string) error {
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	return &InvocationError{
		Name:     name,
		Args:     args,
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      err,
	}
}
