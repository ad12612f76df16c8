package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// CommandResult is the captured outcome of a finished process.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout followed by stderr.
func (r CommandResult) Combined() string {
	return r.Stdout + r.Stderr
}

// Succeeded reports a zero exit code.
func (r CommandResult) Succeeded() bool {
	return r.ExitCode == 0
}

// CommandExecutor abstracts process execution so adapters built on external
// tools (git, docker) can be tested without them.
type CommandExecutor interface {
	// Run executes name with args in dir. A non-zero exit is reported through
	// CommandResult.ExitCode; the error is reserved for failures to run at all.
	Run(ctx context.Context, dir string, name string, args ...string) (CommandResult, error)
}

// LocalCommandExecutor runs commands with os/exec.
type LocalCommandExecutor struct {
	timeout time.Duration
}

// NewLocalCommandExecutor constructs a LocalCommandExecutor. A zero timeout
// leaves bounding to the caller's context.
func NewLocalCommandExecutor(timeout time.Duration) *LocalCommandExecutor {
	return &LocalCommandExecutor{
		timeout: timeout,
	}
}

// Run implements CommandExecutor.
func (a *LocalCommandExecutor) Run(ctx context.Context, dir string, name string, args ...string) (CommandResult, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running command", "dir", dir, "command", name, "args", strings.Join(args, " "))

	err := cmd.Run()

	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("%s interrupted: %w", name, ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	result.ExitCode = -1

	return result, fmt.Errorf("failed to run %s: %w", name, err)
}
