package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExecutor struct {
	mock.Mock
}

func (e *mockExecutor) Run(ctx context.Context, dir string, name string, args ...string) (CommandResult, error) {
	callArgs := []interface{}{ctx, dir, name}
	for _, a := range args {
		callArgs = append(callArgs, a)
	}

	ret := e.Called(callArgs...)

	return ret.Get(0).(CommandResult), ret.Error(1)
}

func TestCLIContainerEngine_ImageExists(t *testing.T) {
	ctx := context.Background()
	exec := new(mockExecutor)
	engine := NewCLIContainerEngine("podman", exec)

	exec.On("Run", ctx, "", "podman", "image", "inspect", "--format", "{{.Id}}", "image_a").
		Return(CommandResult{Stdout: "sha256:1"}, nil)
	exec.On("Run", ctx, "", "podman", "image", "inspect", "--format", "{{.Id}}", "image_b").
		Return(CommandResult{ExitCode: 125}, nil)

	ok, err := engine.ImageExists(ctx, "image_a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.ImageExists(ctx, "image_b")
	require.NoError(t, err)
	assert.False(t, ok)

	exec.AssertExpectations(t)
}

func TestCLIContainerEngine_BuildImage(t *testing.T) {
	ctx := context.Background()
	exec := new(mockExecutor)
	engine := NewCLIContainerEngine("", exec)

	exec.On("Run", ctx, "", "docker",
		"build", "-t", "image_x", "-f", "dockerfiles/Dockerfile_neqo",
		"--build-arg", "commit_hash=abc",
		"--label", LabelKey+"=x",
		"ctx",
	).Return(CommandResult{Stdout: "done"}, nil)

	res, err := engine.BuildImage(ctx, BuildSpec{
		Tag:        "image_x",
		Dockerfile: "dockerfiles/Dockerfile_neqo",
		ContextDir: "ctx",
		BuildArgs:  map[string]string{"commit_hash": "abc"},
		Labels:     map[string]string{LabelKey: "x"},
	})
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	exec.AssertExpectations(t)
}

func TestCLIContainerEngine_Lifecycle(t *testing.T) {
	ctx := context.Background()
	exec := new(mockExecutor)
	engine := NewCLIContainerEngine("docker", exec)

	exec.On("Run", ctx, "", "docker", "create", "--name", "c1", "-w", "/app/testbed", "--label", LabelKey+"=req", "image_x", "sleep", "infinity").
		Return(CommandResult{Stdout: "abc123\n"}, nil)
	exec.On("Run", ctx, "", "docker", "start", "abc123").Return(CommandResult{}, nil)
	exec.On("Run", ctx, "", "docker", "exec", "-w", "/app/testbed", "abc123", "/bin/sh", "-c", "cargo test").
		Return(CommandResult{Stdout: "test result: ok.", ExitCode: 0}, nil)
	exec.On("Run", ctx, "", "docker", "cp", "/tmp/p.diff", "abc123:/app/testbed/p.diff").Return(CommandResult{}, nil)
	exec.On("Run", ctx, "", "docker", "stop", "-t", "1", "abc123").Return(CommandResult{}, nil)
	exec.On("Run", ctx, "", "docker", "rm", "-f", "abc123").Return(CommandResult{ExitCode: 1, Stderr: "no such container"}, nil)

	id, err := engine.CreateContainer(ctx, ContainerSpec{
		Image:   "image_x",
		Name:    "c1",
		Workdir: "/app/testbed",
		Labels:  map[string]string{LabelKey: "req"},
		Command: []string{"sleep", "infinity"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	require.NoError(t, engine.StartContainer(ctx, id))
	require.NoError(t, engine.CopyTo(ctx, id, "/tmp/p.diff", "/app/testbed/p.diff"))

	res, err := engine.Exec(ctx, id, "/app/testbed", "cargo test")
	require.NoError(t, err)
	assert.Equal(t, "test result: ok.", res.Stdout)

	require.NoError(t, engine.StopContainer(ctx, id))

	err = engine.RemoveContainer(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such container")

	exec.AssertExpectations(t)
}

func TestCLIContainerEngine_RemoveLabeled(t *testing.T) {
	ctx := context.Background()
	exec := new(mockExecutor)
	engine := NewCLIContainerEngine("docker", exec)

	exec.On("Run", ctx, "", "docker", "ps", "-aq", "--filter", "label="+LabelKey+"=req").
		Return(CommandResult{Stdout: "a1\nb2\n"}, nil)
	exec.On("Run", ctx, "", "docker", "rm", "-f", "a1", "b2").Return(CommandResult{}, nil)
	exec.On("Run", ctx, "", "docker", "image", "prune", "-f").Return(CommandResult{}, nil)

	require.NoError(t, engine.RemoveLabeled(ctx, LabelKey, "req"))
	require.NoError(t, engine.PruneDanglingImages(ctx))
	exec.AssertExpectations(t)
}

func TestCLIContainerEngine_CreateFailure(t *testing.T) {
	ctx := context.Background()
	exec := new(mockExecutor)
	engine := NewCLIContainerEngine("docker", exec)

	exec.On("Run", ctx, "", "docker", "create", "missing").Return(CommandResult{}, errors.New("docker not found"))

	_, err := engine.CreateContainer(ctx, ContainerSpec{Image: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docker not found")
}
