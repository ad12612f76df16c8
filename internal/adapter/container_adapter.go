package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// LabelKey marks every container failpass creates with the owning request id.
const LabelKey = "dev.failpass.request"

// BuildSpec describes an image build.
type BuildSpec struct {
	Tag        string
	Dockerfile string
	ContextDir string
	BuildArgs  map[string]string
	Labels     map[string]string
}

// ContainerSpec describes a disposable container.
type ContainerSpec struct {
	Image   string
	Name    string
	Workdir string
	Labels  map[string]string
	Command []string
}

// ContainerEngine is the execution engine: images, container lifecycle and
// commands inside containers. Implementations must tolerate concurrent
// independent lifecycles.
//
//nolint:interfacebloat // Mirrors the engine's own lifecycle verbs.
type ContainerEngine interface {
	ImageExists(ctx context.Context, tag string) (bool, error)
	BuildImage(ctx context.Context, spec BuildSpec) (CommandResult, error)
	CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	Exec(ctx context.Context, id, workdir, command string) (CommandResult, error)
	CopyTo(ctx context.Context, id, src, dst string) error
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
	RemoveLabeled(ctx context.Context, label, value string) error
	PruneDanglingImages(ctx context.Context) error
}

// CLIContainerEngine drives docker or podman through their command line.
type CLIContainerEngine struct {
	binary string
	exec   CommandExecutor
}

// NewCLIContainerEngine constructs an engine using binary ("docker" or "podman").
func NewCLIContainerEngine(binary string, exec CommandExecutor) *CLIContainerEngine {
	if strings.TrimSpace(binary) == "" {
		binary = "docker"
	}

	return &CLIContainerEngine{
		binary: binary,
		exec:   exec,
	}
}

// ImageExists implements ContainerEngine.
func (e *CLIContainerEngine) ImageExists(ctx context.Context, tag string) (bool, error) {
	res, err := e.exec.Run(ctx, "", e.binary, "image", "inspect", "--format", "{{.Id}}", tag)
	if err != nil {
		return false, fmt.Errorf("inspect image %s: %w", tag, err)
	}

	return res.Succeeded(), nil
}

// BuildImage implements ContainerEngine. The result carries the build log;
// a non-zero exit code means the build failed.
func (e *CLIContainerEngine) BuildImage(ctx context.Context, spec BuildSpec) (CommandResult, error) {
	args := []string{"build", "-t", spec.Tag}
	if spec.Dockerfile != "" {
		args = append(args, "-f", spec.Dockerfile)
	}

	args = append(args, keyValueFlags("--build-arg", spec.BuildArgs)...)
	args = append(args, keyValueFlags("--label", spec.Labels)...)
	args = append(args, spec.ContextDir)

	slog.Info("Building image", "tag", spec.Tag, "dockerfile", spec.Dockerfile)

	res, err := e.exec.Run(ctx, "", e.binary, args...)
	if err != nil {
		return res, fmt.Errorf("build image %s: %w", spec.Tag, err)
	}

	return res, nil
}

// CreateContainer implements ContainerEngine and returns the container id.
func (e *CLIContainerEngine) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	args := []string{"create"}
	if spec.Name != "" {
		args = append(args, "--name", spec.Name)
	}

	if spec.Workdir != "" {
		args = append(args, "-w", spec.Workdir)
	}

	args = append(args, keyValueFlags("--label", spec.Labels)...)
	args = append(args, spec.Image)
	args = append(args, spec.Command...)

	res, err := e.exec.Run(ctx, "", e.binary, args...)
	if err != nil {
		return "", fmt.Errorf("create container from %s: %w", spec.Image, err)
	}

	if !res.Succeeded() {
		return "", fmt.Errorf("create container from %s: %s", spec.Image, strings.TrimSpace(res.Combined()))
	}

	return strings.TrimSpace(res.Stdout), nil
}

// StartContainer implements ContainerEngine.
func (e *CLIContainerEngine) StartContainer(ctx context.Context, id string) error {
	return e.simple(ctx, "start", id)
}

// Exec implements ContainerEngine. The command runs through /bin/sh -c.
func (e *CLIContainerEngine) Exec(ctx context.Context, id, workdir, command string) (CommandResult, error) {
	args := []string{"exec"}
	if workdir != "" {
		args = append(args, "-w", workdir)
	}

	args = append(args, id, "/bin/sh", "-c", command)

	res, err := e.exec.Run(ctx, "", e.binary, args...)
	if err != nil {
		return res, fmt.Errorf("exec in %s: %w", id, err)
	}

	return res, nil
}

// CopyTo implements ContainerEngine.
func (e *CLIContainerEngine) CopyTo(ctx context.Context, id, src, dst string) error {
	return e.simple(ctx, "cp", src, id+":"+dst)
}

// StopContainer implements ContainerEngine.
func (e *CLIContainerEngine) StopContainer(ctx context.Context, id string) error {
	return e.simple(ctx, "stop", "-t", "1", id)
}

// RemoveContainer implements ContainerEngine.
func (e *CLIContainerEngine) RemoveContainer(ctx context.Context, id string) error {
	return e.simple(ctx, "rm", "-f", id)
}

// RemoveLabeled removes every container carrying label=value.
func (e *CLIContainerEngine) RemoveLabeled(ctx context.Context, label, value string) error {
	res, err := e.exec.Run(ctx, "", e.binary, "ps", "-aq", "--filter", fmt.Sprintf("label=%s=%s", label, value))
	if err != nil {
		return fmt.Errorf("list labeled containers: %w", err)
	}

	ids := splitNonEmptyLines(res.Stdout)
	if len(ids) == 0 {
		return nil
	}

	slog.Info("Removing leftover containers", "label", label, "value", value, "count", len(ids))

	return e.simple(ctx, append([]string{"rm", "-f"}, ids...)...)
}

// PruneDanglingImages implements ContainerEngine.
func (e *CLIContainerEngine) PruneDanglingImages(ctx context.Context) error {
	return e.simple(ctx, "image", "prune", "-f")
}

func (e *CLIContainerEngine) simple(ctx context.Context, args ...string) error {
	res, err := e.exec.Run(ctx, "", e.binary, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", e.binary, args[0], err)
	}

	if !res.Succeeded() {
		return fmt.Errorf("%s %s exited with %d: %s", e.binary, args[0], res.ExitCode, strings.TrimSpace(res.Combined()))
	}

	return nil
}

func keyValueFlags(flag string, values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	out := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, flag, k+"="+values[k])
	}

	return out
}
