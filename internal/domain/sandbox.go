package domain

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"failpass.dev/pkg/failpass/internal/adapter"
	m "failpass.dev/pkg/failpass/internal/model"
)

const (
	sandboxPatchName = "failpass.patch"
	cleanupTimeout   = 30 * time.Second
)

// SandboxConfig describes how environments are built and what runs inside them.
type SandboxConfig struct {
	DockerfileDir   string `validate:"required"`
	ContextDir      string `validate:"required"`
	Workdir         string `validate:"required"`
	TestCommand     string `validate:"required"`
	LintCommand     string
	CoverageCommand string
	CoverageReport  string
}

// RunArgs selects what a sandbox run applies and executes.
type RunArgs struct {
	Request   m.ChangeRequest
	Patch     string
	TestIDs   []string
	PostPatch bool
}

// TestOutcome is the classified result of a sandbox run.
type TestOutcome struct {
	Passed bool
	Output string
}

// Sandbox runs builds and tests of a change request in disposable containers.
type Sandbox interface {
	// EnsureEnvironment builds the request's image unless it already exists.
	EnsureEnvironment(ctx context.Context, req m.ChangeRequest) error
	// RunTests applies args.Patch in a fresh container and runs the selected tests.
	RunTests(ctx context.Context, args RunArgs) (TestOutcome, error)
	// Lint applies args.Patch and runs the lint command. An empty lint
	// command always passes.
	Lint(ctx context.Context, args RunArgs) (TestOutcome, error)
	// RunCoverage runs the selected tests under the coverage command and
	// extracts line coverage for the suite and for file.
	RunCoverage(ctx context.Context, args RunArgs, file m.Path) (CoverageReport, error)
}

type containerSandbox struct {
	engine adapter.ContainerEngine
	fs     adapter.SourceFSAdapter
	cfg    SandboxConfig
}

// NewSandbox constructs a Sandbox driving engine.
func NewSandbox(engine adapter.ContainerEngine, fs adapter.SourceFSAdapter, cfg SandboxConfig) Sandbox {
	return &containerSandbox{
		engine: engine,
		fs:     fs,
		cfg:    cfg,
	}
}

func (s *containerSandbox) EnsureEnvironment(ctx context.Context, req m.ChangeRequest) error {
	tag := req.ImageTag()

	exists, err := s.engine.ImageExists(ctx, tag)
	if err != nil {
		return &m.ExecutionError{Op: "inspect image", Err: err}
	}

	if exists {
		slog.Debug("Reusing environment image", "tag", tag)
		return nil
	}

	slog.Info("Building environment image", "tag", tag, "base", req.BaseRevision)

	res, err := s.engine.BuildImage(ctx, adapter.BuildSpec{
		Tag:        tag,
		Dockerfile: filepath.Join(s.cfg.DockerfileDir, "Dockerfile_"+strings.ToLower(req.Repo)),
		ContextDir: s.cfg.ContextDir,
		BuildArgs:  map[string]string{"commit_hash": req.BaseRevision},
		Labels:     map[string]string{adapter.LabelKey: req.ID()},
	})
	if err == nil && res.Succeeded() {
		return nil
	}

	slog.Error("Image build failed, cleaning up", "tag", tag, "error", err)
	s.cleanupBuild(ctx, req)

	return &m.ExecutionError{Op: "build image", Output: res.Combined(), Err: err}
}

func (s *containerSandbox) cleanupBuild(ctx context.Context, req m.ChangeRequest) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.engine.RemoveLabeled(cctx, adapter.LabelKey, req.ID()); err != nil {
		slog.Warn("Failed to remove leftover containers", "error", err)
	}

	if err := s.engine.PruneDanglingImages(cctx); err != nil {
		slog.Warn("Failed to prune dangling images", "error", err)
	}
}

func (s *containerSandbox) RunTests(ctx context.Context, args RunArgs) (TestOutcome, error) {
	command := strings.TrimSpace(s.cfg.TestCommand + " " + strings.Join(args.TestIDs, " "))

	res, err := s.runInContainer(ctx, args, command)
	if err != nil {
		return TestOutcome{}, err
	}

	passed := classifyTestOutput(res)
	slog.Info("Tests finished", "request", args.Request.ID(), "postPatch", args.PostPatch, "passed", passed)

	return TestOutcome{Passed: passed, Output: res.Combined()}, nil
}

func (s *containerSandbox) Lint(ctx context.Context, args RunArgs) (TestOutcome, error) {
	if s.cfg.LintCommand == "" {
		return TestOutcome{Passed: true}, nil
	}

	res, err := s.runInContainer(ctx, args, s.cfg.LintCommand)
	if err != nil {
		return TestOutcome{}, err
	}

	return TestOutcome{Passed: res.Succeeded(), Output: res.Combined()}, nil
}

func (s *containerSandbox) RunCoverage(ctx context.Context, args RunArgs, file m.Path) (CoverageReport, error) {
	if s.cfg.CoverageCommand == "" {
		return CoverageReport{}, nil
	}

	command := fmt.Sprintf("%s %s; echo '%s' && cat %s",
		s.cfg.CoverageCommand, strings.Join(args.TestIDs, " "), CoverageSeparator, shellQuote(s.cfg.CoverageReport))

	res, err := s.runInContainer(ctx, args, command)
	if err != nil {
		return CoverageReport{}, err
	}

	return ParseCoverageOutput(res.Combined(), file)
}

// runInContainer owns the container lifecycle: create, start, apply the
// patch, run command, and always stop and remove.
func (s *containerSandbox) runInContainer(ctx context.Context, args RunArgs, command string) (adapter.CommandResult, error) {
	id, err := s.engine.CreateContainer(ctx, adapter.ContainerSpec{
		Image:   args.Request.ImageTag(),
		Name:    containerName(args.Request),
		Workdir: s.cfg.Workdir,
		Labels:  map[string]string{adapter.LabelKey: args.Request.ID()},
		Command: []string{"sleep", "infinity"},
	})
	if err != nil {
		return adapter.CommandResult{}, &m.ExecutionError{Op: "create container", Err: err}
	}

	defer s.removeContainer(ctx, id)

	if err := s.engine.StartContainer(ctx, id); err != nil {
		return adapter.CommandResult{}, &m.ExecutionError{Op: "start container", Err: err}
	}

	if err := s.applyPatch(ctx, id, args.Patch); err != nil {
		return adapter.CommandResult{}, err
	}

	slog.Debug("Running in container", "container", id, "command", command)

	res, err := s.engine.Exec(ctx, id, s.cfg.Workdir, command)
	if err != nil {
		return adapter.CommandResult{}, &m.ExecutionError{Op: "run command", Output: res.Combined(), Err: err}
	}

	return res, nil
}

func (s *containerSandbox) applyPatch(ctx context.Context, id, patch string) error {
	if strings.TrimSpace(patch) == "" {
		return nil
	}

	for _, p := range NewlyAddedFiles(patch) {
		placeholder := "touch " + shellQuote(string(p))
		if dir := path.Dir(string(p)); dir != "." {
			placeholder = "mkdir -p " + shellQuote(dir) + " && " + placeholder
		}

		if res, err := s.engine.Exec(ctx, id, s.cfg.Workdir, placeholder); err != nil || !res.Succeeded() {
			slog.Warn("Failed to create placeholder", "path", p, "output", res.Combined(), "error", err)
		}
	}

	hostDir, err := s.fs.CreateTempDir(ctx, "failpass-sandbox-*")
	if err != nil {
		return &m.ExecutionError{Op: "stage patch", Err: err}
	}

	defer func() {
		if err := s.fs.RemoveAll(context.WithoutCancel(ctx), hostDir); err != nil {
			slog.Warn("Failed to remove staged patch", "dir", hostDir, "error", err)
		}
	}()

	hostPatch := s.fs.JoinPath(ctx, string(hostDir), sandboxPatchName)
	if err := s.fs.WriteFile(ctx, hostPatch, []byte(patch), 0o600); err != nil {
		return &m.ExecutionError{Op: "stage patch", Err: err}
	}

	if err := s.engine.CopyTo(ctx, id, string(hostPatch), path.Join(s.cfg.Workdir, sandboxPatchName)); err != nil {
		return &m.ExecutionError{Op: "copy patch", Err: err}
	}

	res, err := s.engine.Exec(ctx, id, s.cfg.Workdir, "git apply "+sandboxPatchName)
	if err != nil || !res.Succeeded() {
		slog.Error("Patch did not apply in container", "container", id, "output", res.Combined())
		return &m.ExecutionError{Op: "apply patch", Output: res.Combined(), Err: err}
	}

	return nil
}

func (s *containerSandbox) removeContainer(ctx context.Context, id string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.engine.StopContainer(cctx, id); err != nil {
		slog.Warn("Failed to stop container", "container", id, "error", err)
	}

	if err := s.engine.RemoveContainer(cctx, id); err != nil {
		slog.Warn("Failed to remove container", "container", id, "error", err)
	}
}

func containerName(req m.ChangeRequest) string {
	name := strings.ToLower(strings.NewReplacer("/", "-", "_", "-").Replace(req.ID()))
	return "failpass-" + name + "-" + uuid.NewString()[:8]
}

var (
	testResultPattern = regexp.MustCompile(`test result: \w+\. (\d+) passed; (\d+) failed`)
	buildErrorMarkers = []string{"error[E", "error: could not compile"}
)

// classifyTestOutput reports a pass when the command succeeded, nothing
// failed to build, no test failed and at least one test ran.
func classifyTestOutput(res adapter.CommandResult) bool {
	if !res.Succeeded() {
		return false
	}

	out := res.Combined()

	for _, marker := range buildErrorMarkers {
		if strings.Contains(out, marker) {
			return false
		}
	}

	passed, failed := 0, 0

	for _, match := range testResultPattern.FindAllStringSubmatch(out, -1) {
		p, _ := strconv.Atoi(match[1])
		f, _ := strconv.Atoi(match[2])
		passed += p
		failed += f
	}

	return failed == 0 && passed > 0
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
