package domain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"failpass.dev/pkg/failpass/internal/adapter"
	"failpass.dev/pkg/failpass/internal/adapter/mocks"
	m "failpass.dev/pkg/failpass/internal/model"
)

var sandboxRequest = m.ChangeRequest{Owner: "o", Repo: "Neqo", Number: 1, BaseRevision: "abc"}

func testSandboxConfig() SandboxConfig {
	return SandboxConfig{
		DockerfileDir:   "dockerfiles",
		ContextDir:      ".",
		Workdir:         "/app/testbed",
		TestCommand:     "cargo test -- --nocapture",
		LintCommand:     "cargo check --tests",
		CoverageCommand: "cargo llvm-cov --json --output-path coverage.json -- --nocapture",
		CoverageReport:  "coverage.json",
	}
}

// expectContainer registers the create/start/stop/remove lifecycle.
func expectContainer(engine *mocks.MockContainerEngine) {
	engine.On("CreateContainer", mock.Anything, mock.MatchedBy(func(spec adapter.ContainerSpec) bool {
		return spec.Image == "image_o__neqo-1" &&
			strings.HasPrefix(spec.Name, "failpass-o--neqo-1-") &&
			spec.Labels[adapter.LabelKey] == "o__Neqo-1" &&
			spec.Workdir == "/app/testbed"
	})).Return("c1", nil).Once()
	engine.On("StartContainer", mock.Anything, "c1").Return(nil).Once()
	engine.On("StopContainer", mock.Anything, "c1").Return(nil).Once()
	engine.On("RemoveContainer", mock.Anything, "c1").Return(nil).Once()
}

// expectStagedPatch registers staging and copying of patch into c1.
func expectStagedPatch(fs *mocks.MockSourceFSAdapter, engine *mocks.MockContainerEngine, patch string) {
	fs.On("CreateTempDir", mock.Anything, "failpass-sandbox-*").Return(m.Path("/tmp/s"), nil).Once()
	fs.On("JoinPath", mock.Anything, "/tmp/s", sandboxPatchName).Return(m.Path("/tmp/s/" + sandboxPatchName))
	fs.On("WriteFile", mock.Anything, m.Path("/tmp/s/"+sandboxPatchName), []byte(patch), mock.Anything).Return(nil).Once()
	fs.On("RemoveAll", mock.Anything, m.Path("/tmp/s")).Return(nil).Once()
	engine.On("CopyTo", mock.Anything, "c1", "/tmp/s/"+sandboxPatchName, "/app/testbed/"+sandboxPatchName).Return(nil).Once()
}

func TestSandbox_RunTests(t *testing.T) {
	ctx := context.Background()
	engine := mocks.NewMockContainerEngine(t)
	fs := mocks.NewMockSourceFSAdapter(t)

	patch := UnifiedDiff("src/lib.rs", "a\n", "b\n") + UnifiedDiff("tests/added.rs", "", "fn t() {}\n")

	expectContainer(engine)
	expectStagedPatch(fs, engine, patch)
	engine.On("Exec", mock.Anything, "c1", "/app/testbed", "mkdir -p 'tests' && touch 'tests/added.rs'").
		Return(adapter.CommandResult{}, nil).Once()
	engine.On("Exec", mock.Anything, "c1", "/app/testbed", "git apply "+sandboxPatchName).
		Return(adapter.CommandResult{}, nil).Once()
	engine.On("Exec", mock.Anything, "c1", "/app/testbed", "cargo test -- --nocapture t1 t2").
		Return(adapter.CommandResult{Stdout: "running 2 tests\ntest result: ok. 2 passed; 0 failed; 0 ignored\n"}, nil).Once()

	out, err := NewSandbox(engine, fs, testSandboxConfig()).RunTests(ctx, RunArgs{
		Request:   sandboxRequest,
		Patch:     patch,
		TestIDs:   []string{"t1", "t2"},
		PostPatch: true,
	})
	require.NoError(t, err)
	assert.True(t, out.Passed)
	assert.Contains(t, out.Output, "2 passed")
}

func TestSandbox_PatchFailureIsExecutionError(t *testing.T) {
	ctx := context.Background()
	engine := mocks.NewMockContainerEngine(t)
	fs := mocks.NewMockSourceFSAdapter(t)

	patch := UnifiedDiff("src/lib.rs", "a\n", "b\n")

	expectContainer(engine)
	expectStagedPatch(fs, engine, patch)
	engine.On("Exec", mock.Anything, "c1", "/app/testbed", "git apply "+sandboxPatchName).
		Return(adapter.CommandResult{ExitCode: 1, Stderr: "error: patch failed"}, nil).Once()

	_, err := NewSandbox(engine, fs, testSandboxConfig()).RunTests(ctx, RunArgs{Request: sandboxRequest, Patch: patch})

	var execErr *m.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "apply patch", execErr.Op)
	assert.Contains(t, execErr.Output, "patch failed")
	assert.True(t, m.IsFatal(err))
}

func TestSandbox_CleanupAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	engine := mocks.NewMockContainerEngine(t)

	var stopErr, removeErr error

	engine.On("CreateContainer", mock.Anything, mock.Anything).Return("c1", nil).Once()
	engine.On("StartContainer", mock.Anything, "c1").Return(nil).Once()
	engine.On("Exec", mock.Anything, "c1", "/app/testbed", "cargo test -- --nocapture").
		Run(func(mock.Arguments) { cancel() }).
		Return(adapter.CommandResult{ExitCode: -1}, context.Canceled).Once()
	engine.On("StopContainer", mock.Anything, "c1").
		Run(func(args mock.Arguments) { stopErr = args.Get(0).(context.Context).Err() }).
		Return(nil).Once()
	engine.On("RemoveContainer", mock.Anything, "c1").
		Run(func(args mock.Arguments) { removeErr = args.Get(0).(context.Context).Err() }).
		Return(nil).Once()

	_, err := NewSandbox(engine, mocks.NewMockSourceFSAdapter(t), testSandboxConfig()).RunTests(ctx, RunArgs{Request: sandboxRequest})
	require.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, stopErr)
	assert.NoError(t, removeErr)
}

func TestSandbox_Lint(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		cfg := testSandboxConfig()
		cfg.LintCommand = ""

		out, err := NewSandbox(mocks.NewMockContainerEngine(t), mocks.NewMockSourceFSAdapter(t), cfg).
			Lint(ctx, RunArgs{Request: sandboxRequest, Patch: "irrelevant"})
		require.NoError(t, err)
		assert.True(t, out.Passed)
	})

	t.Run("reports diagnostics", func(t *testing.T) {
		engine := mocks.NewMockContainerEngine(t)

		expectContainer(engine)
		engine.On("Exec", mock.Anything, "c1", "/app/testbed", "cargo check --tests").
			Return(adapter.CommandResult{ExitCode: 101, Stderr: "error[E0433]: failed to resolve"}, nil).Once()

		out, err := NewSandbox(engine, mocks.NewMockSourceFSAdapter(t), testSandboxConfig()).
			Lint(ctx, RunArgs{Request: sandboxRequest})
		require.NoError(t, err)
		assert.False(t, out.Passed)
		assert.Contains(t, out.Output, "E0433")
	})
}

func TestSandbox_RunCoverage(t *testing.T) {
	ctx := context.Background()
	engine := mocks.NewMockContainerEngine(t)

	expectContainer(engine)
	engine.On("Exec", mock.Anything, "c1", "/app/testbed",
		"cargo llvm-cov --json --output-path coverage.json -- --nocapture t1; echo 'COVERAGE_REPORT_STARTING_HERE' && cat 'coverage.json'").
		Return(adapter.CommandResult{Stdout: "test result: ok. 1 passed; 0 failed\nCOVERAGE_REPORT_STARTING_HERE\n" +
			`{"data":[{"totals":{"lines":{"percent":61.5}},"files":[{"filename":"/app/testbed/src/lib.rs","summary":{"lines":{"percent":80}}}]}]}`}, nil).Once()

	report, err := NewSandbox(engine, mocks.NewMockSourceFSAdapter(t), testSandboxConfig()).
		RunCoverage(ctx, RunArgs{Request: sandboxRequest, TestIDs: []string{"t1"}}, "src/lib.rs")
	require.NoError(t, err)
	require.NotNil(t, report.Suite)
	require.NotNil(t, report.File)
	assert.InDelta(t, 61.5, *report.Suite, 1e-9)
	assert.InDelta(t, 80, *report.File, 1e-9)
}

func TestSandbox_EnsureEnvironment(t *testing.T) {
	ctx := context.Background()

	t.Run("existing image is reused", func(t *testing.T) {
		engine := mocks.NewMockContainerEngine(t)
		engine.On("ImageExists", ctx, "image_o__neqo-1").Return(true, nil).Once()

		require.NoError(t, NewSandbox(engine, nil, testSandboxConfig()).EnsureEnvironment(ctx, sandboxRequest))
	})

	t.Run("missing image is built", func(t *testing.T) {
		engine := mocks.NewMockContainerEngine(t)
		engine.On("ImageExists", ctx, "image_o__neqo-1").Return(false, nil).Once()
		engine.On("BuildImage", ctx, adapter.BuildSpec{
			Tag:        "image_o__neqo-1",
			Dockerfile: "dockerfiles/Dockerfile_neqo",
			ContextDir: ".",
			BuildArgs:  map[string]string{"commit_hash": "abc"},
			Labels:     map[string]string{adapter.LabelKey: "o__Neqo-1"},
		}).Return(adapter.CommandResult{}, nil).Once()

		require.NoError(t, NewSandbox(engine, nil, testSandboxConfig()).EnsureEnvironment(ctx, sandboxRequest))
	})

	t.Run("failed build cleans up", func(t *testing.T) {
		engine := mocks.NewMockContainerEngine(t)
		engine.On("ImageExists", ctx, "image_o__neqo-1").Return(false, nil).Once()
		engine.On("BuildImage", ctx, mock.Anything).Return(adapter.CommandResult{ExitCode: 1, Stderr: "step 3 failed"}, nil).Once()
		engine.On("RemoveLabeled", mock.Anything, adapter.LabelKey, "o__Neqo-1").Return(nil).Once()
		engine.On("PruneDanglingImages", mock.Anything).Return(errors.New("busy")).Once()

		err := NewSandbox(engine, nil, testSandboxConfig()).EnsureEnvironment(ctx, sandboxRequest)

		var execErr *m.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "build image", execErr.Op)
		assert.Contains(t, execErr.Output, "step 3 failed")
	})
}

func TestClassifyTestOutput(t *testing.T) {
	tests := []struct {
		name string
		res  adapter.CommandResult
		want bool
	}{
		{"all passed", adapter.CommandResult{Stdout: "test result: ok. 1 passed; 0 failed; 0 ignored"}, true},
		{"assertion failure", adapter.CommandResult{Stdout: "test result: FAILED. 0 passed; 1 failed;", ExitCode: 101}, false},
		{"failure with zero exit", adapter.CommandResult{Stdout: "test result: ok. 3 passed; 0 failed\ntest result: FAILED. 0 passed; 1 failed"}, false},
		{"compile error", adapter.CommandResult{Stderr: "error[E0425]: cannot find value `x` in this scope"}, false},
		{"could not compile", adapter.CommandResult{Stderr: "error: could not compile `neqo`"}, false},
		{"nothing ran", adapter.CommandResult{Stdout: "test result: ok. 0 passed; 0 failed; 0 ignored; 12 filtered out"}, false},
		{"multiple binaries", adapter.CommandResult{Stdout: "test result: ok. 0 passed; 0 failed\ntest result: ok. 1 passed; 0 failed"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyTestOutput(tt.res))
		})
	}
}

func TestParseCoverageOutput(t *testing.T) {
	_, err := ParseCoverageOutput("no report here", "src/lib.rs")
	require.Error(t, err)

	_, err = ParseCoverageOutput(CoverageSeparator+"\nnot json", "src/lib.rs")
	require.Error(t, err)

	report, err := ParseCoverageOutput(CoverageSeparator+`{"data":[{"totals":{"lines":{"percent":10}},"files":[]}]}`, "src/lib.rs")
	require.NoError(t, err)
	assert.Nil(t, report.File)
	assert.InDelta(t, 10, *report.Suite, 1e-9)

	with, without := 80.0, 70.0
	sample := Sample(CoverageReport{Suite: &with, File: &with}, CoverageReport{Suite: &without, File: &without})
	assert.True(t, sample.Improved())
}
