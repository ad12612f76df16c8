package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "failpass.dev/pkg/failpass/internal/model"
)

func TestGitCLIAdapter_ShowCachesAndTreatsMissingAsEmpty(t *testing.T) {
	ctx := context.Background()
	exec := new(mockExecutor)
	git := NewGitCLIAdapter(exec)

	exec.On("Run", ctx, "/repo", "git", "show", "abc:src/lib.rs").
		Return(CommandResult{Stdout: "fn a() {}\n"}, nil).Once()
	exec.On("Run", ctx, "/repo", "git", "show", "abc:src/new.rs").
		Return(CommandResult{ExitCode: 128, Stderr: "fatal: path 'src/new.rs' does not exist in 'abc'"}, nil).Once()

	for range 2 {
		content, err := git.Show(ctx, "/repo", "abc", "src/lib.rs")
		require.NoError(t, err)
		assert.Equal(t, "fn a() {}\n", content)
	}

	content, err := git.Show(ctx, "/repo", "abc", "src/new.rs")
	require.NoError(t, err)
	assert.Empty(t, content)

	exec.AssertExpectations(t)
}

func TestGitCLIAdapter_ChangedFiles(t *testing.T) {
	ctx := context.Background()

	t.Run("working tree includes untracked", func(t *testing.T) {
		exec := new(mockExecutor)
		git := NewGitCLIAdapter(exec)

		exec.On("Run", ctx, "/repo", "git", "diff", "--name-only", "base").
			Return(CommandResult{Stdout: "src/b.rs\nsrc/a.rs\n"}, nil)
		exec.On("Run", ctx, "/repo", "git", "ls-files", "--others", "--exclude-standard").
			Return(CommandResult{Stdout: "src/c.rs\nsrc/a.rs\n"}, nil)

		files, err := git.ChangedFiles(ctx, "/repo", "base", "")
		require.NoError(t, err)
		assert.Equal(t, []m.Path{"src/a.rs", "src/b.rs", "src/c.rs"}, files)
	})

	t.Run("between revisions", func(t *testing.T) {
		exec := new(mockExecutor)
		git := NewGitCLIAdapter(exec)

		exec.On("Run", ctx, "/repo", "git", "diff", "--name-only", "base", "head").
			Return(CommandResult{Stdout: "src/lib.rs\n"}, nil)

		files, err := git.ChangedFiles(ctx, "/repo", "base", "head")
		require.NoError(t, err)
		assert.Equal(t, []m.Path{"src/lib.rs"}, files)
		exec.AssertNotCalled(t, "Run", ctx, "/repo", "git", "ls-files", "--others", "--exclude-standard")
	})

	t.Run("diff failure", func(t *testing.T) {
		exec := new(mockExecutor)
		git := NewGitCLIAdapter(exec)

		exec.On("Run", ctx, "/repo", "git", "diff", "--name-only", "nope").
			Return(CommandResult{ExitCode: 128, Stderr: "bad revision"}, nil)

		_, err := git.ChangedFiles(ctx, "/repo", "nope", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad revision")
	})
}

func TestGitCLIAdapter_ApplyArgs(t *testing.T) {
	ctx := context.Background()
	exec := new(mockExecutor)
	git := NewGitCLIAdapter(exec)

	exec.On("Run", ctx, "/scratch", "git", "apply", "-v", "--reject", "patch.diff").
		Return(CommandResult{ExitCode: 1, Stderr: "error: patch failed: a.rs:3"}, nil)
	exec.On("Run", ctx, "/scratch", "git", "init", "-q").Return(CommandResult{}, nil)

	require.NoError(t, git.Init(ctx, "/scratch"))

	res, err := git.Apply(ctx, "/scratch", "patch.diff", true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Combined(), "patch failed")
}

func TestGitCLIAdapter_WorkingTreeContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.rs"), []byte("fn b() {}\n"), 0o600))

	git := NewGitCLIAdapter(new(mockExecutor))

	content, err := git.WorkingTreeContent(context.Background(), dir, "src/lib.rs")
	require.NoError(t, err)
	assert.Equal(t, "fn b() {}\n", content)

	content, err = git.WorkingTreeContent(context.Background(), dir, "src/deleted.rs")
	require.NoError(t, err)
	assert.Empty(t, content)
}
