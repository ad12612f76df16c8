package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	m "failpass.dev/pkg/failpass/internal/model"
)

const defaultShowCacheSize = 256

// VersionControl is the subset of git the pipeline relies on.
type VersionControl interface {
	// Init creates an empty repository in dir.
	Init(ctx context.Context, dir string) error

	// Apply runs `git apply` on patchFile inside dir. With reject set,
	// hunks that do not apply are written to .rej files. The result carries
	// the tool output, a non-zero exit code means the patch did not apply.
	Apply(ctx context.Context, dir, patchFile string, reject bool) (CommandResult, error)

	// Show returns the content of p at rev without touching the working tree.
	// A file missing at rev yields an empty string.
	Show(ctx context.Context, repoDir, rev string, p m.Path) (string, error)

	// ChangedFiles lists files that differ between base and head. An empty
	// head compares against the working tree and includes untracked files.
	ChangedFiles(ctx context.Context, repoDir, base, head string) ([]m.Path, error)

	// WorkingTreeContent reads p from the working tree; missing files are empty.
	WorkingTreeContent(ctx context.Context, repoDir string, p m.Path) (string, error)
}

// GitCLIAdapter implements VersionControl with the git binary.
type GitCLIAdapter struct {
	exec  CommandExecutor
	cache *lru.Cache[string, string]
}

// NewGitCLIAdapter constructs a GitCLIAdapter that caches file contents read
// at fixed revisions.
func NewGitCLIAdapter(exec CommandExecutor) *GitCLIAdapter {
	cache, err := lru.New[string, string](defaultShowCacheSize)
	if err != nil {
		// Only a non-positive size fails.
		panic(err)
	}

	return &GitCLIAdapter{
		exec:  exec,
		cache: cache,
	}
}

// Init implements VersionControl.
func (g *GitCLIAdapter) Init(ctx context.Context, dir string) error {
	res, err := g.exec.Run(ctx, dir, "git", "init", "-q")
	if err != nil {
		return fmt.Errorf("git init: %w", err)
	}

	if !res.Succeeded() {
		return fmt.Errorf("git init exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Combined()))
	}

	return nil
}

// Apply implements VersionControl.
func (g *GitCLIAdapter) Apply(ctx context.Context, dir, patchFile string, reject bool) (CommandResult, error) {
	args := []string{"apply", "-v"}
	if reject {
		args = append(args, "--reject")
	}

	args = append(args, patchFile)

	res, err := g.exec.Run(ctx, dir, "git", args...)
	if err != nil {
		return res, fmt.Errorf("git apply: %w", err)
	}

	return res, nil
}

// Show implements VersionControl.
func (g *GitCLIAdapter) Show(ctx context.Context, repoDir, rev string, p m.Path) (string, error) {
	key := repoDir + "\x00" + rev + "\x00" + string(p)
	if content, ok := g.cache.Get(key); ok {
		return content, nil
	}

	res, err := g.exec.Run(ctx, repoDir, "git", "show", fmt.Sprintf("%s:%s", rev, p))
	if err != nil {
		return "", fmt.Errorf("git show %s:%s: %w", rev, p, err)
	}

	content := ""
	if res.Succeeded() {
		content = res.Stdout
	} else {
		slog.Debug("File not present at revision", "rev", rev, "path", p, "output", strings.TrimSpace(res.Stderr))
	}

	g.cache.Add(key, content)

	return content, nil
}

// ChangedFiles implements VersionControl.
func (g *GitCLIAdapter) ChangedFiles(ctx context.Context, repoDir, base, head string) ([]m.Path, error) {
	diffArgs := []string{"diff", "--name-only", base}
	if head != "" {
		diffArgs = append(diffArgs, head)
	}

	res, err := g.exec.Run(ctx, repoDir, "git", diffArgs...)
	if err != nil {
		return nil, fmt.Errorf("git diff: %w", err)
	}

	if !res.Succeeded() {
		return nil, fmt.Errorf("git diff exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	seen := map[string]bool{}
	files := splitNonEmptyLines(res.Stdout)

	if head == "" {
		untracked, err := g.exec.Run(ctx, repoDir, "git", "ls-files", "--others", "--exclude-standard")
		if err != nil {
			return nil, fmt.Errorf("git ls-files: %w", err)
		}

		if untracked.Succeeded() {
			files = append(files, splitNonEmptyLines(untracked.Stdout)...)
		}
	}

	out := make([]m.Path, 0, len(files))

	for _, f := range files {
		if seen[f] {
			continue
		}

		seen[f] = true

		out = append(out, m.Path(f))
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out, nil
}

// WorkingTreeContent implements VersionControl.
func (g *GitCLIAdapter) WorkingTreeContent(ctx context.Context, repoDir string, p m.Path) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// #nosec G304 - p comes from git's own file listing
	content, err := os.ReadFile(filepath.Join(repoDir, filepath.FromSlash(string(p))))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}

		return "", err
	}

	return string(content), nil
}

func splitNonEmptyLines(s string) []string {
	var out []string

	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}

	return out
}
