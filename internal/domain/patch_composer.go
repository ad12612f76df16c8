package domain

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"

	"failpass.dev/pkg/failpass/internal/adapter"
	m "failpass.dev/pkg/failpass/internal/model"
)

const (
	diffContextLines = 3
	noNewlineMarker  = "\\ No newline at end of file"
	scratchPatchName = ".failpass.patch"
)

// PatchComposer turns file contents into unified diffs and applies unified
// diffs to isolated copies of file sets.
type PatchComposer interface {
	// Compose renders every changed file whose content differs from base.
	// Paths are sorted so the output is deterministic.
	Compose(base, changed map[m.Path]string) string
	// ComposeDiffs renders diffs in the given order.
	ComposeDiffs(diffs []m.FileDiff) string
	// Apply applies patch to base in a scratch repository and returns the
	// post-patch content of every touched file. A patch that does not apply
	// yields *model.PatchApplicationError with the tool's output.
	Apply(ctx context.Context, base map[m.Path]string, patch string) (map[m.Path]string, error)
}

type patchComposer struct {
	fs  adapter.SourceFSAdapter
	vcs adapter.VersionControl
}

// NewPatchComposer constructs a PatchComposer backed by the given filesystem
// and version control adapters.
func NewPatchComposer(fs adapter.SourceFSAdapter, vcs adapter.VersionControl) PatchComposer {
	return &patchComposer{
		fs:  fs,
		vcs: vcs,
	}
}

func (pc *patchComposer) Compose(base, changed map[m.Path]string) string {
	paths := make([]m.Path, 0, len(changed))
	for p := range changed {
		paths = append(paths, p)
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	var sb strings.Builder

	for _, p := range paths {
		sb.WriteString(UnifiedDiff(p, base[p], changed[p]))
	}

	return sb.String()
}

func (pc *patchComposer) ComposeDiffs(diffs []m.FileDiff) string {
	var sb strings.Builder

	for _, d := range diffs {
		sb.WriteString(UnifiedDiff(d.Name, d.Before, d.After))
	}

	return sb.String()
}

func (pc *patchComposer) Apply(ctx context.Context, base map[m.Path]string, patch string) (map[m.Path]string, error) {
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(patch))
	if err != nil {
		slog.Error("Failed to parse patch", "error", err)
		return nil, &m.PatchApplicationError{Output: err.Error(), Err: err}
	}

	if len(fileDiffs) == 0 {
		return map[m.Path]string{}, nil
	}

	tmpDir, err := pc.fs.CreateTempDir(ctx, "failpass-patch-*")
	if err != nil {
		slog.Error("Failed to create scratch dir", "error", err)
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	defer pc.cleanupScratch(tmpDir)

	if err := pc.vcs.Init(ctx, string(tmpDir)); err != nil {
		return nil, fmt.Errorf("failed to init scratch repository: %w", err)
	}

	touched, err := pc.materialize(ctx, tmpDir, base, fileDiffs)
	if err != nil {
		return nil, err
	}

	rewritten, err := diff.PrintMultiFileDiff(fileDiffs)
	if err != nil {
		return nil, fmt.Errorf("failed to print rewritten patch: %w", err)
	}

	patchPath := pc.fs.JoinPath(ctx, string(tmpDir), scratchPatchName)
	if err := pc.fs.WriteFile(ctx, patchPath, rewritten, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write patch: %w", err)
	}

	res, err := pc.vcs.Apply(ctx, string(tmpDir), scratchPatchName, true)
	if err != nil {
		return nil, fmt.Errorf("failed to run patch tool: %w", err)
	}

	if !res.Succeeded() {
		slog.Warn("Patch did not apply", "output", res.Combined())
		return nil, &m.PatchApplicationError{Output: res.Combined()}
	}

	out := make(map[m.Path]string, len(touched))

	for name, flat := range touched {
		content, err := pc.fs.ReadFile(ctx, pc.fs.JoinPath(ctx, string(tmpDir), flat))
		if err != nil {
			return nil, fmt.Errorf("failed to read patched %s: %w", name, err)
		}

		out[name] = string(content)
	}

	return out, nil
}

// materialize writes each referenced file under a flattened name and
// rewrites the diff headers to match. Flattening keeps nested paths from
// colliding with intermediate directories in the scratch repository.
func (pc *patchComposer) materialize(ctx context.Context, tmpDir m.Path, base map[m.Path]string, fileDiffs []*diff.FileDiff) (map[m.Path]string, error) {
	touched := make(map[m.Path]string, len(fileDiffs))

	for _, fd := range fileDiffs {
		name := patchTargetName(fd)
		flat := scratchName(name)
		createdByPatch := hasExtendedHeader(fd, "new file mode")

		content, known := base[name]

		switch {
		case createdByPatch:
		case known:
			if err := pc.writeScratch(ctx, tmpDir, flat, content); err != nil {
				return nil, err
			}
		case addsWholeFile(fd):
			slog.Debug("Pre-creating new file", "path", name)

			if err := pc.writeScratch(ctx, tmpDir, flat, ""); err != nil {
				return nil, err
			}
		}

		rewriteNames(fd, flat)
		touched[name] = flat
	}

	return touched, nil
}

func (pc *patchComposer) writeScratch(ctx context.Context, tmpDir m.Path, flat, content string) error {
	if err := pc.fs.WriteFile(ctx, pc.fs.JoinPath(ctx, string(tmpDir), flat), []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write scratch file %s: %w", flat, err)
	}

	return nil
}

// cleanupScratch runs with a fresh context so cancellation never leaks scratch state.
func (pc *patchComposer) cleanupScratch(tmpDir m.Path) {
	if err := pc.fs.RemoveAll(context.Background(), tmpDir); err != nil {
		slog.Error("Failed to cleanup scratch dir", "tmpDir", tmpDir, "error", err)
	}
}

// scratchName flattens a repository path into a single file name. Escaping
// is reversible, so distinct paths never share a scratch file.
func scratchName(name m.Path) string {
	return url.PathEscape(string(name))
}

func patchTargetName(fd *diff.FileDiff) m.Path {
	if fd.NewName != "" && fd.NewName != "/dev/null" {
		return m.Path(strings.TrimPrefix(fd.NewName, "b/"))
	}

	return m.Path(strings.TrimPrefix(fd.OrigName, "a/"))
}

func rewriteNames(fd *diff.FileDiff, flat string) {
	if fd.OrigName != "/dev/null" {
		fd.OrigName = "a/" + flat
	}

	if fd.NewName != "/dev/null" {
		fd.NewName = "b/" + flat
	}

	extended := make([]string, 0, len(fd.Extended))

	for _, line := range fd.Extended {
		if strings.HasPrefix(line, "diff --git ") {
			line = fmt.Sprintf("diff --git a/%s b/%s", flat, flat)
		}

		extended = append(extended, line)
	}

	fd.Extended = extended
}

func hasExtendedHeader(fd *diff.FileDiff, prefix string) bool {
	for _, line := range fd.Extended {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}

	return false
}

func addsWholeFile(fd *diff.FileDiff) bool {
	for _, h := range fd.Hunks {
		if h.OrigStartLine == 0 && h.OrigLines == 0 {
			return true
		}
	}

	return false
}

// UnifiedDiff renders a git-style unified diff of one file. Identical
// contents render as the empty string.
func UnifiedDiff(name m.Path, before, after string) string {
	if before == after {
		return ""
	}

	a := splitKeepEnds(before)
	b := splitKeepEnds(after)

	groups := difflib.NewMatcher(a, b).GetGroupedOpCodes(diffContextLines)
	if len(groups) == 0 {
		return ""
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "diff --git a/%s b/%s\n", name, name)
	fmt.Fprintf(&sb, "--- a/%s\n", name)
	fmt.Fprintf(&sb, "+++ b/%s\n", name)

	for _, group := range groups {
		first, last := group[0], group[len(group)-1]
		fmt.Fprintf(&sb, "@@ -%s +%s @@\n", formatRange(first.I1, last.I2), formatRange(first.J1, last.J2))

		for _, op := range group {
			switch op.Tag {
			case 'e':
				writeDiffLines(&sb, ' ', a[op.I1:op.I2])
			case 'd':
				writeDiffLines(&sb, '-', a[op.I1:op.I2])
			case 'i':
				writeDiffLines(&sb, '+', b[op.J1:op.J2])
			case 'r':
				writeDiffLines(&sb, '-', a[op.I1:op.I2])
				writeDiffLines(&sb, '+', b[op.J1:op.J2])
			}
		}
	}

	return sb.String()
}

func writeDiffLines(sb *strings.Builder, prefix byte, lines []string) {
	for _, line := range lines {
		sb.WriteByte(prefix)
		sb.WriteString(line)

		if !strings.HasSuffix(line, "\n") {
			sb.WriteString("\n" + noNewlineMarker + "\n")
		}
	}
}

func formatRange(start, stop int) string {
	beginning := start + 1
	length := stop - start

	switch length {
	case 1:
		return fmt.Sprintf("%d", beginning)
	case 0:
		return fmt.Sprintf("%d,0", beginning-1)
	default:
		return fmt.Sprintf("%d,%d", beginning, length)
	}
}

// splitKeepEnds splits text into lines that keep their terminator; a final
// line without a newline stays unterminated.
func splitKeepEnds(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}

var (
	gitHeaderPattern = regexp.MustCompile(`^diff --git a/(.+) b/(.+)$`)
	newHeaderPattern = regexp.MustCompile(`^\+\+\+ b/(.+)$`)
)

// NewlyAddedFiles lists files whose hunks start from an empty original range
// (`@@ -0,0 +`). Such files must exist, empty, before the patch is applied.
func NewlyAddedFiles(patch string) []m.Path {
	var (
		current string
		out     []m.Path
		seen    = map[string]bool{}
	)

	for _, line := range strings.Split(patch, "\n") {
		if match := gitHeaderPattern.FindStringSubmatch(line); match != nil {
			current = match[2]
			continue
		}

		if match := newHeaderPattern.FindStringSubmatch(line); match != nil {
			current = match[1]
			continue
		}

		if strings.HasPrefix(line, "@@ -0,0 +") && current != "" && !seen[current] {
			seen[current] = true

			out = append(out, m.Path(current))
		}
	}

	return out
}
