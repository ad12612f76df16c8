package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveJobs_FromFlags(t *testing.T) {
	flags := requestFlags{owner: "o", repo: "r", number: 3, base: "b", issue: "  broken  "}

	jobs, err := resolveJobs("", flags, nil)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	assert.Equal(t, ".", jobs[0].RepoDir)
	assert.Equal(t, "o__r-3", jobs[0].Request.ID())
	assert.Equal(t, "broken", jobs[0].Request.ProblemStatement)
}

func TestResolveJobs_IssueFileWins(t *testing.T) {
	issue := filepath.Join(t.TempDir(), "issue.md")
	require.NoError(t, os.WriteFile(issue, []byte("from file\n"), 0o600))

	flags := requestFlags{owner: "o", repo: "r", base: "b", issue: "inline", issueFile: issue}

	jobs, err := resolveJobs("", flags, []string{"/checkout"})
	require.NoError(t, err)

	assert.Equal(t, "/checkout", jobs[0].RepoDir)
	assert.Equal(t, "from file", jobs[0].Request.ProblemStatement)
}

func TestLoadRequests(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requests.yaml")

	require.NoError(t, os.WriteFile(path, []byte(`
- owner: a
  repo: x
  number: 1
  base: b1
`), 0o600))

	jobs, err := loadRequests(path)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	assert.Equal(t, dir, jobs[0].RepoDir)
	assert.Equal(t, "b1", jobs[0].Request.BaseRevision)
}

func TestLoadRequests_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"not a list", "owner: a\n", "parse requests"},
		{"missing base", "- owner: a\n  repo: x\n", "needs owner, repo and base"},
		{"missing issue file", "- owner: a\n  repo: x\n  base: b\n  issue_file: nope.md\n", "read issue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "requests.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := loadRequests(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := loadRequests(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
