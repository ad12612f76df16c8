package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"failpass.dev/pkg/failpass/internal/domain"
	domainmocks "failpass.dev/pkg/failpass/internal/domain/mocks"
	m "failpass.dev/pkg/failpass/internal/model"
)

func executeList(t *testing.T, mockWorkflow *domainmocks.MockWorkflow, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	cmd.AddCommand(newListCmd())

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	t.Cleanup(func() { workflow = originalWorkflow })

	cmd.SetArgs(append([]string{"list"}, args...))
	err := cmd.Execute()

	return out.String(), err
}

func TestListCmd_DisplaysChangeSet(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	var changes m.ChangeSet
	changes.Add(m.FileDiff{Name: "src/lib.rs", Before: "fn a() {}", After: "fn a() { b() }"})
	changes.Add(m.FileDiff{Name: "Cargo.toml", Before: "", After: "[package]"})

	mockWorkflow.On("Discover", mock.Anything, mock.MatchedBy(func(job domain.Job) bool {
		return job.RepoDir == "/src/neqo" &&
			job.Request.BaseRevision == "main" &&
			job.Request.HeadRevision == "feature" &&
			job.Request.ID() == "mozilla__neqo-9"
	})).Return(changes, nil)

	out, err := executeList(t, mockWorkflow,
		"--owner", "mozilla", "--repo", "neqo", "--number", "9", "--base", "main", "--head", "feature", "/src/neqo")
	require.NoError(t, err)

	assert.Contains(t, out, "mozilla__neqo-9")
	assert.Contains(t, out, "src/lib.rs")
	assert.Contains(t, out, "modified")
	assert.Contains(t, out, "added")
}

func TestListCmd_RequiresBase(t *testing.T) {
	_, err := executeList(t, domainmocks.NewMockWorkflow(t), "--owner", "o", "--repo", "r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--base")
}

func TestListCmd_DiscoverError(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)
	mockWorkflow.On("Discover", mock.Anything, mock.Anything).Return(m.ChangeSet{}, errors.New("not a git repository"))

	_, err := executeList(t, mockWorkflow, "--base", "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a git repository")
}
