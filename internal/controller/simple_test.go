package controller

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "failpass.dev/pkg/failpass/internal/model"
)

func newTestUI() (*SimpleUI, *bytes.Buffer) {
	var out bytes.Buffer

	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	return NewSimpleUI(cmd), &out
}

func TestSimpleUI_DisplayResults(t *testing.T) {
	ui, out := newTestUI()

	req := m.ChangeRequest{Owner: "mozilla", Repo: "neqo", Number: 7}
	results := []m.RunResult{
		{
			Request: req,
			Backend: m.BackendLlama,
			Status:  m.RunSucceeded,
			Attempts: []m.AttemptRecord{
				{Outcome: m.OutcomeCompileFailed},
				{Outcome: m.OutcomeSuccess, Test: m.GeneratedTest{TargetFile: "src/lib.rs", TestIdentifier: "test_add"}},
			},
		},
		{Request: req, Backend: m.BackendQwen, Status: m.RunAborted, Err: errors.New("engine unavailable")},
	}

	tally := m.Tally{}.Record(results[0]).Record(results[1])

	require.NoError(t, ui.DisplayResults(context.Background(), results, tally))

	text := out.String()
	assert.Contains(t, text, "mozilla__neqo-7")
	assert.Contains(t, text, "succeeded")
	assert.Contains(t, text, "src/lib.rs::test_add")
	assert.Contains(t, text, "Total runs 2")
	assert.Contains(t, text, "engine unavailable")
}

func TestSimpleUI_DisplayChangeSet(t *testing.T) {
	ui, out := newTestUI()

	var changes m.ChangeSet
	changes.Add(m.FileDiff{Name: "src/lib.rs", Before: "a", After: "b"})
	changes.Add(m.FileDiff{Name: "src/new.rs", After: "fn n() {}"})
	changes.Add(m.FileDiff{Name: "Cargo.toml", Before: "x", After: "y"})

	require.NoError(t, ui.DisplayChangeSet(context.Background(), m.ChangeRequest{Owner: "o", Repo: "r", Number: 1}, changes))

	text := out.String()
	assert.Contains(t, text, "o__r-1")
	assert.Contains(t, text, "src/new.rs")
	assert.Contains(t, text, "added")
	assert.Contains(t, text, "3 files")
	assert.Contains(t, text, "candidate")
	assert.NotContains(t, text, "not a candidate")

	out.Reset()
	changes.Add(m.FileDiff{Name: "tests/it.rs", After: "#[test]\nfn it() {}"})
	require.NoError(t, ui.DisplayChangeSet(context.Background(), m.ChangeRequest{}, changes))
	assert.Contains(t, out.String(), "not a candidate")
}

func TestSimpleUI_DisplayAttempts(t *testing.T) {
	ui, out := newTestUI()

	records := []m.AttemptRecord{
		{Index: 0, Stage: m.StageInitial, Outcome: m.OutcomeCompileFailed, PostPatchOutput: "\nerror[E0425]: cannot find value `x`\nmore"},
		{Index: 1, Stage: m.StageCompileError, Outcome: m.OutcomeSuccess, Test: m.GeneratedTest{TargetFile: "src/lib.rs", TestIdentifier: "t"}},
	}

	require.NoError(t, ui.DisplayAttempts(context.Background(), "reports/o__r-1/mock", records))

	text := out.String()
	assert.Contains(t, text, "reports/o__r-1/mock")
	assert.Contains(t, text, "compile_error")
	assert.Contains(t, text, "error[E0425]: cannot find value `x`")
	assert.NotContains(t, text, "more")
}

func TestSimpleUI_CanceledContext(t *testing.T) {
	ui, out := newTestUI()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, ui.DisplayResults(ctx, nil, m.Tally{}), context.Canceled)
	ui.DisplayText(ctx, "hidden")
	ui.DisplayBatchInfo(ctx, BatchInfo{})
	assert.Empty(t, out.String())
}

func TestSimpleUI_DisplayBatchInfo(t *testing.T) {
	ui, out := newTestUI()

	ui.DisplayBatchInfo(context.Background(), BatchInfo{Jobs: 3, Threads: 2, Backends: []m.Backend{m.BackendLlama, m.BackendGemini}})

	assert.Equal(t, "Running 3 request(s) with 2 worker(s) (Shard 0/1) using llama-3.3-70b-versatile, gemini-2.0-flash\n", out.String())
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "", summarize("\n \n"))
	assert.Equal(t, "first", summarize("\n  first\nsecond"))

	long := summarize(string(bytes.Repeat([]byte("x"), 100)))
	assert.Len(t, long, maxSummaryLength)
	assert.True(t, len(long) > 3 && long[len(long)-3:] == "...")
}
