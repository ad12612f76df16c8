package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestCoverageSample_Improved(t *testing.T) {
	tests := []struct {
		name   string
		sample CoverageSample
		exists bool
		want   bool
	}{
		{"empty", CoverageSample{}, false, false},
		{"missing suite", CoverageSample{FileLinesWith: ptr(50), FileLinesWithout: ptr(40)}, false, false},
		{"both improved", CoverageSample{ptr(50), ptr(40), ptr(80), ptr(79.5)}, true, true},
		{"file equal", CoverageSample{ptr(40), ptr(40), ptr(80), ptr(70)}, true, false},
		{"suite lower", CoverageSample{ptr(50), ptr(40), ptr(60), ptr(70)}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.exists, tt.sample.Exists())
			assert.Equal(t, tt.want, tt.sample.Improved())
		})
	}
}

func TestOutcome_NextStage(t *testing.T) {
	tests := []struct {
		outcome Outcome
		stage   Stage
		retry   bool
	}{
		{OutcomeMalformed, StageLintIssue, true},
		{OutcomeLintFailed, StageLintIssue, true},
		{OutcomePassedBeforePatch, StagePassToPass, true},
		{OutcomeAssertionFailed, StageAssertionError, true},
		{OutcomeCompileFailed, StageCompileError, true},
		{OutcomeSuccess, StageInitial, false},
		{OutcomeDeclined, StageInitial, false},
		{OutcomePatchFailed, StageInitial, false},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			stage, retry := tt.outcome.NextStage()
			assert.Equal(t, tt.retry, retry)
			assert.Equal(t, tt.stage, stage)

			if retry {
				assert.NotEqual(t, StageInitial, stage)
				assert.NotEmpty(t, stage.Instruction())
			}
		})
	}
}

func TestTestNameFromBody(t *testing.T) {
	assert.Equal(t, "test_parse", TestNameFromBody("#[test]\nfn test_parse() {\n}\n"))
	assert.Equal(t, "generic", TestNameFromBody("fn generic<T>() {}"))
	assert.Equal(t, "", TestNameFromBody("let x = 1;"))

	gt := NewGeneratedTest("src/lib.rs", []string{"use super::a;", "use std::fmt;"}, "#[test]\nfn it_works() {}", 2)
	assert.Equal(t, "it_works", gt.TestIdentifier)
	assert.Equal(t, 2, gt.AttemptIndex)
	assert.Equal(t, "use super::a;\nuse std::fmt;", gt.ImportBlock())
}

func TestAttemptRecord_FailureContext(t *testing.T) {
	r := AttemptRecord{
		LintOutput:      "lint",
		PrePatchOutput:  "pre",
		PostPatchOutput: "post",
	}

	r.Outcome = OutcomeLintFailed
	assert.Equal(t, "lint", r.FailureContext())

	r.Outcome = OutcomePassedBeforePatch
	assert.Equal(t, "pre", r.FailureContext())

	r.Outcome = OutcomeCompileFailed
	assert.Equal(t, "post", r.FailureContext())

	r.Outcome = OutcomePatchFailed
	assert.Equal(t, "lint", r.FailureContext())

	r.Outcome = OutcomeSuccess
	assert.Empty(t, r.FailureContext())
}
