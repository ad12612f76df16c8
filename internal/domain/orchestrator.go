package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"failpass.dev/pkg/failpass/internal/adapter"
	m "failpass.dev/pkg/failpass/internal/model"
)

// Defaults for OrchestratorConfig.
const (
	DefaultMaxAttempts      = 5
	DefaultMaxPatchFailures = 2
)

var assertionMarkers = []string{"test result: FAILED", "panicked at"}

// OrchestratorConfig bounds the retry loop.
type OrchestratorConfig struct {
	MaxAttempts      int `validate:"min=1"`
	MaxPatchFailures int `validate:"min=0"`
	Coverage         bool
}

// RunInput is one change request to synthesize a test for with one backend.
type RunInput struct {
	Request m.ChangeRequest
	Changes m.ChangeSet
	Backend m.Backend
}

// Orchestrator drives the synthesize, inject and verify loop until a
// fail-to-pass test is found or the attempt budget is spent.
type Orchestrator interface {
	// Run returns the run result. The error is non-nil only when the run was
	// aborted by a structural or tooling failure; the result still carries
	// every attempt recorded before that point.
	Run(ctx context.Context, in RunInput, gen adapter.Generator) (m.RunResult, error)
}

type orchestrator struct {
	injector Injector
	composer PatchComposer
	sandbox  Sandbox
	store    adapter.ReportStore
	metrics  adapter.Metrics
	cfg      OrchestratorConfig
}

// NewOrchestrator constructs an Orchestrator from its collaborators.
func NewOrchestrator(
	injector Injector,
	composer PatchComposer,
	sandbox Sandbox,
	store adapter.ReportStore,
	metrics adapter.Metrics,
	cfg OrchestratorConfig,
) Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	return &orchestrator{
		injector: injector,
		composer: composer,
		sandbox:  sandbox,
		store:    store,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// attemptState is what one attempt carries forward to the next.
type attemptState struct {
	stage    m.Stage
	previous *m.AttemptRecord
}

// runContext is computed once per run.
type runContext struct {
	in         RunInput
	gen        adapter.Generator
	golden     string
	signatures []string
	base       map[m.Path]string
}

func (o *orchestrator) Run(ctx context.Context, in RunInput, gen adapter.Generator) (m.RunResult, error) {
	started := time.Now()
	result := m.RunResult{Request: in.Request, Backend: in.Backend, Status: m.RunExhausted}

	rc := runContext{
		in:         in,
		gen:        gen,
		golden:     o.composer.ComposeDiffs(append(append([]m.FileDiff{}, in.Changes.Sources...), in.Changes.Config...)),
		signatures: o.signatures(ctx, in.Changes),
		base:       baseContents(in.Changes),
	}

	state := attemptState{stage: m.StageInitial}
	patchFailures := 0

	slog.Info("Starting run", "request", in.Request.ID(), "backend", in.Backend, "budget", o.cfg.MaxAttempts)

	for index := 0; index < o.cfg.MaxAttempts; {
		if err := ctx.Err(); err != nil {
			return o.finish(ctx, result, m.RunAborted, err, started)
		}

		record, err := o.attempt(ctx, rc, state, index)

		var patchErr *m.PatchApplicationError
		if errors.As(err, &patchErr) {
			patchFailures++
			slog.Warn("Test patch does not apply", "request", in.Request.ID(), "failures", patchFailures, "output", patchErr.Output)

			record.Outcome = m.OutcomePatchFailed
			record.LintOutput = patchErr.Output
			record.PatchFailure = patchFailures

			o.recordAttempt(ctx, in, record)
			result.Attempts = append(result.Attempts, record)

			if patchFailures > o.cfg.MaxPatchFailures {
				return o.finish(ctx, result, m.RunAborted, err, started)
			}

			continue
		}

		patchFailures = 0
		index++

		o.recordAttempt(ctx, in, record)
		result.Attempts = append(result.Attempts, record)

		if err != nil {
			slog.Error("Run aborted", "request", in.Request.ID(), "attempt", record.Index, "error", err)
			return o.finish(ctx, result, m.RunAborted, err, started)
		}

		switch record.Outcome {
		case m.OutcomeSuccess:
			result.Comment = o.summarize(ctx, rc, &result.Attempts[len(result.Attempts)-1])
			return o.finish(ctx, result, m.RunSucceeded, nil, started)
		case m.OutcomeDeclined:
			return o.finish(ctx, result, m.RunDeclined, nil, started)
		}

		next, _ := record.Outcome.NextStage()
		slog.Info("Attempt failed, retrying", "request", in.Request.ID(), "attempt", record.Index, "outcome", record.Outcome, "next", next)

		state = attemptState{stage: next, previous: &record}
	}

	return o.finish(ctx, result, m.RunExhausted, nil, started)
}

// attempt runs one synthesis iteration. Retryable outcomes are reported on
// the record; the error is reserved for failures that must not be retried as
// a regular attempt.
func (o *orchestrator) attempt(ctx context.Context, rc runContext, state attemptState, index int) (m.AttemptRecord, error) {
	record := m.AttemptRecord{Index: index, Stage: state.stage}

	input := PromptInput{
		Request:    rc.in.Request,
		Patch:      rc.golden,
		Signatures: rc.signatures,
		Stage:      state.stage,
	}

	if state.previous != nil {
		input.PreviousTest = previousTestText(*state.previous)
		input.FailureContext = state.previous.FailureContext()
	}

	record.Prompt = BuildPrompt(input)
	if len(record.Prompt) > MaxPromptBytes {
		return record, fmt.Errorf("%w: %d bytes", ErrPromptTooLong, len(record.Prompt))
	}

	raw, err := rc.gen.Generate(ctx, record.Prompt)
	if err != nil {
		return record, fmt.Errorf("failed to query %s: %w", rc.in.Backend, err)
	}

	record.RawResponse = raw

	test, err := ParseResponse(raw, index)

	switch {
	case errors.Is(err, m.ErrDeclined):
		slog.Info("Generator declined", "request", rc.in.Request.ID())
		record.Outcome = m.OutcomeDeclined

		return record, nil
	case err != nil:
		record.Outcome = m.OutcomeMalformed
		record.LintOutput = err.Error()

		return record, nil
	}

	target, ok := rc.in.Changes.Resolve(test.TargetFile)
	if !ok {
		record.Test = test
		record.Outcome = m.OutcomeLintFailed
		record.LintOutput = fmt.Sprintf("%v: %s", m.ErrUnknownTarget, test.TargetFile)

		return record, nil
	}

	test.TargetFile = target.Name
	record.Test = test

	return o.verify(ctx, rc, target, record)
}

// verify injects the test, lints it and runs it before and after the change.
func (o *orchestrator) verify(ctx context.Context, rc runContext, target m.FileDiff, record m.AttemptRecord) (m.AttemptRecord, error) {
	test := record.Test

	injectedBefore, err := o.injector.Inject(ctx, target.Before, test)
	if err != nil {
		return lintFailure(record, err)
	}

	injectedAfter, err := o.injector.Inject(ctx, target.After, test)
	if err != nil {
		return lintFailure(record, err)
	}

	record.TestFileContent = injectedAfter

	diags, err := o.injector.CheckSyntax(ctx, injectedAfter)
	if err != nil {
		return record, err
	}

	if len(diags) > 0 {
		record.Outcome = m.OutcomeLintFailed
		record.LintOutput = joinDiagnostics(target.Name, diags)

		return record, nil
	}

	prePatch := o.composer.ComposeDiffs([]m.FileDiff{{Name: target.Name, Before: target.Before, After: injectedBefore}})
	postPatch := o.composer.ComposeDiffs(rc.in.Changes.WithReplacedAfter(target.Name, injectedAfter))

	for _, patch := range []string{prePatch, postPatch} {
		if _, err := o.composer.Apply(ctx, rc.base, patch); err != nil {
			return record, err
		}
	}

	testIDs := o.testIDs(ctx, target.Before, injectedBefore, test)

	lint, err := o.sandbox.Lint(ctx, RunArgs{Request: rc.in.Request, Patch: postPatch, TestIDs: testIDs, PostPatch: true})
	if err != nil {
		return record, err
	}

	if !lint.Passed {
		record.Outcome = m.OutcomeLintFailed
		record.LintOutput = lint.Output

		return record, nil
	}

	pre, err := o.sandbox.RunTests(ctx, RunArgs{Request: rc.in.Request, Patch: prePatch, TestIDs: testIDs})
	if err != nil {
		return record, err
	}

	record.PrePatchPassed = pre.Passed
	record.PrePatchOutput = pre.Output

	if pre.Passed {
		record.Outcome = m.OutcomePassedBeforePatch
		return record, nil
	}

	post, err := o.sandbox.RunTests(ctx, RunArgs{Request: rc.in.Request, Patch: postPatch, TestIDs: testIDs, PostPatch: true})
	if err != nil {
		return record, err
	}

	record.PostPatchPassed = post.Passed
	record.PostPatchOutput = post.Output

	switch {
	case post.Passed:
		record.Outcome = m.OutcomeSuccess
	case containsAny(post.Output, assertionMarkers):
		record.Outcome = m.OutcomeAssertionFailed
	default:
		record.Outcome = m.OutcomeCompileFailed
	}

	return record, nil
}

// lintFailure turns a duplicate test name into a retryable outcome and
// passes every other injection error through.
func lintFailure(record m.AttemptRecord, err error) (m.AttemptRecord, error) {
	if errors.Is(err, m.ErrDuplicateTest) {
		record.Outcome = m.OutcomeLintFailed
		record.LintOutput = err.Error()

		return record, nil
	}

	return record, err
}

func (o *orchestrator) testIDs(ctx context.Context, before, injected string, test m.GeneratedTest) []string {
	ids, err := o.injector.ExtractChangedTests(ctx, before, injected)
	if err != nil || len(ids) == 0 {
		slog.Debug("Falling back to the generated test name", "test", test.TestIdentifier, "error", err)

		if test.TestIdentifier == "" {
			return nil
		}

		return []string{test.TestIdentifier}
	}

	return ids
}

func (o *orchestrator) signatures(ctx context.Context, changes m.ChangeSet) []string {
	var out []string

	for _, d := range changes.Sources {
		sigs, err := o.injector.ModifiedSignatures(ctx, d)
		if err != nil {
			slog.Warn("Failed to extract signatures", "file", d.Name, "error", err)
			continue
		}

		out = append(out, sigs...)
	}

	return out
}

// summarize measures coverage when enabled and renders the success comment.
// Coverage failures are logged and leave the sample empty.
func (o *orchestrator) summarize(ctx context.Context, rc runContext, record *m.AttemptRecord) string {
	if o.cfg.Coverage {
		postPatch := o.composer.ComposeDiffs(rc.in.Changes.WithReplacedAfter(record.Test.TargetFile, record.TestFileContent))

		with, err := o.sandbox.RunCoverage(ctx, RunArgs{Request: rc.in.Request, Patch: postPatch, PostPatch: true}, record.Test.TargetFile)
		if err != nil {
			slog.Warn("Coverage with test failed", "error", err)
		}

		without, err := o.sandbox.RunCoverage(ctx, RunArgs{Request: rc.in.Request, Patch: rc.golden, PostPatch: true}, record.Test.TargetFile)
		if err != nil {
			slog.Warn("Coverage without test failed", "error", err)
		}

		record.Coverage = Sample(with, without)
	}

	return RenderComment(record.Test, record.Coverage)
}

func (o *orchestrator) recordAttempt(ctx context.Context, in RunInput, record m.AttemptRecord) {
	o.metrics.ObserveAttempt(in.Backend, record.Stage, record.Outcome)

	if err := o.store.SaveAttempt(ctx, in.Request, in.Backend, record); err != nil {
		slog.Warn("Failed to save attempt", "attempt", record.Index, "error", err)
	}
}

func (o *orchestrator) finish(ctx context.Context, result m.RunResult, status m.RunStatus, err error, started time.Time) (m.RunResult, error) {
	result.Status = status
	result.Err = err

	o.metrics.ObserveRun(result.Backend, status, time.Since(started))

	if saveErr := o.store.SaveResult(context.WithoutCancel(ctx), result); saveErr != nil {
		slog.Warn("Failed to save run result", "request", result.Request.ID(), "error", saveErr)
	}

	slog.Info("Run finished", "request", result.Request.ID(), "backend", result.Backend, "status", status, "attempts", len(result.Attempts))

	return result, err
}

func baseContents(changes m.ChangeSet) map[m.Path]string {
	base := make(map[m.Path]string, len(changes.Sources)+len(changes.Config))
	for _, d := range append(append([]m.FileDiff{}, changes.Sources...), changes.Config...) {
		base[d.Name] = d.Before
	}

	return base
}

func previousTestText(record m.AttemptRecord) string {
	if record.Test.Body == "" {
		return ""
	}

	if imports := record.Test.ImportBlock(); imports != "" {
		return imports + "\n\n" + record.Test.Body
	}

	return record.Test.Body
}

func joinDiagnostics(file m.Path, diags []LintDiagnostic) string {
	lines := make([]string, 0, len(diags))
	for _, d := range diags {
		lines = append(lines, fmt.Sprintf("%s:%s", file, d))
	}

	return strings.Join(lines, "\n")
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}

	return false
}
