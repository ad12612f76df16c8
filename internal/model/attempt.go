package model

import (
	"regexp"
	"strings"
)

// Stage is the state of the synthesis loop. It selects the instruction
// variant and failure context handed to the generator.
type Stage int

const (
	// StageInitial is the first attempt with no prior context.
	StageInitial Stage = iota
	// StageLintIssue follows a test that did not lint or could not be merged.
	StageLintIssue
	// StagePassToPass follows a test that already passed before the change.
	StagePassToPass
	// StageAssertionError follows a test that failed an assertion after the change.
	StageAssertionError
	// StageCompileError follows a test that did not build after the change.
	StageCompileError
)

func (s Stage) String() string {
	switch s {
	case StageInitial:
		return "initial"
	case StageLintIssue:
		return "lint_issue"
	case StagePassToPass:
		return "pass_to_pass"
	case StageAssertionError:
		return "assertion_error"
	case StageCompileError:
		return "compile_error"
	default:
		return "unknown"
	}
}

// Instruction is the retry guidance for the stage.
func (s Stage) Instruction() string {
	switch s {
	case StageLintIssue:
		return "The previous test could not be merged into the file or did not pass the lint check. " +
			"Fix the problems reported in <output> and return a corrected test."
	case StagePassToPass:
		return "The previous test passed on the code before the patch, so it does not detect the change. " +
			"Write a test that fails before the patch and passes after it."
	case StageAssertionError:
		return "The previous test failed an assertion on the code after the patch. " +
			"Use the failure in <output> to correct the expected values."
	case StageCompileError:
		return "The previous test did not compile against the code after the patch. " +
			"Use the compiler errors in <output> to fix imports, names and types."
	default:
		return ""
	}
}

// Outcome tags the result of a single attempt at the point it is detected.
type Outcome int

const (
	// OutcomePending marks a record that has not been evaluated yet.
	OutcomePending Outcome = iota
	// OutcomeSuccess is a fail-to-pass test.
	OutcomeSuccess
	// OutcomeDeclined means the generator signalled no test is needed.
	OutcomeDeclined
	// OutcomeMalformed means the response could not be parsed.
	OutcomeMalformed
	// OutcomeLintFailed means merging or linting the test failed.
	OutcomeLintFailed
	// OutcomePassedBeforePatch means the test already passed before the change.
	OutcomePassedBeforePatch
	// OutcomeAssertionFailed means the test failed an assertion after the change.
	OutcomeAssertionFailed
	// OutcomeCompileFailed means the test did not build after the change.
	OutcomeCompileFailed
	// OutcomePatchFailed means the injected test could not be applied to the
	// checkout. It does not count against the attempt budget.
	OutcomePatchFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeDeclined:
		return "declined"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeLintFailed:
		return "lint_failed"
	case OutcomePassedBeforePatch:
		return "passed_before_patch"
	case OutcomeAssertionFailed:
		return "assertion_failed"
	case OutcomeCompileFailed:
		return "compile_failed"
	case OutcomePatchFailed:
		return "patch_failed"
	default:
		return "pending"
	}
}

// NextStage returns the stage a retry after this outcome runs in. Terminal
// outcomes report false.
func (o Outcome) NextStage() (Stage, bool) {
	switch o {
	case OutcomeMalformed, OutcomeLintFailed:
		return StageLintIssue, true
	case OutcomePassedBeforePatch:
		return StagePassToPass, true
	case OutcomeAssertionFailed:
		return StageAssertionError, true
	case OutcomeCompileFailed:
		return StageCompileError, true
	default:
		return StageInitial, false
	}
}

// GeneratedTest is a candidate test parsed from a generator response.
type GeneratedTest struct {
	TargetFile     Path
	Imports        []string
	Body           string
	TestIdentifier string
	AttemptIndex   int
}

var testNamePattern = regexp.MustCompile(`\bfn\s+([A-Za-z_][A-Za-z0-9_]*)\s*[(<]`)

// TestNameFromBody returns the name of the first function declared in body.
func TestNameFromBody(body string) string {
	match := testNamePattern.FindStringSubmatch(body)
	if match == nil {
		return ""
	}

	return match[1]
}

// NewGeneratedTest builds a GeneratedTest and derives its identifier.
func NewGeneratedTest(target Path, imports []string, body string, attempt int) GeneratedTest {
	return GeneratedTest{
		TargetFile:     target,
		Imports:        imports,
		Body:           body,
		TestIdentifier: TestNameFromBody(body),
		AttemptIndex:   attempt,
	}
}

// ImportBlock renders the imports one per line.
func (t GeneratedTest) ImportBlock() string {
	return strings.Join(t.Imports, "\n")
}

// AttemptRecord is the audit entry of one synthesis iteration.
type AttemptRecord struct {
	Index           int
	Stage           Stage
	Outcome         Outcome
	Test            GeneratedTest
	Prompt          string
	RawResponse     string
	TestFileContent string
	PrePatchPassed  bool
	PostPatchPassed bool
	PrePatchOutput  string
	PostPatchOutput string
	LintOutput      string
	Coverage        *CoverageSample
	// PatchFailure counts patch failures at this index. It is zero for every
	// record that consumed budget.
	PatchFailure int
}

// FailureContext is the output a retry needs to see.
func (r AttemptRecord) FailureContext() string {
	switch r.Outcome {
	case OutcomeMalformed, OutcomeLintFailed, OutcomePatchFailed:
		return r.LintOutput
	case OutcomePassedBeforePatch:
		return r.PrePatchOutput
	case OutcomeAssertionFailed, OutcomeCompileFailed:
		return r.PostPatchOutput
	default:
		return ""
	}
}

// CoverageSample holds line coverage percentages with and without the
// generated test. A nil field was not measured.
type CoverageSample struct {
	FileLinesWith     *float64
	FileLinesWithout  *float64
	SuiteLinesWith    *float64
	SuiteLinesWithout *float64
}

// Exists reports whether all four values were measured.
func (c CoverageSample) Exists() bool {
	return c.FileLinesWith != nil && c.FileLinesWithout != nil &&
		c.SuiteLinesWith != nil && c.SuiteLinesWithout != nil
}

// Improved reports whether the test strictly raised both file and suite coverage.
func (c CoverageSample) Improved() bool {
	if !c.Exists() {
		return false
	}

	return *c.FileLinesWith > *c.FileLinesWithout && *c.SuiteLinesWith > *c.SuiteLinesWithout
}
