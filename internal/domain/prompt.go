package domain

import (
	"errors"
	"fmt"
	"strings"

	m "failpass.dev/pkg/failpass/internal/model"
)

// MaxPromptBytes is the largest prompt sent to a backend.
const MaxPromptBytes = 1 << 20

// ErrPromptTooLong is returned when a prompt exceeds MaxPromptBytes.
var ErrPromptTooLong = errors.New("prompt exceeds size limit")

const promptGuidelines = "Before you begin:\n" +
	"- Keep going until the job is completely solved. Do not stop halfway.\n" +
	"- If you are unsure about the behavior, reread the provided patch carefully and do not guess.\n" +
	"- Plan your approach before writing code by checking that the test truly fails before the patch and passes after it.\n\n"

const promptExample = "Here is an example structure:\n" +
	"<Filename> ... </Filename>\n" +
	"<imports> ... </imports>\n" +
	"<Rust>\n" +
	"#[test]\n" +
	"fn test_<describe_behavior>() {\n" +
	"  <initialize required variables>;\n" +
	"  <define expected variable>;\n" +
	"  <generate actual variables>;\n" +
	"  <compare expected with actual>;\n" +
	"}\n" +
	"</Rust>\n\n"

// PromptInput is everything a prompt is built from.
type PromptInput struct {
	Request        m.ChangeRequest
	Patch          string
	Signatures     []string
	Stage          m.Stage
	PreviousTest   string
	FailureContext string
}

// BuildPrompt renders the generation prompt. Retry stages carry the previous
// test, its failure output and the stage's instruction.
func BuildPrompt(in PromptInput) string {
	var sb strings.Builder

	sb.WriteString(promptGuidelines)
	fmt.Fprintf(&sb, "Issue:\n<issue>\n%s\n</issue>\n\n", in.Request.ProblemStatement)
	fmt.Fprintf(&sb, "Patch:\n<patch>\n%s\n</patch>\n\n", strings.TrimRight(in.Patch, "\n"))

	if in.Stage != m.StageInitial {
		if in.PreviousTest != "" {
			fmt.Fprintf(&sb, "Previous test:\n<previous_test>\n%s\n</previous_test>\n\n", in.PreviousTest)
		}

		if in.FailureContext != "" {
			fmt.Fprintf(&sb, "<output>\n%s\n</output>\n\n", strings.TrimRight(in.FailureContext, "\n"))
		}
	}

	fmt.Fprintf(&sb, "Function signatures\n<Signatures>\n%s\n</Signatures>\n\n", strings.Join(in.Signatures, "\n\n"))
	sb.WriteString(instructions(in.Request.Repo, in.Stage))
	sb.WriteString(promptExample)

	return sb.String()
}

func instructions(repo string, stage m.Stage) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are a software tester at %s and you are reviewing the above <patch> for the above <issue>.\n", repo)

	if hint := stage.Instruction(); hint != "" {
		sb.WriteString(hint + "\n")
	}

	sb.WriteString("Identify whether a unit test is needed.\n" +
		"If no test is needed, or a useful test needs resources beyond the Rust standard library " +
		"(for example mocking libraries), return <NO>.\n" +
		"If a test is needed, your task is:\n" +
		"1. Write exactly one Rust test `#[test] fn test_...() {...}` block. Do NOT wrap it in a 'mod tests' block.\n" +
		"If the file you add the test to already contains tests in the <patch>, make sure the test name is unique.\n" +
		"2. The test must fail on the code before the patch and pass after it, so that it verifies the patch resolves the issue.\n" +
		"3. The test must be self-contained and to the point.\n" +
		"4. All 'use' declarations go inside an <imports>...</imports> block. Additionally:\n" +
		"  - Do not use group imports.\n" +
		"  - Import only what the test needs and avoid colliding imports.\n" +
		"  - If the <patch> contains a 'mod tests' block with useful imports, do not repeat them.\n" +
		"  - Use `use super::<function name>;` for the function under test.\n" +
		"  - List each 'use' statement on its own line.\n" +
		"5. <Signatures> lists every modified function's name, parameters and return type ('()' when empty).\n" +
		"6. Return only the filename as it appears in the <patch> block, the use statements and the Rust test, " +
		"without comments or explanations.\n\n")

	return sb.String()
}

// RenderComment renders the summary posted for a successful run.
func RenderComment(test m.GeneratedTest, coverage *m.CoverageSample) string {
	var sb strings.Builder

	sb.WriteString("The test below was generated automatically and can serve as a regression test for this change because it:\n")
	sb.WriteString("- passes with the change applied,\n")
	sb.WriteString("- fails on the code before the change")

	if coverage != nil && coverage.Exists() {
		fmt.Fprintf(&sb, ",\n- moves line coverage of the file from %.2f%% to %.2f%% and of the suite from %.2f%% to %.2f%%",
			*coverage.FileLinesWithout, *coverage.FileLinesWith,
			*coverage.SuiteLinesWithout, *coverage.SuiteLinesWith)
	}

	sb.WriteString(".\n\n```rust\n")

	if imports := test.ImportBlock(); imports != "" {
		sb.WriteString(imports + "\n\n")
	}

	sb.WriteString(strings.TrimRight(test.Body, "\n"))
	sb.WriteString("\n```\n\n")
	fmt.Fprintf(&sb, "The test was inserted at the end of the test module of `%s` before running it.\n", test.TargetFile)

	return sb.String()
}
