package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "failpass.dev/pkg/failpass/internal/model"
)

const (
	noneLabel        = "-"
	maxSummaryLength = 60
)

// SimpleUI implements UI using the cobra command's output writer.
type SimpleUI struct {
	out    io.Writer
	styles statusStyles
}

type statusStyles struct {
	good lipgloss.Style
	warn lipgloss.Style
	bad  lipgloss.Style
	dim  lipgloss.Style
}

// NewSimpleUI creates a new SimpleUI. Styles degrade to plain text when the
// output is not a terminal.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return newWriterUI(cmd.OutOrStdout())
}

func newWriterUI(out io.Writer) *SimpleUI {
	r := lipgloss.NewRenderer(out)

	return &SimpleUI{
		out: out,
		styles: statusStyles{
			good: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
			warn: r.NewStyle().Foreground(lipgloss.Color("11")),
			bad:  r.NewStyle().Foreground(lipgloss.Color("9")),
			dim:  r.NewStyle().Faint(true),
		},
	}
}

// DisplayChangeSet prints every changed file with its kind and whether the
// change qualifies for synthesis.
func (s *SimpleUI) DisplayChangeSet(ctx context.Context, req m.ChangeRequest, changes m.ChangeSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer

	table := newTable(&buf, []string{"Path", "Kind", "Status"})

	for _, d := range changes.All() {
		status := "modified"
		if d.IsNewFile() {
			status = "added"
		} else if d.After == "" {
			status = "deleted"
		}

		table.Append([]string{string(d.Name), d.Kind().String(), status})
	}

	verdict := s.styles.good.Render("candidate")
	if !changes.FulfillsRequirements() {
		verdict = s.styles.warn.Render("not a candidate")
	}

	table.SetFooter([]string{fmt.Sprintf("%d files", len(changes.All())), "", verdict})
	table.Render()

	s.printf("%s\n%s", req.ID(), buf.String())

	return nil
}

// DisplayBatchInfo shows how a batch is going to run.
func (s *SimpleUI) DisplayBatchInfo(ctx context.Context, info BatchInfo) {
	if err := ctx.Err(); err != nil {
		return
	}

	backends := make([]string, 0, len(info.Backends))
	for _, b := range info.Backends {
		backends = append(backends, string(b))
	}

	s.printf("Running %d request(s) with %d worker(s) (Shard %d/%d) using %s\n",
		info.Jobs, info.Threads, info.ShardIndex, max(info.ShardCount, 1), strings.Join(backends, ", "))
}

// DisplayResults prints one row per run and the batch tally.
func (s *SimpleUI) DisplayResults(ctx context.Context, results []m.RunResult, tally m.Tally) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer

	table := newTable(&buf, []string{"Request", "Backend", "Status", "Attempts", "Last outcome", "Test"})

	for _, r := range results {
		outcome, test := noneLabel, noneLabel
		if last, ok := r.Last(); ok {
			outcome = last.Outcome.String()

			if last.Test.TestIdentifier != "" {
				test = string(last.Test.TargetFile) + "::" + last.Test.TestIdentifier
			}
		}

		table.Append([]string{
			r.Request.ID(),
			string(r.Backend),
			s.status(r.Status),
			fmt.Sprintf("%d", r.Spent()),
			outcome,
			test,
		})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total runs %d", tally.Runs),
		"",
		fmt.Sprintf("%d succeeded", tally.Succeeded),
		fmt.Sprintf("%d", tally.Attempts),
		fmt.Sprintf("%d exhausted", tally.Exhausted),
		fmt.Sprintf("%d declined, %d aborted", tally.Declined, tally.Aborted),
	})
	table.Render()

	s.printf("\n%s", buf.String())

	for _, r := range results {
		if r.Err != nil {
			s.printf("%s %s: %v\n", s.styles.bad.Render("error"), r.Request.ID(), r.Err)
		}
	}

	return nil
}

// DisplayAttempts prints the journal of a single run.
func (s *SimpleUI) DisplayAttempts(ctx context.Context, runDir m.Path, records []m.AttemptRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer

	table := newTable(&buf, []string{"#", "Stage", "Outcome", "Target", "Test", "Context"})

	for _, r := range records {
		table.Append([]string{
			fmt.Sprintf("%d", r.Index+1),
			r.Stage.String(),
			s.outcome(r.Outcome),
			orNone(string(r.Test.TargetFile)),
			orNone(r.Test.TestIdentifier),
			s.styles.dim.Render(summarize(r.FailureContext())),
		})
	}

	table.Render()

	s.printf("%s\n%s", runDir, buf.String())

	return nil
}

// Close implements UI. Output is already written.
func (s *SimpleUI) Close(_ context.Context) error {
	return nil
}

// DisplayText prints text as is.
func (s *SimpleUI) DisplayText(ctx context.Context, text string) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("%s", text)
}

func (s *SimpleUI) status(status m.RunStatus) string {
	switch status {
	case m.RunSucceeded:
		return s.styles.good.Render(status.String())
	case m.RunDeclined:
		return s.styles.warn.Render(status.String())
	default:
		return s.styles.bad.Render(status.String())
	}
}

func (s *SimpleUI) outcome(outcome m.Outcome) string {
	if outcome == m.OutcomeSuccess {
		return s.styles.good.Render(outcome.String())
	}

	return outcome.String()
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

func newTable(buf *bytes.Buffer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(buf)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetCenterSeparator("")

	return table
}

// summarize keeps the first non-empty line of s, shortened for a table cell.
func summarize(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if len(line) > maxSummaryLength {
			return line[:maxSummaryLength-3] + "..."
		}

		return line
	}

	return ""
}

func orNone(s string) string {
	if s == "" {
		return noneLabel
	}

	return s
}
