package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"failpass.dev/pkg/failpass/internal/adapter"
	m "failpass.dev/pkg/failpass/internal/model"
)

const synthesizedIndent = "    "

// testContainerNames are the module names recognised as a file's unit-test module.
var testContainerNames = []string{"test", "tests"}

// LintDiagnostic is a syntax problem found in a Rust file. Line and Column
// are 1-based.
type LintDiagnostic struct {
	Line    int
	Column  int
	Message string
}

func (d LintDiagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}

// Injector merges generated tests into Rust sources and inspects their test
// modules.
type Injector interface {
	// Inject merges test into the file's test module, creating the module at
	// the end of the file when it does not exist.
	Inject(ctx context.Context, fileText string, test m.GeneratedTest) (string, error)
	// ExtractChangedTests lists test functions of after's test module that
	// are new or whose body changed relative to before.
	ExtractChangedTests(ctx context.Context, before, after string) ([]string, error)
	// CheckSyntax reports syntax errors of text without failing.
	CheckSyntax(ctx context.Context, text string) ([]LintDiagnostic, error)
	// ModifiedSignatures lists signatures of functions in diff.After that
	// overlap a changed line.
	ModifiedSignatures(ctx context.Context, diff m.FileDiff) ([]string, error)
}

type syntaxInjector struct {
	parser adapter.RustFileAdapter
}

// NewInjector constructs an Injector backed by parser.
func NewInjector(parser adapter.RustFileAdapter) Injector {
	return &syntaxInjector{parser: parser}
}

func (si *syntaxInjector) Inject(ctx context.Context, fileText string, test m.GeneratedTest) (string, error) {
	file, err := si.parse(ctx, test.TargetFile, fileText)
	if err != nil {
		return "", err
	}

	candidates := si.parseCandidates(ctx, test.Imports)
	body := dedent(test.Body)

	container, ok := file.Module(testContainerNames...)
	if !ok {
		slog.Debug("Synthesizing test module", "file", test.TargetFile)

		imports := DedupImports(nil, nil, candidates)

		return appendTestModule(fileText, imports, body), nil
	}

	if container.Block == nil {
		return "", &m.NoTestContainerFunctionError{Module: container.Name}
	}

	lastFn, found := lastFunction(container.Block.Items)
	if !found {
		return "", &m.NoTestContainerFunctionError{Module: container.Name}
	}

	if test.TestIdentifier != "" {
		for _, item := range container.Block.Items {
			if item.Kind == adapter.RustFunction && item.Name == test.TestIdentifier {
				return "", fmt.Errorf("%w: %s", m.ErrDuplicateTest, test.TestIdentifier)
			}
		}
	}

	lead := scanLeadingImports(container.Block.Items)
	imports := DedupImports(lead.specs, lead.externs, candidates)

	lines := strings.Split(fileText, "\n")
	cr := carriageReturn(lines)
	lines = breakBeforeClose(lines, container, cr)

	fnIndent := itemIndent(lines, container, lastFn.Start.Row)
	bodyLines := append([]string{""}, indentLines(body, fnIndent)...)
	lines = spliceAfter(lines, lastFn.End.Row, withSuffix(bodyLines, cr))

	if len(imports) > 0 {
		importRow, importIndent := importAnchor(lines, container, lead, fnIndent)
		importLines := make([]string, 0, len(imports))

		for _, imp := range imports {
			importLines = append(importLines, importIndent+imp)
		}

		lines = spliceAfter(lines, importRow, withSuffix(importLines, cr))
	}

	return strings.Join(lines, "\n"), nil
}

func (si *syntaxInjector) ExtractChangedTests(ctx context.Context, before, after string) ([]string, error) {
	beforeFile, err := si.parse(ctx, "", before)
	if err != nil {
		return nil, err
	}

	afterFile, err := si.parse(ctx, "", after)
	if err != nil {
		return nil, err
	}

	previous := testBodies(beforeFile)

	var changed []string

	for _, fn := range testFunctions(afterFile) {
		old, existed := previous[fn.Name]
		if existed && old == collapseWhitespace(fn.Body) {
			continue
		}

		changed = append(changed, fn.Name)
	}

	return changed, nil
}

func (si *syntaxInjector) CheckSyntax(ctx context.Context, text string) ([]LintDiagnostic, error) {
	file, err := si.parser.Parse(ctx, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}

	diags := make([]LintDiagnostic, 0, len(file.Errors))
	for _, p := range file.Errors {
		diags = append(diags, LintDiagnostic{Line: p.Row + 1, Column: p.Column + 1, Message: "syntax error"})
	}

	return diags, nil
}

func (si *syntaxInjector) ModifiedSignatures(ctx context.Context, diff m.FileDiff) ([]string, error) {
	file, err := si.parse(ctx, diff.Name, diff.After)
	if err != nil {
		return nil, err
	}

	rows := changedRows(diff.Before, diff.After)
	if len(rows) == 0 {
		return nil, nil
	}

	var (
		out  []string
		seen = map[string]bool{}
	)

	for _, fn := range file.Functions() {
		if fn.Signature == nil || !overlaps(rows, fn.Start.Row, fn.End.Row) {
			continue
		}

		sig := fn.Signature.String()
		if !seen[sig] {
			seen[sig] = true

			out = append(out, sig)
		}
	}

	return out, nil
}

func (si *syntaxInjector) parse(ctx context.Context, name m.Path, text string) (*adapter.RustFile, error) {
	file, err := si.parser.Parse(ctx, []byte(text))
	if err != nil {
		return nil, &m.ParseError{File: name, Err: err}
	}

	if file.HasErrors() {
		first := file.Errors[0]
		slog.Warn("Source does not parse", "file", name, "line", first.Row+1)

		return nil, &m.ParseError{File: name, Line: first.Row + 1, Column: first.Column + 1}
	}

	return file, nil
}

func (si *syntaxInjector) parseCandidates(ctx context.Context, imports []string) []ImportCandidate {
	candidates := make([]ImportCandidate, 0, len(imports))

	for _, raw := range imports {
		line := normalizeImport(raw)
		if line == "" {
			continue
		}

		c := ImportCandidate{Text: line}

		file, err := si.parser.Parse(ctx, []byte(line))
		if err == nil && !file.HasErrors() && len(file.Items) == 1 && file.Items[0].Kind == adapter.RustUse {
			c.Specs = file.Items[0].Imports
		}

		candidates = append(candidates, c)
	}

	return candidates
}

type leadingImports struct {
	specs   []adapter.UseSpec
	externs []string
	last    *adapter.RustItem
}

// scanLeadingImports classifies the use and extern crate declarations at the
// top of a module. Comments are skipped; the scan ends at the first other item.
func scanLeadingImports(items []adapter.RustItem) leadingImports {
	var lead leadingImports

	for i := range items {
		item := items[i]

		switch {
		case item.IsComment():
			continue
		case item.Kind == adapter.RustUse:
			lead.specs = append(lead.specs, item.Imports...)
		case item.Kind == adapter.RustExternCrate:
			lead.externs = append(lead.externs, item.Name)
			if item.Alias != "" {
				lead.externs = append(lead.externs, item.Alias)
			}
		default:
			return lead
		}

		lead.last = &items[i]
	}

	return lead
}

// importAnchor picks the row new imports follow and their indentation: after
// the last leading import, or after the module's opening brace.
func importAnchor(lines []string, container adapter.RustItem, lead leadingImports, fallbackIndent string) (int, string) {
	if lead.last != nil {
		return lead.last.End.Row, itemIndent(lines, container, lead.last.Start.Row)
	}

	indent := fallbackIndent

	for _, item := range container.Block.Items {
		if !item.IsComment() {
			indent = itemIndent(lines, container, item.AttrStart.Row)
			break
		}
	}

	return container.Block.Open.Row, indent
}

// itemIndent is the indentation of the module item starting on row. Items
// sharing the line of the module's opening brace are indented one level
// deeper than the module.
func itemIndent(lines []string, container adapter.RustItem, row int) string {
	indent := leadingWhitespace(lineAt(lines, row))
	if row == container.Block.Open.Row {
		indent += synthesizedIndent
	}

	return indent
}

// breakBeforeClose moves the module's closing brace onto a line of its own
// so lines spliced after the last item stay inside the module.
func breakBeforeClose(lines []string, container adapter.RustItem, cr string) []string {
	row, col := container.Block.Close.Row, container.Block.Close.Column-1

	line := lineAt(lines, row)
	if col <= 0 || col > len(line) || strings.TrimSpace(line[:col]) == "" {
		return lines
	}

	indent := leadingWhitespace(lineAt(lines, container.Block.Open.Row))
	head := strings.TrimRight(line[:col], " \t") + cr
	tail := indent + line[col:]

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:row]...)
	out = append(out, head, tail)
	out = append(out, lines[row+1:]...)

	return out
}

// carriageReturn is "\r" when the file uses CRLF line endings.
func carriageReturn(lines []string) string {
	if len(lines) > 1 && strings.HasSuffix(lines[0], "\r") {
		return "\r"
	}

	return ""
}

func withSuffix(lines []string, suffix string) []string {
	if suffix == "" {
		return lines
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = strings.TrimSuffix(line, suffix) + suffix
	}

	return out
}

func lastFunction(items []adapter.RustItem) (adapter.RustItem, bool) {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Kind == adapter.RustFunction {
			return items[i], true
		}
	}

	return adapter.RustItem{}, false
}

func appendTestModule(fileText string, imports []string, body string) string {
	eol := "\n"
	if strings.Contains(fileText, "\r\n") {
		eol = "\r\n"
	}

	var sb strings.Builder

	sb.WriteString(fileText)

	if fileText != "" {
		if !strings.HasSuffix(fileText, "\n") {
			sb.WriteString(eol)
		}

		sb.WriteString(eol)
	}

	sb.WriteString("#[cfg(test)]" + eol + "mod tests {" + eol)

	for _, imp := range imports {
		sb.WriteString(synthesizedIndent + imp + eol)
	}

	if len(imports) > 0 {
		sb.WriteString(eol)
	}

	sb.WriteString(strings.Join(indentLines(body, synthesizedIndent), eol))
	sb.WriteString(eol + "}" + eol)

	return sb.String()
}

func spliceAfter(lines []string, row int, insert []string) []string {
	at := min(row+1, len(lines))

	out := make([]string, 0, len(lines)+len(insert))
	out = append(out, lines[:at]...)
	out = append(out, insert...)
	out = append(out, lines[at:]...)

	return out
}

func lineAt(lines []string, row int) string {
	if row < 0 || row >= len(lines) {
		return ""
	}

	return lines[row]
}

func testFunctions(file *adapter.RustFile) []adapter.RustItem {
	container, ok := file.Module(testContainerNames...)
	if !ok || container.Block == nil {
		return nil
	}

	var out []adapter.RustItem

	for _, item := range container.Block.Items {
		if item.Kind == adapter.RustFunction && item.HasAttribute("test") {
			out = append(out, item)
		}
	}

	return out
}

func testBodies(file *adapter.RustFile) map[string]string {
	bodies := map[string]string{}
	for _, fn := range testFunctions(file) {
		bodies[fn.Name] = collapseWhitespace(fn.Body)
	}

	return bodies
}

// changedRows returns zero-based rows of after that were inserted or
// replaced, plus the row following each pure deletion.
func changedRows(before, after string) map[int]bool {
	a := splitKeepEnds(before)
	b := splitKeepEnds(after)
	rows := map[int]bool{}

	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		switch op.Tag {
		case 'r', 'i':
			for j := op.J1; j < op.J2; j++ {
				rows[j] = true
			}
		case 'd':
			rows[op.J1] = true
		}
	}

	return rows
}

func overlaps(rows map[int]bool, start, end int) bool {
	for r := start; r <= end; r++ {
		if rows[r] {
			return true
		}
	}

	return false
}
