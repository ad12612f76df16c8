package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	m "failpass.dev/pkg/failpass/internal/model"
	"failpass.dev/pkg/failpass/pkg"
)

// Artifact file names written per attempt and per run.
const (
	PromptFile        = "prompt.txt"
	RawResponseFile   = "raw_model_response.txt"
	GeneratedTestFile = "generated_test.txt"
	BeforeLogFile     = "before.txt"
	AfterLogFile      = "after.txt"
	LintLogFile       = "lint.txt"
	TestFileContent   = "new_test_file_content.rs"
	AttemptRecordFile = "record.yaml"
	ResultFile        = "result.yaml"
	CommentFile       = "comment.md"
	JournalFile       = "attempts.gob"
)

// ReportStore persists the evidence of every attempt so exhausted runs can be
// inspected by hand.
type ReportStore interface {
	// SaveAttempt writes one attempt's artifacts.
	SaveAttempt(ctx context.Context, request m.ChangeRequest, backend m.Backend, record m.AttemptRecord) error
	// SaveResult writes the run summary, the comment on success and the attempt journal.
	SaveResult(ctx context.Context, result m.RunResult) error
	// LoadAttempts reads back the attempt journal of a run directory.
	LoadAttempts(ctx context.Context, runDir m.Path) ([]m.AttemptRecord, error)
	// RunDir is where a request/backend pair stores its artifacts.
	RunDir(request m.ChangeRequest, backend m.Backend) m.Path
}

// FileReportStore writes artifacts below a root directory as
// <root>/<request id>/<backend>/attempt_<n>/. Attempts whose test patch did
// not apply go to attempt_<n>_patch_failure_<k>/.
type FileReportStore struct {
	root string
}

// NewFileReportStore constructs a FileReportStore rooted at root.
func NewFileReportStore(root string) *FileReportStore {
	return &FileReportStore{root: root}
}

type coverageDoc struct {
	FileLinesWith     *float64 `yaml:"file_lines_with,omitempty"`
	FileLinesWithout  *float64 `yaml:"file_lines_without,omitempty"`
	SuiteLinesWith    *float64 `yaml:"suite_lines_with,omitempty"`
	SuiteLinesWithout *float64 `yaml:"suite_lines_without,omitempty"`
	Improved          bool     `yaml:"improved"`
}

type attemptDoc struct {
	Index           int          `yaml:"index"`
	Stage           string       `yaml:"stage"`
	Outcome         string       `yaml:"outcome"`
	PatchFailure    int          `yaml:"patch_failure,omitempty"`
	TargetFile      string       `yaml:"target_file,omitempty"`
	TestIdentifier  string       `yaml:"test_identifier,omitempty"`
	Imports         []string     `yaml:"imports,omitempty"`
	PrePatchPassed  bool         `yaml:"pre_patch_passed"`
	PostPatchPassed bool         `yaml:"post_patch_passed"`
	Coverage        *coverageDoc `yaml:"coverage,omitempty"`
}

type resultDoc struct {
	Request  string       `yaml:"request"`
	Backend  string       `yaml:"backend"`
	Status   string       `yaml:"status"`
	Error    string       `yaml:"error,omitempty"`
	Attempts []attemptDoc `yaml:"attempts"`
}

// RunDir implements ReportStore.
func (s *FileReportStore) RunDir(request m.ChangeRequest, backend m.Backend) m.Path {
	return m.Path(filepath.Join(s.root, request.ID(), sanitizeSegment(string(backend))))
}

// SaveAttempt implements ReportStore.
func (s *FileReportStore) SaveAttempt(ctx context.Context, request m.ChangeRequest, backend m.Backend, record m.AttemptRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := fmt.Sprintf("attempt_%d", record.Index+1)
	if record.PatchFailure > 0 {
		name = fmt.Sprintf("%s_patch_failure_%d", name, record.PatchFailure)
	}

	dir := filepath.Join(string(s.RunDir(request, backend)), name)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create attempt dir: %w", err)
	}

	files := map[string]string{
		PromptFile:      record.Prompt,
		RawResponseFile: record.RawResponse,
		GeneratedTestFile: strings.TrimSpace(record.Test.ImportBlock()+"\n\n"+record.Test.Body) +
			"\n",
		BeforeLogFile: record.PrePatchOutput,
		AfterLogFile:  record.PostPatchOutput,
		LintLogFile:   record.LintOutput,
	}

	if record.TestFileContent != "" {
		files[TestFileContent] = fmt.Sprintf("#%s\n%s", record.Test.TargetFile, record.TestFileContent)
	}

	for name, content := range files {
		if strings.TrimSpace(content) == "" {
			continue
		}

		if err := writeArtifact(filepath.Join(dir, name), []byte(content)); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(toAttemptDoc(record))
	if err != nil {
		return fmt.Errorf("marshal attempt record: %w", err)
	}

	if err := writeArtifact(filepath.Join(dir, AttemptRecordFile), data); err != nil {
		return err
	}

	slog.Debug("Saved attempt artifacts", "dir", dir, "outcome", record.Outcome)

	return nil
}

// SaveResult implements ReportStore.
func (s *FileReportStore) SaveResult(ctx context.Context, result m.RunResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := string(s.RunDir(result.Request, result.Backend))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	doc := resultDoc{
		Request: result.Request.ID(),
		Backend: string(result.Backend),
		Status:  result.Status.String(),
	}

	if result.Err != nil {
		doc.Error = result.Err.Error()
	}

	for _, a := range result.Attempts {
		doc.Attempts = append(doc.Attempts, toAttemptDoc(a))
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}

	if err := writeArtifact(filepath.Join(dir, ResultFile), data); err != nil {
		return err
	}

	if result.Comment != "" {
		if err := writeArtifact(filepath.Join(dir, CommentFile), []byte(result.Comment)); err != nil {
			return err
		}
	}

	journal, err := pkg.CreateJournal[m.AttemptRecord](filepath.Join(dir, JournalFile))
	if err != nil {
		return err
	}

	if err := journal.AppendBatch(result.Attempts); err != nil {
		_ = journal.Close()
		return err
	}

	return journal.Close()
}

// LoadAttempts implements ReportStore.
func (s *FileReportStore) LoadAttempts(ctx context.Context, runDir m.Path) ([]m.AttemptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	journal, err := pkg.OpenJournal[m.AttemptRecord](filepath.Join(string(runDir), JournalFile))
	if err != nil {
		return nil, err
	}

	defer func() { _ = journal.Close() }()

	records := make([]m.AttemptRecord, 0, journal.Len())

	err = journal.Range(func(_ uint64, r m.AttemptRecord) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

func toAttemptDoc(r m.AttemptRecord) attemptDoc {
	doc := attemptDoc{
		Index:           r.Index,
		Stage:           r.Stage.String(),
		Outcome:         r.Outcome.String(),
		PatchFailure:    r.PatchFailure,
		TargetFile:      string(r.Test.TargetFile),
		TestIdentifier:  r.Test.TestIdentifier,
		Imports:         r.Test.Imports,
		PrePatchPassed:  r.PrePatchPassed,
		PostPatchPassed: r.PostPatchPassed,
	}

	if r.Coverage != nil {
		doc.Coverage = &coverageDoc{
			FileLinesWith:     r.Coverage.FileLinesWith,
			FileLinesWithout:  r.Coverage.FileLinesWithout,
			SuiteLinesWith:    r.Coverage.SuiteLinesWith,
			SuiteLinesWithout: r.Coverage.SuiteLinesWithout,
			Improved:          r.Coverage.Improved(),
		}
	}

	return doc
}

func writeArtifact(path string, content []byte) error {
	if err := os.WriteFile(path, content, 0o600); err != nil {
		slog.Error("Failed to write artifact", "path", path, "error", err)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}

	return nil
}

func sanitizeSegment(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(s)
}
