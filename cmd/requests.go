package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"failpass.dev/pkg/failpass/internal/domain"
	m "failpass.dev/pkg/failpass/internal/model"
)

// requestFlags describes a single change request on the command line.
type requestFlags struct {
	owner     string
	repo      string
	number    int
	base      string
	head      string
	issue     string
	issueFile string
}

func (f *requestFlags) register(cmd *cobra.Command, withIssue bool) {
	cmd.Flags().StringVar(&f.owner, "owner", "", "owner of the repository")
	cmd.Flags().StringVar(&f.repo, "repo", "", "repository name, also selects Dockerfile_<repo>")
	cmd.Flags().IntVar(&f.number, "number", 0, "change request number")
	cmd.Flags().StringVar(&f.base, "base", "", "base revision the change applies to")
	cmd.Flags().StringVar(&f.head, "head", "", "revision with the change (default: working tree)")

	if withIssue {
		cmd.Flags().StringVar(&f.issue, "issue", "", "problem statement text")
		cmd.Flags().StringVar(&f.issueFile, "issue-file", "", "file holding the problem statement")
	}
}

// job builds the job for the checkout at dir.
func (f requestFlags) job(dir string) (domain.Job, error) {
	if f.base == "" {
		return domain.Job{}, errors.New("--base is required")
	}

	issue, err := readIssue(f.issue, f.issueFile)
	if err != nil {
		return domain.Job{}, err
	}

	return domain.Job{
		Request: m.ChangeRequest{
			Owner:            f.owner,
			Repo:             f.repo,
			Number:           f.number,
			BaseRevision:     f.base,
			HeadRevision:     f.head,
			ProblemStatement: issue,
		},
		RepoDir: dir,
	}, nil
}

type requestDoc struct {
	Owner     string `yaml:"owner"`
	Repo      string `yaml:"repo"`
	Number    int    `yaml:"number"`
	Base      string `yaml:"base"`
	Head      string `yaml:"head"`
	Dir       string `yaml:"dir"`
	Issue     string `yaml:"issue"`
	IssueFile string `yaml:"issue_file"`
}

// resolveJobs reads jobs from the requests file when given, else from flags.
func resolveJobs(requestsFile string, flags requestFlags, args []string) ([]domain.Job, error) {
	if requestsFile != "" {
		return loadRequests(requestsFile)
	}

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if flags.owner == "" || flags.repo == "" {
		return nil, errors.New("--owner and --repo are required without --requests")
	}

	job, err := flags.job(dir)
	if err != nil {
		return nil, err
	}

	return []domain.Job{job}, nil
}

// loadRequests parses a YAML list of requests. Relative paths are resolved
// against the file's directory.
func loadRequests(path string) ([]domain.Job, error) {
	// #nosec G304 - path is an operator-provided input file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}

	var docs []requestDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse requests %s: %w", path, err)
	}

	root := filepath.Dir(path)
	jobs := make([]domain.Job, 0, len(docs))

	for i, doc := range docs {
		if doc.Owner == "" || doc.Repo == "" || doc.Base == "" {
			return nil, fmt.Errorf("request %d in %s needs owner, repo and base", i+1, path)
		}

		flags := requestFlags{
			owner:     doc.Owner,
			repo:      doc.Repo,
			number:    doc.Number,
			base:      doc.Base,
			head:      doc.Head,
			issue:     doc.Issue,
			issueFile: relativeTo(root, doc.IssueFile),
		}

		dir := doc.Dir
		if dir == "" {
			dir = "."
		}

		job, err := flags.job(relativeTo(root, dir))
		if err != nil {
			return nil, fmt.Errorf("request %d in %s: %w", i+1, path, err)
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}

func readIssue(text, file string) (string, error) {
	if file == "" {
		return strings.TrimSpace(text), nil
	}

	// #nosec G304 - path is an operator-provided input file
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read issue: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

func relativeTo(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(root, p)
}
