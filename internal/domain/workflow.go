package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"failpass.dev/pkg/failpass/internal/adapter"
	m "failpass.dev/pkg/failpass/internal/model"
)

// ErrNotCandidate is returned for a change that touches no source file or
// already touches tests.
var ErrNotCandidate = errors.New("change does not qualify for test synthesis")

// Job is one change request and the checkout it is read from.
type Job struct {
	Request m.ChangeRequest
	RepoDir string
}

// BatchArgs selects the jobs of a batch and how many run at once.
type BatchArgs struct {
	Jobs            []Job
	Threads         uint
	ShardIndex      uint
	TotalShardCount uint
}

// Report collects the results of a batch.
type Report struct {
	Results []m.RunResult
	Tally   m.Tally
}

// GeneratorFactory builds the generator for one backend.
type GeneratorFactory func(ctx context.Context, backend m.Backend) (adapter.Generator, error)

// Workflow discovers change sets and runs the orchestrator over them.
type Workflow interface {
	// Discover reads the change set of job from its checkout.
	Discover(ctx context.Context, job Job) (m.ChangeSet, error)
	// Run synthesizes a test for one job, trying each backend in order until
	// one succeeds.
	Run(ctx context.Context, job Job) ([]m.RunResult, error)
	// RunAll runs independent jobs concurrently.
	RunAll(ctx context.Context, args BatchArgs) (Report, error)
}

type workflow struct {
	adapter.VersionControl
	Sandbox
	Orchestrator

	generators GeneratorFactory
	backends   []m.Backend
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(
	vcs adapter.VersionControl,
	sandbox Sandbox,
	orchestrator Orchestrator,
	generators GeneratorFactory,
	backends []m.Backend,
) Workflow {
	return &workflow{
		VersionControl: vcs,
		Sandbox:        sandbox,
		Orchestrator:   orchestrator,
		generators:     generators,
		backends:       backends,
	}
}

func (w *workflow) Discover(ctx context.Context, job Job) (m.ChangeSet, error) {
	req := job.Request

	paths, err := w.ChangedFiles(ctx, job.RepoDir, req.BaseRevision, req.HeadRevision)
	if err != nil {
		return m.ChangeSet{}, fmt.Errorf("list changed files: %w", err)
	}

	var changes m.ChangeSet

	for _, p := range paths {
		before, err := w.Show(ctx, job.RepoDir, req.BaseRevision, p)
		if err != nil {
			return m.ChangeSet{}, fmt.Errorf("read %s at base: %w", p, err)
		}

		var after string
		if req.HeadRevision == "" {
			after, err = w.WorkingTreeContent(ctx, job.RepoDir, p)
		} else {
			after, err = w.Show(ctx, job.RepoDir, req.HeadRevision, p)
		}

		if err != nil {
			return m.ChangeSet{}, fmt.Errorf("read %s after change: %w", p, err)
		}

		d, err := m.NewFileDiff(p, before, after)
		if errors.Is(err, m.ErrNoChange) {
			continue
		}

		if err != nil {
			return m.ChangeSet{}, err
		}

		changes.Add(d)
	}

	slog.Debug("Discovered change set", "request", req.ID(),
		"sources", len(changes.Sources), "config", len(changes.Config),
		"tests", len(changes.Tests), "unrelated", len(changes.Unrelated))

	return changes, nil
}

func (w *workflow) Run(ctx context.Context, job Job) ([]m.RunResult, error) {
	changes, err := w.Discover(ctx, job)
	if err != nil {
		return nil, err
	}

	if !changes.FulfillsRequirements() {
		slog.Info("Skipping change", "request", job.Request.ID(), "reason", ErrNotCandidate)
		return nil, fmt.Errorf("%s: %w", job.Request.ID(), ErrNotCandidate)
	}

	if err := w.EnsureEnvironment(ctx, job.Request); err != nil {
		return nil, fmt.Errorf("prepare environment: %w", err)
	}

	var results []m.RunResult

	for _, backend := range w.backends {
		gen, err := w.generators(ctx, backend)
		if err != nil {
			slog.Error("Backend unavailable", "backend", backend, "error", err)
			continue
		}

		result, err := w.Orchestrator.Run(ctx, RunInput{Request: job.Request, Changes: changes, Backend: backend}, gen)
		results = append(results, result)

		if err != nil {
			if ctx.Err() != nil || m.IsFatal(err) {
				return results, fmt.Errorf("run %s with %s: %w", job.Request.ID(), backend, err)
			}

			slog.Warn("Backend run aborted, trying next", "backend", backend, "error", err)

			continue
		}

		if result.Status == m.RunSucceeded || result.Status == m.RunDeclined {
			break
		}
	}

	return results, nil
}

func (w *workflow) RunAll(ctx context.Context, args BatchArgs) (Report, error) {
	jobs := ShardJobs(args.Jobs, args.ShardIndex, args.TotalShardCount)

	var (
		report Report
		errs   []error
		mu     sync.Mutex
	)

	report.Tally = m.Tally{Outcomes: map[m.Outcome]int{}}

	var group errgroup.Group
	if args.Threads > 0 {
		group.SetLimit(int(args.Threads))
	}

	for _, job := range jobs {
		group.Go(func() error {
			results, err := w.Run(ctx, job)

			mu.Lock()
			defer mu.Unlock()

			for _, r := range results {
				report.Results = append(report.Results, r)
				report.Tally = report.Tally.Record(r)
			}

			if err != nil && !errors.Is(err, ErrNotCandidate) {
				errs = append(errs, err)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return report, err
	}

	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].Request.ID() < report.Results[j].Request.ID()
	})

	if len(errs) > 0 {
		return report, fmt.Errorf("%d of %d runs failed: %w", len(errs), len(jobs), errors.Join(errs...))
	}

	return report, nil
}

// ShardJobs keeps the jobs whose position falls into the given shard. A zero
// shard count keeps everything.
func ShardJobs(jobs []Job, shardIndex, totalShardCount uint) []Job {
	if totalShardCount == 0 {
		return jobs
	}

	var out []Job

	for i, job := range jobs {
		if uint(i)%totalShardCount == shardIndex {
			out = append(out, job)
		}
	}

	return out
}
