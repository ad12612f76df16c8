package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"failpass.dev/pkg/failpass/internal/controller"
	"failpass.dev/pkg/failpass/internal/domain"
)

const runLongDescription = `Synthesize a fail-to-pass test for one change request, or for every request
listed in a requests file.

A single request is read from the checkout given as argument (default: the
current directory). Without --head the working tree is compared against --base.

The requests file is a YAML list:

  - owner: mozilla
    repo: neqo
    number: 1234
    base: 1f0c3e2
    head: 9ab4d01
    dir: ./checkouts/neqo
    issue_file: issues/1234.md`

var (
	runParallelFlag    int
	runShardFlag       string
	runBackendFlag     []string
	runMaxAttemptsFlag int
	runCoverageFlag    bool
	runRequestsFlag    string
	runRequest         requestFlags
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [repo-dir]",
		Short: "Synthesize regression tests for change requests",
		Long:  runLongDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			jobs, err := resolveJobs(runRequestsFlag, runRequest, args)
			if err != nil {
				return err
			}

			shardIndex, totalShards := parseShardFlag(runShardFlag)
			ui := controller.NewUI(cmd)

			ui.DisplayBatchInfo(ctx, controller.BatchInfo{
				Jobs:       len(domain.ShardJobs(jobs, uint(shardIndex), uint(totalShards))),
				Threads:    cfg.Parallel,
				ShardIndex: uint(shardIndex),
				ShardCount: uint(totalShards),
				Backends:   cfg.Backends,
			})

			report, runErr := resolveWorkflow(cfg).RunAll(ctx, domain.BatchArgs{
				Jobs:            jobs,
				Threads:         cfg.Parallel,
				ShardIndex:      uint(shardIndex),
				TotalShardCount: uint(totalShards),
			})

			if err := ui.DisplayResults(ctx, report.Results, report.Tally); err != nil {
				return err
			}

			if metrics != nil {
				path := filepath.Join(cfg.Output, defaultMetricsFileName)
				if err := metrics.WriteTextfile(path); err != nil {
					slog.Warn("Failed to write metrics", "path", path, "error", err)
				}
			}

			if runErr != nil {
				return fmt.Errorf("run: %w", runErr)
			}

			return nil
		},
	}

	configureRunFlags(cmd)

	return cmd
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&runParallelFlag, runParallelFlagName, "p", viper.GetInt(runParallelConfigKey), "number of requests processed in parallel")
	bindFlagToConfig(cmd.Flags().Lookup(runParallelFlagName), runParallelConfigKey)

	cmd.Flags().StringSliceVarP(&runBackendFlag, backendFlagName, "b", nil, "backends to try in order (repeatable or comma separated)")
	bindFlagToConfig(cmd.Flags().Lookup(backendFlagName), runBackendsKey)

	cmd.Flags().IntVar(&runMaxAttemptsFlag, maxAttemptsFlagName, viper.GetInt(runMaxAttemptsKey), "attempt budget per backend")
	bindFlagToConfig(cmd.Flags().Lookup(maxAttemptsFlagName), runMaxAttemptsKey)

	cmd.Flags().BoolVar(&runCoverageFlag, coverageFlagName, viper.GetBool(runCoverageKey), "measure coverage of successful tests")
	bindFlagToConfig(cmd.Flags().Lookup(coverageFlagName), runCoverageKey)

	cmd.Flags().StringVarP(&runShardFlag, "shard", "s", "", "shard index and total shard count in the format INDEX/TOTAL (e.g., 0/3)")
	cmd.Flags().StringVarP(&runRequestsFlag, "requests", "r", "", "YAML file listing change requests")

	runRequest.register(cmd, true)
}

func parseShardFlag(shard string) (int, int) {
	if shard == "" {
		return 0, 1
	}

	var index, total int

	_, err := fmt.Sscanf(shard, "%d/%d", &index, &total)
	if err != nil || total <= 0 || index < 0 || index >= total {
		return 0, 1
	}

	return index, total
}
