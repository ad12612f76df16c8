// Package cmd provides the root command and CLI setup for failpass.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"failpass.dev/pkg/failpass/internal/adapter"
	"failpass.dev/pkg/failpass/internal/domain"
	m "failpass.dev/pkg/failpass/internal/model"
)

// Shared dependencies. Commands build the ones they need from the resolved
// configuration unless they were set beforehand.
var (
	workflow domain.Workflow
	injector domain.Injector
	metrics  adapter.Metrics
)

// reportsOutputDirFlag is a root-level flag shared by commands that read/write reports.
var reportsOutputDirFlag string

// verboseFlag raises the log level to debug.
var verboseFlag bool

const rootLongDescription = `Failpass synthesizes regression tests for Rust code changes.

For each change request it asks a language model for a test, merges the test
into the changed source file, and runs it in a disposable container before and
after the change. A test is kept only when it fails before the change and
passes after it. Failed attempts are retried with the failure output.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "failpass",
		Short:         "Fail-to-pass regression test synthesis for Rust",
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger("", verboseFlag)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"output directory for attempt artifacts and run results",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

func init() {
	rootCmd.AddCommand(
		newRunCmd(),
		newListCmd(),
		newInjectCmd(),
		newViewCmd(),
		newInitCmd(),
		newVersionCmd(),
	)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

// resolveWorkflow returns the shared workflow, building it from cfg on first use.
func resolveWorkflow(cfg domain.Config) domain.Workflow {
	if workflow != nil {
		return workflow
	}

	if metrics == nil {
		metrics = adapter.NewPrometheusMetrics()
	}

	exec := adapter.NewLocalCommandExecutor(cfg.CommandTimeout)
	fs := adapter.NewLocalSourceFSAdapter()
	vcs := adapter.NewGitCLIAdapter(adapter.NewLocalCommandExecutor(0))
	sandbox := domain.NewSandbox(adapter.NewCLIContainerEngine(cfg.Engine, exec), fs, cfg.Sandbox)

	orchestrator := domain.NewOrchestrator(
		resolveInjector(),
		domain.NewPatchComposer(fs, vcs),
		sandbox,
		adapter.NewFileReportStore(cfg.Output),
		metrics,
		cfg.Orchestrator,
	)

	workflow = domain.NewWorkflow(vcs, sandbox, orchestrator, generatorFactory(cfg.LLM), cfg.Backends)

	return workflow
}

func resolveInjector() domain.Injector {
	if injector == nil {
		injector = domain.NewInjector(adapter.NewTreeSitterRustAdapter())
	}

	return injector
}

// generatorFactory builds backends with their API keys taken from the environment.
func generatorFactory(cfg domain.LLMConfig) domain.GeneratorFactory {
	return func(ctx context.Context, backend m.Backend) (adapter.Generator, error) {
		return adapter.NewGenerator(ctx, adapter.GeneratorConfig{
			Backend:      backend,
			APIKey:       os.Getenv(apiKeyEnv[backend.Provider()]),
			Temperature:  cfg.Temperature,
			RPS:          cfg.RPS,
			MockResponse: cfg.MockResponse,
		})
	}
}
