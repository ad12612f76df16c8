package cmd

import (
	"github.com/spf13/cobra"

	"failpass.dev/pkg/failpass/internal/controller"
)

var listRequest requestFlags

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [repo-dir]",
		Short: "List the files a change touches and whether it qualifies",
		Long: `List the files changed between --base and --head (or the working tree),
classified as source, test, config or unrelated. A change qualifies for test
synthesis when it touches at least one source file and no test or unrelated file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			job, err := listRequest.job(dir)
			if err != nil {
				return err
			}

			changes, err := resolveWorkflow(cfg).Discover(cmd.Context(), job)
			if err != nil {
				return err
			}

			return controller.NewUI(cmd).DisplayChangeSet(cmd.Context(), job.Request, changes)
		},
	}

	listRequest.register(cmd, false)

	return cmd
}
